package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "basecamp/pkg/domain-errors"
)

type candidate struct {
	FullName string `json:"full_name" validate:"notblank"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,phone"`
	SSN      string `json:"ssn" validate:"required,ssn"`
	Tier     string `json:"tier" validate:"omitempty,oneof=basic standard comprehensive"`
}

func validCandidate() candidate {
	return candidate{
		FullName: "Robin Alvarez",
		Email:    "robin@example.com",
		Phone:    "+15035550100",
		SSN:      "123-45-6789",
		Tier:     "standard",
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(validCandidate()))

	cases := []struct {
		name   string
		mutate func(*candidate)
		msg    string
	}{
		{"blank name", func(c *candidate) { c.FullName = "  " }, "full_name must not be blank"},
		{"bad email", func(c *candidate) { c.Email = "nope" }, "email must be a valid email"},
		{"bad phone", func(c *candidate) { c.Phone = "555-0100" }, "phone must be in E.164 format"},
		{"bad ssn", func(c *candidate) { c.SSN = "000-12-3456" }, "ssn must be a valid social security number"},
		{"bad tier", func(c *candidate) { c.Tier = "platinum" }, "tier must be one of [basic standard comprehensive]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validCandidate()
			tc.mutate(&c)

			err := Validate(c)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Equal(t, tc.msg, err.Error())
		})
	}
}

func TestValidSSN(t *testing.T) {
	assert.True(t, ValidSSN("123456789"))
	assert.True(t, ValidSSN("123-45-6789"))
	assert.False(t, ValidSSN("666-45-6789"))
	assert.False(t, ValidSSN("923-45-6789"))
	assert.False(t, ValidSSN("123-00-6789"))
	assert.False(t, ValidSSN("123-45-0000"))
	assert.False(t, ValidSSN("12345"))
}
