package string

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "kim@example.com", NormalizeEmail("  Kim@Example.COM "))
}

func TestDigitsOnly(t *testing.T) {
	assert.Equal(t, "123456789", DigitsOnly("123-45-6789"))
	assert.Equal(t, "", DigitsOnly("abc"))
}

func TestLast(t *testing.T) {
	assert.Equal(t, "6789", Last("123456789", 4))
	assert.Equal(t, "12", Last("12", 4))
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "date_of_birth", ToSnakeCase("DateOfBirth"))
	assert.Equal(t, "ssn", ToSnakeCase("SSN"))
	assert.Equal(t, "postal_code", ToSnakeCase("PostalCode"))
}
