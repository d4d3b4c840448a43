package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "basecamp/pkg/domain-errors"
)

func TestParseScreeningID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseScreeningID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseScreeningID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseScreeningID(uuid.Nil.String())
		require.Error(t, err)
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		raw := uuid.New()
		id, err := ParseScreeningID(raw.String())
		require.NoError(t, err)
		assert.Equal(t, ScreeningID(raw), id)
	})
}

func TestIDsEncodeAsStrings(t *testing.T) {
	type doc struct {
		ID   ScreeningID `json:"id"`
		User *UserID     `json:"user_id,omitempty"`
	}
	user := NewUserID()
	in := doc{ID: NewScreeningID(), User: &user}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"id":"`+in.ID.String()+`"`)

	var out doc
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in.ID, out.ID)
	require.NotNil(t, out.User)
	assert.Equal(t, user, *out.User)
}

func TestScanFromDatabaseString(t *testing.T) {
	raw := uuid.New()
	var id ScreeningID
	require.NoError(t, id.Scan(raw.String()))
	assert.Equal(t, raw.String(), id.String())

	v, err := id.Value()
	require.NoError(t, err)
	assert.Equal(t, raw.String(), v)
}
