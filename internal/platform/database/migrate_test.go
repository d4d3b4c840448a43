package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/basecamp?sslmode=disable", MigrateURL("postgres://u:p@db:5432/basecamp?sslmode=disable"))
	assert.Equal(t, "pgx5://u@db/basecamp", MigrateURL("postgresql://u@db/basecamp"))
	assert.Equal(t, "pgx5://already", MigrateURL("pgx5://already"))
}
