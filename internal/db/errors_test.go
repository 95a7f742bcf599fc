package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	database, err := OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	insert := `INSERT INTO admins (id, email, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	_, err = database.Exec(insert, "a1", "admin@example.com", "hash", now, now)
	require.NoError(t, err)

	_, err = database.Exec(insert, "a2", "admin@example.com", "hash", now, now)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert admin: %w", err)))

	_, err = database.Exec(insert, "a1", "other@example.com", "hash", now, now)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err), "primary key collisions count too")

	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("connection reset")))
	assert.False(t, IsUniqueViolation(nil))
}
