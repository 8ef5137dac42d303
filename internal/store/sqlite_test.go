// ABOUTME: Tests for opening the SQLite store.
// ABOUTME: Covers directory creation and reopening an existing database.

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "gateway.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestNewSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.AppendInvocation(ctx, &Invocation{ToolName: "no_op", Protocol: "rest", Success: true}))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.ListInvocations(ctx, InvocationFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestNewSQLiteStore_Memory(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.AppendInvocation(context.Background(), &Invocation{ToolName: "x", Protocol: "rest"}))
	got, err := s.ListInvocations(context.Background(), InvocationFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
