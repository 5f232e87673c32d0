package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutObjectWritesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := New(Config{BaseDir: dir})
	require.NoError(t, err)

	uri, err := s.PutObject(context.Background(), "job/task.json", "application/json", strings.NewReader(`{"ok":true}`))
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.Join(dir, "job", "task.json"), uri)

	data, err := os.ReadFile(filepath.Join(dir, "job", "task.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))
}

func TestNewCreatesMissingBaseDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "records")
	_, err := New(Config{BaseDir: dir})
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewRequiresBaseDir(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	assert.Error(t, err)
}

func TestPutObjectRejectsPathTraversal(t *testing.T) {
	t.Parallel()

	s, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = s.PutObject(context.Background(), "../escape.json", "", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestPutObjectRequiresPath(t *testing.T) {
	t.Parallel()

	s, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = s.PutObject(context.Background(), "  ", "", strings.NewReader("x"))
	assert.Error(t, err)
}
