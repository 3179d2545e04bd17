package logsource

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticFileLogSource_ReadsLinesInOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mail.log")
	require.NoError(t, os.WriteFile(path, []byte("line one\nline two\nline three\n"), 0o644))

	src, err := NewStaticFileLogSource(path)
	require.NoError(t, err)
	defer src.Close()

	ctx := context.Background()
	var got []string
	for {
		line, err := src.Read(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, line)
	}

	assert.Equal(t, []string{"line one", "line two", "line three"}, got)
	assert.Equal(t, path, src.Path())
}

func TestStaticFileLogSource_MissingFileErrors(t *testing.T) {
	_, err := NewStaticFileLogSource(filepath.Join(t.TempDir(), "does-not-exist.log"))
	require.Error(t, err)
}

func TestRegistry_NamesListsRegisteredFactory(t *testing.T) {
	var r Registry
	r.Register(&fileFactory{})
	assert.Equal(t, []string{"file"}, r.Names())
}
