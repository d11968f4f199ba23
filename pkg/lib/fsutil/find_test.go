package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestFindUpward(t *testing.T) {
	root := t.TempDir()
	deep := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(deep, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "emails.txt"), []byte("x\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "b", "emails.txt"), []byte("y\n"), 0o600))

	tests := []struct {
		name  string
		start string
		want  string
	}{
		{name: "nearest ancestor wins", start: deep, want: filepath.Join(root, "a", "b", "emails.txt")},
		{name: "in start directory", start: filepath.Join(root, "a", "b"), want: filepath.Join(root, "a", "b", "emails.txt")},
		{name: "root", start: filepath.Join(root, "a"), want: filepath.Join(root, "emails.txt")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindUpward(tt.start, "emails.txt")
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestFindUpwardNotFound(t *testing.T) {
	_, err := FindUpward(t.TempDir(), "definitely-not-here-7f3a.txt")
	require.Error(t, err)
	require.Equal(t, ErrNotFound, errors.Cause(err))
}
