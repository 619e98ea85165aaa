// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package posix_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H0llyW00dzZ/verial-resilience/src/internal/helper/posix"
)

func TestWriteFileAtomic(t *testing.T) {
	tests := []struct {
		name     string
		testFunc func(t *testing.T, dir string)
	}{
		{
			name: "Creates Parent And File",
			testFunc: func(t *testing.T, dir string) {
				path := filepath.Join(dir, "nested", "cacert.pem")
				require.NoError(t, posix.WriteFileAtomic(path, []byte("data"), 0o644))

				got, err := os.ReadFile(path)
				require.NoError(t, err)
				assert.Equal(t, "data", string(got))
			},
		},
		{
			name: "Replaces Existing Content",
			testFunc: func(t *testing.T, dir string) {
				path := filepath.Join(dir, "state.json")
				require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))
				require.NoError(t, posix.WriteFileAtomic(path, []byte("new"), 0o600))

				got, err := os.ReadFile(path)
				require.NoError(t, err)
				assert.Equal(t, "new", string(got))
			},
		},
		{
			name: "Leaves No Temp Files",
			testFunc: func(t *testing.T, dir string) {
				path := filepath.Join(dir, "bundle.pem")
				for range 3 {
					require.NoError(t, posix.WriteFileAtomic(path, []byte("x"), 0o644))
				}

				entries, err := os.ReadDir(dir)
				require.NoError(t, err)
				require.Len(t, entries, 1)
				assert.Equal(t, "bundle.pem", entries[0].Name())
			},
		},
		{
			name: "Target Is Directory",
			testFunc: func(t *testing.T, dir string) {
				target := filepath.Join(dir, "occupied")
				require.NoError(t, os.MkdirAll(filepath.Join(target, "child"), 0o755))

				assert.Error(t, posix.WriteFileAtomic(target, []byte("x"), 0o644))

				entries, err := os.ReadDir(dir)
				require.NoError(t, err)
				assert.Len(t, entries, 1, "temp file must be cleaned up")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.testFunc(t, t.TempDir())
		})
	}
}
