// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H0llyW00dzZ/verial-resilience/src/storage/file"
)

type policy struct {
	VerifyPeer bool              `json:"verify_peer"`
	Depth      int               `json:"verify_depth"`
	Hosts      map[string]string `json:"hosts"`
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	for _, ext := range []string{".json", ".yaml", ".yml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "options"+ext)

			s, err := file.New(path)
			require.NoError(t, err)

			want := policy{VerifyPeer: true, Depth: 5, Hosts: map[string]string{"api": "x"}}
			require.NoError(t, s.Set(ctx, "ssl_config", want, true))
			require.NoError(t, s.Set(ctx, "other", []string{"a"}, false))

			reopened, err := file.New(path)
			require.NoError(t, err)

			var got policy
			found, err := reopened.Get(ctx, "ssl_config", &got)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, want, got)

			require.NoError(t, reopened.Delete(ctx, "ssl_config"))
			require.NoError(t, reopened.Delete(ctx, "ssl_config"), "deleting twice is not an error")

			again, err := file.New(path)
			require.NoError(t, err)
			found, err = again.Get(ctx, "ssl_config", &got)
			require.NoError(t, err)
			assert.False(t, found)

			var other []string
			found, err = again.Get(ctx, "other", &other)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, []string{"a"}, other)
		})
	}
}

func TestStore_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := file.New(filepath.Join(dir, "options.toml"))
	assert.ErrorIs(t, err, file.ErrUnsupportedFormat)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))
	_, err = file.New(bad)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = file.New(empty)
	assert.NoError(t, err)
}
