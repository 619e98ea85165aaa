// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or use this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package gc

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestBufferInterface(t *testing.T) {
	tests := []struct {
		name  string
		setup func(buf Buffer)
		check func(t *testing.T, buf Buffer)
	}{
		{
			name: "Write byte slice",
			setup: func(buf Buffer) {
				buf.Write([]byte("hello"))
			},
			check: func(t *testing.T, buf Buffer) {
				assert.Equal(t, "hello", buf.String())
				assert.Equal(t, 5, buf.Len())
			},
		},
		{
			name: "Multiple operations",
			setup: func(buf Buffer) {
				buf.Write([]byte("hello"))
				buf.WriteString(" test")
				buf.WriteByte('!')
			},
			check: func(t *testing.T, buf Buffer) {
				assert.Equal(t, "hello test!", buf.String())
			},
		},
		{
			name: "ReadFrom",
			setup: func(buf Buffer) {
				buf.ReadFrom(strings.NewReader("from reader"))
			},
			check: func(t *testing.T, buf Buffer) {
				assert.Equal(t, []byte("from reader"), buf.Bytes())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := Default.Get()
			defer func() {
				buf.Reset()
				Default.Put(buf)
			}()

			tt.setup(buf)
			tt.check(t, buf)
		})
	}
}

func TestReadAll(t *testing.T) {
	tests := []struct {
		name     string
		testFunc func(t *testing.T)
	}{
		{
			name: "Unlimited",
			testFunc: func(t *testing.T) {
				data, err := ReadAll(strings.NewReader("-----BEGIN CERTIFICATE-----"), 0)
				require.NoError(t, err)
				assert.Equal(t, "-----BEGIN CERTIFICATE-----", string(data))
			},
		},
		{
			name: "Exactly at limit",
			testFunc: func(t *testing.T) {
				data, err := ReadAll(strings.NewReader("12345"), 5)
				require.NoError(t, err)
				assert.Len(t, data, 5)
			},
		},
		{
			name: "Over limit",
			testFunc: func(t *testing.T) {
				_, err := ReadAll(strings.NewReader("123456"), 5)
				assert.ErrorIs(t, err, ErrBodyTooLarge)
			},
		},
		{
			name: "Reader error",
			testFunc: func(t *testing.T) {
				_, err := ReadAll(failingReader{}, 0)
				assert.Error(t, err)
			},
		},
		{
			name: "Returned slice is independent of the pool",
			testFunc: func(t *testing.T) {
				first, err := ReadAll(strings.NewReader("first"), 0)
				require.NoError(t, err)
				_, err = ReadAll(strings.NewReader("second"), 0)
				require.NoError(t, err)
				assert.Equal(t, "first", string(first))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.testFunc)
	}
}

func TestReadAllConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := ReadAll(strings.NewReader("concurrent"), 0)
			assert.NoError(t, err)
			assert.Equal(t, "concurrent", string(data))
		}()
	}
	wg.Wait()
}
