// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package tlsconfig

import (
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithinDepth(t *testing.T) {
	leaf, inter, root := &x509.Certificate{}, &x509.Certificate{}, &x509.Certificate{}

	tests := []struct {
		name   string
		chains [][]*x509.Certificate
		depth  int
		want   bool
	}{
		{name: "No Chains", depth: 1, want: true},
		{name: "Leaf And Root", chains: [][]*x509.Certificate{{leaf, root}}, depth: 1, want: true},
		{name: "Intermediate Exceeds", chains: [][]*x509.Certificate{{leaf, inter, root}}, depth: 1, want: false},
		{
			name:   "Any Short Chain Is Enough",
			chains: [][]*x509.Certificate{{leaf, inter, root}, {leaf, root}},
			depth:  1,
			want:   true,
		},
		{name: "Self Signed Leaf", chains: [][]*x509.Certificate{{leaf}}, depth: 0, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, withinDepth(tt.chains, tt.depth))
		})
	}
}
