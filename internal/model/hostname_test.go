package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHostname(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    string
		wantErr error
	}{
		{name: "host and port", address: "10.0.0.1:8000", want: "10.0.0.1:8000"},
		{name: "with scheme", address: "http://bob-node:8000/", want: "bob-node:8000"},
		{name: "ipv6", address: "[::1]:8000", want: "[::1]:8000"},
		{name: "no port", address: "bob-node", wantErr: ErrNoPort},
		{name: "no host", address: ":8000", wantErr: ErrEmptyHost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ParseHostname(tt.address)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, h.String())
		})
	}

	_, err := ParseHostname("bob-node:port")
	assert.Error(t, err)
}

func TestWithPort(t *testing.T) {
	h, err := WithPort("10.0.0.2:20000", 8000)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2", h.Host())
	assert.Equal(t, uint16(8000), h.Port())
	assert.Equal(t, "http://10.0.0.2:8000", h.URL())

	_, err = WithPort("10.0.0.2", 8000)
	assert.ErrorIs(t, err, ErrNoPort)
}
