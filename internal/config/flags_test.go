package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetAddress_Set(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{name: "localhost with port", input: "localhost:8080", wantHost: "localhost", wantPort: 8080},
		{name: "ip with port", input: "127.0.0.1:9000", wantHost: "127.0.0.1", wantPort: 9000},
		{name: "empty host", input: ":8080", wantHost: "", wantPort: 8080},
		{name: "no port", input: "localhost", wantErr: true},
		{name: "non-numeric port", input: "localhost:http", wantErr: true},
		{name: "zero port", input: "localhost:0", wantErr: true},
		{name: "bad ip", input: "not-an-ip:8080", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a NetAddress
			err := a.Set(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, a.Host)
			assert.Equal(t, tt.wantPort, a.Port)
		})
	}
}

func TestNetAddress_String(t *testing.T) {
	unset := NetAddress{}
	assert.Equal(t, "", unset.String(), "unset address must read as not provided")

	set := NetAddress{Host: "localhost", Port: 8080}
	assert.Equal(t, "localhost:8080", set.String())
}
