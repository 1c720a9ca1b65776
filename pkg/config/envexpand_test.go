package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	tests := []struct {
		name  string
		input string
		env   map[string]string
		want  string
	}{
		{
			name:  "braced substitution",
			input: "api_key: ${API_KEY}",
			env:   map[string]string{"API_KEY": "secret123"},
			want:  "api_key: secret123",
		},
		{
			name:  "bare substitution",
			input: "token: $GITHUB_TOKEN",
			env:   map[string]string{"GITHUB_TOKEN": "ghp_abc"},
			want:  "token: ghp_abc",
		},
		{
			name:  "multiple variables",
			input: "addr: ${DB_HOST}:${DB_PORT}",
			env:   map[string]string{"DB_HOST": "localhost", "DB_PORT": "5432"},
			want:  "addr: localhost:5432",
		},
		{
			name:  "missing variable expands to empty string",
			input: "key: ${MISSING_VAR}",
			env:   nil,
			want:  "key: ",
		},
		{
			name:  "no variables is a no-op",
			input: "plain: value",
			env:   nil,
			want:  "plain: value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			got := ExpandEnv([]byte(tt.input))
			assert.Equal(t, tt.want, string(got))
		})
	}
}
