package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Password: "test",
				Database: "test", SSLMode: "disable", MaxOpenConns: 10, MaxIdleConns: 5,
			},
			wantErr: false,
		},
		{
			name: "missing password",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Database: "test",
				MaxOpenConns: 10, MaxIdleConns: 5,
			},
			wantErr: true,
		},
		{
			name: "idle conns exceed max conns",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Password: "test",
				Database: "test", MaxOpenConns: 5, MaxIdleConns: 10,
			},
			wantErr: true,
		},
		{
			name: "zero max open conns",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Password: "test",
				Database: "test", MaxOpenConns: 0, MaxIdleConns: 0,
			},
			wantErr: true,
		},
		{
			name: "negative idle conns",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Password: "test",
				Database: "test", MaxOpenConns: 10, MaxIdleConns: -1,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_PORT", "")

	cfg, err := LoadConfigFromEnv()
	assert.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "forged", cfg.Database)
	assert.Equal(t, time.Hour, cfg.ConnMaxLifetime)
}

func TestLoadConfigFromEnvRequiresPassword(t *testing.T) {
	t.Setenv("DB_PASSWORD", "")
	_, err := LoadConfigFromEnv()
	assert.Error(t, err)
}
