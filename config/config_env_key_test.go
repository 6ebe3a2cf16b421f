package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizeEnvKey_UsesExistingCamelCaseKeys(t *testing.T) {
	existing := map[string]any{
		"postgres": map[string]any{
			"sslMode": "disable",
			"master": map[string]any{
				"userName": "user",
			},
		},
		"jwt": map[string]any{
			"signingKey":     "",
			"accessTokenTTL": "15m",
		},
		"refreshToken": map[string]any{
			"byteLength": 32,
		},
		"events": map[string]any{
			"topicId": "",
		},
		"auth": map[string]any{
			"bootstrapAdmin": map[string]any{
				"username": "",
			},
		},
	}

	tests := []struct {
		envKey string
		want   string
	}{
		{envKey: "POSTGRES_SSLMODE", want: "postgres.sslMode"},
		{envKey: "POSTGRES_MASTER_USERNAME", want: "postgres.master.userName"},
		{envKey: "JWT_SIGNINGKEY", want: "jwt.signingKey"},
		{envKey: "JWT_ACCESSTOKENTTL", want: "jwt.accessTokenTTL"},
		{envKey: "REFRESHTOKEN_BYTELENGTH", want: "refreshToken.byteLength"},
		{envKey: "EVENTS_TOPICID", want: "events.topicId"},
		{envKey: "AUTH_BOOTSTRAPADMIN_USERNAME", want: "auth.bootstrapAdmin.username"},
		{envKey: "NEW_FEATURE_FLAG", want: "new.feature.flag"},
	}

	for _, tt := range tests {
		t.Run(tt.envKey, func(t *testing.T) {
			if got := canonicalizeEnvKey(tt.envKey, existing); got != tt.want {
				t.Fatalf("canonicalizeEnvKey(%q) = %q, want %q", tt.envKey, got, tt.want)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "HS256", cfg.JWT.Algorithm)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshToken.TTL)
	assert.Equal(t, 32, cfg.RefreshToken.ByteLength)
	assert.Equal(t, "refreshToken", cfg.RefreshToken.CookieName)
	assert.Equal(t, HasherArgon2id, cfg.Auth.Hasher)
	assert.Equal(t, uint32(64*1024), cfg.Auth.Argon2.MemoryKiB)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.JWT.Algorithm = "HS512"
	cfg.RefreshToken.ByteLength = 48
	cfg.Auth.Hasher = HasherBcrypt
	applyDefaults(cfg)

	assert.Equal(t, "HS512", cfg.JWT.Algorithm)
	assert.Equal(t, 48, cfg.RefreshToken.ByteLength)
	assert.Equal(t, HasherBcrypt, cfg.Auth.Hasher)
}

func TestLoadWithEnv_OverlaysEnvironment(t *testing.T) {
	dir := t.TempDir()
	yamlBody := "env:\n  serviceName: evently\n  log:\n    level: info\njwt:\n  signingKey: from-file\n  accessTokenTTL: 5m\n"
	writeFile(t, dir, "test.yaml", yamlBody)

	t.Setenv("JWT_SIGNINGKEY", "from-env")

	cfg, err := LoadWithEnv[Config]("test", relativeTo(t, dir))
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}

	assert.Equal(t, "evently", cfg.Env.ServiceName)
	assert.Equal(t, "from-env", cfg.JWT.SigningKey)
	assert.Equal(t, 5*time.Minute, cfg.JWT.AccessTokenTTL)
}

func TestLoadWithEnv_MissingFile(t *testing.T) {
	_, err := LoadWithEnv[Config]("does-not-exist")
	assert.Error(t, err)
}

func TestBootstrapAdminConfig_Enabled(t *testing.T) {
	assert.False(t, BootstrapAdminConfig{}.Enabled())
	assert.False(t, BootstrapAdminConfig{Username: "root"}.Enabled())
	assert.False(t, BootstrapAdminConfig{Password: "Adm1n!"}.Enabled())
	assert.True(t, BootstrapAdminConfig{Username: "root", Password: "Adm1n!"}.Enabled())
}
