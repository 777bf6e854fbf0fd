package cmd

import (
	"context"
	"strings"
	"testing"
)

func TestParseCommaSeparatedList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "single value",
			input:    "alice@example.com",
			expected: []string{"alice@example.com"},
		},
		{
			name:     "multiple values",
			input:    "alice@example.com,bob@example.com",
			expected: []string{"alice@example.com", "bob@example.com"},
		},
		{
			name:     "values with spaces around comma",
			input:    "alice@example.com, bob@example.com",
			expected: []string{"alice@example.com", "bob@example.com"},
		},
		{
			name:     "values with leading/trailing spaces",
			input:    "  alice@example.com  ,  bob@example.com  ",
			expected: []string{"alice@example.com", "bob@example.com"},
		},
		{
			name:     "trailing comma",
			input:    "alice@example.com,bob@example.com,",
			expected: []string{"alice@example.com", "bob@example.com"},
		},
		{
			name:     "multiple consecutive commas",
			input:    "alice@example.com,,bob@example.com",
			expected: []string{"alice@example.com", "bob@example.com"},
		},
		{
			name:     "only commas and spaces",
			input:    ",  , , ",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseCommaSeparatedList(tt.input)

			if len(result) != len(tt.expected) {
				t.Fatalf("parseCommaSeparatedList(%q) = %v (len %d), want %v (len %d)",
					tt.input, result, len(result), tt.expected, len(tt.expected))
			}

			for i, v := range result {
				if v != tt.expected[i] {
					t.Errorf("parseCommaSeparatedList(%q)[%d] = %q, want %q",
						tt.input, i, v, tt.expected[i])
				}
			}
		})
	}
}

func TestNewStore(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		store, err := newStore(context.Background(), OAuthBridgeConfig{StorageType: storageMemory})
		if err != nil {
			t.Fatalf("newStore() error = %v", err)
		}
		if store == nil {
			t.Fatal("newStore() returned nil store")
		}
	})

	t.Run("default is memory", func(t *testing.T) {
		store, err := newStore(context.Background(), OAuthBridgeConfig{})
		if err != nil {
			t.Fatalf("newStore() error = %v", err)
		}
		if store == nil {
			t.Fatal("newStore() returned nil store")
		}
	})

	t.Run("redis without addr", func(t *testing.T) {
		_, err := newStore(context.Background(), OAuthBridgeConfig{StorageType: storageRedis})
		if err == nil || !strings.Contains(err.Error(), "redis address is required") {
			t.Errorf("newStore() error = %v, want redis address error", err)
		}
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := newStore(context.Background(), OAuthBridgeConfig{StorageType: "etcd"})
		if err == nil || !strings.Contains(err.Error(), "unsupported storage type") {
			t.Errorf("newStore() error = %v, want unsupported storage type error", err)
		}
	})
}

func TestNewUpstreamProvider(t *testing.T) {
	creds := OAuthBridgeConfig{ClientID: "id", ClientSecret: "secret"}

	t.Run("missing credentials", func(t *testing.T) {
		_, err := newUpstreamProvider(OAuthBridgeConfig{Provider: providerGoogle}, "https://mcp.example.com")
		if err == nil || !strings.Contains(err.Error(), "credentials are required") {
			t.Errorf("newUpstreamProvider() error = %v, want credentials error", err)
		}
	})

	t.Run("google", func(t *testing.T) {
		config := creds
		config.Provider = providerGoogle
		p, err := newUpstreamProvider(config, "https://mcp.example.com")
		if err != nil {
			t.Fatalf("newUpstreamProvider() error = %v", err)
		}
		if p.Name() != "google" {
			t.Errorf("Name() = %q, want google", p.Name())
		}
	})

	t.Run("default is google", func(t *testing.T) {
		p, err := newUpstreamProvider(creds, "https://mcp.example.com")
		if err != nil {
			t.Fatalf("newUpstreamProvider() error = %v", err)
		}
		if p.Name() != "google" {
			t.Errorf("Name() = %q, want google", p.Name())
		}
	})

	t.Run("github", func(t *testing.T) {
		config := creds
		config.Provider = providerGitHub
		p, err := newUpstreamProvider(config, "https://mcp.example.com")
		if err != nil {
			t.Fatalf("newUpstreamProvider() error = %v", err)
		}
		if p.Name() != "github" {
			t.Errorf("Name() = %q, want github", p.Name())
		}
	})

	t.Run("unsupported provider", func(t *testing.T) {
		config := creds
		config.Provider = "gitlab"
		_, err := newUpstreamProvider(config, "https://mcp.example.com")
		if err == nil || !strings.Contains(err.Error(), "unsupported oauth provider") {
			t.Errorf("newUpstreamProvider() error = %v, want unsupported provider error", err)
		}
	})
}

func TestLoadBridgeEnvVars(t *testing.T) {
	t.Setenv("MCP_BASE_URL", "https://env.example.com")
	t.Setenv("OAUTH_PROVIDER", "github")
	t.Setenv("OAUTH_CLIENT_ID", "env-client-id")
	t.Setenv("OAUTH_CLIENT_SECRET", "env-client-secret")
	t.Setenv("OAUTH_COOKIE_KEY", "env-cookie-key")
	t.Setenv("OAUTH_ALLOWED_USERS", "alice@example.com,bob@example.com")
	t.Setenv("OAUTH_STORAGE_TYPE", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")

	cmd := newServeCmd()
	config := OAuthBridgeConfig{StorageType: storageMemory, RedisKeyPrefix: "audiencer:"}
	loadBridgeEnvVars(cmd, &config)

	if config.BaseURL != "https://env.example.com" {
		t.Errorf("BaseURL = %q, want env value", config.BaseURL)
	}
	if config.Provider != "github" {
		t.Errorf("Provider = %q, want github", config.Provider)
	}
	if config.ClientID != "env-client-id" || config.ClientSecret != "env-client-secret" {
		t.Errorf("credentials = %q/%q, want env values", config.ClientID, config.ClientSecret)
	}
	if config.CookieKey != "env-cookie-key" {
		t.Errorf("CookieKey = %q, want env value", config.CookieKey)
	}
	if len(config.AllowedUsers) != 2 {
		t.Errorf("AllowedUsers = %v, want 2 entries", config.AllowedUsers)
	}
	if config.StorageType != "redis" || config.RedisAddr != "redis:6379" || config.RedisDB != 2 {
		t.Errorf("storage config = %+v, want redis settings from env", config)
	}
}

func TestFlagOverridesEnv(t *testing.T) {
	t.Setenv("OAUTH_PROVIDER", "github")

	cmd := newServeCmd()
	if err := cmd.Flags().Set("oauth-provider", "google"); err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}

	config := OAuthBridgeConfig{Provider: "google"}
	loadBridgeEnvVars(cmd, &config)

	if config.Provider != "google" {
		t.Errorf("Provider = %q, explicitly set flag should win over env", config.Provider)
	}
}
