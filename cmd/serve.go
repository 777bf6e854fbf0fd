package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/audiencer/audiencer/internal/audience"
	"github.com/audiencer/audiencer/internal/instrumentation"
	"github.com/audiencer/audiencer/internal/kv"
	"github.com/audiencer/audiencer/internal/logging"
	"github.com/audiencer/audiencer/internal/oauth"
	"github.com/audiencer/audiencer/internal/server"
	"github.com/audiencer/audiencer/internal/tools/audience_tools"
)

// Supported values for --oauth-provider and --storage-type.
const (
	providerGoogle = "google"
	providerGitHub = "github"

	storageMemory = "memory"
	storageRedis  = "redis"
)

// OAuthBridgeConfig holds the OAuth bridge settings assembled from flags
// and environment variables.
type OAuthBridgeConfig struct {
	BaseURL        string
	Provider       string
	ClientID       string
	ClientSecret   string
	CookieKey      string
	AllowedUsers   []string
	StorageType    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string
}

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

// AudienceAPIConfig holds the upstream audience API settings.
type AudienceAPIConfig struct {
	BaseURL string
	APIKey  string
}

func newServeCmd() *cobra.Command {
	var (
		debugMode        bool
		transport        string
		httpAddr         string
		yolo             bool
		disableStreaming bool
		// OAuth bridge settings
		baseURL        string
		oauthProvider  string
		clientID       string
		clientSecret   string
		cookieKey      string
		allowedUsers   []string
		storageType    string
		redisAddr      string
		redisPassword  string
		redisDB        int
		redisKeyPrefix string
		// Audience API settings
		audienceAPIBase string
		audienceAPIKey  string
		// Metrics server configuration
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server to provide audience
management tools (subscribers and segments) for AI assistants.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport with OAuth authentication

Safety Mode:
  By default, the server operates in read-only mode, providing only safe operations.
  Use --yolo to enable write operations (creating subscribers, deleting segments, etc.)

OAuth Configuration (HTTP transport):
  Base URL (required for deployed instances):
    --base-url https://your-domain.com OR MCP_BASE_URL env var
    Auto-detected for localhost (development only)

  Upstream identity provider (required):
    --oauth-provider google|github
    --oauth-client-id and --oauth-client-secret flags
    OR OAUTH_CLIENT_ID and OAUTH_CLIENT_SECRET env vars

  Consent cookie signing key (required):
    --cookie-key OR OAUTH_COOKIE_KEY env var
    Must stay stable across restarts or browsers lose remembered approvals.

Token Storage:
  Tokens, sessions, and client registrations live in memory by default.
  Use --storage-type redis with --redis-addr for deployments with more
  than one replica or where tokens must survive restarts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			bridgeConfig := OAuthBridgeConfig{
				BaseURL:        baseURL,
				Provider:       oauthProvider,
				ClientID:       clientID,
				ClientSecret:   clientSecret,
				CookieKey:      cookieKey,
				AllowedUsers:   allowedUsers,
				StorageType:    storageType,
				RedisAddr:      redisAddr,
				RedisPassword:  redisPassword,
				RedisDB:        redisDB,
				RedisKeyPrefix: redisKeyPrefix,
			}
			loadBridgeEnvVars(cmd, &bridgeConfig)

			audienceConfig := AudienceAPIConfig{
				BaseURL: audienceAPIBase,
				APIKey:  audienceAPIKey,
			}
			if audienceConfig.BaseURL == "" {
				audienceConfig.BaseURL = os.Getenv("AUDIENCE_API_BASE")
			}
			if audienceConfig.APIKey == "" {
				audienceConfig.APIKey = os.Getenv("AUDIENCE_API_KEY")
			}

			metricsConfig := MetricsConfig{
				Enabled: metricsEnabled,
				Addr:    metricsAddr,
			}
			if addr := os.Getenv("METRICS_ADDR"); addr != "" && !cmd.Flags().Changed("metrics-addr") {
				metricsConfig.Addr = addr
			}

			return runServe(transport, debugMode, httpAddr, yolo, disableStreaming, bridgeConfig, audienceConfig, metricsConfig)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().BoolVar(&yolo, "yolo", false, "Enable write operations (subscriber creation, segment deletion, etc.). Default is read-only mode.")
	cmd.Flags().BoolVar(&disableStreaming, "disable-streaming", false, "Disable streaming for HTTP transport (for compatibility with certain clients)")

	// OAuth bridge flags (HTTP transport only)
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Public base URL for OAuth (HTTP transport only). Required for deployed instances. Can also use MCP_BASE_URL env var. Example: https://mcp.example.com")
	cmd.Flags().StringVar(&oauthProvider, "oauth-provider", providerGoogle, "Upstream identity provider: google or github. Can also use OAUTH_PROVIDER env var.")
	cmd.Flags().StringVar(&clientID, "oauth-client-id", "", "OAuth client ID registered with the upstream provider. Can also use OAUTH_CLIENT_ID env var.")
	cmd.Flags().StringVar(&clientSecret, "oauth-client-secret", "", "OAuth client secret registered with the upstream provider. Can also use OAUTH_CLIENT_SECRET env var.")
	cmd.Flags().StringVar(&cookieKey, "cookie-key", "", "HMAC key for signing consent approval cookies. Can also use OAUTH_COOKIE_KEY env var. Generate with: openssl rand -base64 32")
	cmd.Flags().StringSliceVar(&allowedUsers, "allowed-users", nil, "Emails permitted to authenticate (comma-separated). Empty allows any upstream identity. Can also use OAUTH_ALLOWED_USERS env var.")

	// Token storage flags
	cmd.Flags().StringVar(&storageType, "storage-type", storageMemory, "Token storage type: memory or redis. Can also use OAUTH_STORAGE_TYPE env var.")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis server address (e.g., redis.namespace.svc:6379). Can also use REDIS_ADDR env var.")
	cmd.Flags().StringVar(&redisPassword, "redis-password", "", "Redis authentication password. Can also use REDIS_PASSWORD env var.")
	cmd.Flags().IntVar(&redisDB, "redis-db", 0, "Redis database number. Can also use REDIS_DB env var.")
	cmd.Flags().StringVar(&redisKeyPrefix, "redis-key-prefix", "audiencer:", "Prefix for all Redis keys. Can also use REDIS_KEY_PREFIX env var.")

	// Audience API flags
	cmd.Flags().StringVar(&audienceAPIBase, "audience-api-base", "", "Base URL of the audience API (e.g., https://api.audience.example.com/v1). Can also use AUDIENCE_API_BASE env var.")
	cmd.Flags().StringVar(&audienceAPIKey, "audience-api-key", "", "API key for the audience API. Can also use AUDIENCE_API_KEY env var.")

	// Metrics server flags
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(transport string, debugMode bool, httpAddr string, yolo bool, disableStreaming bool, bridgeConfig OAuthBridgeConfig, audienceConfig AudienceAPIConfig, metricsConfig MetricsConfig) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := logging.New(debugMode)

	// Initialize instrumentation provider
	instrConfig, err := instrumentation.ConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load instrumentation config: %w", err)
	}
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			if transport != "stdio" {
				log.Printf("Error during instrumentation shutdown: %v", err)
			}
		}
	}()

	// Start metrics server if enabled and not in stdio mode
	var metricsServer *server.MetricsServer
	if transport != "stdio" && metricsConfig.Enabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    metricsConfig.Addr,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	}
	defer func() {
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("Error during metrics server shutdown: %v", err)
			}
		}
	}()

	// Create the audience API client when configured. Without it the
	// server still runs, just without any tools registered.
	var audienceClient *audience.Client
	if audienceConfig.BaseURL != "" && audienceConfig.APIKey != "" {
		clientConfig := audience.Config{
			BaseURL: audienceConfig.BaseURL,
			APIKey:  audienceConfig.APIKey,
			Logger:  logger,
		}
		if m := toolMetrics(provider); m != nil {
			clientConfig.Metrics = m
		}
		audienceClient, err = audience.NewClient(clientConfig)
		if err != nil {
			return fmt.Errorf("failed to create audience API client: %w", err)
		}
	} else if transport != "stdio" {
		log.Println("Warning: audience API not configured (set --audience-api-base and --audience-api-key); no tools will be registered")
	}

	// readOnly is the inverse of yolo
	readOnly := !yolo

	// Log the mode for visibility (only for non-stdio transports)
	if transport != "stdio" {
		if readOnly {
			log.Println("Starting server in READ-ONLY mode (use --yolo to enable write operations)")
		} else {
			log.Println("Starting server with WRITE operations enabled (--yolo flag is set)")
		}
	}

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer("audiencer", version,
		mcpserver.WithToolCapabilities(true),
	)

	if audienceClient != nil {
		if err := audience_tools.RegisterAudienceTools(mcpSrv, audienceClient, readOnly, toolMetrics(provider)); err != nil {
			return fmt.Errorf("failed to register audience tools: %w", err)
		}
	}

	// Start the appropriate server based on transport type
	switch transport {
	case "stdio":
		return runStdioServer(mcpSrv)
	case "streamable-http":
		return runStreamableHTTPServer(shutdownCtx, mcpSrv, audienceClient, httpAddr, disableStreaming, readOnly, bridgeConfig, metricsConfig, provider, logger)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", transport)
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, audienceClient *audience.Client, addr string, disableStreaming bool, readOnly bool, bridgeConfig OAuthBridgeConfig, metricsConfig MetricsConfig, instrProvider *instrumentation.Provider, logger *slog.Logger) error {
	// Determine base URL from flag, environment variable, or auto-detection
	baseURL := bridgeConfig.BaseURL
	if baseURL == "" {
		// Fall back to auto-detection for local development
		baseURL = fmt.Sprintf("http://%s", addr)
		if addr[0] == ':' {
			baseURL = fmt.Sprintf("http://localhost%s", addr)
		}
		log.Printf("No base URL configured, using auto-detected: %s", baseURL)
		log.Printf("For deployed instances, set --base-url flag or MCP_BASE_URL env var")
	} else {
		log.Printf("Using configured base URL: %s", baseURL)
	}

	if bridgeConfig.CookieKey == "" {
		return fmt.Errorf("cookie signing key is required for HTTP transport (set --cookie-key or OAUTH_COOKIE_KEY)")
	}

	// Build the token store
	store, err := newStore(ctx, bridgeConfig)
	if err != nil {
		return err
	}

	// Build the upstream identity provider
	upstream, err := newUpstreamProvider(bridgeConfig, baseURL)
	if err != nil {
		return err
	}

	oauthHandler, err := oauth.NewHandler(&oauth.Config{
		Issuer:       baseURL,
		CookieKey:    []byte(bridgeConfig.CookieKey),
		Provider:     upstream,
		AllowedUsers: bridgeConfig.AllowedUsers,
		Metrics:      flowRecorder(instrProvider),
		Logger:       logger,
	}, store)
	if err != nil {
		return fmt.Errorf("failed to create OAuth handler: %w", err)
	}

	serverContext, err := server.NewServerContext(ctx, audienceClient, oauthHandler, store, readOnly)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			log.Printf("Error during server context shutdown: %v", err)
		}
	}()

	var metrics *instrumentation.Metrics
	if instrProvider != nil && instrProvider.Enabled() {
		metrics = instrProvider.Metrics()
	}

	httpServer, err := server.NewHTTPServer(server.HTTPServerConfig{
		Addr:             addr,
		OAuthHandler:     oauthHandler,
		MCPServer:        mcpSrv,
		Health:           server.NewHealthChecker(serverContext),
		Metrics:          metrics,
		DisableStreaming: disableStreaming,
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	fmt.Printf("Streamable HTTP server with OAuth authentication starting on %s\n", addr)
	fmt.Printf("  HTTP endpoint: /mcp\n")
	fmt.Printf("  Health endpoints: /healthz, /readyz\n")
	fmt.Printf("  OAuth metadata: /.well-known/oauth-authorization-server\n")
	fmt.Printf("  Upstream provider: %s\n", upstream.Name())
	if metricsConfig.Enabled {
		fmt.Printf("  Metrics endpoint: %s/metrics\n", metricsConfig.Addr)
	}
	fmt.Println("\nClients must authenticate via the OAuth flow to access this server.")
	fmt.Println("The MCP client (e.g., Cursor, Claude Desktop) will handle the OAuth flow automatically.")

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		fmt.Println("Shutdown signal received, stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
		fmt.Println("HTTP server stopped normally")
	}

	fmt.Println("HTTP server gracefully stopped")
	return nil
}

// newStore builds the configured token store.
func newStore(ctx context.Context, config OAuthBridgeConfig) (kv.Store, error) {
	switch config.StorageType {
	case storageMemory, "":
		return kv.NewMemoryStore(), nil
	case storageRedis:
		if config.RedisAddr == "" {
			return nil, fmt.Errorf("redis address is required for redis storage (set --redis-addr or REDIS_ADDR)")
		}
		store, err := kv.NewRedisStore(ctx, kv.RedisConfig{
			Addr:      config.RedisAddr,
			Password:  config.RedisPassword,
			DB:        config.RedisDB,
			KeyPrefix: config.RedisKeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (supported: memory, redis)", config.StorageType)
	}
}

// newUpstreamProvider builds the configured upstream identity provider.
func newUpstreamProvider(config OAuthBridgeConfig, baseURL string) (oauth.Provider, error) {
	if config.ClientID == "" || config.ClientSecret == "" {
		return nil, fmt.Errorf("upstream OAuth credentials are required (set --oauth-client-id/--oauth-client-secret or OAUTH_CLIENT_ID/OAUTH_CLIENT_SECRET)")
	}

	redirectURL := baseURL + "/callback"

	switch config.Provider {
	case providerGoogle, "":
		return oauth.NewGoogleProvider(oauth.GoogleConfig{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  redirectURL,
		})
	case providerGitHub:
		return oauth.NewGitHubProvider(oauth.GitHubConfig{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  redirectURL,
		})
	default:
		return nil, fmt.Errorf("unsupported oauth provider: %s (supported: google, github)", config.Provider)
	}
}

// toolMetrics returns the metrics recorder for tool instrumentation, or
// nil when instrumentation is disabled.
func toolMetrics(provider *instrumentation.Provider) *instrumentation.Metrics {
	if provider == nil || !provider.Enabled() {
		return nil
	}
	return provider.Metrics()
}

// flowRecorder adapts the instrumentation provider to the OAuth handler's
// metrics hook. A nil recorder disables flow metrics.
func flowRecorder(provider *instrumentation.Provider) oauth.FlowRecorder {
	if provider == nil || !provider.Enabled() {
		return nil
	}
	return provider.Metrics()
}

// loadBridgeEnvVars loads OAuth bridge configuration from environment
// variables. Environment variables only override flag values when the
// flag was not explicitly set.
func loadBridgeEnvVars(cmd *cobra.Command, config *OAuthBridgeConfig) {
	if config.BaseURL == "" {
		config.BaseURL = os.Getenv("MCP_BASE_URL")
	}
	if !cmd.Flags().Changed("oauth-provider") {
		if p := os.Getenv("OAUTH_PROVIDER"); p != "" {
			config.Provider = p
		}
	}
	if config.ClientID == "" {
		config.ClientID = os.Getenv("OAUTH_CLIENT_ID")
	}
	if config.ClientSecret == "" {
		config.ClientSecret = os.Getenv("OAUTH_CLIENT_SECRET")
	}
	if config.CookieKey == "" {
		config.CookieKey = os.Getenv("OAUTH_COOKIE_KEY")
	}
	if len(config.AllowedUsers) == 0 {
		if users := os.Getenv("OAUTH_ALLOWED_USERS"); users != "" {
			config.AllowedUsers = parseCommaSeparatedList(users)
		}
	}
	if !cmd.Flags().Changed("storage-type") {
		if storageType := os.Getenv("OAUTH_STORAGE_TYPE"); storageType != "" {
			config.StorageType = storageType
		}
	}
	if !cmd.Flags().Changed("redis-addr") {
		if addr := os.Getenv("REDIS_ADDR"); addr != "" {
			config.RedisAddr = addr
		}
	}
	if !cmd.Flags().Changed("redis-password") {
		if password := os.Getenv("REDIS_PASSWORD"); password != "" {
			config.RedisPassword = password
		}
	}
	if !cmd.Flags().Changed("redis-key-prefix") {
		if keyPrefix := os.Getenv("REDIS_KEY_PREFIX"); keyPrefix != "" {
			config.RedisKeyPrefix = keyPrefix
		}
	}
	if !cmd.Flags().Changed("redis-db") {
		if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
			if db, err := strconv.Atoi(dbStr); err == nil {
				config.RedisDB = db
			}
		}
	}
}

// parseCommaSeparatedList parses a comma-separated string into a slice,
// trimming whitespace from each element and filtering out empty strings.
// Returns nil if the input is empty or contains only whitespace/commas.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
