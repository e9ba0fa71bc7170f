// Command server starts the ClipStream API HTTP service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"clipstream/internal/api"
	"clipstream/internal/auth"
	"clipstream/internal/observability/logging"
	"clipstream/internal/server"
	"clipstream/internal/storage"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address")
	dataPath := flag.String("data", "", "path to JSON datastore")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "path to TLS private key file")
	logLevel := flag.String("log-level", "", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log format (json or text)")
	accessTTL := flag.Duration("access-ttl", 0, "access token lifetime")
	refreshTTL := flag.Duration("refresh-ttl", 0, "refresh token lifetime")
	secureCookies := flag.String("secure-cookies", "", "session cookie Secure mode (auto or always)")
	authStoreDriver := flag.String("auth-store", "", "credential store driver (json or postgres)")
	authPostgresDSN := flag.String("auth-postgres-dsn", "", "Postgres DSN for the credential store")
	watchHistoryLimit := flag.Int("watch-history-limit", 0, "maximum retained watch history entries per user")
	corsOrigins := flag.String("cors-origins", "", "comma separated origins allowed to call the API")
	frameAncestors := flag.String("frame-ancestors", "", "CSP frame-ancestors directive for embedded players")
	globalRPS := flag.Float64("rate-global-rps", 0, "global request rate limit in requests per second")
	globalBurst := flag.Int("rate-global-burst", 0, "global rate limit burst allowance")
	loginLimit := flag.Int("rate-login-limit", 0, "maximum login attempts per window for a single IP")
	loginWindow := flag.Duration("rate-login-window", 0, "window for counting login attempts")
	redisAddr := flag.String("rate-redis-addr", "", "Redis address for distributed login throttling")
	redisPassword := flag.String("rate-redis-password", "", "Redis password for distributed login throttling")
	redisTimeout := flag.Duration("rate-redis-timeout", 0, "timeout for Redis operations")
	mediaEndpoint := flag.String("media-endpoint", "", "object storage endpoint for uploaded media (e.g. http://127.0.0.1:9000)")
	mediaPublicEndpoint := flag.String("media-public-endpoint", "", "public endpoint used in media URLs")
	mediaBucket := flag.String("media-bucket", "", "object storage bucket for uploaded media")
	mediaPrefix := flag.String("media-prefix", "", "object storage key prefix for uploaded media")
	mediaRegion := flag.String("media-region", "", "object storage region")
	mediaAccessKey := flag.String("media-access-key", "", "object storage access key")
	mediaSecretKey := flag.String("media-secret-key", "", "object storage secret key")
	mediaUseSSL := flag.Bool("media-use-ssl", false, "enable TLS for object storage requests")
	flag.Parse()

	logger := logging.Init(logging.Config{
		Level:  firstNonEmpty(*logLevel, os.Getenv("CLIPSTREAM_LOG_LEVEL")),
		Format: firstNonEmpty(*logFormat, os.Getenv("CLIPSTREAM_LOG_FORMAT")),
	})

	accessSecret := strings.TrimSpace(os.Getenv("CLIPSTREAM_ACCESS_TOKEN_SECRET"))
	refreshSecret := strings.TrimSpace(os.Getenv("CLIPSTREAM_REFRESH_TOKEN_SECRET"))
	if accessSecret == "" || refreshSecret == "" {
		logger.Error("CLIPSTREAM_ACCESS_TOKEN_SECRET and CLIPSTREAM_REFRESH_TOKEN_SECRET are required")
		os.Exit(1)
	}

	codec, err := auth.NewTokenCodec(auth.TokenConfig{
		AccessSecret:  []byte(accessSecret),
		RefreshSecret: []byte(refreshSecret),
		AccessTTL:     resolveDuration(*accessTTL, "CLIPSTREAM_ACCESS_TOKEN_TTL", 0),
		RefreshTTL:    resolveDuration(*refreshTTL, "CLIPSTREAM_REFRESH_TOKEN_TTL", 0),
	})
	if err != nil {
		logger.Error("invalid token configuration", "error", err)
		os.Exit(1)
	}

	media := storage.NewMediaStore(storage.MediaConfig{
		Endpoint:       firstNonEmpty(*mediaEndpoint, os.Getenv("CLIPSTREAM_MEDIA_ENDPOINT")),
		PublicEndpoint: firstNonEmpty(*mediaPublicEndpoint, os.Getenv("CLIPSTREAM_MEDIA_PUBLIC_ENDPOINT")),
		Bucket:         firstNonEmpty(*mediaBucket, os.Getenv("CLIPSTREAM_MEDIA_BUCKET")),
		Prefix:         firstNonEmpty(*mediaPrefix, os.Getenv("CLIPSTREAM_MEDIA_PREFIX")),
		Region:         firstNonEmpty(*mediaRegion, os.Getenv("CLIPSTREAM_MEDIA_REGION")),
		AccessKey:      firstNonEmpty(*mediaAccessKey, os.Getenv("CLIPSTREAM_MEDIA_ACCESS_KEY")),
		SecretKey:      firstNonEmpty(*mediaSecretKey, os.Getenv("CLIPSTREAM_MEDIA_SECRET_KEY")),
		UseSSL:         resolveBool(*mediaUseSSL, "CLIPSTREAM_MEDIA_USE_SSL"),
	})

	storeOptions := []storage.Option{storage.WithMediaStore(media)}
	if limit := resolveInt(*watchHistoryLimit, "CLIPSTREAM_WATCH_HISTORY_LIMIT"); limit > 0 {
		storeOptions = append(storeOptions, storage.WithWatchHistoryLimit(limit))
	}

	dataFile := resolveDataPath(*dataPath, os.Getenv("CLIPSTREAM_DATA"))
	store, err := storage.NewStorage(dataFile, storeOptions...)
	if err != nil {
		logger.Error("failed to open datastore", "error", err, "path", dataFile)
		os.Exit(1)
	}

	credentials, credentialCloser, err := resolveCredentialStore(
		firstNonEmpty(*authStoreDriver, os.Getenv("CLIPSTREAM_AUTH_STORE")),
		firstNonEmpty(*authPostgresDSN, os.Getenv("CLIPSTREAM_AUTH_POSTGRES_DSN"), os.Getenv("DATABASE_URL")),
		store,
	)
	if err != nil {
		logger.Error("failed to open credential store", "error", err)
		os.Exit(1)
	}

	sessions := auth.NewSessionManager(credentials, codec)
	handler := api.NewHandler(store, sessions, media)
	if policy, err := resolveCookiePolicy(firstNonEmpty(*secureCookies, os.Getenv("CLIPSTREAM_SECURE_COOKIES"))); err != nil {
		logger.Error("invalid cookie configuration", "error", err)
		os.Exit(1)
	} else {
		handler.SessionCookiePolicy = policy
	}

	listenAddr := firstNonEmpty(*addr, os.Getenv("CLIPSTREAM_ADDR"))
	if listenAddr == "" {
		listenAddr = ":8080"
	}

	srv, err := server.New(handler, server.Config{
		Addr: listenAddr,
		TLS: server.TLSConfig{
			CertFile: firstNonEmpty(*tlsCert, os.Getenv("CLIPSTREAM_TLS_CERT")),
			KeyFile:  firstNonEmpty(*tlsKey, os.Getenv("CLIPSTREAM_TLS_KEY")),
		},
		RateLimit: server.RateLimitConfig{
			GlobalRPS:     resolveFloat(*globalRPS, "CLIPSTREAM_RATE_GLOBAL_RPS"),
			GlobalBurst:   resolveInt(*globalBurst, "CLIPSTREAM_RATE_GLOBAL_BURST"),
			LoginLimit:    resolveInt(*loginLimit, "CLIPSTREAM_RATE_LOGIN_LIMIT"),
			LoginWindow:   resolveDuration(*loginWindow, "CLIPSTREAM_RATE_LOGIN_WINDOW", time.Minute),
			RedisAddr:     firstNonEmpty(*redisAddr, os.Getenv("CLIPSTREAM_RATE_REDIS_ADDR")),
			RedisPassword: firstNonEmpty(*redisPassword, os.Getenv("CLIPSTREAM_RATE_REDIS_PASSWORD")),
			RedisTimeout:  resolveDuration(*redisTimeout, "CLIPSTREAM_RATE_REDIS_TIMEOUT", 2*time.Second),
		},
		CORS: server.CORSConfig{
			AllowedOrigins: splitAndTrim(firstNonEmpty(*corsOrigins, os.Getenv("CLIPSTREAM_CORS_ORIGINS"))),
		},
		Security: server.SecurityConfig{
			FrameAncestors: firstNonEmpty(*frameAncestors, os.Getenv("CLIPSTREAM_FRAME_ANCESTORS")),
		},
		Logger: logger,
	})
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("ClipStream API listening", "addr", listenAddr, "data", dataFile)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	if credentialCloser != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := credentialCloser(shutdownCtx); err != nil {
			logger.Warn("failed to close credential store", "error", err)
		}
	}

	logger.Info("server stopped")
}

// resolveCredentialStore picks where refresh tokens and login lookups live.
// The default shares the JSON datastore; postgres keeps credentials in a
// dedicated table so replicas can share them.
func resolveCredentialStore(driver, dsn string, store *storage.Storage) (auth.CredentialStore, func(context.Context) error, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "json":
		return store, nil, nil
	case "postgres":
		if strings.TrimSpace(dsn) == "" {
			return nil, nil, fmt.Errorf("postgres credential store selected without DSN")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		pgStore, err := auth.NewPostgresCredentialStore(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		return pgStore, pgStore.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported credential store driver %q", driver)
	}
}

func resolveCookiePolicy(mode string) (api.SessionCookiePolicy, error) {
	policy := api.DefaultSessionCookiePolicy()
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "auto":
		return policy, nil
	case "always":
		policy.SecureMode = api.SessionCookieSecureAlways
		return policy, nil
	default:
		return api.SessionCookiePolicy{}, fmt.Errorf("unsupported secure cookie mode %q", mode)
	}
}

func resolveDataPath(flagValue, envValue string) string {
	if trimmed := strings.TrimSpace(flagValue); trimmed != "" {
		return trimmed
	}
	if trimmed := strings.TrimSpace(envValue); trimmed != "" {
		return trimmed
	}
	return "data/store.json"
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func splitAndTrim(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func resolveFloat(flagValue float64, envKey string) float64 {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.ParseFloat(strings.TrimSpace(env), 64); err == nil {
			return value
		}
	}
	return 0
}

func resolveInt(flagValue int, envKey string) int {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.Atoi(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return 0
}

func resolveDuration(flagValue time.Duration, envKey string, fallback time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := time.ParseDuration(env); err == nil {
			return value
		}
	}
	return fallback
}

func resolveBool(flagValue bool, envKey string) bool {
	if flagValue {
		return true
	}
	if env, ok := os.LookupEnv(envKey); ok {
		if value, err := strconv.ParseBool(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return false
}
