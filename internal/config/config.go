package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the gateway.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Cookies  CookieConfig
	Routes   RoutesConfig
	Backend  BackendConfig
	Frontend FrontendConfig
	Session  SessionConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. The database only stores extra guard rules.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	RoutesFromDB   bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines token verification parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	VerifyAdminToken      bool
}

// CookieConfig names the cookies read and written by the gateway.
type CookieConfig struct {
	Session  string
	Admin    string
	ClientID string
	Secure   bool
}

// RoutesConfig carries the literal paths of the route table.
type RoutesConfig struct {
	StaticPrefixes      []string
	APIPrefix           string
	Public              []string
	AuthOnly            []string
	Home                string
	Login               string
	Dashboard           string
	AstrologerDashboard string
	PurchaseFlow        string
	AdminPrefix         string
	AdminLogin          string
	AdminHome           string
}

// BackendConfig points at the REST API that verifies session tokens.
type BackendConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// FrontendConfig points at the page renderer proxied behind the guard.
type FrontendConfig struct {
	UpstreamURL string
}

// SessionConfig bounds the per-client session registry.
type SessionConfig struct {
	RegistrySize     int
	ClientTTLMinutes int
	QueryCacheSize   int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 4))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 1))
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "astro-gateway"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			RoutesFromDB:   getEnvAsBool("ROUTES_FROM_DB", false),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "astro-gateway"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			VerifyAdminToken:      getEnvAsBool("GUARD_VERIFY_ADMIN_TOKEN", false),
		},
		Cookies: CookieConfig{
			Session:  getEnv("COOKIE_SESSION", "session-token"),
			Admin:    getEnv("COOKIE_ADMIN", "admin-token"),
			ClientID: getEnv("COOKIE_CLIENT_ID", "client-id"),
			Secure:   getEnvAsBool("COOKIE_SECURE", false),
		},
		Routes: DefaultRoutes(),
		Backend: BackendConfig{
			BaseURL:        getEnv("BACKEND_BASE_URL", "http://127.0.0.1:4000"),
			TimeoutSeconds: getEnvAsInt("BACKEND_TIMEOUT_SECONDS", 10),
		},
		Frontend: FrontendConfig{
			UpstreamURL: os.Getenv("FRONTEND_UPSTREAM"),
		},
		Session: SessionConfig{
			RegistrySize:     getEnvAsInt("SESSION_REGISTRY_SIZE", 10000),
			ClientTTLMinutes: getEnvAsInt("SESSION_CLIENT_TTL_MINUTES", 720),
			QueryCacheSize:   getEnvAsInt("SESSION_QUERY_CACHE_SIZE", 16),
		},
	}

	routes := &cfg.Routes
	routes.StaticPrefixes = getEnvAsList("ROUTES_STATIC_PREFIXES", routes.StaticPrefixes)
	routes.APIPrefix = getEnv("ROUTES_API_PREFIX", routes.APIPrefix)
	routes.Public = getEnvAsList("ROUTES_PUBLIC", routes.Public)
	routes.AuthOnly = getEnvAsList("ROUTES_AUTH_ONLY", routes.AuthOnly)
	routes.Home = getEnv("ROUTES_HOME", routes.Home)
	routes.Login = getEnv("ROUTES_LOGIN", routes.Login)
	routes.Dashboard = getEnv("ROUTES_DASHBOARD", routes.Dashboard)
	routes.AstrologerDashboard = getEnv("ROUTES_ASTROLOGER_DASHBOARD", routes.AstrologerDashboard)
	routes.PurchaseFlow = getEnv("ROUTES_PURCHASE_FLOW", routes.PurchaseFlow)
	routes.AdminPrefix = getEnv("ROUTES_ADMIN_PREFIX", routes.AdminPrefix)
	routes.AdminLogin = getEnv("ROUTES_ADMIN_LOGIN", routes.AdminLogin)
	routes.AdminHome = getEnv("ROUTES_ADMIN_HOME", routes.AdminHome)

	return cfg, nil
}

// DefaultRoutes returns the route table literals used by the web app.
func DefaultRoutes() RoutesConfig {
	return RoutesConfig{
		StaticPrefixes: []string{"/_next", "/static"},
		APIPrefix:      "/api",
		Public: []string{
			"/",
			"/login",
			"/signup",
			"/forgot-password",
			"/reset-password",
			"/pricing-plans",
			"/products",
			"/coaching",
			"/about",
			"/contact",
			"/faq",
			"/terms",
			"/privacy",
			"/admin/login",
		},
		AuthOnly: []string{
			"/signup",
			"/login",
			"/reset-password",
			"/pricing-plans",
			"/admin/login",
		},
		Home:                "/",
		Login:               "/login",
		Dashboard:           "/dashboard",
		AstrologerDashboard: "/dashboard/astromegistus",
		PurchaseFlow:        "/products/purchase",
		AdminPrefix:         "/admin",
		AdminLogin:          "/admin/login",
		AdminHome:           "/admin",
	}
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the verification call timeout.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// ClientTTL returns how long an idle client session is retained.
func (s SessionConfig) ClientTTL() time.Duration {
	if s.ClientTTLMinutes <= 0 {
		return 12 * time.Hour
	}
	return time.Duration(s.ClientTTLMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
