package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode      Mode
	HTTPAddr  string
	PublicURL string

	DBDriver string
	DBDSN    string

	AuthHMACSecret string
	TokenTTL       time.Duration

	EnableRegistration bool

	AdminEmail    string
	AdminPassHash string // bcrypt
	AdminPassword string // plaintext, dev only; hashed at startup when set

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	// optional backends; empty disables them
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	AMQPURL       string

	EventSiteID string
}

// fileConfig mirrors the subset of settings that may come from CONFIG_FILE.
// Environment variables win over file values.
type fileConfig struct {
	Mode     string `yaml:"mode"`
	HTTPAddr string `yaml:"http_addr"`
	Database struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	AMQPURL string   `yaml:"amqp_url"`
	CORS    []string `yaml:"cors_origins"`
}

// Load reads an optional .env file and an optional YAML file named by
// CONFIG_FILE, then resolves the configuration from the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFile(path); err != nil {
			return Config{}, err
		}
	}
	return FromEnv(), nil
}

func applyFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	defer f.Close()

	var fc fileConfig
	if err := yaml.NewDecoder(f).Decode(&fc); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	setDefault("MODE", fc.Mode)
	setDefault("HTTP_ADDR", fc.HTTPAddr)
	setDefault("DB_DRIVER", fc.Database.Driver)
	setDefault("DB_DSN", fc.Database.DSN)
	setDefault("REDIS_ADDR", fc.Redis.Addr)
	setDefault("REDIS_PASSWORD", fc.Redis.Password)
	if fc.Redis.DB != 0 {
		setDefault("REDIS_DB", strconv.Itoa(fc.Redis.DB))
	}
	setDefault("AMQP_URL", fc.AMQPURL)
	if len(fc.CORS) > 0 {
		setDefault("CORS_ORIGINS_ONLINE", strings.Join(fc.CORS, ","))
	}
	return nil
}

func setDefault(k, v string) {
	if v == "" {
		return
	}
	if _, ok := os.LookupEnv(k); !ok {
		_ = os.Setenv(k, v)
	}
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		Mode:               mode,
		HTTPAddr:           addr,
		PublicURL:          os.Getenv("PUBLIC_URL"),
		DBDriver:           envOr("DB_DRIVER", "sqlite"),
		DBDSN:              envOr("DB_DSN", ""),
		AuthHMACSecret:     envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		TokenTTL:           envDuration("TOKEN_TTL", 8*time.Hour),
		EnableRegistration: envBool("ENABLE_REGISTRATION", true),
		AdminEmail:         envOr("ADMIN_EMAIL", "admin@quizmaster.local"),
		AdminPassHash:      envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),
		AdminPassword:      os.Getenv("ADMIN_PASSWORD"),
		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://quiz.mindengage.ai"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:5173"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            envInt("REDIS_DB", 0),
		AMQPURL:            os.Getenv("AMQP_URL"),
		EventSiteID:        envOr("EVENT_SITE_ID", "local"),
	}
}

// CORSOrigins returns the allow-list for the configured mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return v
	}
	return def
}
func envDuration(k string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(k)); err == nil && d > 0 {
		return d
	}
	return def
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
