package config

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env string
	Log struct {
		Level string
	}
	HTTP struct {
		Addr string
	}
	DB struct {
		Driver               string
		DSN                  string
		MaxReconnectAttempts int
		MaxOpenConns         int
		MaxIdleConns         int
		ConnMaxLifetime      time.Duration
	}
	Session struct {
		Store          string // "sql" or "redis"
		RedisAddr      string
		CookieName     string
		Lifetime       time.Duration
		Timeout        time.Duration
		RotateInterval time.Duration
		Path           string
		Secure         bool
		HTTPOnly       bool
		SameSite       http.SameSite
	}
	CSRF struct {
		TTL time.Duration
	}
}

// Development reports whether detailed error messages may be shown to users.
func (c *Config) Development() bool {
	return c.Env == EnvDevelopment
}

// Load reads config from an optional .env file, the environment (CARNET_ prefix)
// and an optional carnet.yaml.
func Load() (*Config, error) {
	_ = godotenv.Load() // optional .env file

	v := viper.New()
	v.SetEnvPrefix("CARNET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigName("carnet")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional config file

	return load(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", EnvProduction)
	v.SetDefault("log.level", "info")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("db.port", 3306)
	v.SetDefault("db.charset", "utf8mb4")
	v.SetDefault("db.max_reconnect_attempts", 3)
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("session.store", "sql")
	v.SetDefault("session.cookie_name", "carnet_session")
	v.SetDefault("session.lifetime", "24h")
	v.SetDefault("session.timeout", "2h")
	v.SetDefault("session.rotate_interval", "30m")
	v.SetDefault("session.path", "/")
	v.SetDefault("session.secure", true)
	v.SetDefault("session.http_only", true)
	v.SetDefault("session.same_site", "lax")
	v.SetDefault("csrf.ttl", "1h")
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	cfg := &Config{}
	cfg.Env = strings.ToLower(v.GetString("env"))
	if cfg.Env != EnvDevelopment && cfg.Env != EnvProduction {
		return nil, fmt.Errorf("CARNET_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, cfg.Env)
	}
	cfg.Log.Level = v.GetString("log.level")
	cfg.HTTP.Addr = v.GetString("http.addr")

	cfg.DB.Driver = v.GetString("db.driver")
	cfg.DB.DSN = v.GetString("db.dsn")
	cfg.DB.MaxReconnectAttempts = v.GetInt("db.max_reconnect_attempts")
	cfg.DB.MaxOpenConns = v.GetInt("db.max_open_conns")
	cfg.DB.MaxIdleConns = v.GetInt("db.max_idle_conns")

	var err error
	if cfg.DB.ConnMaxLifetime, err = duration(v, "db.conn_max_lifetime"); err != nil {
		return nil, err
	}
	if cfg.Session.Lifetime, err = duration(v, "session.lifetime"); err != nil {
		return nil, err
	}
	if cfg.Session.Timeout, err = duration(v, "session.timeout"); err != nil {
		return nil, err
	}
	if cfg.Session.RotateInterval, err = duration(v, "session.rotate_interval"); err != nil {
		return nil, err
	}
	if cfg.CSRF.TTL, err = duration(v, "csrf.ttl"); err != nil {
		return nil, err
	}

	cfg.Session.Store = strings.ToLower(v.GetString("session.store"))
	cfg.Session.RedisAddr = v.GetString("session.redis_addr")
	cfg.Session.CookieName = v.GetString("session.cookie_name")
	cfg.Session.Path = v.GetString("session.path")
	cfg.Session.Secure = v.GetBool("session.secure")
	cfg.Session.HTTPOnly = v.GetBool("session.http_only")
	if cfg.Session.SameSite, err = sameSite(v.GetString("session.same_site")); err != nil {
		return nil, err
	}

	if cfg.DB.Driver == "" {
		return nil, fmt.Errorf("CARNET_DB_DRIVER is required (sqlite3, mysql, postgres)")
	}
	if cfg.DB.DSN == "" && cfg.DB.Driver == "mysql" && v.GetString("db.host") != "" {
		cfg.DB.DSN = mysqlDSN(v)
	}
	if cfg.DB.DSN == "" {
		return nil, fmt.Errorf("CARNET_DB_DSN (or CARNET_DB_HOST for mysql) is required")
	}
	if cfg.DB.MaxReconnectAttempts < 1 {
		return nil, fmt.Errorf("CARNET_DB_MAX_RECONNECT_ATTEMPTS must be at least 1")
	}
	switch cfg.Session.Store {
	case "sql":
	case "redis":
		if cfg.Session.RedisAddr == "" {
			return nil, fmt.Errorf("CARNET_SESSION_REDIS_ADDR is required when CARNET_SESSION_STORE=redis")
		}
	default:
		return nil, fmt.Errorf("CARNET_SESSION_STORE must be sql or redis, got %q", cfg.Session.Store)
	}
	if cfg.Session.Timeout <= 0 {
		return nil, fmt.Errorf("CARNET_SESSION_TIMEOUT must be positive")
	}

	return cfg, nil
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		env := "CARNET_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		return 0, fmt.Errorf("invalid %s: %w", env, err)
	}
	return d, nil
}

func sameSite(s string) (http.SameSite, error) {
	switch strings.ToLower(s) {
	case "lax", "":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("invalid CARNET_SESSION_SAME_SITE %q: must be lax, strict or none", s)
	}
}

// mysqlDSN assembles a DSN from the discrete db.* keys.
func mysqlDSN(v *viper.Viper) string {
	mc := mysql.NewConfig()
	mc.User = v.GetString("db.user")
	mc.Passwd = v.GetString("db.password")
	mc.Net = "tcp"
	mc.Addr = v.GetString("db.host") + ":" + strconv.Itoa(v.GetInt("db.port"))
	mc.DBName = v.GetString("db.name")
	mc.ParseTime = true
	mc.Params = map[string]string{"charset": v.GetString("db.charset")}
	return mc.FormatDSN()
}
