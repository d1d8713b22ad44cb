package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug    bool
		TestMode bool
		Env      string // DEV (local; default), TEST, QA, PROD
		Build    string
		WorkDir  string

		AppName          string
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string

		QRCodeTimeoutDelta time.Duration
		LoginMaxAttempts   int
		LoginAttemptWindow time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
	}

	ServerConfig struct {
		Host                      string
		Port                      int
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Addr     string
		Password string
		DB       int
	}
)

func (sc ServerConfig) Address() string {
	return net.JoinHostPort(sc.Host, strconv.Itoa(sc.Port))
}

func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, strconv.Itoa(dc.Port))
}

// NewConfig loads the app configuration from defaults, `config/.env.<env>` (if present) and the environment.
// Env vars are prefixed by the env name and nested keys use underscores, eg. PROD_DATABASE_HOST.
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("testMode", false)
	conf.SetDefault("build", "dev")
	conf.SetDefault("appName", "EduMF")
	conf.SetDefault("secretKey", "k#2v7)s-m0e!ds@q1%zc8l^f3w(n_u9rj4x+6a$pbyht&go5")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("defaultFromEmail", "EduMF <noreply@localhost>")
	conf.SetDefault("sendgridApiKey", "")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("qrCodeTimeoutDelta", 365*24*time.Hour)
	conf.SetDefault("loginMaxAttempts", 5)
	conf.SetDefault("loginAttemptWindow", 15*time.Minute)

	conf.SetDefault("server.host", "0.0.0.0")
	conf.SetDefault("server.port", 8000)
	conf.SetDefault("server.debugHost", "0.0.0.0:4000")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", 5432)
	conf.SetDefault("database.name", "edumf")
	conf.SetDefault("database.user", "edumf")
	conf.SetDefault("database.password", "")
	conf.SetDefault("database.adminUser", "")
	conf.SetDefault("database.adminPassword", "")
	conf.SetDefault("database.disableTLS", true)

	conf.SetDefault("redis.addr", "")
	conf.SetDefault("redis.password", "")
	conf.SetDefault("redis.db", 0)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	fromEmail, err := mail.ParseAddress(conf.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}

	return &Config{
		Debug:    conf.GetBool("debug"),
		TestMode: conf.GetBool("testMode"),
		Env:      env,
		Build:    conf.GetString("build"),
		WorkDir:  wd,

		AppName:          conf.GetString("appName"),
		SecretKey:        conf.GetString("secretKey"),
		FrontendBaseURL:  conf.GetString("frontendBaseURL"),
		DefaultFromEmail: *fromEmail,
		SendgridApiKey:   conf.GetString("sendgridApiKey"),
		RollbarToken:     conf.GetString("rollbarToken"),

		QRCodeTimeoutDelta: conf.GetDuration("qrCodeTimeoutDelta"),
		LoginMaxAttempts:   conf.GetInt("loginMaxAttempts"),
		LoginAttemptWindow: conf.GetDuration("loginAttemptWindow"),

		Server: ServerConfig{
			Host:                      conf.GetString("server.host"),
			Port:                      conf.GetInt("server.port"),
			DebugHost:                 conf.GetString("server.debugHost"),
			ShutdownTimeout:           conf.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        conf.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database.engine"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetInt("database.port"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
		},
		Redis: RedisConfig{
			Addr:     conf.GetString("redis.addr"),
			Password: conf.GetString("redis.password"),
			DB:       conf.GetInt("redis.db"),
		},
	}
}
