package core

import (
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host               string
		Address            string
		DebugHost          string
		ReadTimeout        time.Duration
		WriteTimeout       time.Duration
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
		AllowOrigins       []string
	}

	DatabaseConfig struct {
		Engine        string // postgres | inmem
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RuntimeConfig struct {
		SessionStore      string // memory | redis
		RedisURL          string
		SessionTTL        time.Duration
		SweepInterval     time.Duration
		AutoCommitOnEvict bool
		StorageTimeout    time.Duration

		// per session, per minute; 0 disables the limit
		APICallsPerMinute  int
		SetValuesPerMinute int
		CommitsPerMinute   int
	}

	Config struct {
		AppName      string
		Env          string
		Build        string
		Debug        bool
		TestMode     bool
		LogLevel     string
		SecretKey    string
		RollbarToken string
		WorkDir      string

		Server   ServerConfig
		Database DatabaseConfig
		Runtime  RuntimeConfig
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// NewConfig loads the configuration of the current ENV (DEV by default) from the environment.
// Variables are prefixed by the ENV name, eg. PROD_DATABASE_HOST.
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("appName", "FPK University SCORM Runtime")
	conf.SetDefault("build", "develop")
	conf.SetDefault("debug", true)
	conf.SetDefault("testMode", false)
	conf.SetDefault("logLevel", "info")
	conf.SetDefault("secretKey", "dev-only-8c1f0b2e4a7d4e59b3c6f1a2d9e0c7b5")
	conf.SetDefault("rollbarToken", "")

	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.address", ":8000")
	conf.SetDefault("server.debugHost", ":4000")
	conf.SetDefault("server.readTimeout", 5*time.Second)
	conf.SetDefault("server.writeTimeout", 10*time.Second)
	conf.SetDefault("server.shutdownTimeout", 10*time.Second)
	conf.SetDefault("server.jwtExpirationDelta", 8*time.Hour)
	conf.SetDefault("server.allowOrigins", []string{"*"})

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", "5432")
	conf.SetDefault("database.name", "fpku_scorm")
	conf.SetDefault("database.user", "fpku")
	conf.SetDefault("database.password", "")
	conf.SetDefault("database.adminUser", "postgres")
	conf.SetDefault("database.adminPassword", "")
	conf.SetDefault("database.disableTLS", true)

	conf.SetDefault("runtime.sessionStore", "memory")
	conf.SetDefault("runtime.redisURL", "redis://localhost:6379/0")
	conf.SetDefault("runtime.sessionTTL", 2*time.Hour)
	conf.SetDefault("runtime.sweepInterval", time.Minute)
	conf.SetDefault("runtime.autoCommitOnEvict", true)
	conf.SetDefault("runtime.storageTimeout", 10*time.Second)
	conf.SetDefault("runtime.apiCallsPerMinute", 100)
	conf.SetDefault("runtime.setValuesPerMinute", 200)
	conf.SetDefault("runtime.commitsPerMinute", 20)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
		conf.SetDefault("database.engine", "inmem")
	case "QA", "PROD":
		conf.SetDefault("debug", false)
		conf.SetDefault("database.disableTLS", false)
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd: %v", err)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		AppName:      conf.GetString("appName"),
		Env:          env,
		Build:        conf.GetString("build"),
		Debug:        conf.GetBool("debug"),
		TestMode:     conf.GetBool("testMode"),
		LogLevel:     conf.GetString("logLevel"),
		SecretKey:    conf.GetString("secretKey"),
		RollbarToken: conf.GetString("rollbarToken"),
		WorkDir:      wd,
		Server: ServerConfig{
			Host:               conf.GetString("server.host"),
			Address:            conf.GetString("server.address"),
			DebugHost:          conf.GetString("server.debugHost"),
			ReadTimeout:        conf.GetDuration("server.readTimeout"),
			WriteTimeout:       conf.GetDuration("server.writeTimeout"),
			ShutdownTimeout:    conf.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: conf.GetDuration("server.jwtExpirationDelta"),
			AllowOrigins:       conf.GetStringSlice("server.allowOrigins"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database.engine"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetString("database.port"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
		},
		Runtime: RuntimeConfig{
			SessionStore:       conf.GetString("runtime.sessionStore"),
			RedisURL:           conf.GetString("runtime.redisURL"),
			SessionTTL:         conf.GetDuration("runtime.sessionTTL"),
			SweepInterval:      conf.GetDuration("runtime.sweepInterval"),
			AutoCommitOnEvict:  conf.GetBool("runtime.autoCommitOnEvict"),
			StorageTimeout:     conf.GetDuration("runtime.storageTimeout"),
			APICallsPerMinute:  conf.GetInt("runtime.apiCallsPerMinute"),
			SetValuesPerMinute: conf.GetInt("runtime.setValuesPerMinute"),
			CommitsPerMinute:   conf.GetInt("runtime.commitsPerMinute"),
		},
	}
}
