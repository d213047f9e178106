package core

import (
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	serverConfig struct {
		Address                   string
		DebugAddress              string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
		DisableReqLogs            bool
	}

	databaseConfig struct {
		Engine string // memory | mongo | postgres
		URI    string
		Name   string
	}

	redisConfig struct {
		Address    string
		CatalogTTL time.Duration
	}

	rabbitmqConfig struct {
		URL      string
		Exchange string
	}

	googleConfig struct {
		ClientID     string
		ClientSecret string
		RedirectURL  string
	}

	jobsConfig struct {
		ReconcileLikesSpec string
	}

	Config struct {
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		AppName          string
		SecretKey        string
		RollbarToken     string
		SendgridApiKey   string
		DefaultFromEmail string
		FrontendBaseURL  string
		Server           serverConfig
		Database         databaseConfig
		Redis            redisConfig
		RabbitMQ         rabbitmqConfig
		Google           googleConfig
		Jobs             jobsConfig
	}
)

func (conf *Config) DefaultFromAddress() mail.Address {
	return mail.Address{Name: conf.AppName, Address: conf.DefaultFromEmail}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("build", "dev")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Academia")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("frontendBaseURL", "http://localhost:5173")

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugAddress", ":4000")
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", "memory")
	v.SetDefault("database.uri", "")
	v.SetDefault("database.name", "academia")

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.catalogTTL", 30*time.Second)

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "academia_events")

	v.SetDefault("google.clientID", "")
	v.SetDefault("google.clientSecret", "")
	v.SetDefault("google.redirectURL", "http://localhost:8000/v1/auth/google/callback")

	v.SetDefault("jobs.reconcileLikesSpec", "@every 1h")
}

// NewConfig loads the configuration of the current environment.
// Values are looked up in this order: env vars (prefixed by ENV, eg. PROD_DATABASE_URI), config/.env.<env>, defaults.
func NewConfig() (*Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	v.AutomaticEnv()

	conf := &Config{Env: env}
	if err := v.Unmarshal(conf); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	conf.Env = env
	return conf, nil
}

// NewTestConfig returns a Config suited for tests: in-memory store, no external services.
func NewTestConfig() *Config {
	v := viper.New()
	setDefaults(v)
	conf := &Config{}
	_ = v.Unmarshal(conf)
	conf.Env = "TEST"
	conf.TestMode = true
	conf.SecretKey = "secret"
	conf.Server.DisableReqLogs = true
	return conf
}
