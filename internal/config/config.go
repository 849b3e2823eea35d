// Package config loads the client settings from the environment and from
// optional .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DBTypeSQLite   = "sqlite"
	DBTypePostgres = "postgres"

	DefaultDBPath          = "flux.db"
	DefaultExpiryWarnDays  = 7
	DefaultRefreshInterval = 15 * time.Minute
	DefaultHTTPTimeout     = 10 * time.Second
)

type Config struct {
	ServerURL       string        `env:"FLUX_SERVER_URL" validate:"required,http_url"`
	Token           string        `env:"FLUX_TOKEN"`
	DBType          string        `env:"FLUX_DB_TYPE" validate:"oneof=sqlite postgres"`
	DBPath          string        `env:"FLUX_DB_PATH" validate:"required_if=DBType sqlite"`
	DatabaseURL     string        `env:"FLUX_DATABASE_URL" validate:"required_if=DBType postgres"`
	ExpiryWarnDays  int           `env:"FLUX_EXPIRY_WARN_DAYS" validate:"gte=1,lte=365"`
	RefreshInterval time.Duration `env:"FLUX_REFRESH_INTERVAL" validate:"gte=1m"`
	HTTPTimeout     time.Duration `env:"FLUX_HTTP_TIMEOUT" validate:"gte=1s,lte=5m"`
}

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("env")
	})
	return v
}()

// Load reads the process environment, falling back to the given .env files
// for keys the environment does not set. Missing files are skipped. Earlier
// files win over later ones.
func Load(files ...string) (Config, error) {
	fileEnv := map[string]string{}
	for _, f := range files {
		vals, err := godotenv.Read(f)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("read %s: %w", f, err)
		}
		for k, v := range vals {
			if _, ok := fileEnv[k]; !ok {
				fileEnv[k] = v
			}
		}
	}
	return FromEnv(func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return fileEnv[key]
	})
}

// FromEnv builds a Config from getenv and applies defaults. It does not
// validate.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		ServerURL:   strings.TrimRight(strings.TrimSpace(getenv("FLUX_SERVER_URL")), "/"),
		Token:       strings.TrimSpace(getenv("FLUX_TOKEN")),
		DBType:      strings.ToLower(strings.TrimSpace(getenv("FLUX_DB_TYPE"))),
		DBPath:      strings.TrimSpace(getenv("FLUX_DB_PATH")),
		DatabaseURL: strings.TrimSpace(getenv("FLUX_DATABASE_URL")),
	}
	switch cfg.DBType {
	case "":
		cfg.DBType = DBTypeSQLite
	case "postgresql":
		cfg.DBType = DBTypePostgres
	}
	if cfg.DBType == DBTypeSQLite && cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath
	}

	cfg.ExpiryWarnDays = DefaultExpiryWarnDays
	if v := strings.TrimSpace(getenv("FLUX_EXPIRY_WARN_DAYS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("FLUX_EXPIRY_WARN_DAYS: %w", err)
		}
		cfg.ExpiryWarnDays = n
	}

	var err error
	if cfg.RefreshInterval, err = durationEnv(getenv, "FLUX_REFRESH_INTERVAL", DefaultRefreshInterval); err != nil {
		return Config{}, err
	}
	if cfg.HTTPTimeout, err = durationEnv(getenv, "FLUX_HTTP_TIMEOUT", DefaultHTTPTimeout); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func durationEnv(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// Validate reports every invalid setting in one error.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	errs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, message(fe))
	}
	return errors.New(strings.Join(errs, "; "))
}

func message(fe validator.FieldError) string {
	key := fe.Field()
	switch fe.Tag() {
	case "required", "required_if":
		return key + " is required"
	case "http_url":
		return key + " must be an http(s) URL"
	case "oneof":
		return key + " must be one of: " + fe.Param()
	case "gte":
		return fmt.Sprintf("%s must be at least %s", key, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", key, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", key, fe.Tag())
	}
}
