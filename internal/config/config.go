// Package config loads and validates the environment-driven server
// configuration: the UUID signature, the static page URLs proxied at the
// root routes, the region-to-endpoint directory, and the ambient frame-size
// and timeout ceilings.
package config

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var uuidPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ServerConfig is the validated result of loading the process environment.
type ServerConfig struct {
	UUID      string              `mapstructure:"uuid" validate:"required"`
	ProxyIP   string              `mapstructure:"proxy_ip"`
	PagePaths map[string]string   `mapstructure:"-"`
	ProxyList map[string][]string `mapstructure:"-"`

	MainPageURL      string `mapstructure:"main_page_url" validate:"required"`
	SubPageURL       string `mapstructure:"sub_page_url" validate:"required"`
	LinkPageURL      string `mapstructure:"link_page_url" validate:"required"`
	ConverterPageURL string `mapstructure:"converter_page_url" validate:"required"`
	CheckerPageURL   string `mapstructure:"checker_page_url" validate:"required"`

	ListenAddr   string        `mapstructure:"listen_addr"`
	MetricsAddr  string        `mapstructure:"metrics_addr"`
	ReadTimeout  time.Duration `mapstructure:"-"`
	WriteTimeout time.Duration `mapstructure:"-"`
	MaxFrame     int64         `mapstructure:"-"`
	MaxMessage   int64         `mapstructure:"-"`
}

// ConfigError reports a startup configuration problem, distinguishing a
// missing required value (spec.md §7 "ConfigMissing") from one that is
// present but malformed ("ConfigInvalid").
type ConfigError struct {
	Field   string
	Invalid bool
	Reason  string
}

func (e *ConfigError) Error() string {
	if e.Invalid {
		return fmt.Sprintf("config: %s is invalid: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("config: %s is required", e.Field)
}

// Load reads the server configuration from the process environment using
// viper's env-var binding, validates it with go-playground/validator, and
// applies the ambient defaults the teacher's own Limits struct carried
// (frame/message size ceilings, read and write timeouts).
func Load() (*ServerConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("metrics_addr", ":9090")

	bindings := map[string]string{
		"uuid":               "UUID",
		"proxy_ip":           "PROXY_IP",
		"main_page_url":      "MAIN_PAGE_URL",
		"sub_page_url":       "SUB_PAGE_URL",
		"link_page_url":      "LINK_PAGE_URL",
		"converter_page_url": "CONVERTER_PAGE_URL",
		"checker_page_url":   "CHECKER_PAGE_URL",
		"listen_addr":        "LISTEN_ADDR",
		"metrics_addr":       "METRICS_ADDR",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", env, err)
		}
	}

	cfg := &ServerConfig{
		ListenAddr:   v.GetString("listen_addr"),
		MetricsAddr:  v.GetString("metrics_addr"),
		UUID:         v.GetString("uuid"),
		ProxyIP:      v.GetString("proxy_ip"),
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 15 * time.Second,
		MaxFrame:     1 << 20,
		MaxMessage:   8 << 20,
	}
	cfg.MainPageURL = v.GetString("main_page_url")
	cfg.SubPageURL = v.GetString("sub_page_url")
	cfg.LinkPageURL = v.GetString("link_page_url")
	cfg.ConverterPageURL = v.GetString("converter_page_url")
	cfg.CheckerPageURL = v.GetString("checker_page_url")

	if cfg.UUID == "" {
		return nil, &ConfigError{Field: "UUID"}
	}
	if !uuidPattern.MatchString(cfg.UUID) {
		return nil, &ConfigError{Field: "UUID", Invalid: true, Reason: "does not match RFC4122 v4 shape"}
	}

	proxyListRaw := v.GetString("PROXY_LIST")
	proxyList := map[string][]string{}
	if proxyListRaw != "" {
		if err := json.Unmarshal([]byte(proxyListRaw), &proxyList); err != nil {
			return nil, &ConfigError{Field: "PROXY_LIST", Invalid: true, Reason: err.Error()}
		}
	}
	cfg.ProxyList = proxyList

	cfg.PagePaths = map[string]string{
		"/":          cfg.MainPageURL,
		"/sub":       cfg.SubPageURL,
		"/link":      cfg.LinkPageURL,
		"/converter": cfg.ConverterPageURL,
		"/checker":   cfg.CheckerPageURL,
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			return nil, &ConfigError{Field: ve[0].Field()}
		}
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return cfg, nil
}
