// Package config loads nodegraph settings from an optional TOML file and
// NODEGRAPH_* environment variables, the environment taking precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/language"

	"github.com/alfredjeanlab/nodegraph/internal/editor"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "NODEGRAPH_"

// ErrUnknownKey is returned by Get and Set for a key that is not a setting.
var ErrUnknownKey = errors.New("unknown config key")

// Duration is a time.Duration written as a Go duration string ("300ms").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

type Config struct {
	HTTPAddr  string `toml:"http_addr"`  // NODEGRAPH_HTTP_ADDR (default ":8090")
	EngineURL string `toml:"engine_url"` // NODEGRAPH_ENGINE_URL (default "http://127.0.0.1:8188")
	AuthToken string `toml:"auth_token"` // NODEGRAPH_AUTH_TOKEN (optional, empty = auth disabled)
	ServerURL string `toml:"server_url"` // NODEGRAPH_SERVER_URL, used by the CLI (default "http://127.0.0.1:8090")
	LogLevel  string `toml:"log_level"`  // NODEGRAPH_LOG_LEVEL (default "info")

	// Event bus
	NATSURL string `toml:"nats_url"` // NODEGRAPH_NATS_URL (optional, empty = no NATS events)
	MQTTURL string `toml:"mqtt_url"` // NODEGRAPH_MQTT_URL (optional, empty = no MQTT events)

	// Session
	CatalogFile   string   `toml:"catalog_file"`   // NODEGRAPH_CATALOG_FILE (replaces the engine's object_info)
	WorkflowFile  string   `toml:"workflow_file"`  // NODEGRAPH_WORKFLOW_FILE (loaded and watched when set)
	WatchDebounce Duration `toml:"watch_debounce"` // NODEGRAPH_WATCH_DEBOUNCE (default 300ms)
	FrameInterval Duration `toml:"frame_interval"` // NODEGRAPH_FRAME_INTERVAL (default 16ms)
	Locale        string   `toml:"locale"`         // NODEGRAPH_LOCALE (default "en")
	InitialView   string   `toml:"initial_view"`   // NODEGRAPH_INITIAL_VIEW (default "simple")

	// Export
	ExportInterval   Duration `toml:"export_interval"`    // NODEGRAPH_EXPORT_INTERVAL (default 0 = on demand only)
	ExportFile       string   `toml:"export_file"`        // NODEGRAPH_EXPORT_FILE
	ExportS3Bucket   string   `toml:"export_s3_bucket"`   // NODEGRAPH_EXPORT_S3_BUCKET (enables S3 when set)
	ExportS3Key      string   `toml:"export_s3_key"`      // NODEGRAPH_EXPORT_S3_KEY (default "nodegraph/workflow.json")
	ExportS3Region   string   `toml:"export_s3_region"`   // NODEGRAPH_EXPORT_S3_REGION (default "us-east-1")
	ExportS3Endpoint string   `toml:"export_s3_endpoint"` // NODEGRAPH_EXPORT_S3_ENDPOINT (custom endpoint for MinIO)
	ExportGitRepo    string   `toml:"export_git_repo"`    // NODEGRAPH_EXPORT_GIT_REPO (enables git when set; path to clone)
	ExportGitFile    string   `toml:"export_git_file"`    // NODEGRAPH_EXPORT_GIT_FILE (default "workflow.json")
	ExportGitBranch  string   `toml:"export_git_branch"`  // NODEGRAPH_EXPORT_GIT_BRANCH (default "main")
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		HTTPAddr:        ":8090",
		EngineURL:       "http://127.0.0.1:8188",
		ServerURL:       "http://127.0.0.1:8090",
		LogLevel:        "info",
		WatchDebounce:   Duration{300 * time.Millisecond},
		FrameInterval:   Duration{16 * time.Millisecond},
		Locale:          "en",
		InitialView:     string(editor.ViewSimple),
		ExportS3Key:     "nodegraph/workflow.json",
		ExportS3Region:  "us-east-1",
		ExportGitFile:   "workflow.json",
		ExportGitBranch: "main",
	}
}

// Path returns the config file location: $NODEGRAPH_CONFIG, or
// ~/.config/nodegraph/config.toml.
func Path() (string, error) {
	if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "nodegraph", "config.toml"), nil
}

// Load reads the config file at Path, if present, and applies the
// environment over it.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile is Load with an explicit file path. A missing file is not an
// error.
func LoadFile(path string) (*Config, error) {
	c, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	for _, key := range Keys() {
		v := os.Getenv(EnvName(key))
		if v == "" {
			continue
		}
		if err := c.Set(key, v); err != nil {
			return nil, fmt.Errorf("%s: %w", EnvName(key), err)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ReadFile decodes the file over the defaults without consulting the
// environment. A missing file yields the defaults.
func ReadFile(path string) (*Config, error) {
	c := Default()
	if _, err := toml.DecodeFile(path, c); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return c, nil
}

// Save writes c to path, creating the directory.
func Save(path string, c *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}

// Validate checks values that have a fixed vocabulary.
func (c *Config) Validate() error {
	if _, err := editor.ParseViewMode(c.InitialView); err != nil {
		return fmt.Errorf("initial_view: %w", err)
	}
	if _, err := language.Parse(c.Locale); err != nil {
		return fmt.Errorf("locale: %w", err)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level: %q (want debug, info, warn or error)", c.LogLevel)
	}
	return nil
}

// EnvName returns the environment variable for a key.
func EnvName(key string) string { return EnvPrefix + strings.ToUpper(key) }

type field struct {
	str *string
	dur *Duration
}

func (c *Config) fields() map[string]field {
	return map[string]field{
		"http_addr":          {str: &c.HTTPAddr},
		"engine_url":         {str: &c.EngineURL},
		"auth_token":         {str: &c.AuthToken},
		"server_url":         {str: &c.ServerURL},
		"log_level":          {str: &c.LogLevel},
		"nats_url":           {str: &c.NATSURL},
		"mqtt_url":           {str: &c.MQTTURL},
		"catalog_file":       {str: &c.CatalogFile},
		"workflow_file":      {str: &c.WorkflowFile},
		"watch_debounce":     {dur: &c.WatchDebounce},
		"frame_interval":     {dur: &c.FrameInterval},
		"locale":             {str: &c.Locale},
		"initial_view":       {str: &c.InitialView},
		"export_interval":    {dur: &c.ExportInterval},
		"export_file":        {str: &c.ExportFile},
		"export_s3_bucket":   {str: &c.ExportS3Bucket},
		"export_s3_key":      {str: &c.ExportS3Key},
		"export_s3_region":   {str: &c.ExportS3Region},
		"export_s3_endpoint": {str: &c.ExportS3Endpoint},
		"export_git_repo":    {str: &c.ExportGitRepo},
		"export_git_file":    {str: &c.ExportGitFile},
		"export_git_branch":  {str: &c.ExportGitBranch},
	}
}

// Keys lists every setting, sorted.
func Keys() []string {
	var c Config
	keys := make([]string, 0, len(c.fields()))
	for k := range c.fields() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns a setting as text.
func (c *Config) Get(key string) (string, error) {
	f, ok := c.fields()[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if f.dur != nil {
		return f.dur.String(), nil
	}
	return *f.str, nil
}

// Set parses and stores a setting.
func (c *Config) Set(key, value string) error {
	f, ok := c.fields()[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if f.dur != nil {
		return f.dur.UnmarshalText([]byte(value))
	}
	*f.str = value
	return nil
}
