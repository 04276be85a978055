// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/agentchat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete agentchat configuration.
type Config struct {
	Backend BackendConfig `toml:"backend" json:"backend" yaml:"backend"`
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
	UI      UIConfig      `toml:"ui" json:"ui" yaml:"ui"`
}

// BackendConfig describes the agent backend.
type BackendConfig struct {
	// URL is the backend base URL, e.g. http://localhost:8000
	URL string `toml:"url" json:"url" yaml:"url"`
	// TimeoutSecs bounds non-streaming requests (start, status).
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs" yaml:"timeout_secs"`
	// RequestsPerSecond limits outgoing requests (0 = unlimited).
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `toml:"burst" json:"burst" yaml:"burst"`
}

// StorageConfig selects where conversations are persisted.
type StorageConfig struct {
	// Driver is one of "file", "sqlite", "memory".
	Driver     string `toml:"driver" json:"driver" yaml:"driver"`
	Dir        string `toml:"dir" json:"dir" yaml:"dir"`
	SQLitePath string `toml:"sqlite_path" json:"sqlite_path" yaml:"sqlite_path"`
	// MaxConversations is the retention limit (0 = unlimited).
	MaxConversations int `toml:"max_conversations" json:"max_conversations" yaml:"max_conversations"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `toml:"level" json:"level" yaml:"level"`
	Format string `toml:"format" json:"format" yaml:"format"`
	// File receives logs while the TUI owns the terminal.
	File string `toml:"file" json:"file" yaml:"file"`
}

// UIConfig contains interactive UI settings.
type UIConfig struct {
	ShowTimestamps bool `toml:"show_timestamps" json:"show_timestamps" yaml:"show_timestamps"`
	// RenderMarkdown formats finished replies with glamour.
	RenderMarkdown bool `toml:"render_markdown" json:"render_markdown" yaml:"render_markdown"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

const (
	DefaultURL         = "http://localhost:8000"
	DefaultTimeoutSecs = 30
)

// Valid option values.
var (
	ValidDrivers = []string{"file", "sqlite", "memory"}
	ValidLevels  = []string{"debug", "info", "warn", "error"}
	ValidFormats = []string{"text", "json"}
)

// Default returns a configuration with all defaults applied.
func Default() *Config {
	dir := util.DataDir()
	return &Config{
		Backend: BackendConfig{
			URL:         DefaultURL,
			TimeoutSecs: DefaultTimeoutSecs,
			Burst:       1,
		},
		Storage: StorageConfig{
			Driver:           "file",
			Dir:              filepath.Join(dir, "conversations"),
			SQLitePath:       filepath.Join(dir, "conversations.db"),
			MaxConversations: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   filepath.Join(dir, "agentchat.log"),
		},
		UI: UIConfig{
			ShowTimestamps: true,
			RenderMarkdown: true,
		},
	}
}

// Timeout returns the backend timeout as a duration.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSecs) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the agentchat configuration directory.
func ConfigDir() string {
	return util.DataDir()
}

// ConfigPathTOML returns the path of the TOML config file, which is also
// where Save writes.
func ConfigPathTOML() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// SearchPaths returns the config files Load tries, in order.
func SearchPaths() []string {
	dir := ConfigDir()
	return []string{
		filepath.Join(dir, "config.toml"),
		filepath.Join(dir, "config.yaml"),
		filepath.Join(dir, "config.yml"),
		filepath.Join(dir, "config.json"),
	}
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads the first config file found in SearchPaths, falling back to
// defaults when there is none. Environment overrides are applied last.
// The returned path is "" when no file was read.
func Load() (*Config, string, error) {
	for _, path := range SearchPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := LoadFromPath(path)
		return cfg, path, err
	}

	cfg := Default()
	if err := finish(cfg); err != nil {
		return nil, "", err
	}
	return cfg, "", nil
}

// LoadFromPath loads configuration from path. The format follows the file
// extension: .yaml/.yml, .json, anything else is TOML. ${VAR} references in
// the file are expanded from the environment before decoding. Keys missing
// from the file keep their defaults.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := Decode(cfg, []byte(expandEnvVars(string(data))), formatOf(path)); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode decodes data in format ("toml", "yaml", "json") into cfg.
func Decode(cfg *Config, data []byte, format string) error {
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parsing YAML: %w", err)
		}
	case "json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parsing JSON: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("parsing TOML: %w", err)
		}
	}
	return nil
}

func finish(cfg *Config) error {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	default:
		return "toml"
	}
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with the value of VAR, or "" when unset.
func expandEnvVars(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envRef.FindStringSubmatch(match)[1])
	})
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to the default TOML path.
func Save(cfg *Config) error {
	return SaveTOML(cfg, ConfigPathTOML())
}

// SaveTOML writes cfg as TOML with a short header. The file is written
// atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# agentchat configuration file\n")
	buf.WriteString("# Environment: AGENTCHAT_BACKEND_URL, AGENTCHAT_LOG_LEVEL,\n")
	buf.WriteString("# AGENTCHAT_STORAGE_DRIVER, AGENTCHAT_DATA_DIR\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Encode renders cfg in format ("toml", "yaml", "json").
func Encode(cfg *Config, format string) ([]byte, error) {
	switch format {
	case "yaml":
		return yaml.Marshal(cfg)
	case "json":
		return json.MarshalIndent(cfg, "", "  ")
	default:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every setting and returns ValidateErrors listing all
// problems, or nil.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Backend
	if u, err := url.Parse(c.Backend.URL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		add("backend.url", "invalid URL '%s', must be an absolute http or https URL", c.Backend.URL)
	}
	if c.Backend.TimeoutSecs < 1 || c.Backend.TimeoutSecs > 3600 {
		add("backend.timeout_secs", "must be between 1 and 3600, got %d", c.Backend.TimeoutSecs)
	}
	if c.Backend.RequestsPerSecond < 0 {
		add("backend.requests_per_second", "must not be negative, got %g", c.Backend.RequestsPerSecond)
	}
	if c.Backend.Burst < 1 {
		add("backend.burst", "must be at least 1, got %d", c.Backend.Burst)
	}

	// Storage
	if !oneOf(c.Storage.Driver, ValidDrivers) {
		add("storage.driver", "invalid driver '%s', must be one of: %s", c.Storage.Driver, strings.Join(ValidDrivers, ", "))
	}
	if c.Storage.Driver == "file" && c.Storage.Dir == "" {
		add("storage.dir", "required for the file driver")
	}
	if c.Storage.Driver == "sqlite" && c.Storage.SQLitePath == "" {
		add("storage.sqlite_path", "required for the sqlite driver")
	}
	if c.Storage.MaxConversations < 0 {
		add("storage.max_conversations", "must not be negative, got %d", c.Storage.MaxConversations)
	}

	// Logging
	if !oneOf(c.Logging.Level, ValidLevels) {
		add("logging.level", "invalid level '%s', must be one of: %s", c.Logging.Level, strings.Join(ValidLevels, ", "))
	}
	if !oneOf(c.Logging.Format, ValidFormats) {
		add("logging.format", "invalid format '%s', must be one of: %s", c.Logging.Format, strings.Join(ValidFormats, ", "))
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func oneOf(v string, valid []string) bool {
	for _, s := range valid {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// SetDefaults fills empty settings with defaults, lowercases enum values
// and expands "~" in paths.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Backend.URL == "" {
		c.Backend.URL = d.Backend.URL
	}
	c.Backend.URL = strings.TrimRight(c.Backend.URL, "/")
	if c.Backend.TimeoutSecs == 0 {
		c.Backend.TimeoutSecs = d.Backend.TimeoutSecs
	}
	if c.Backend.Burst == 0 {
		c.Backend.Burst = d.Backend.Burst
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = d.Storage.Driver
	}
	c.Storage.Driver = strings.ToLower(c.Storage.Driver)
	if c.Storage.Dir == "" {
		c.Storage.Dir = d.Storage.Dir
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = d.Storage.SQLitePath
	}
	c.Storage.Dir = util.ExpandHome(c.Storage.Dir)
	c.Storage.SQLitePath = util.ExpandHome(c.Storage.SQLitePath)

	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
	c.Logging.Format = strings.ToLower(c.Logging.Format)
	if c.Logging.File == "" {
		c.Logging.File = d.Logging.File
	}
	c.Logging.File = util.ExpandHome(c.Logging.File)
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - BACKEND_URL: overrides backend.url
//   - AGENTCHAT_BACKEND_URL: overrides backend.url, wins over BACKEND_URL
//   - AGENTCHAT_LOG_LEVEL: overrides logging.level
//   - AGENTCHAT_STORAGE_DRIVER: overrides storage.driver
//   - AGENTCHAT_DATA_DIR: moves storage.dir, storage.sqlite_path and
//     logging.file under the given directory
func (c *Config) ApplyEnvOverrides() {
	if u := os.Getenv("BACKEND_URL"); u != "" {
		c.Backend.URL = u
	}
	if u := os.Getenv("AGENTCHAT_BACKEND_URL"); u != "" {
		c.Backend.URL = u
	}
	if level := os.Getenv("AGENTCHAT_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if driver := os.Getenv("AGENTCHAT_STORAGE_DRIVER"); driver != "" {
		c.Storage.Driver = driver
	}
	if dir := os.Getenv(util.DataDirEnv); dir != "" {
		dir = util.ExpandHome(dir)
		c.Storage.Dir = filepath.Join(dir, "conversations")
		c.Storage.SQLitePath = filepath.Join(dir, "conversations.db")
		c.Logging.File = filepath.Join(dir, "agentchat.log")
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a value using its dotted key, e.g. "backend.url".
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a value using its dotted key. String values are converted
// to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if field.Kind() == reflect.Struct {
		return fmt.Errorf("cannot set section: %s", key)
	}
	return setFieldValue(field, value)
}

// lookup walks the struct by toml tag names.
func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		if v.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i], "."))
		}
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return v, nil
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if tagName(t.Field(i)) == strings.ToLower(strings.ReplaceAll(name, "-", "_")) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func tagName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
	return name
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				boolVal = strings.EqualFold(strVal, "yes")
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys returns every leaf key in dot notation, in declaration order.
func Keys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			key := prefix + tagName(f)
			if f.Type.Kind() == reflect.Struct {
				walk(f.Type, key+".")
				continue
			}
			keys = append(keys, key)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	return keys
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns the config as indented JSON.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
