// Package config loads zomeedit settings from a TOML file with
// environment variable overrides, and watches the file for changes.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/zomeedit/internal/format"
	"github.com/dshills/zomeedit/internal/logging"
)

// Defaults for the running core.
const (
	DefaultCoreVersion = "5.0.0"
	DefaultEdition     = "zomeedit"
	DefaultCodec       = "xml"
	EnvPrefix          = "ZOMEEDIT_"
)

// Config is the complete settings tree.
type Config struct {
	Core    CoreConfig    `toml:"core"`
	History HistoryConfig `toml:"history"`
	Save    SaveConfig    `toml:"save"`
	Logging LoggingConfig `toml:"logging"`
}

// CoreConfig identifies the program written into saved documents.
type CoreConfig struct {
	Version string `toml:"version"`
	Edition string `toml:"edition"`
	Build   string `toml:"build"`
}

// HistoryConfig controls the edit journal policies.
type HistoryConfig struct {
	// RecordFailed keeps edits whose perform reported a failure.
	RecordFailed bool `toml:"record_failed"`
	// OpenUndone loads documents with every edit undone.
	OpenUndone bool `toml:"open_undone"`
}

// SaveConfig controls document serialization.
type SaveConfig struct {
	Codec  string `toml:"codec"`
	Indent bool   `toml:"indent"`
}

// LoggingConfig controls the logger.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Core: CoreConfig{
			Version: DefaultCoreVersion,
			Edition: DefaultEdition,
		},
		History: HistoryConfig{RecordFailed: true},
		Save:    SaveConfig{Codec: DefaultCodec, Indent: true},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path over the defaults, then applies environment overrides
// and validates the result. An empty path or a missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := cfg.decode(path, data); err != nil {
				return nil, err
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes TOML data over the defaults without consulting the
// environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode("<data>", data); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(source string, data []byte) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		pe := &ParseError{Path: source, Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			pe.Line, pe.Column = derr.Position()
		}
		return pe
	}
	return nil
}

// Encode writes the settings as TOML.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// ApplyEnv overrides settings from ZOMEEDIT_* environment variables.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(dst *string) func(string) error {
		return func(v string) error {
			*dst = v
			return nil
		}
	}
	boolean := func(dst *bool) func(string) error {
		return func(v string) error {
			b, err := parseBool(v)
			if err != nil {
				return err
			}
			*dst = b
			return nil
		}
	}
	setters := []struct {
		name string
		set  func(string) error
	}{
		{"CORE_VERSION", str(&c.Core.Version)},
		{"CORE_EDITION", str(&c.Core.Edition)},
		{"CORE_BUILD", str(&c.Core.Build)},
		{"HISTORY_RECORD_FAILED", boolean(&c.History.RecordFailed)},
		{"HISTORY_OPEN_UNDONE", boolean(&c.History.OpenUndone)},
		{"SAVE_CODEC", str(&c.Save.Codec)},
		{"SAVE_INDENT", boolean(&c.Save.Indent)},
		{"LOG_LEVEL", str(&c.Logging.Level)},
	}
	for _, s := range setters {
		v, ok := lookup(EnvPrefix + s.name)
		if !ok {
			continue
		}
		if err := s.set(v); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, s.name, err)
		}
	}
	return nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(s))
}

// Validate checks the settings for values the program cannot use.
func (c *Config) Validate() error {
	var errs []error
	if !format.ValidVersion(c.Core.Version) {
		errs = append(errs, &ValidationError{Field: "core.version", Value: c.Core.Version, Reason: "expected dotted integers"})
	}
	if _, err := format.CodecFor(c.Save.Codec, false); err != nil {
		errs = append(errs, &ValidationError{Field: "save.codec", Value: c.Save.Codec, Reason: "expected xml or json"})
	}
	if _, ok := logging.ParseLevel(c.Logging.Level); !ok {
		errs = append(errs, &ValidationError{Field: "logging.level", Value: c.Logging.Level, Reason: "expected debug, info, warn or error"})
	}
	return errors.Join(errs...)
}

// LogLevel returns the configured logging level.
func (c *Config) LogLevel() logging.Level {
	level, _ := logging.ParseLevel(c.Logging.Level)
	return level
}
