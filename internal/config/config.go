// Package config loads the server configuration file. Every field has a
// default so a missing file or a partial file still yields a runnable
// configuration.
package config

import (
	"errors"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cabinetdb/cabinet/pkg"
)

type Config struct {
	// Root is the directory databases are persisted under.
	Root string `yaml:"root"`

	// IndexFile is the name of the database index file inside Root.
	IndexFile string `yaml:"index_file"`

	// Port the server listens on.
	Port int `yaml:"port"`

	// InternalDB is the reserved database holding user rows.
	InternalDB string `yaml:"internal_db"`

	// ReservedPrefix marks internal table names.
	ReservedPrefix string `yaml:"reserved_prefix"`

	// UserControl enables the credential/permission gate.
	UserControl bool `yaml:"user_control"`

	LogLevel string `yaml:"log_level"`
}

func Default() Config {
	return Config{
		Root:           "./cabinet_data",
		IndexFile:      "index.json",
		Port:           7845,
		InternalDB:     "_cabinet",
		ReservedPrefix: "_",
		UserControl:    false,
		LogLevel:       "error",
	}
}

// Load reads the file at path when it exists and fills unset fields with
// defaults. A missing file is not an error; an unreadable one is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}

	loaded := Config{}
	if err := yaml.Unmarshal(buf, &loaded); err != nil {
		return cfg, err
	}
	cfg.apply(loaded)
	return cfg, nil
}

func (c *Config) apply(o Config) {
	if o.Root != "" {
		c.Root = o.Root
	}
	if o.IndexFile != "" {
		c.IndexFile = o.IndexFile
	}
	if o.Port != 0 {
		c.Port = o.Port
	}
	if o.InternalDB != "" {
		c.InternalDB = o.InternalDB
	}
	if o.ReservedPrefix != "" {
		c.ReservedPrefix = o.ReservedPrefix
	}
	c.UserControl = o.UserControl
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
}

func (c Config) ParsedLogLevel() pkg.LogLevel {
	switch c.LogLevel {
	case "none":
		return pkg.LogLevelNone
	case "debug":
		return pkg.LogLevelDebug
	}
	return pkg.LogLevelErrOnly
}
