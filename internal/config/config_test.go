package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cabinetdb/cabinet/internal/config"
	"github.com/cabinetdb/cabinet/pkg"
	"gotest.tools/assert"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.NilError(t, err)
	assert.DeepEqual(t, cfg, config.Default())
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cabinet.yml")
	raw := "port: 9000\nuser_control: true\nlog_level: debug\n"
	assert.NilError(t, os.WriteFile(path, []byte(raw), 0644))

	cfg, err := config.Load(path)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Port, 9000)
	assert.Assert(t, cfg.UserControl)
	assert.Equal(t, cfg.LogLevel, "debug")
	// unset fields keep their defaults
	assert.Equal(t, cfg.Root, config.Default().Root)
	assert.Equal(t, cfg.InternalDB, config.Default().InternalDB)
}

func TestLoadBadYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cabinet.yml")
	assert.NilError(t, os.WriteFile(path, []byte("port: [not a port"), 0644))
	_, err := config.Load(path)
	assert.Assert(t, err != nil)
}

func TestParsedLogLevel(t *testing.T) {
	assert.Equal(t, config.Config{LogLevel: "none"}.ParsedLogLevel(), pkg.LogLevelNone)
	assert.Equal(t, config.Config{LogLevel: "debug"}.ParsedLogLevel(), pkg.LogLevelDebug)
	assert.Equal(t, config.Config{LogLevel: "error"}.ParsedLogLevel(), pkg.LogLevelErrOnly)
	assert.Equal(t, config.Config{}.ParsedLogLevel(), pkg.LogLevelErrOnly)
}
