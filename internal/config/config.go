// Package config holds the viper-backed settings shared by every command.
//
// Values resolve in the usual order: explicit Set (command-line flags), then
// ACCBMAD_* environment variables, then the nearest .accbmad.yaml (or
// .accbmad.toml) found walking up from the start directory, then the user
// config file, then defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/accbmad/accbmad/internal/migrate"
)

// Config keys.
const (
	KeyLegacyRoots      = "legacy-roots"
	KeyDestRoot         = "dest-root"
	KeyMaxDepth         = "max-depth"
	KeyExclude          = "exclude"
	KeyRespectGitignore = "respect-gitignore"
	KeyJSON             = "json"
	KeyOTelEnabled      = "otel.enabled"
	KeyOTelStdout       = "otel.stdout"
)

// EnvPrefix is prepended to every environment override, e.g. ACCBMAD_MAX_DEPTH.
const EnvPrefix = "ACCBMAD"

// ConfigName is the base name of the project config file.
const ConfigName = ".accbmad"

var (
	v          *viper.Viper
	configPath string
)

// InitializeFrom sets up the viper singleton, searching for a project config
// file starting at dir and walking up to the filesystem root.
func InitializeFrom(dir string) error {
	v = viper.New()
	configPath = ""

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyLegacyRoots, migrate.DefaultLegacyRoots)
	v.SetDefault(KeyDestRoot, migrate.DefaultDestRoot)
	v.SetDefault(KeyMaxDepth, migrate.DefaultMaxDepth)
	v.SetDefault(KeyExclude, []string{})
	v.SetDefault(KeyRespectGitignore, false)
	v.SetDefault(KeyJSON, false)
	v.SetDefault(KeyOTelEnabled, false)
	v.SetDefault(KeyOTelStdout, false)

	path := findProjectConfig(dir)
	if path == "" {
		path = userConfigPath()
	}
	if path == "" {
		return nil
	}

	m, err := readConfigFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file %s: %w", path, err)
	}
	if err := v.MergeConfigMap(m); err != nil {
		return fmt.Errorf("error reading config file %s: %w", path, err)
	}
	configPath = path
	return nil
}

// findProjectConfig walks up from dir looking for .accbmad.yaml, .accbmad.yml
// or .accbmad.toml. It stops at the first directory containing any of them.
func findProjectConfig(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for d := abs; ; d = filepath.Dir(d) {
		for _, ext := range []string{".yaml", ".yml", ".toml"} {
			p := filepath.Join(d, ConfigName+ext)
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p
			}
		}
		if filepath.Dir(d) == d {
			return ""
		}
	}
}

func userConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	p := filepath.Join(dir, "accbmad", "config.yaml")
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

// ConfigFileUsed returns the path of the loaded config file, or "".
func ConfigFileUsed() string {
	return configPath
}

// Set overrides a key for the rest of the process (used for flags).
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// GetString retrieves a string configuration value
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetStringSlice retrieves a list value. Environment variables may separate
// items with commas or whitespace.
func GetStringSlice(key string) []string {
	if v == nil {
		return nil
	}
	var out []string
	for _, item := range v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// MigrationSettings builds detection options for projectDir from the current
// configuration. The result still needs Validate.
func MigrationSettings(projectDir string) migrate.Options {
	opts := migrate.DefaultOptions(projectDir)
	if v == nil {
		return opts
	}
	if roots := GetStringSlice(KeyLegacyRoots); len(roots) > 0 {
		opts.LegacyRoots = roots
	}
	opts.DestRoot = GetString(KeyDestRoot)
	opts.MaxDepth = GetInt(KeyMaxDepth)
	opts.Exclude = GetStringSlice(KeyExclude)
	opts.RespectGitignore = GetBool(KeyRespectGitignore)
	return opts
}

// ResetForTesting drops the singleton so the next Initialize starts clean.
func ResetForTesting() {
	v = nil
	configPath = ""
}
