package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// readConfigFile decodes a project config file into a key/value map suitable
// for viper.MergeConfigMap. The format is chosen by extension.
func readConfigFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from config discovery
	if err != nil {
		return nil, err
	}

	m := make(map[string]interface{})
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &m); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return m, nil
}
