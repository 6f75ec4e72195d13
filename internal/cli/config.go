package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/opcbox/opcbox/pkg/contenttype"
)

// Config holds the user-level CLI configuration, read from
// ~/.config/opcbox/config.toml when present. A missing file yields the
// zero Config; a malformed one is an error.
type Config struct {
	// Types maps file extensions (without the dot, case-insensitive) to the
	// media type assumed by "opcbox add" when --type is not given. Entries
	// extend the built-in table; they do not replace it.
	Types map[string]string `toml:"types"`
}

// builtinTypes covers the extensions "opcbox add" can infer without any
// configuration.
var builtinTypes = map[string]string{
	"xml":  contenttype.XMLType,
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"jpg":  "image/jpeg",
	"gif":  "image/gif",
	"txt":  "text/plain",
	"bin":  "application/octet-stream",
}

// configPath returns the user configuration file location.
func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "opcbox", "config.toml"), nil
}

// loadConfig reads the user configuration. A missing file is not an error.
func loadConfig() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return &Config{}, nil
	}
	return loadConfigFile(path)
}

func loadConfigFile(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Types) > 0 {
		normalized := make(map[string]string, len(cfg.Types))
		for ext, mediaType := range cfg.Types {
			normalized[strings.ToLower(strings.TrimPrefix(ext, "."))] = mediaType
		}
		cfg.Types = normalized
	}
	return &cfg, nil
}

// inferType guesses a media type for path from its extension, consulting the
// user configuration first and the built-in table second. The empty string
// means no guess.
func (c *Config) inferType(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return ""
	}
	if t, ok := c.Types[ext]; ok {
		return t
	}
	return builtinTypes[ext]
}
