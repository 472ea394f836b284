// Package appconfig loads optional YAML defaults for netwatchd, in the
// same unmarshal-into-a-plain-struct style as lake/pkg/isis/location.go's
// locationConfig. Values here are overridden by any CLI flag the user set
// explicitly; this file only supplies defaults.
package appconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk shape of an optional --config YAML file.
type File struct {
	Interface    string `yaml:"interface"`
	Port         int    `yaml:"port"`
	Promiscuous  bool   `yaml:"promiscuous"`
	BufferSizeMB int    `yaml:"buffer_size_mb"`
	RingCapacity int    `yaml:"ring_capacity"`
	LogJSON      bool   `yaml:"log_json"`
}

// Load reads and parses path. A missing path is not an error when path is
// empty (no --config flag given); any other I/O or parse failure is
// returned.
func Load(path string) (File, error) {
	var f File
	if path == "" {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("appconfig: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("appconfig: parse %s: %w", path, err)
	}
	return f, nil
}
