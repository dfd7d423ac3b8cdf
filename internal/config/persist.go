package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/renameio/v2"
)

// DefaultFileName is the settings file name Ardiex looks for adjacent to
// its executable (spec.md §6).
const DefaultFileName = "settings.json"

// Load reads and parses settings.json at path. If the file doesn't exist,
// it is created with Default() values and that default config is returned,
// matching spec.md §6 ("Created with defaults on first run if absent").
func Load(path string) (*GlobalConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			if err := Save(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to write default settings: %w", err)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var cfg GlobalConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}
	if cfg.Metadata == nil {
		cfg.Metadata = map[string]SourceState{}
	}
	return &cfg, nil
}

// Save writes cfg to path atomically: the content is written to a temp file
// in the same directory and renamed into place, so a reader never observes
// a partially written settings file (generalizes the teacher's inline
// write-temp-then-rename idiom in internal/backup/encryption.go into a
// reusable helper for both settings and metadata persistence).
func Save(path string, cfg *GlobalConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

// Fingerprint returns a stable hash of cfg's normalized JSON encoding, used
// by the hot-reload loop to detect content changes and to suppress repeated
// rejection logs for the same bad candidate (spec.md §4.8).
func Fingerprint(cfg *GlobalConfig) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal settings for fingerprint: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// PrettyPrint renders cfg as indented JSON for the "[CONFIG] snapshot" log
// line emitted after a successful hot reload (spec.md §4.8).
func PrettyPrint(cfg *GlobalConfig) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
