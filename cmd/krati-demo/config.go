package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"

	"github.com/krati-go/krati/pkg/krati"
)

// fileConfig is the JSONC shape accepted via --config. CLI flags
// override anything set here; see mergeConfig.
type fileConfig struct {
	Directory    string `json:"directory,omitempty"`
	SubArrayBits uint   `json:"subArrayBits,omitempty"`
	MaxEntries   int    `json:"maxEntries,omitempty"`
	MaxEntrySize int    `json:"maxEntrySize,omitempty"`
	ElementWidth uint32 `json:"elementWidth,omitempty"`
}

// loadConfigFile reads and parses a JSONC config file. A file that
// cannot be read is an error; callers only invoke this when --config
// was set.
func loadConfigFile(path string) (fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read config: %w", err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg fileConfig
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return cfg, nil
}

// mergeConfig layers file configuration under explicit flag values.
// flagsSet reports which flags the user passed on the command line —
// those always win over the file.
func mergeConfig(opts krati.Options, fc fileConfig, flagsSet map[string]bool) krati.Options {
	if fc.Directory != "" && !flagsSet["dir"] {
		opts.Directory = fc.Directory
	}
	if fc.SubArrayBits != 0 && !flagsSet["sub-array-bits"] {
		opts.SubArrayBits = fc.SubArrayBits
	}
	if fc.MaxEntries != 0 && !flagsSet["max-entries"] {
		opts.MaxEntries = fc.MaxEntries
	}
	if fc.MaxEntrySize != 0 && !flagsSet["max-entry-size"] {
		opts.MaxEntrySize = fc.MaxEntrySize
	}
	if fc.ElementWidth != 0 && !flagsSet["element-width"] {
		opts.ElementWidth = krati.Width(fc.ElementWidth)
	}
	return opts
}
