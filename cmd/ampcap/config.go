package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/go-homedir"

	"ampcap/internal/capture"
)

const configName = "ampcap.toml"

// config mirrors ampcap.toml. Flags override every value.
type config struct {
	Path    string        `toml:"-"`
	Capture captureConfig `toml:"capture"`
	Output  outputConfig  `toml:"output"`
	Trace   traceConfig   `toml:"trace"`
}

type captureConfig struct {
	Space    uint32   `toml:"space"`
	Dispatch []uint32 `toml:"dispatch"`
}

type outputConfig struct {
	Dir string `toml:"dir"`
}

type traceConfig struct {
	Level string `toml:"level"`
}

func defaultConfig() config {
	return config{Capture: captureConfig{Dispatch: []uint32{1, 1, 1}}}
}

func findConfig(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, configName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// loadConfig reads path, or the nearest ampcap.toml when path is empty. A
// missing file yields the defaults.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		found, ok, err := findConfig(".")
		if err != nil || !ok {
			return cfg, err
		}
		path = found
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return cfg, err
	}
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return config{}, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	if meta.IsDefined("capture", "dispatch") && len(cfg.Capture.Dispatch) != 3 {
		return config{}, fmt.Errorf("%s: [capture].dispatch needs 3 values, got %d", path, len(cfg.Capture.Dispatch))
	}
	if cfg.Output.Dir != "" {
		dir, err := homedir.Expand(cfg.Output.Dir)
		if err != nil {
			return config{}, fmt.Errorf("%s: [output].dir: %w", path, err)
		}
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(filepath.Dir(path), dir)
		}
		cfg.Output.Dir = dir
	}
	cfg.Path = path
	return cfg, nil
}

func (c config) dispatch() capture.Dispatch {
	var d capture.Dispatch
	copy(d[:], c.Capture.Dispatch)
	return d
}
