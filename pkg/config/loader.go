// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("no se pudo leer el archivo de configuracion: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("configuracion YAML invalida: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuracion invalida: %w", err)
	}
	return cfg, nil
}

// LoadWithEnv loads configuration and applies environment variable overrides.
// A missing file is not an error: defaults apply.
func LoadWithEnv(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := Load(path)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		}
	}

	if v := os.Getenv("FIRMADOC_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("FIRMADOC_STORAGE_DIR"); v != "" {
		cfg.Storage.Dir = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuracion invalida: %w", err)
	}
	return cfg, nil
}
