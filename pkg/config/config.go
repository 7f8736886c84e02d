// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package config

import (
	"fmt"
	"time"
)

// Config holds all configuration for the signing and consolidation engine.
type Config struct {
	Database      DatabaseConfig      `yaml:"database"`
	Storage       StorageConfig       `yaml:"storage"`
	Firma         FirmaConfig         `yaml:"firma"`
	Confianza     ConfianzaConfig     `yaml:"confianza"`
	Revocacion    RevocacionConfig    `yaml:"revocacion"`
	Consolidacion ConsolidacionConfig `yaml:"consolidacion"`
}

// DatabaseConfig contains the SQLite database location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// StorageConfig contains the byte-storage root directory.
type StorageConfig struct {
	Dir string `yaml:"dir"`
}

// FirmaConfig contains certificate issuance policy.
type FirmaConfig struct {
	DiasValidez          int `yaml:"dias_validez"`
	UmbralRenovacionDias int `yaml:"umbral_renovacion_dias"`
}

// ConfianzaConfig is the issuer allow-list for imported certificates.
type ConfianzaConfig struct {
	Emisores []string `yaml:"emisores"`
}

// RevocacionConfig tunes the OCSP client and its result cache.
type RevocacionConfig struct {
	TimeoutSec int `yaml:"timeout_sec"`
	CacheMin   int `yaml:"cache_min"`
}

// ConsolidacionConfig tunes the merge strategy chain.
type ConsolidacionConfig struct {
	TimeoutSec int `yaml:"timeout_sec"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Database:      DatabaseConfig{Path: "firmadoc.db"},
		Storage:       StorageConfig{Dir: "deposito"},
		Firma:         FirmaConfig{DiasValidez: 365, UmbralRenovacionDias: 30},
		Revocacion:    RevocacionConfig{TimeoutSec: 10, CacheMin: 60},
		Consolidacion: ConsolidacionConfig{TimeoutSec: 120},
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path es obligatorio")
	}
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir es obligatorio")
	}
	if c.Firma.DiasValidez < 1 {
		return fmt.Errorf("firma.dias_validez debe ser >= 1")
	}
	if c.Firma.UmbralRenovacionDias < 0 {
		return fmt.Errorf("firma.umbral_renovacion_dias no puede ser negativo")
	}
	if c.Consolidacion.TimeoutSec < 1 {
		return fmt.Errorf("consolidacion.timeout_sec debe ser >= 1")
	}
	if c.Revocacion.TimeoutSec < 1 {
		return fmt.Errorf("revocacion.timeout_sec debe ser >= 1")
	}
	return nil
}

// MergeTimeout returns the per-strategy timeout for consolidation.
func (c *Config) MergeTimeout() time.Duration {
	return time.Duration(c.Consolidacion.TimeoutSec) * time.Second
}

// OCSPTimeout returns the timeout for a revocation lookup.
func (c *Config) OCSPTimeout() time.Duration {
	return time.Duration(c.Revocacion.TimeoutSec) * time.Second
}

// RevocationCacheTTL returns how long a definitive revocation answer is reused.
func (c *Config) RevocationCacheTTL() time.Duration {
	return time.Duration(c.Revocacion.CacheMin) * time.Minute
}
