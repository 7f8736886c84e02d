// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package applog

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	mu          sync.Mutex
	currentPath string
)

// Init configures process logging to a persistent file + stderr. The log
// directory resolves through XDG_STATE_HOME (or ~/.local/state); when that is
// not writable the temp directory is the last resort.
func Init(appName string) (string, error) {
	mu.Lock()
	defer mu.Unlock()

	logDir := resolveLogDir()
	fileName := fmt.Sprintf("%s-%s.log", sanitizeName(appName), time.Now().Format("2006-01-02"))
	path := filepath.Join(logDir, fileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		logDir = fallbackLogDir()
		if mkErr := os.MkdirAll(logDir, 0755); mkErr != nil {
			return "", err
		}
		path = filepath.Join(logDir, fileName)
		f, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return "", err
		}
	}

	log.SetOutput(io.MultiWriter(os.Stderr, f))
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.LUTC | log.Lshortfile)
	currentPath = path

	pruneLogs(logDir, logRetentionDays(), logMaxTotalBytes())
	return path, nil
}

func Path() string {
	mu.Lock()
	defer mu.Unlock()
	return currentPath
}

func resolveLogDir() string {
	base := strings.TrimSpace(os.Getenv("XDG_STATE_HOME"))
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fallbackLogDir()
		}
		base = filepath.Join(home, ".local", "state")
	}
	dir := filepath.Join(base, "firmadoc", "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fallbackLogDir()
	}
	return dir
}

func fallbackLogDir() string {
	return filepath.Join(os.TempDir(), "firmadoc", "logs")
}

func sanitizeName(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" {
		return "firmadoc"
	}
	var b strings.Builder
	for _, r := range v {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

// pruneLogs borra, de viejo a nuevo, los .log que superan la retencion y los
// que hagan falta para que el total no exceda maxBytes.
func pruneLogs(dir string, keepDays int, maxBytes int64) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	type fi struct {
		name string
		mod  time.Time
		size int64
	}
	var files []fi
	var total int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fi{name: e.Name(), mod: info.ModTime(), size: info.Size()})
		total += info.Size()
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod.Before(files[j].mod) })

	cutoff := time.Now().AddDate(0, 0, -keepDays)
	for _, f := range files {
		caducado := f.mod.Before(cutoff)
		excedido := maxBytes > 0 && total > maxBytes
		if !caducado && !excedido {
			continue
		}
		if os.Remove(filepath.Join(dir, f.name)) == nil {
			total -= f.size
		}
	}
}

func logRetentionDays() int {
	const def = 14
	raw := strings.TrimSpace(os.Getenv("FIRMADOC_LOG_RETENTION_DAYS"))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	if n > 365 {
		return 365
	}
	return n
}

func logMaxTotalBytes() int64 {
	const defMB int64 = 50
	raw := strings.TrimSpace(os.Getenv("FIRMADOC_LOG_MAX_TOTAL_MB"))
	if raw == "" {
		return defMB * 1024 * 1024
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 1 {
		return defMB * 1024 * 1024
	}
	if n > 2048 {
		n = 2048
	}
	return n * 1024 * 1024
}
