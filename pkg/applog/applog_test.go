// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package applog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitCreaArchivoDeLog(t *testing.T) {
	estado := t.TempDir()
	t.Setenv("XDG_STATE_HOME", estado)

	path, err := Init("firmadoc")
	if err != nil {
		t.Fatalf("fallo al inicializar el log: %v", err)
	}
	if !strings.HasPrefix(path, filepath.Join(estado, "firmadoc", "logs")) {
		t.Fatalf("el log debe vivir bajo XDG_STATE_HOME: %s", path)
	}
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "firmadoc-") || !strings.HasSuffix(base, ".log") {
		t.Fatalf("nombre de archivo inesperado: %s", base)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("el archivo de log debe existir: %v", err)
	}
	if Path() != path {
		t.Fatalf("Path() debe devolver la ruta activa: %q != %q", Path(), path)
	}
}

func TestSanitizeName(t *testing.T) {
	casos := map[string]string{
		"firmadoc":     "firmadoc",
		"  FirmaDoc  ": "firmadoc",
		"mi app 1.0":   "mi-app-1-0",
		"":             "firmadoc",
		"---":          "",
	}
	for entrada, esperado := range casos {
		if got := sanitizeName(entrada); got != esperado {
			t.Fatalf("sanitizeName(%q) = %q, se esperaba %q", entrada, got, esperado)
		}
	}
}
