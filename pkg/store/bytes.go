// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileByteStorage implementa ByteStorage sobre un directorio local. Los
// handles son rutas relativas al directorio base y se tratan como opacos
// fuera de este paquete.
type FileByteStorage struct {
	base string
}

// NewFileByteStorage creates a byte storage rooted at dir.
func NewFileByteStorage(dir string) (*FileByteStorage, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: directorio de deposito vacio", ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("no se pudo crear el deposito de bytes: %w", err)
	}
	return &FileByteStorage{base: dir}, nil
}

func (f *FileByteStorage) Save(ctx context.Context, category string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	category = sanitizeCategory(category)
	dir := filepath.Join(f.base, category)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("no se pudo crear el directorio %s: %w", category, err)
	}
	handle := filepath.Join(category, uuid.NewString()+".bin")
	if err := os.WriteFile(filepath.Join(f.base, handle), data, 0600); err != nil {
		return "", fmt.Errorf("no se pudo escribir el flujo de bytes: %w", err)
	}
	return handle, nil
}

func (f *FileByteStorage) Read(ctx context.Context, handle string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := f.resolve(handle)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("no se pudo leer el flujo de bytes: %w", err)
	}
	return data, nil
}

func (f *FileByteStorage) Remove(ctx context.Context, handle string) error {
	path, err := f.resolve(handle)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("no se pudo eliminar el flujo de bytes: %w", err)
	}
	return nil
}

// resolve rejects handles escaping the base directory.
func (f *FileByteStorage) resolve(handle string) (string, error) {
	if strings.TrimSpace(handle) == "" {
		return "", fmt.Errorf("%w: handle vacio", ErrInvalidInput)
	}
	clean := filepath.Clean(handle)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("%w: handle fuera del deposito", ErrInvalidInput)
	}
	return filepath.Join(f.base, clean), nil
}

func sanitizeCategory(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" {
		return "misc"
	}
	var b strings.Builder
	for _, r := range v {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "misc"
	}
	return out
}
