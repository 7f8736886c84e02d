// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// DB wraps a SQLite database connection holding the engine's tables.
type DB struct {
	*sql.DB
}

// Open opens (and initializes) the SQLite database at path.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=ON", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("no se pudo abrir la base de datos: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("no se pudo conectar a la base de datos: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	wrapped := &DB{DB: db}
	if err := wrapped.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return wrapped, nil
}

func (db *DB) initSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("fallo al inicializar esquema: %w", err)
		}
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS certificados (
		id            TEXT PRIMARY KEY,
		owner_id      INTEGER NOT NULL,
		kind          TEXT NOT NULL,
		status        TEXT NOT NULL,
		serial_number TEXT NOT NULL,
		issuer        TEXT NOT NULL DEFAULT '',
		trusted       INTEGER NOT NULL DEFAULT 0,
		cert_pem      BLOB NOT NULL,
		key_pem       BLOB NOT NULL,
		not_before    TIMESTAMP NOT NULL,
		not_after     TIMESTAMP NOT NULL,
		created_at    TIMESTAMP NOT NULL
	)`,
	// Un solo certificado activo por (titular, tipo); la carrera
	// check-then-create se resuelve aqui, no en la aplicacion.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_certificados_activo
		ON certificados(owner_id, kind) WHERE status = 'active'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_certificados_serial
		ON certificados(owner_id, serial_number)`,

	`CREATE TABLE IF NOT EXISTS documentos (
		id             TEXT PRIMARY KEY,
		expediente_id  TEXT NOT NULL,
		sequence_order INTEGER NOT NULL,
		foja_inicial   INTEGER NOT NULL,
		foja_final     INTEGER NOT NULL,
		page_count     INTEGER NOT NULL,
		original_path  TEXT NOT NULL,
		signed_path    TEXT NOT NULL DEFAULT '',
		signing_state  TEXT NOT NULL DEFAULT 'pending',
		created_at     TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documentos_expediente
		ON documentos(expediente_id, sequence_order)`,

	`CREATE TABLE IF NOT EXISTS firmas (
		id             TEXT PRIMARY KEY,
		document_id    TEXT NOT NULL REFERENCES documentos(id),
		document_hash  TEXT NOT NULL CHECK (length(document_hash) = 64),
		signature      TEXT NOT NULL,
		algorithm      TEXT NOT NULL,
		certificate_id TEXT NOT NULL REFERENCES certificados(id),
		verified       INTEGER NOT NULL DEFAULT 0,
		created_at     TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_firmas_documento
		ON firmas(document_id, created_at)`,
}

// mapSQLiteErr translates driver constraint violations into store errors so
// callers can branch with errors.Is.
func mapSQLiteErr(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}
