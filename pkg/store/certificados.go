// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"firmadoc/pkg/model"
)

// SQLCertificateStore implementa CertificateStore sobre SQLite.
type SQLCertificateStore struct {
	db *DB
}

// NewCertificateStore creates a certificate store over an open database.
func NewCertificateStore(db *DB) *SQLCertificateStore {
	return &SQLCertificateStore{db: db}
}

const certificadoColumns = `id, owner_id, kind, status, serial_number, issuer,
	trusted, cert_pem, key_pem, not_before, not_after, created_at`

func (s *SQLCertificateStore) Insert(ctx context.Context, cert *model.Certificate) error {
	if cert.ID == "" || cert.SerialNumber == "" {
		return fmt.Errorf("%w: certificado sin id o numero de serie", ErrInvalidInput)
	}
	if cert.CreatedAt.IsZero() {
		cert.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO certificados (`+certificadoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cert.ID,
		cert.OwnerID,
		string(cert.Kind),
		string(cert.Status),
		cert.SerialNumber,
		cert.Issuer,
		cert.Trusted,
		cert.CertPEM,
		cert.KeyPEM,
		cert.NotBefore.UTC(),
		cert.NotAfter.UTC(),
		cert.CreatedAt.UTC(),
	)
	if err != nil {
		return mapSQLiteErr(err)
	}
	return nil
}

func (s *SQLCertificateStore) FindActive(ctx context.Context, ownerID int64, kind model.CertificateKind) (*model.Certificate, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+certificadoColumns+`
		FROM certificados
		WHERE owner_id = ? AND kind = ? AND status = 'active'`,
		ownerID, string(kind))
	return scanCertificado(row)
}

func (s *SQLCertificateStore) FindByID(ctx context.Context, id string) (*model.Certificate, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+certificadoColumns+`
		FROM certificados
		WHERE id = ?`, id)
	return scanCertificado(row)
}

func (s *SQLCertificateStore) FindBySerial(ctx context.Context, ownerID int64, serial string) (*model.Certificate, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+certificadoColumns+`
		FROM certificados
		WHERE owner_id = ? AND serial_number = ?`,
		ownerID, serial)
	return scanCertificado(row)
}

func (s *SQLCertificateStore) UpdateStatus(ctx context.Context, id string, status model.CertificateStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE certificados SET status = ? WHERE id = ?`,
		string(status), id)
	if err != nil {
		return mapSQLiteErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCertificado(row *sql.Row) (*model.Certificate, error) {
	var c model.Certificate
	var kind, status string
	err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&kind,
		&status,
		&c.SerialNumber,
		&c.Issuer,
		&c.Trusted,
		&c.CertPEM,
		&c.KeyPEM,
		&c.NotBefore,
		&c.NotAfter,
		&c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fallo al leer certificado: %w", err)
	}
	c.Kind = model.CertificateKind(kind)
	c.Status = model.CertificateStatus(status)
	return &c, nil
}
