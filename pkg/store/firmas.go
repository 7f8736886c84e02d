// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package store

import (
	"context"
	"fmt"
	"time"

	"firmadoc/pkg/model"
)

// SQLSignatureStore implementa SignatureStore sobre SQLite. Solo insercion.
type SQLSignatureStore struct {
	db *DB
}

// NewSignatureStore creates a signature-record store over an open database.
func NewSignatureStore(db *DB) *SQLSignatureStore {
	return &SQLSignatureStore{db: db}
}

func (s *SQLSignatureStore) Insert(ctx context.Context, rec *model.SignatureRecord) error {
	if len(rec.DocumentHash) != 64 {
		return fmt.Errorf("%w: hash de documento debe tener 64 caracteres hex", ErrInvalidInput)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO firmas (id, document_id, document_hash, signature,
			algorithm, certificate_id, verified, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.DocumentID,
		rec.DocumentHash,
		rec.Signature,
		rec.Algorithm,
		rec.CertificateID,
		rec.Verified,
		rec.CreatedAt.UTC(),
	)
	if err != nil {
		return mapSQLiteErr(err)
	}
	return nil
}

func (s *SQLSignatureStore) ListByDocument(ctx context.Context, documentID string) ([]model.SignatureRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, document_hash, signature, algorithm,
			certificate_id, verified, created_at
		FROM firmas
		WHERE document_id = ?
		ORDER BY created_at ASC`,
		documentID)
	if err != nil {
		return nil, fmt.Errorf("fallo al listar firmas: %w", err)
	}
	defer rows.Close()

	var recs []model.SignatureRecord
	for rows.Next() {
		var r model.SignatureRecord
		if err := rows.Scan(
			&r.ID,
			&r.DocumentID,
			&r.DocumentHash,
			&r.Signature,
			&r.Algorithm,
			&r.CertificateID,
			&r.Verified,
			&r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("fallo al leer firma: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
