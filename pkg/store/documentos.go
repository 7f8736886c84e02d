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

// SQLDocumentStore implementa DocumentStore sobre SQLite.
type SQLDocumentStore struct {
	db *DB
}

// NewDocumentStore creates a document store over an open database.
func NewDocumentStore(db *DB) *SQLDocumentStore {
	return &SQLDocumentStore{db: db}
}

const documentoColumns = `id, expediente_id, sequence_order, foja_inicial,
	foja_final, page_count, original_path, signed_path, signing_state, created_at`

func (s *SQLDocumentStore) Insert(ctx context.Context, doc *model.ExpedienteDocument) error {
	if doc.ID == "" || doc.ExpedienteID == "" {
		return fmt.Errorf("%w: documento sin id o expediente", ErrInvalidInput)
	}
	if doc.SigningState == "" {
		doc.SigningState = model.SigningPending
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documentos (`+documentoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID,
		doc.ExpedienteID,
		doc.SequenceOrder,
		doc.FojaInicial,
		doc.FojaFinal,
		doc.PageCount,
		doc.OriginalPath,
		doc.SignedPath,
		string(doc.SigningState),
		doc.CreatedAt.UTC(),
	)
	if err != nil {
		return mapSQLiteErr(err)
	}
	return nil
}

// ListByExpediente returns the documents of one expediente in consolidation
// order. The read happens in a single statement, so the caller sees a
// consistent snapshot even while other documents are being added.
func (s *SQLDocumentStore) ListByExpediente(ctx context.Context, expedienteID string) ([]model.ExpedienteDocument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentoColumns+`
		FROM documentos
		WHERE expediente_id = ?
		ORDER BY sequence_order ASC, created_at ASC`,
		expedienteID)
	if err != nil {
		return nil, fmt.Errorf("fallo al listar documentos: %w", err)
	}
	defer rows.Close()

	var docs []model.ExpedienteDocument
	for rows.Next() {
		var d model.ExpedienteDocument
		var state string
		if err := rows.Scan(
			&d.ID,
			&d.ExpedienteID,
			&d.SequenceOrder,
			&d.FojaInicial,
			&d.FojaFinal,
			&d.PageCount,
			&d.OriginalPath,
			&d.SignedPath,
			&state,
			&d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("fallo al leer documento: %w", err)
		}
		d.SigningState = model.SigningState(state)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *SQLDocumentStore) FindByID(ctx context.Context, id string) (*model.ExpedienteDocument, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+documentoColumns+`
		FROM documentos
		WHERE id = ?`, id)

	var d model.ExpedienteDocument
	var state string
	err := row.Scan(
		&d.ID,
		&d.ExpedienteID,
		&d.SequenceOrder,
		&d.FojaInicial,
		&d.FojaFinal,
		&d.PageCount,
		&d.OriginalPath,
		&d.SignedPath,
		&state,
		&d.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fallo al leer documento: %w", err)
	}
	d.SigningState = model.SigningState(state)
	return &d, nil
}

// MarkSigned aplica pending->signed con un UPDATE condicional: exactamente un
// llamante gana; el resto recibe ErrConflict.
func (s *SQLDocumentStore) MarkSigned(ctx context.Context, id string, signedPath string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documentos
		SET signing_state = 'signed', signed_path = ?
		WHERE id = ? AND signing_state = 'pending'`,
		signedPath, id)
	if err != nil {
		return mapSQLiteErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the document does not exist or someone else won the race.
		if _, ferr := s.FindByID(ctx, id); ferr != nil {
			return ferr
		}
		return ErrConflict
	}
	return nil
}
