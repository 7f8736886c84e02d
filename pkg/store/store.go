// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package store

import (
	"context"

	"firmadoc/pkg/model"
)

// CertificateStore persiste certificados. La unicidad "un activo por
// (titular, tipo)" y "serie unica por titular" se garantiza en el
// almacenamiento, no con check-then-act en la aplicacion.
type CertificateStore interface {
	// Insert guarda un certificado nuevo. Devuelve ErrConflict si viola
	// alguna restriccion de unicidad.
	Insert(ctx context.Context, cert *model.Certificate) error

	// FindActive devuelve el certificado activo del titular para un tipo,
	// o ErrNotFound.
	FindActive(ctx context.Context, ownerID int64, kind model.CertificateKind) (*model.Certificate, error)

	// FindByID devuelve un certificado por su id, o ErrNotFound.
	FindByID(ctx context.Context, id string) (*model.Certificate, error)

	// FindBySerial devuelve el certificado del titular con ese numero de
	// serie, o ErrNotFound.
	FindBySerial(ctx context.Context, ownerID int64, serial string) (*model.Certificate, error)

	// UpdateStatus aplica una transicion de estado. Los certificados nunca
	// se borran fisicamente mientras existan firmas que los referencien.
	UpdateStatus(ctx context.Context, id string, status model.CertificateStatus) error
}

// DocumentStore persiste documentos de expediente.
type DocumentStore interface {
	Insert(ctx context.Context, doc *model.ExpedienteDocument) error

	// ListByExpediente devuelve los documentos de un expediente ordenados
	// por sequence_order (desempate por fecha de insercion).
	ListByExpediente(ctx context.Context, expedienteID string) ([]model.ExpedienteDocument, error)

	FindByID(ctx context.Context, id string) (*model.ExpedienteDocument, error)

	// MarkSigned aplica la transicion pending->signed de forma condicional.
	// Si otro llamante ya la aplico devuelve ErrConflict; el documento nunca
	// queda doblemente firmado.
	MarkSigned(ctx context.Context, id string, signedPath string) error
}

// SignatureStore persiste registros de firma. Solo insercion: un registro es
// inmutable una vez creado.
type SignatureStore interface {
	Insert(ctx context.Context, rec *model.SignatureRecord) error
	ListByDocument(ctx context.Context, documentID string) ([]model.SignatureRecord, error)
}

// ByteStorage guarda y recupera flujos de bytes por handle opaco.
type ByteStorage interface {
	Save(ctx context.Context, category string, data []byte) (handle string, err error)
	Read(ctx context.Context, handle string) ([]byte, error)
	Remove(ctx context.Context, handle string) error
}
