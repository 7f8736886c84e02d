// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package signer

import (
	"context"
	"fmt"
	"log"

	"firmadoc/pkg/applog"
	"firmadoc/pkg/model"
	"firmadoc/pkg/store"
	"firmadoc/pkg/visual"
)

// DocumentSigner orquesta la firma de un documento de expediente: registro
// criptografico sobre los bytes ORIGINALES primero, copia anotada despues.
// La capa visual es una anotacion legible, no la portadora de la garantia
// criptografica.
type DocumentSigner struct {
	engine   *Engine
	docs     store.DocumentStore
	firmas   store.SignatureStore
	deposito store.ByteStorage
	renderer *visual.Renderer
}

// NewDocumentSigner wires the signing engine to its stores and renderer.
func NewDocumentSigner(engine *Engine, docs store.DocumentStore, firmas store.SignatureStore, deposito store.ByteStorage, renderer *visual.Renderer) *DocumentSigner {
	return &DocumentSigner{
		engine:   engine,
		docs:     docs,
		firmas:   firmas,
		deposito: deposito,
		renderer: renderer,
	}
}

// FirmarOpciones controls the visual annotation of a signed document.
type FirmarOpciones struct {
	ImagenManuscrita []byte // PNG/JPEG opcional
}

// FirmarDocumento signs one expediente document end to end. Exactly one of N
// concurrent callers wins the pending->signed transition (conditional update
// at the storage boundary); the rest get ErrConcurrentSigningConflict and no
// record is persisted for them.
func (s *DocumentSigner) FirmarDocumento(ctx context.Context, documentID string, cert *model.Certificate, opts FirmarOpciones) (*model.SignatureRecord, error) {
	doc, err := s.docs.FindByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.SigningState != model.SigningPending {
		return nil, fmt.Errorf("%w: el documento %s ya esta firmado",
			model.ErrConcurrentSigningConflict, applog.MaskID(documentID))
	}

	original, err := s.deposito.Read(ctx, doc.OriginalPath)
	if err != nil {
		return nil, fmt.Errorf("no se pudo leer el documento original: %w", err)
	}

	// 1. Firma criptografica sobre los bytes originales exactos.
	rec, err := s.engine.Sign(ctx, original, cert)
	if err != nil {
		return nil, err
	}
	rec.DocumentID = doc.ID

	// 2. Copia anotada con el bloque visual (los bytes originales no se tocan).
	firmante := nombreFirmante(cert)
	anotado, err := s.renderer.RenderSignatureBlock(original, visual.BlockMeta{
		Firmante:         firmante,
		Fecha:            rec.CreatedAt,
		HashExtracto:     rec.DocumentHash[:16],
		Verificacion:     "Verificable en la sede electronica con la huella completa",
		ImagenManuscrita: opts.ImagenManuscrita,
	})
	if err != nil {
		return nil, err
	}

	// 3. Firma PAdES embebida en el artefacto anotado, para que el PDF
	// visible lleve tambien su diccionario de firma. Si falla, el artefacto
	// anotado sigue siendo valido: la garantia la da el registro.
	sellado, err := embedPadesSignature(anotado, cert, firmante)
	if err != nil {
		log.Printf("[Signer] WARNING: firma PAdES embebida fallida doc=%s: %v",
			applog.MaskID(doc.ID), err)
		sellado = anotado
	}

	handle, err := s.deposito.Save(ctx, "firmados", sellado)
	if err != nil {
		return nil, fmt.Errorf("no se pudo guardar el artefacto firmado: %w", err)
	}

	// 4. Transicion pending->signed: aqui se decide el ganador.
	if err := s.docs.MarkSigned(ctx, doc.ID, handle); err != nil {
		_ = s.deposito.Remove(ctx, handle)
		if store.IsConflict(err) {
			log.Printf("[Signer] firma concurrente perdida doc=%s", applog.MaskID(doc.ID))
			return nil, fmt.Errorf("%w: documento %s", model.ErrConcurrentSigningConflict,
				applog.MaskID(doc.ID))
		}
		return nil, err
	}

	// 5. Solo el ganador persiste su registro de firma.
	if err := s.firmas.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("no se pudo persistir el registro de firma: %w", err)
	}

	log.Printf("[Signer] documento firmado doc=%s cert=%s artefacto=%s",
		applog.MaskID(doc.ID), applog.MaskID(cert.SerialNumber), handle)
	return rec, nil
}

func nombreFirmante(cert *model.Certificate) string {
	leaf, err := cert.X509()
	if err != nil {
		return ""
	}
	return leaf.Subject.CommonName
}
