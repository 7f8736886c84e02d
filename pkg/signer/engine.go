// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package signer

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"firmadoc/pkg/applog"
	"firmadoc/pkg/certmanager"
	"firmadoc/pkg/model"
)

// AlgorithmRSASHA256 es el identificador de algoritmo de los registros de firma.
const AlgorithmRSASHA256 = "RSA-SHA256"

// Engine firma y verifica bytes de documento. La validez del certificado se
// recalcula en cada llamada; nunca se confia en un valor cacheado antes en la
// peticion.
type Engine struct {
	manager *certmanager.Manager
	now     func() time.Time
}

// NewEngine creates a signing engine backed by the certificate manager.
func NewEngine(manager *certmanager.Manager) *Engine {
	return &Engine{manager: manager, now: time.Now}
}

// Sign computes SHA-256 over the exact input bytes and signs the digest with
// the certificate's private key (RSA PKCS#1 v1.5). The input buffer is never
// mutated nor retained.
func (e *Engine) Sign(ctx context.Context, data []byte, cert *model.Certificate) (*model.SignatureRecord, error) {
	now := e.now()

	switch {
	case cert == nil:
		return nil, fmt.Errorf("%w: certificado nulo", model.ErrCertificateUnusable)
	case cert.Status == model.StatusRevoked:
		return nil, model.ErrCertificateRevoked
	case now.After(cert.NotAfter) || cert.Status == model.StatusExpired:
		return nil, fmt.Errorf("%w: valido hasta %s", model.ErrCertificateExpired,
			cert.NotAfter.Format(time.RFC3339))
	case now.Before(cert.NotBefore):
		return nil, fmt.Errorf("%w: aun no vigente", model.ErrCertificateUnusable)
	case cert.Status != model.StatusActive:
		return nil, fmt.Errorf("%w: estado %s", model.ErrCertificateUnusable, cert.Status)
	}

	rev := e.manager.CheckRevocationStatus(ctx, cert)
	if rev.Revoked {
		return nil, fmt.Errorf("%w: %s", model.ErrCertificateRevoked, rev.Reason)
	}
	if rev.Unknown {
		// Estado de revocacion desconocido: se rechaza, nunca se asume bueno.
		return nil, fmt.Errorf("%w: estado de revocacion desconocido (%s)",
			model.ErrCertificateUnusable, rev.Reason)
	}

	digest := sha256.Sum256(data)

	signer, err := cert.Signer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrCertificateUnusable, err)
	}
	rsaKey, ok := signer.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: la clave privada no es RSA", model.ErrCertificateUnusable)
	}

	sig, err := rsa.SignPKCS1v15(rand.Reader, rsaKey, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("fallo al firmar digest: %v", err)
	}

	rec := &model.SignatureRecord{
		ID:            uuid.NewString(),
		DocumentHash:  hex.EncodeToString(digest[:]),
		Signature:     hex.EncodeToString(sig),
		Algorithm:     AlgorithmRSASHA256,
		CertificateID: cert.ID,
		CreatedAt:     now,
	}

	// Autocomprobacion inmediata contra la clave publica del certificado.
	if ok, verr := e.Verify(data, sig, &rsaKey.PublicKey); verr == nil && ok {
		rec.Verified = true
	}

	log.Printf("[Signer] firma generada cert=%s hash=%s %s",
		applog.MaskID(cert.SerialNumber), rec.DocumentHash[:16], applog.BytesMeta("firma", sig))
	return rec, nil
}

// Verify recomputes the document hash and checks the signature. A mismatch
// returns (false, nil); only structurally invalid input produces an error.
func (e *Engine) Verify(data []byte, signature []byte, publicKey crypto.PublicKey) (bool, error) {
	if publicKey == nil {
		return false, fmt.Errorf("clave publica nula")
	}
	rsaPub, ok := publicKey.(*rsa.PublicKey)
	if !ok {
		return false, fmt.Errorf("clave publica no soportada: %T", publicKey)
	}
	if rsaPub.N == nil || rsaPub.N.Sign() <= 0 {
		return false, fmt.Errorf("clave publica RSA malformada")
	}
	if len(signature) == 0 {
		return false, fmt.Errorf("firma vacia")
	}

	digest := sha256.Sum256(data)
	if err := rsa.VerifyPKCS1v15(rsaPub, crypto.SHA256, digest[:], signature); err != nil {
		return false, nil
	}
	return true, nil
}
