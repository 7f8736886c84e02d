// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package model

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"
)

// CertificateKind distingue el origen del certificado.
type CertificateKind string

const (
	KindInternal   CertificateKind = "internal"
	KindGovernment CertificateKind = "government"
)

// CertificateStatus es el estado de ciclo de vida de un certificado.
// Transiciones: pending -> active -> expired|revoked. Nunca vuelve a pending.
type CertificateStatus string

const (
	StatusPending CertificateStatus = "pending"
	StatusActive  CertificateStatus = "active"
	StatusExpired CertificateStatus = "expired"
	StatusRevoked CertificateStatus = "revoked"
)

// Certificate representa un certificado de firma con su material de clave.
// KeyPEM (PKCS#8) es sensible: solo lo leen los componentes de firma durante
// una operacion, nunca se retiene fuera de ella.
type Certificate struct {
	ID           string
	OwnerID      int64
	Kind         CertificateKind
	Status       CertificateStatus
	SerialNumber string
	Issuer       string
	Trusted      bool
	CertPEM      []byte
	KeyPEM       []byte
	NotBefore    time.Time
	NotAfter     time.Time
	CreatedAt    time.Time
}

// Vigente recalcula la validez en el momento de uso; el flag de estado
// almacenado nunca se toma como verdad para firmar.
func (c *Certificate) Vigente(now time.Time) bool {
	if c == nil {
		return false
	}
	if c.Status == StatusRevoked || c.Status == StatusExpired || c.Status == StatusPending {
		return false
	}
	if now.Before(c.NotBefore) {
		return false
	}
	return !now.After(c.NotAfter)
}

// DiasParaExpirar devuelve los dias completos hasta NotAfter (negativo si ya expiro).
func (c *Certificate) DiasParaExpirar(now time.Time) int {
	return int(c.NotAfter.Sub(now).Hours() / 24)
}

// X509 parsea el certificado PEM almacenado.
func (c *Certificate) X509() (*x509.Certificate, error) {
	block, _ := pem.Decode(c.CertPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("certificado PEM invalido (id=%s)", c.ID)
	}
	return x509.ParseCertificate(block.Bytes)
}

// Signer parsea la clave privada PKCS#8 almacenada.
func (c *Certificate) Signer() (crypto.Signer, error) {
	block, _ := pem.Decode(c.KeyPEM)
	if block == nil {
		return nil, fmt.Errorf("clave privada PEM invalida (id=%s)", c.ID)
	}
	keyAny, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("clave PKCS#8 invalida: %v", err)
	}
	signer, ok := keyAny.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("la clave privada no implementa crypto.Signer")
	}
	return signer, nil
}

// SignatureRecord es el registro inmutable de una firma criptografica.
// Las correcciones generan un registro nuevo, nunca una actualizacion.
type SignatureRecord struct {
	ID            string
	DocumentID    string
	DocumentHash  string // 64 hex, SHA-256 sobre los bytes originales
	Signature     string // hex
	Algorithm     string // "RSA-SHA256"
	CertificateID string
	CreatedAt     time.Time
	Verified      bool
}

// SigningState es el estado de firma de un documento de expediente.
type SigningState string

const (
	SigningPending SigningState = "pending"
	SigningSigned  SigningState = "signed"
)

// ExpedienteDocument es un documento dentro de un expediente, con su rango de
// fojas asignado. Invariante: FojaFinal = FojaInicial + PageCount - 1.
type ExpedienteDocument struct {
	ID            string
	ExpedienteID  string
	SequenceOrder int
	FojaInicial   int
	FojaFinal     int
	PageCount     int
	OriginalPath  string
	SignedPath    string
	SigningState  SigningState
	CreatedAt     time.Time
}

// RangoFojas es un intervalo cerrado de fojas.
type RangoFojas struct {
	Inicial int
	Final   int
}

// RevocationStatus es el resultado de una consulta de revocacion.
// Unknown=true significa "no usable para firma oficial" (fail closed).
type RevocationStatus struct {
	Revoked   bool
	Unknown   bool
	Reason    string
	CheckedAt time.Time
	NextCheck time.Time
}

// ConsolidatedArtifact es el PDF consolidado de un expediente. Es derivado y
// regenerable: nunca fuente de verdad.
type ConsolidatedArtifact struct {
	ExpedienteID string
	Bytes        []byte
	PageCount    int
	Strategy     string
	GeneratedAt  time.Time
}
