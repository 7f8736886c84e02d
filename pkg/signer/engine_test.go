// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package signer

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"

	"firmadoc/pkg/certmanager"
	"firmadoc/pkg/model"
)

// certificadoFirma genera un certificado autofirmado de prueba con su clave.
func certificadoFirma(t *testing.T, status model.CertificateStatus, notBefore, notAfter time.Time) *model.Certificate {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("fallo al generar clave: %v", err)
	}
	tpl := &x509.Certificate{
		SerialNumber: big.NewInt(42),
		Subject:      pkix.Name{CommonName: "Firmante Prueba"},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tpl, tpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("fallo al autofirmar: %v", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("fallo al serializar clave: %v", err)
	}
	return &model.Certificate{
		ID:           uuid.NewString(),
		OwnerID:      7,
		Kind:         model.KindInternal,
		Status:       status,
		SerialNumber: "2a",
		Issuer:       "Firmante Prueba",
		Trusted:      true,
		CertPEM:      pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		KeyPEM:       pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}),
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		CreatedAt:    time.Now(),
	}
}

func motorPrueba() *Engine {
	manager := certmanager.New(nil, certmanager.NewRevocationChecker(time.Second, time.Minute), 365, 30, nil)
	return NewEngine(manager)
}

func TestSignYVerify(t *testing.T) {
	engine := motorPrueba()
	cert := certificadoFirma(t, model.StatusActive,
		time.Now().Add(-time.Hour), time.Now().AddDate(1, 0, 0))
	datos := []byte("contenido del documento administrativo")

	rec, err := engine.Sign(context.Background(), datos, cert)
	if err != nil {
		t.Fatalf("fallo al firmar: %v", err)
	}
	if rec.Algorithm != AlgorithmRSASHA256 {
		t.Fatalf("algoritmo inesperado: %s", rec.Algorithm)
	}
	if len(rec.DocumentHash) != 64 {
		t.Fatalf("el hash debe ser SHA-256 hex de 64 caracteres: %d", len(rec.DocumentHash))
	}
	if !rec.Verified {
		t.Fatalf("la autocomprobacion de la firma debia pasar")
	}

	leaf, err := cert.X509()
	if err != nil {
		t.Fatal(err)
	}
	sig, err := hex.DecodeString(rec.Signature)
	if err != nil {
		t.Fatalf("la firma no es hex: %v", err)
	}
	ok, err := engine.Verify(datos, sig, leaf.PublicKey)
	if err != nil {
		t.Fatalf("fallo al verificar: %v", err)
	}
	if !ok {
		t.Fatalf("la firma sobre los mismos bytes debe verificar")
	}
}

func TestVerifyDetectaAlteracion(t *testing.T) {
	engine := motorPrueba()
	cert := certificadoFirma(t, model.StatusActive,
		time.Now().Add(-time.Hour), time.Now().AddDate(1, 0, 0))
	datos := []byte("contenido original")

	rec, err := engine.Sign(context.Background(), datos, cert)
	if err != nil {
		t.Fatal(err)
	}
	sig, _ := hex.DecodeString(rec.Signature)

	alterado := append([]byte{}, datos...)
	alterado[0] ^= 0x01

	leaf, _ := cert.X509()
	ok, err := engine.Verify(alterado, sig, leaf.PublicKey)
	if err != nil {
		t.Fatalf("la discrepancia no es un error estructural: %v", err)
	}
	if ok {
		t.Fatalf("un solo bit alterado debe invalidar la firma")
	}
}

func TestVerifyEntradaInvalida(t *testing.T) {
	engine := motorPrueba()

	if _, err := engine.Verify([]byte("x"), []byte("sig"), nil); err == nil {
		t.Fatalf("la clave nula debe ser un error")
	}
	if _, err := engine.Verify([]byte("x"), []byte("sig"), "no es una clave"); err == nil {
		t.Fatalf("un tipo de clave no soportado debe ser un error")
	}
	if _, err := engine.Verify([]byte("x"), nil, &rsa.PublicKey{N: big.NewInt(65537), E: 65537}); err == nil {
		t.Fatalf("la firma vacia debe ser un error")
	}
}

func TestSignRechazaCertificadoExpirado(t *testing.T) {
	engine := motorPrueba()
	cert := certificadoFirma(t, model.StatusActive,
		time.Now().AddDate(-2, 0, 0), time.Now().AddDate(0, 0, -1))

	_, err := engine.Sign(context.Background(), []byte("datos"), cert)
	if !errors.Is(err, model.ErrCertificateExpired) {
		t.Fatalf("se esperaba ErrCertificateExpired, se obtuvo %v", err)
	}
}

func TestSignRechazaCertificadoRevocado(t *testing.T) {
	engine := motorPrueba()
	cert := certificadoFirma(t, model.StatusRevoked,
		time.Now().Add(-time.Hour), time.Now().AddDate(1, 0, 0))

	_, err := engine.Sign(context.Background(), []byte("datos"), cert)
	if !errors.Is(err, model.ErrCertificateRevoked) {
		t.Fatalf("se esperaba ErrCertificateRevoked, se obtuvo %v", err)
	}
}

func TestSignRechazaCertificadoAunNoVigente(t *testing.T) {
	engine := motorPrueba()
	cert := certificadoFirma(t, model.StatusActive,
		time.Now().AddDate(0, 0, 7), time.Now().AddDate(1, 0, 0))

	_, err := engine.Sign(context.Background(), []byte("datos"), cert)
	if !errors.Is(err, model.ErrCertificateUnusable) {
		t.Fatalf("se esperaba ErrCertificateUnusable, se obtuvo %v", err)
	}
}

func TestSignRechazaCertificadoNulo(t *testing.T) {
	engine := motorPrueba()

	_, err := engine.Sign(context.Background(), []byte("datos"), nil)
	if !errors.Is(err, model.ErrCertificateUnusable) {
		t.Fatalf("se esperaba ErrCertificateUnusable, se obtuvo %v", err)
	}
}
