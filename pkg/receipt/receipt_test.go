// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package receipt

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/beevik/etree"

	"firmadoc/pkg/model"
)

func certificadoPlataforma(t *testing.T) *model.Certificate {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("fallo al generar clave: %v", err)
	}
	tpl := &x509.Certificate{
		SerialNumber: big.NewInt(7),
		Subject:      pkix.Name{CommonName: "Plataforma de Expedientes"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().AddDate(1, 0, 0),
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
		ID:           "cert-plataforma",
		OwnerID:      1,
		Kind:         model.KindInternal,
		Status:       model.StatusActive,
		SerialNumber: "07",
		Issuer:       "Plataforma de Expedientes",
		Trusted:      true,
		CertPEM:      pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		KeyPEM:       pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}),
		NotBefore:    tpl.NotBefore,
		NotAfter:     tpl.NotAfter,
		CreatedAt:    time.Now(),
	}
}

func constanciaPrueba() Constancia {
	return Constancia{
		ExpedienteID: "exp-2026-000123",
		Documentos: []model.ExpedienteDocument{
			{
				ID: "d1", ExpedienteID: "exp-2026-000123", SequenceOrder: 1,
				FojaInicial: 1, FojaFinal: 3, PageCount: 3,
				SigningState: model.SigningSigned,
			},
			{
				ID: "d2", ExpedienteID: "exp-2026-000123", SequenceOrder: 2,
				FojaInicial: 4, FojaFinal: 4, PageCount: 1,
				SigningState: model.SigningPending,
			},
		},
		Artefacto: &model.ConsolidatedArtifact{
			ExpedienteID: "exp-2026-000123",
			Bytes:        []byte("%PDF-1.4 contenido consolidado"),
			PageCount:    4,
			Strategy:     "pdfunite",
			GeneratedAt:  time.Now(),
		},
	}
}

func TestGenerarConstanciaFirmada(t *testing.T) {
	cert := certificadoPlataforma(t)
	xml, err := NewGenerator().Generar(constanciaPrueba(), cert)
	if err != nil {
		t.Fatalf("fallo al generar constancia: %v", err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xml); err != nil {
		t.Fatalf("la constancia no es XML valido: %v", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "Constancia" {
		t.Fatalf("raiz inesperada")
	}
	if exp := root.FindElement("Expediente"); exp == nil || exp.Text() != "exp-2026-000123" {
		t.Fatalf("falta el identificador de expediente")
	}
	if docs := root.FindElements("Documentos/Documento"); len(docs) != 2 {
		t.Fatalf("se esperaban 2 documentos en la constancia, hay %d", len(docs))
	}
	if h := root.FindElement("Consolidado/HuellaSHA256"); h == nil || len(h.Text()) != 64 {
		t.Fatalf("la huella del consolidado debe ser SHA-256 hex")
	}
	if sig := root.FindElement("Signature"); sig == nil {
		t.Fatalf("la constancia debe llevar firma XML enveloped")
	}
}

func TestVerificarConstanciaValida(t *testing.T) {
	cert := certificadoPlataforma(t)
	xml, err := NewGenerator().Generar(constanciaPrueba(), cert)
	if err != nil {
		t.Fatal(err)
	}

	res, err := Verificar(xml)
	if err != nil {
		t.Fatalf("fallo al verificar: %v", err)
	}
	if !res.Valida {
		t.Fatalf("la constancia recien firmada debe verificar: %s", res.Motivo)
	}
	if res.Firmante != "Plataforma de Expedientes" {
		t.Fatalf("firmante inesperado: %q", res.Firmante)
	}
	if res.ExpedienteID != "exp-2026-000123" {
		t.Fatalf("expediente inesperado: %q", res.ExpedienteID)
	}
}

func TestVerificarDetectaManipulacion(t *testing.T) {
	cert := certificadoPlataforma(t)
	xml, err := NewGenerator().Generar(constanciaPrueba(), cert)
	if err != nil {
		t.Fatal(err)
	}

	manipulado := bytes.Replace(xml, []byte("exp-2026-000123"), []byte("exp-2026-999999"), 1)
	if bytes.Equal(manipulado, xml) {
		t.Fatalf("la manipulacion de prueba no se aplico")
	}

	res, err := Verificar(manipulado)
	if err != nil {
		t.Fatalf("fallo al verificar: %v", err)
	}
	if res.Valida {
		t.Fatalf("la constancia manipulada no debe verificar")
	}
}

func TestVerificarXMLInvalido(t *testing.T) {
	res, err := Verificar([]byte("esto no es XML <"))
	if err != nil {
		t.Fatalf("el XML invalido no es un error de verificacion: %v", err)
	}
	if res.Valida {
		t.Fatalf("el XML invalido no puede ser valido")
	}
}

func TestGenerarRechazaConstanciaIncompleta(t *testing.T) {
	cert := certificadoPlataforma(t)
	g := NewGenerator()

	c := constanciaPrueba()
	c.ExpedienteID = ""
	if _, err := g.Generar(c, cert); err == nil {
		t.Fatalf("la constancia sin expediente debia rechazarse")
	}

	c = constanciaPrueba()
	c.Artefacto = nil
	if _, err := g.Generar(c, cert); err == nil {
		t.Fatalf("la constancia sin artefacto debia rechazarse")
	}
}
