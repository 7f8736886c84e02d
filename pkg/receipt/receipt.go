// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package receipt

import (
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"firmadoc/pkg/applog"
	"firmadoc/pkg/model"
)

// Constancia es el recibo XML firmado que acompana a un expediente
// consolidado: identifica el expediente, sus documentos con rango de fojas y
// la huella del artefacto consolidado.
type Constancia struct {
	ExpedienteID string
	Documentos   []model.ExpedienteDocument
	Artefacto    *model.ConsolidatedArtifact
	GeneradaEn   time.Time
}

// Generator emite constancias firmadas con un certificado de la plataforma.
type Generator struct {
	now func() time.Time
}

// NewGenerator creates a receipt generator.
func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// Generar construye el XML de constancia y lo firma en modo enveloped con el
// certificado dado. El XML resultante es autocontenida: lleva el certificado
// del firmante embebido.
func (g *Generator) Generar(c Constancia, cert *model.Certificate) ([]byte, error) {
	if c.ExpedienteID == "" {
		return nil, fmt.Errorf("constancia sin expediente")
	}
	if c.Artefacto == nil || len(c.Artefacto.Bytes) == 0 {
		return nil, fmt.Errorf("constancia sin artefacto consolidado")
	}
	leaf, err := cert.X509()
	if err != nil {
		return nil, err
	}
	signer, err := cert.Signer()
	if err != nil {
		return nil, err
	}

	generada := c.GeneradaEn
	if generada.IsZero() {
		generada = g.now()
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("Constancia")
	root.CreateAttr("xmlns", "urn:firmadoc:constancia:1.0")
	root.CreateElement("Expediente").SetText(c.ExpedienteID)
	root.CreateElement("Generada").SetText(generada.UTC().Format(time.RFC3339))

	huella := sha256.Sum256(c.Artefacto.Bytes)
	art := root.CreateElement("Consolidado")
	art.CreateElement("Paginas").SetText(strconv.Itoa(c.Artefacto.PageCount))
	art.CreateElement("Estrategia").SetText(c.Artefacto.Strategy)
	art.CreateElement("HuellaSHA256").SetText(hex.EncodeToString(huella[:]))

	docsEl := root.CreateElement("Documentos")
	for _, d := range c.Documentos {
		el := docsEl.CreateElement("Documento")
		el.CreateAttr("id", d.ID)
		el.CreateElement("Orden").SetText(strconv.Itoa(d.SequenceOrder))
		el.CreateElement("FojaInicial").SetText(strconv.Itoa(d.FojaInicial))
		el.CreateElement("FojaFinal").SetText(strconv.Itoa(d.FojaFinal))
		el.CreateElement("Paginas").SetText(strconv.Itoa(d.PageCount))
		el.CreateElement("Estado").SetText(string(d.SigningState))
	}

	signedRoot, err := firmarEnveloped(root, signer, [][]byte{leaf.Raw})
	if err != nil {
		return nil, fmt.Errorf("no se pudo firmar la constancia: %v", err)
	}
	doc.SetRoot(signedRoot)

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, err
	}
	log.Printf("[Receipt] constancia generada expediente=%s documentos=%d bytes=%d",
		applog.MaskID(c.ExpedienteID), len(c.Documentos), len(out))
	return out, nil
}

func firmarEnveloped(el *etree.Element, signer crypto.Signer, certChain [][]byte) (*etree.Element, error) {
	if el == nil {
		return nil, fmt.Errorf("elemento XML nulo")
	}
	ctx, err := dsig.NewSigningContext(signer, certChain)
	if err != nil {
		return nil, err
	}
	ctx.Hash = crypto.SHA256
	ctx.Prefix = ""
	ctx.Canonicalizer = dsig.MakeC14N10RecCanonicalizer()
	return ctx.SignEnveloped(el)
}

// ResultadoVerificacion es el resultado de validar una constancia firmada.
type ResultadoVerificacion struct {
	Valida       bool
	Firmante     string
	ExpedienteID string
	Motivo       string
}

// Verificar valida la firma enveloped de una constancia contra el certificado
// embebido en ella.
func Verificar(xmlData []byte) (*ResultadoVerificacion, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlData); err != nil {
		return &ResultadoVerificacion{Valida: false, Motivo: "XML invalido"}, nil
	}
	root := doc.Root()
	if root == nil {
		return &ResultadoVerificacion{Valida: false, Motivo: "XML sin raiz"}, nil
	}

	cert, err := certificadoEmbebido(root)
	if err != nil {
		return &ResultadoVerificacion{Valida: false, Motivo: "No se encontro certificado en la constancia"}, nil
	}

	vc := dsig.NewDefaultValidationContext(&dsig.MemoryX509CertificateStore{
		Roots: []*x509.Certificate{cert},
	})
	if _, err := vc.Validate(root); err != nil {
		return &ResultadoVerificacion{
			Valida:   false,
			Firmante: cert.Subject.CommonName,
			Motivo:   err.Error(),
		}, nil
	}

	res := &ResultadoVerificacion{
		Valida:   true,
		Firmante: cert.Subject.CommonName,
		Motivo:   "Constancia valida",
	}
	if exp := root.FindElement("Expediente"); exp != nil {
		res.ExpedienteID = strings.TrimSpace(exp.Text())
	}
	return res, nil
}

func certificadoEmbebido(root *etree.Element) (*x509.Certificate, error) {
	var certB64 string
	recorrer(root, func(el *etree.Element) {
		if certB64 != "" {
			return
		}
		if strings.EqualFold(localName(el.Tag), "X509Certificate") {
			certB64 = strings.TrimSpace(el.Text())
		}
	})
	if certB64 == "" {
		return nil, fmt.Errorf("falta x509certificate")
	}
	raw, err := base64.StdEncoding.DecodeString(certB64)
	if err != nil {
		return nil, err
	}
	return x509.ParseCertificate(raw)
}

func recorrer(el *etree.Element, fn func(*etree.Element)) {
	if el == nil {
		return
	}
	fn(el)
	for _, child := range el.ChildElements() {
		recorrer(child, fn)
	}
}

func localName(tag string) string {
	tag = strings.TrimSpace(tag)
	if i := strings.Index(tag, ":"); i >= 0 && i+1 < len(tag) {
		return tag[i+1:]
	}
	return tag
}
