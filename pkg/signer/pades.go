// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package signer

import (
	"crypto"
	"fmt"
	"os"
	"path/filepath"
	"time"

	pdfsign "github.com/digitorus/pdfsign/sign"
	pdfverify "github.com/digitorus/pdfsign/verify"

	"firmadoc/pkg/model"
)

// embedPadesSignature firma el PDF con una firma PAdES de aprobacion usando
// el material del certificado. Devuelve el PDF con el diccionario de firma
// incremental anadido.
func embedPadesSignature(pdfBytes []byte, cert *model.Certificate, firmante string) ([]byte, error) {
	leaf, err := cert.X509()
	if err != nil {
		return nil, err
	}
	signer, err := cert.Signer()
	if err != nil {
		return nil, err
	}

	inFile := filepath.Join(os.TempDir(), fmt.Sprintf("firmadoc-pades-in-%d.pdf", time.Now().UnixNano()))
	outFile := filepath.Join(os.TempDir(), fmt.Sprintf("firmadoc-pades-out-%d.pdf", time.Now().UnixNano()))
	defer os.Remove(inFile)
	defer os.Remove(outFile)

	if err := os.WriteFile(inFile, pdfBytes, 0600); err != nil {
		return nil, fmt.Errorf("fallo al escribir archivo de entrada: %v", err)
	}

	signData := pdfsign.SignData{
		Signature: pdfsign.SignDataSignature{
			Info: pdfsign.SignDataSignatureInfo{
				Name:     firmante,
				Location: "Plataforma de Expedientes",
				Reason:   "Firma electronica de documento de expediente",
				Date:     time.Now().Local(),
			},
			CertType:   pdfsign.ApprovalSignature,
			DocMDPPerm: pdfsign.AllowFillingExistingFormFieldsAndSignaturesPerms,
		},
		Signer:          signer,
		DigestAlgorithm: crypto.SHA256,
		Certificate:     leaf,
	}

	if err := pdfsign.SignFile(inFile, outFile, signData); err != nil {
		return nil, err
	}

	out, err := os.ReadFile(outFile)
	if err != nil {
		return nil, fmt.Errorf("no se pudo leer PDF firmado: %v", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("PDF firmado vacio")
	}
	return out, nil
}

// ResultadoVerificacion is the outcome of verifying an embedded PDF signature.
type ResultadoVerificacion struct {
	Valida   bool
	Firmante string
	Momento  string
	Motivo   string
}

// VerifyPDF checks the embedded PAdES signatures of a signed artifact.
func VerifyPDF(pdfBytes []byte) (*ResultadoVerificacion, error) {
	tmp := filepath.Join(os.TempDir(), fmt.Sprintf("firmadoc-verify-%d.pdf", time.Now().UnixNano()))
	defer os.Remove(tmp)
	if err := os.WriteFile(tmp, pdfBytes, 0600); err != nil {
		return nil, fmt.Errorf("fallo al escribir archivo temporal: %v", err)
	}

	f, err := os.Open(tmp)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	resp, err := pdfverify.VerifyFileWithOptions(f, pdfverify.DefaultVerifyOptions())
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Signers) == 0 {
		return &ResultadoVerificacion{
			Valida: false,
			Motivo: "No se encontraron firmantes en el PDF",
		}, nil
	}

	first := resp.Signers[0]
	valida := false
	for _, s := range resp.Signers {
		if s.ValidSignature {
			valida = true
			break
		}
	}

	motivo := first.Reason
	if !first.TrustedIssuer {
		if motivo == "" {
			motivo = "Firma criptografica valida, emisor no confiable en este entorno"
		} else {
			motivo = motivo + " (emisor no confiable en este entorno)"
		}
	}

	var momento string
	if first.SignatureTime != nil {
		momento = first.SignatureTime.Format(time.RFC3339)
	}

	return &ResultadoVerificacion{
		Valida:   valida,
		Firmante: first.Name,
		Momento:  momento,
		Motivo:   motivo,
	}, nil
}
