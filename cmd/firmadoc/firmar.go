// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"firmadoc/pkg/model"
	"firmadoc/pkg/signer"
)

var (
	firmarDocumento string
	firmarTitular   int64
	firmarTipo      string
	firmarRubrica   string
)

var firmarCmd = &cobra.Command{
	Use:   "firmar",
	Short: "Firma un documento de expediente con el certificado activo del titular",
	RunE: func(cmd *cobra.Command, args []string) error {
		if firmarDocumento == "" {
			return fmt.Errorf("--documento es obligatorio")
		}
		kind := model.CertificateKind(firmarTipo)
		if kind != model.KindInternal && kind != model.KindGovernment {
			return fmt.Errorf("tipo de certificado desconocido: %s", firmarTipo)
		}

		var cert *model.Certificate
		var err error
		if kind == model.KindInternal {
			cert, err = app.manager.EnsureCertificate(cmd.Context(), firmarTitular, kind)
		} else {
			cert, err = app.certs.FindActive(cmd.Context(), firmarTitular, kind)
		}
		if err != nil {
			return err
		}

		opts := signer.FirmarOpciones{}
		if firmarRubrica != "" {
			img, err := os.ReadFile(firmarRubrica)
			if err != nil {
				return fmt.Errorf("no se pudo leer la imagen de rubrica: %w", err)
			}
			opts.ImagenManuscrita = img
		}

		rec, err := app.docSigner.FirmarDocumento(cmd.Context(), firmarDocumento, cert, opts)
		if err != nil {
			return err
		}

		fmt.Printf("Documento firmado\n")
		fmt.Printf("Registro:   %s\n", rec.ID)
		fmt.Printf("Huella:     %s\n", rec.DocumentHash)
		fmt.Printf("Algoritmo:  %s\n", rec.Algorithm)
		fmt.Printf("Verificada: %t\n", rec.Verified)
		return nil
	},
}

func init() {
	firmarCmd.Flags().StringVar(&firmarDocumento, "documento", "", "identificador del documento")
	firmarCmd.Flags().Int64Var(&firmarTitular, "titular", 0, "identificador del titular")
	firmarCmd.Flags().StringVar(&firmarTipo, "tipo", string(model.KindInternal), "tipo de certificado (internal|government)")
	firmarCmd.Flags().StringVar(&firmarRubrica, "rubrica", "", "imagen PNG/JPEG de firma manuscrita")
}
