// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"firmadoc/pkg/receipt"
	"firmadoc/pkg/signer"
)

var verificarArchivo string

var verificarCmd = &cobra.Command{
	Use:   "verificar",
	Short: "Verifica un PDF firmado o una constancia XML",
	RunE: func(cmd *cobra.Command, args []string) error {
		if verificarArchivo == "" {
			return fmt.Errorf("--archivo es obligatorio")
		}
		data, err := os.ReadFile(verificarArchivo)
		if err != nil {
			return fmt.Errorf("no se pudo leer el archivo: %w", err)
		}

		if esXML(data) {
			res, err := receipt.Verificar(data)
			if err != nil {
				return err
			}
			fmt.Printf("Constancia valida: %t\n", res.Valida)
			if res.Firmante != "" {
				fmt.Printf("Firmante:          %s\n", res.Firmante)
			}
			if res.ExpedienteID != "" {
				fmt.Printf("Expediente:        %s\n", res.ExpedienteID)
			}
			fmt.Printf("Motivo:            %s\n", res.Motivo)
			return nil
		}

		res, err := signer.VerifyPDF(data)
		if err != nil {
			return err
		}
		huella := sha256.Sum256(data)
		fmt.Printf("Firma valida: %t\n", res.Valida)
		if res.Firmante != "" {
			fmt.Printf("Firmante:     %s\n", res.Firmante)
		}
		if res.Momento != "" {
			fmt.Printf("Momento:      %s\n", res.Momento)
		}
		if res.Motivo != "" {
			fmt.Printf("Motivo:       %s\n", res.Motivo)
		}
		fmt.Printf("Huella:       %s\n", hex.EncodeToString(huella[:]))
		return nil
	},
}

func esXML(data []byte) bool {
	s := strings.TrimSpace(string(data[:min(len(data), 64)]))
	return strings.HasPrefix(s, "<?xml") || strings.HasPrefix(s, "<")
}

func init() {
	verificarCmd.Flags().StringVar(&verificarArchivo, "archivo", "", "PDF firmado o constancia XML")
}
