// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"firmadoc/pkg/model"
)

var (
	certTitular  int64
	certTipo     string
	certP12Path  string
	certPassword string
)

var certificadoCmd = &cobra.Command{
	Use:   "certificado",
	Short: "Gestion del ciclo de vida de certificados de firma",
}

var certificadoEmitirCmd = &cobra.Command{
	Use:   "emitir",
	Short: "Garantiza un certificado interno activo para el titular",
	RunE: func(cmd *cobra.Command, args []string) error {
		cert, err := app.manager.EnsureCertificate(cmd.Context(), certTitular, model.KindInternal)
		if err != nil {
			return err
		}
		imprimirCertificado(cert)
		return nil
	},
}

var certificadoImportarCmd = &cobra.Command{
	Use:   "importar",
	Short: "Importa un certificado gubernamental desde un archivo PKCS#12",
	RunE: func(cmd *cobra.Command, args []string) error {
		p12, err := os.ReadFile(certP12Path)
		if err != nil {
			return fmt.Errorf("no se pudo leer el archivo PKCS#12: %w", err)
		}
		cert, err := app.manager.ImportCertificate(cmd.Context(), certTitular, p12, certPassword)
		if err != nil {
			return err
		}
		imprimirCertificado(cert)
		return nil
	},
}

var certificadoEstadoCmd = &cobra.Command{
	Use:   "estado",
	Short: "Muestra el certificado activo del titular y su estado de revocacion",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := model.CertificateKind(certTipo)
		if kind != model.KindInternal && kind != model.KindGovernment {
			return fmt.Errorf("tipo de certificado desconocido: %s", certTipo)
		}
		cert, err := app.certs.FindActive(cmd.Context(), certTitular, kind)
		if err != nil {
			return err
		}
		imprimirCertificado(cert)

		st := app.manager.CheckRevocationStatus(cmd.Context(), cert)
		switch {
		case st.Revoked:
			fmt.Printf("Revocacion:   REVOCADO (%s)\n", st.Reason)
		case st.Unknown:
			fmt.Printf("Revocacion:   DESCONOCIDA, no usable para firma (%s)\n", st.Reason)
		default:
			fmt.Println("Revocacion:   vigente")
		}
		return nil
	},
}

var certificadoRenovarCmd = &cobra.Command{
	Use:   "renovar",
	Short: "Renueva el certificado interno si entra en el umbral de expiracion",
	RunE: func(cmd *cobra.Command, args []string) error {
		cert, err := app.certs.FindActive(cmd.Context(), certTitular, model.KindInternal)
		if err != nil {
			return err
		}
		renovado, err := app.manager.RenewIfNeeded(cmd.Context(), cert)
		if err != nil {
			return err
		}
		if renovado.ID == cert.ID {
			fmt.Println("El certificado no necesita renovacion")
		} else {
			fmt.Println("Certificado renovado")
		}
		imprimirCertificado(renovado)
		return nil
	},
}

func imprimirCertificado(cert *model.Certificate) {
	fmt.Printf("ID:           %s\n", cert.ID)
	fmt.Printf("Titular:      %d\n", cert.OwnerID)
	fmt.Printf("Tipo:         %s\n", cert.Kind)
	fmt.Printf("Estado:       %s\n", cert.Status)
	fmt.Printf("Serie:        %s\n", cert.SerialNumber)
	fmt.Printf("Emisor:       %s\n", cert.Issuer)
	fmt.Printf("Validez:      %s - %s\n",
		cert.NotBefore.Format("2006-01-02"), cert.NotAfter.Format("2006-01-02"))
	fmt.Printf("Dias:         %d\n", cert.DiasParaExpirar(time.Now()))
}

func init() {
	certificadoCmd.PersistentFlags().Int64Var(&certTitular, "titular", 0, "identificador del titular")
	certificadoImportarCmd.Flags().StringVar(&certP12Path, "p12", "", "archivo PKCS#12 a importar")
	certificadoImportarCmd.Flags().StringVar(&certPassword, "password", "", "contrasena del PKCS#12")
	certificadoEstadoCmd.Flags().StringVar(&certTipo, "tipo", string(model.KindInternal), "tipo de certificado (internal|government)")

	certificadoCmd.AddCommand(certificadoEmitirCmd)
	certificadoCmd.AddCommand(certificadoImportarCmd)
	certificadoCmd.AddCommand(certificadoEstadoCmd)
	certificadoCmd.AddCommand(certificadoRenovarCmd)
}
