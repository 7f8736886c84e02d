// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"firmadoc/pkg/model"
	"firmadoc/pkg/receipt"
)

var (
	consolidarExpediente string
	consolidarSalida     string
	consolidarConstancia string
	consolidarTitular    int64
)

var consolidarCmd = &cobra.Command{
	Use:   "consolidar",
	Short: "Consolida los documentos de un expediente en un unico PDF",
	RunE: func(cmd *cobra.Command, args []string) error {
		if consolidarExpediente == "" {
			return fmt.Errorf("--expediente es obligatorio")
		}
		if consolidarSalida == "" {
			return fmt.Errorf("--salida es obligatorio")
		}

		art, err := app.consolidador.ConsolidarExpediente(cmd.Context(), consolidarExpediente)
		if err != nil {
			return err
		}
		if err := os.WriteFile(consolidarSalida, art.Bytes, 0644); err != nil {
			return fmt.Errorf("no se pudo escribir el PDF consolidado: %w", err)
		}
		fmt.Printf("Expediente consolidado: %s (%d paginas, estrategia %s)\n",
			consolidarSalida, art.PageCount, art.Strategy)

		if consolidarConstancia == "" {
			return nil
		}

		cert, err := app.manager.EnsureCertificate(cmd.Context(), consolidarTitular, model.KindInternal)
		if err != nil {
			return err
		}
		docs, err := app.docs.ListByExpediente(cmd.Context(), consolidarExpediente)
		if err != nil {
			return err
		}
		xml, err := receipt.NewGenerator().Generar(receipt.Constancia{
			ExpedienteID: consolidarExpediente,
			Documentos:   docs,
			Artefacto:    art,
		}, cert)
		if err != nil {
			return err
		}
		if err := os.WriteFile(consolidarConstancia, xml, 0644); err != nil {
			return fmt.Errorf("no se pudo escribir la constancia: %w", err)
		}
		fmt.Printf("Constancia firmada: %s\n", consolidarConstancia)
		return nil
	},
}

func init() {
	consolidarCmd.Flags().StringVar(&consolidarExpediente, "expediente", "", "identificador del expediente")
	consolidarCmd.Flags().StringVar(&consolidarSalida, "salida", "", "ruta del PDF consolidado")
	consolidarCmd.Flags().StringVar(&consolidarConstancia, "constancia", "", "ruta de la constancia XML firmada (opcional)")
	consolidarCmd.Flags().Int64Var(&consolidarTitular, "titular", 0, "titular del certificado de la constancia")
}
