// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"firmadoc/pkg/foja"
	"firmadoc/pkg/model"
	"firmadoc/pkg/pdfinfo"
)

var (
	docExpediente string
	docArchivo    string
	docFoja       int
)

var documentoCmd = &cobra.Command{
	Use:   "documento",
	Short: "Gestion de documentos de un expediente",
}

var documentoAgregarCmd = &cobra.Command{
	Use:   "agregar",
	Short: "Incorpora un documento al expediente y le asigna su rango de fojas",
	RunE: func(cmd *cobra.Command, args []string) error {
		if docExpediente == "" {
			return fmt.Errorf("--expediente es obligatorio")
		}
		data, err := os.ReadFile(docArchivo)
		if err != nil {
			return fmt.Errorf("no se pudo leer el documento: %w", err)
		}

		paginas, degradado := pdfinfo.CountPagesOrDefault(data)
		if degradado {
			log.Printf("[Main] WARNING: paginas no detectables en %s, se asume 1", docArchivo)
		}

		existentes, err := app.docs.ListByExpediente(cmd.Context(), docExpediente)
		if err != nil {
			return err
		}
		var override *int
		if docFoja > 0 {
			override = &docFoja
		}
		asig := foja.Asignar(existentes, paginas, override)
		if asig.Overlap {
			fmt.Println("AVISO: la foja manual se solapa con rangos ya asignados")
		}
		if asig.Coerced {
			fmt.Println("AVISO: numero de paginas invalido, se asume 1")
		}

		handle, err := app.deposito.Save(cmd.Context(), "originales", data)
		if err != nil {
			return err
		}

		doc := &model.ExpedienteDocument{
			ID:            uuid.NewString(),
			ExpedienteID:  docExpediente,
			SequenceOrder: len(existentes) + 1,
			FojaInicial:   asig.Rango.Inicial,
			FojaFinal:     asig.Rango.Final,
			PageCount:     paginas,
			OriginalPath:  handle,
			SigningState:  model.SigningPending,
			CreatedAt:     time.Now(),
		}
		if err := app.docs.Insert(cmd.Context(), doc); err != nil {
			_ = app.deposito.Remove(cmd.Context(), handle)
			return err
		}

		fmt.Printf("Documento %s incorporado: fojas %d-%d (%d paginas)\n",
			doc.ID, doc.FojaInicial, doc.FojaFinal, doc.PageCount)
		return nil
	},
}

var documentoListarCmd = &cobra.Command{
	Use:   "listar",
	Short: "Lista los documentos del expediente con su rango de fojas",
	RunE: func(cmd *cobra.Command, args []string) error {
		if docExpediente == "" {
			return fmt.Errorf("--expediente es obligatorio")
		}
		docs, err := app.docs.ListByExpediente(cmd.Context(), docExpediente)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Println("El expediente no tiene documentos")
			return nil
		}
		for _, d := range docs {
			fmt.Printf("%3d  fojas %4d-%-4d  %-7s  %s\n",
				d.SequenceOrder, d.FojaInicial, d.FojaFinal, d.SigningState, d.ID)
		}
		if err := foja.ValidarContiguidad(docs); err != nil {
			fmt.Printf("AVISO: %v\n", err)
		}
		return nil
	},
}

func init() {
	documentoCmd.PersistentFlags().StringVar(&docExpediente, "expediente", "", "identificador del expediente")
	documentoAgregarCmd.Flags().StringVar(&docArchivo, "archivo", "", "PDF a incorporar")
	documentoAgregarCmd.Flags().IntVar(&docFoja, "foja", 0, "foja inicial manual (0 = automatica)")

	documentoCmd.AddCommand(documentoAgregarCmd)
	documentoCmd.AddCommand(documentoListarCmd)
}
