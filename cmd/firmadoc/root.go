// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"firmadoc/pkg/applog"
	"firmadoc/pkg/certmanager"
	"firmadoc/pkg/config"
	"firmadoc/pkg/consolidate"
	"firmadoc/pkg/signer"
	"firmadoc/pkg/store"
	"firmadoc/pkg/version"
	"firmadoc/pkg/visual"
)

var (
	cfgPath string

	cfg *config.Config
	db  *store.DB
	app *servicios
)

// servicios agrupa los componentes ya cableados que usan los subcomandos.
type servicios struct {
	certs        *store.SQLCertificateStore
	docs         *store.SQLDocumentStore
	firmas       *store.SQLSignatureStore
	deposito     *store.FileByteStorage
	manager      *certmanager.Manager
	engine       *signer.Engine
	docSigner    *signer.DocumentSigner
	consolidador *consolidate.Engine
}

var rootCmd = &cobra.Command{
	Use:           "firmadoc",
	Short:         "Motor de firma y consolidacion de expedientes",
	Version:       version.CurrentVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logPath, err := applog.Init("firmadoc"); err == nil {
			log.Printf("[Main] firmadoc %s log=%s", version.CurrentVersion, logPath)
		}

		var err error
		cfg, err = config.LoadWithEnv(cfgPath)
		if err != nil {
			return err
		}

		db, err = store.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("no se pudo abrir la base de datos: %w", err)
		}

		deposito, err := store.NewFileByteStorage(cfg.Storage.Dir)
		if err != nil {
			return fmt.Errorf("no se pudo preparar el deposito: %w", err)
		}

		certs := store.NewCertificateStore(db)
		docs := store.NewDocumentStore(db)
		firmas := store.NewSignatureStore(db)

		revoker := certmanager.NewRevocationChecker(cfg.OCSPTimeout(), cfg.RevocationCacheTTL())
		manager := certmanager.New(certs, revoker,
			cfg.Firma.DiasValidez, cfg.Firma.UmbralRenovacionDias, cfg.Confianza.Emisores)
		engine := signer.NewEngine(manager)

		app = &servicios{
			certs:        certs,
			docs:         docs,
			firmas:       firmas,
			deposito:     deposito,
			manager:      manager,
			engine:       engine,
			docSigner:    signer.NewDocumentSigner(engine, docs, firmas, deposito, visual.NewRenderer()),
			consolidador: consolidate.NewEngine(docs, deposito, consolidate.DefaultStrategies(cfg.MergeTimeout())),
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			db.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "firmadoc.yaml", "archivo de configuracion YAML")
	rootCmd.AddCommand(certificadoCmd)
	rootCmd.AddCommand(documentoCmd)
	rootCmd.AddCommand(firmarCmd)
	rootCmd.AddCommand(verificarCmd)
	rootCmd.AddCommand(consolidarCmd)
}
