// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package consolidate

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"firmadoc/pkg/applog"
	"firmadoc/pkg/foja"
	"firmadoc/pkg/model"
	"firmadoc/pkg/pdfinfo"
	"firmadoc/pkg/store"
)

// StrategyFailure registra por que una estrategia concreta no produjo el
// expediente consolidado.
type StrategyFailure struct {
	Strategy string
	Reason   string
}

// MergeExhaustedError se devuelve cuando toda la cadena de estrategias fallo.
// Conserva el motivo de cada intento para diagnostico.
type MergeExhaustedError struct {
	ExpedienteID string
	Failures     []StrategyFailure
}

func (e *MergeExhaustedError) Error() string {
	partes := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		partes = append(partes, f.Strategy+": "+f.Reason)
	}
	return fmt.Sprintf("consolidacion agotada para expediente %s [%s]",
		applog.MaskID(e.ExpedienteID), strings.Join(partes, "; "))
}

func (e *MergeExhaustedError) Is(target error) bool {
	return target == model.ErrMergeExhausted
}

// Engine consolida los documentos de un expediente en un unico PDF recorriendo
// una cadena fija de estrategias de fusion. El artefacto es derivado: se puede
// regenerar siempre a partir de los documentos.
type Engine struct {
	docs       store.DocumentStore
	deposito   store.ByteStorage
	strategies []MergeStrategy
	now        func() time.Time
}

// NewEngine builds a consolidation engine over the given strategy chain.
func NewEngine(docs store.DocumentStore, deposito store.ByteStorage, strategies []MergeStrategy) *Engine {
	return &Engine{
		docs:       docs,
		deposito:   deposito,
		strategies: strategies,
		now:        time.Now,
	}
}

// ConsolidarExpediente carga el snapshot de documentos del expediente, valida
// la contiguidad de fojas y fusiona. Prefiere el artefacto firmado de cada
// documento; si no existe o no se puede leer, usa el original.
func (e *Engine) ConsolidarExpediente(ctx context.Context, expedienteID string) (*model.ConsolidatedArtifact, error) {
	docs, err := e.docs.ListByExpediente(ctx, expedienteID)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("el expediente %s no tiene documentos que consolidar",
			applog.MaskID(expedienteID))
	}
	if err := foja.ValidarContiguidad(docs); err != nil {
		return nil, err
	}

	inputs := make([][]byte, 0, len(docs))
	for i := range docs {
		data, err := e.leerDocumento(ctx, &docs[i])
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, data)
	}

	return e.Merge(ctx, expedienteID, inputs)
}

// Merge fusiona los PDFs dados, en orden, probando cada estrategia de la
// cadena hasta que una produzca una salida que cumpla la postcondicion: el
// numero de paginas del resultado es la suma de las paginas de las entradas.
// Las salidas parciales de intentos fallidos se eliminan siempre.
func (e *Engine) Merge(ctx context.Context, expedienteID string, inputs [][]byte) (*model.ConsolidatedArtifact, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no hay entradas que fusionar")
	}

	dir, err := os.MkdirTemp("", "firmadoc-merge-")
	if err != nil {
		return nil, fmt.Errorf("no se pudo crear directorio temporal: %v", err)
	}
	defer os.RemoveAll(dir)

	esperadas := 0
	files := make([]string, 0, len(inputs))
	for i, data := range inputs {
		pages, err := pdfinfo.CountPages(data)
		if err != nil {
			return nil, fmt.Errorf("entrada %d no fusionable: %w", i+1, err)
		}
		esperadas += pages
		f := filepath.Join(dir, fmt.Sprintf("entrada-%03d.pdf", i+1))
		if err := os.WriteFile(f, data, 0600); err != nil {
			return nil, fmt.Errorf("no se pudo escribir entrada temporal: %v", err)
		}
		files = append(files, f)
	}

	salida := filepath.Join(dir, "consolidado.pdf")
	var fallos []StrategyFailure
	for _, st := range e.strategies {
		if err := ctx.Err(); err != nil {
			os.Remove(salida)
			return nil, err
		}
		if !st.Available() {
			fallos = append(fallos, StrategyFailure{Strategy: st.Name(), Reason: "herramienta no disponible"})
			continue
		}

		os.Remove(salida)
		log.Printf("[Consolidate] expediente=%s estrategia=%s entradas=%d paginas_esperadas=%d",
			applog.MaskID(expedienteID), st.Name(), len(files), esperadas)

		if err := st.Merge(ctx, files, salida); err != nil {
			if ctx.Err() != nil {
				os.Remove(salida)
				return nil, ctx.Err()
			}
			fallos = append(fallos, StrategyFailure{Strategy: st.Name(), Reason: err.Error()})
			os.Remove(salida)
			continue
		}

		artefacto, err := e.validarSalida(salida, esperadas)
		if err != nil {
			fallos = append(fallos, StrategyFailure{Strategy: st.Name(), Reason: err.Error()})
			os.Remove(salida)
			continue
		}

		artefacto.ExpedienteID = expedienteID
		artefacto.Strategy = st.Name()
		artefacto.GeneratedAt = e.now()
		log.Printf("[Consolidate] expediente=%s consolidado estrategia=%s paginas=%d bytes=%d",
			applog.MaskID(expedienteID), st.Name(), artefacto.PageCount, len(artefacto.Bytes))
		return artefacto, nil
	}

	log.Printf("[Consolidate] expediente=%s cadena agotada (%d estrategias)",
		applog.MaskID(expedienteID), len(e.strategies))
	return nil, &MergeExhaustedError{ExpedienteID: expedienteID, Failures: fallos}
}

// leerDocumento prefiere el artefacto firmado; si el firmado no se puede leer
// degrada al original con aviso en el registro.
func (e *Engine) leerDocumento(ctx context.Context, doc *model.ExpedienteDocument) ([]byte, error) {
	if doc.SignedPath != "" {
		data, err := e.deposito.Read(ctx, doc.SignedPath)
		if err == nil {
			return data, nil
		}
		log.Printf("[Consolidate] WARNING: artefacto firmado ilegible doc=%s, se usa el original: %v",
			applog.MaskID(doc.ID), err)
	}
	data, err := e.deposito.Read(ctx, doc.OriginalPath)
	if err != nil {
		return nil, fmt.Errorf("no se pudo leer el documento %s: %w", applog.MaskID(doc.ID), err)
	}
	return data, nil
}

// validarSalida comprueba la postcondicion de paginas y devuelve el artefacto.
func (e *Engine) validarSalida(path string, esperadas int) (*model.ConsolidatedArtifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("la estrategia no produjo salida: %v", err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("salida vacia")
	}
	pages, err := pdfinfo.CountPagesFile(path)
	if err != nil {
		return nil, fmt.Errorf("salida no legible como PDF: %v", err)
	}
	if pages != esperadas {
		return nil, fmt.Errorf("paginas de salida %d != esperadas %d", pages, esperadas)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("no se pudo leer la salida: %v", err)
	}
	return &model.ConsolidatedArtifact{Bytes: data, PageCount: pages}, nil
}
