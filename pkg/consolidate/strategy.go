// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package consolidate

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// MergeStrategy es una forma de fusionar PDFs. Cada implementacion construye
// sus propios argumentos y posee su propio timeout.
type MergeStrategy interface {
	Name() string
	Available() bool
	Merge(ctx context.Context, inputs []string, output string) error
}

// externalStrategy invoca una herramienta externa de fusion.
type externalStrategy struct {
	name      string
	bin       string
	buildArgs func(inputs []string, output string) []string
	timeout   time.Duration
}

func (s *externalStrategy) Name() string { return s.name }

func (s *externalStrategy) Available() bool {
	_, err := exec.LookPath(s.bin)
	return err == nil
}

func (s *externalStrategy) Merge(ctx context.Context, inputs []string, output string) error {
	_, err := runCommand(ctx, s.buildArgs(inputs, output), s.timeout, s.name)
	return err
}

// NewPdfuniteStrategy concatena con poppler. Maxima fidelidad: conserva los
// diccionarios de firma embebidos.
func NewPdfuniteStrategy(timeout time.Duration) MergeStrategy {
	return &externalStrategy{
		name: "pdfunite",
		bin:  "pdfunite",
		buildArgs: func(inputs []string, output string) []string {
			args := append([]string{"pdfunite"}, inputs...)
			return append(args, output)
		},
		timeout: timeout,
	}
}

// NewQpdfStrategy fusiona estructuralmente con qpdf. Buena fidelidad.
func NewQpdfStrategy(timeout time.Duration) MergeStrategy {
	return &externalStrategy{
		name: "qpdf",
		bin:  "qpdf",
		buildArgs: func(inputs []string, output string) []string {
			args := []string{"qpdf", "--empty", "--pages"}
			args = append(args, inputs...)
			return append(args, "--", output)
		},
		timeout: timeout,
	}
}

// NewGhostscriptStrategy reconstruye el PDF renderizandolo. Puede aplanar o
// romper firmas embebidas: aceptable solo como respaldo.
func NewGhostscriptStrategy(timeout time.Duration) MergeStrategy {
	return &externalStrategy{
		name: "ghostscript",
		bin:  "gs",
		buildArgs: func(inputs []string, output string) []string {
			args := []string{
				"gs", "-dBATCH", "-dNOPAUSE", "-dQUIET",
				"-sDEVICE=pdfwrite", "-sOutputFile=" + output,
			}
			return append(args, inputs...)
		},
		timeout: timeout,
	}
}

// pdfcpuStrategy fusiona en proceso. Siempre disponible; la menor garantia de
// conservacion de firmas embebidas.
type pdfcpuStrategy struct{}

// NewPdfcpuStrategy returns the in-process merge fallback.
func NewPdfcpuStrategy() MergeStrategy {
	return &pdfcpuStrategy{}
}

func (s *pdfcpuStrategy) Name() string { return "pdfcpu" }

func (s *pdfcpuStrategy) Available() bool { return true }

func (s *pdfcpuStrategy) Merge(ctx context.Context, inputs []string, output string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := api.MergeCreateFile(inputs, output, false, nil); err != nil {
		return fmt.Errorf("fusion pdfcpu fallida: %v", err)
	}
	return ctx.Err()
}

// DefaultStrategies devuelve la cadena de estrategias en orden de prioridad
// fijo, de mayor a menor fidelidad.
func DefaultStrategies(timeout time.Duration) []MergeStrategy {
	if timeout <= 0 {
		timeout = time.Duration(getEnvInt("FIRMADOC_MERGE_TIMEOUT_SEC", defaultMergeTimeoutSec)) * time.Second
	}
	return []MergeStrategy{
		NewPdfuniteStrategy(timeout),
		NewQpdfStrategy(timeout),
		NewGhostscriptStrategy(timeout),
		NewPdfcpuStrategy(),
	}
}
