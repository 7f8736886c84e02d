// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package consolidate

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"firmadoc/pkg/applog"
)

const defaultMergeTimeoutSec = 120

func getEnvInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// runCommand ejecuta una herramienta externa con timeout explicito. El
// contexto del llamante manda: al cancelarlo el subproceso muere.
func runCommand(ctx context.Context, args []string, timeout time.Duration, label string) ([]byte, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s: comando vacio", label)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Printf("[Exec] %s comando=%v timeout=%s", label, applog.SanitizeArgs(args), timeout)
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, args[0], args[1:]...)
	output, err := cmd.CombinedOutput()
	if err == nil {
		if len(strings.TrimSpace(string(output))) > 0 {
			log.Printf("[Exec] %s salida (ok): %s", label, truncateForLog(string(output), 800))
		}
		return output, nil
	}

	// Cancelacion del llamante: no se reinterpreta como fallo de la herramienta.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if cctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%s timeout tras %s: %s", label, timeout, truncateForLog(string(output), 400))
	}
	return nil, fmt.Errorf("%s fallo: %v, salida: %s", label, err, truncateForLog(string(output), 400))
}

func truncateForLog(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncado)"
}
