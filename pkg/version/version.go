// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package version

const CurrentVersion = "0.1.0"

var (
	// Se pueden sobrescribir en compilacion con -ldflags:
	// -X firmadoc/pkg/version.BuildCommit=<hash>
	// -X firmadoc/pkg/version.BuildDate=<YYYY-MM-DDTHH:MM:SSZ>
	BuildCommit = "local"
	BuildDate   = "desconocida"
)
