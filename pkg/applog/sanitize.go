// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package applog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

func MaskID(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "-"
	}
	if len(v) <= 10 {
		return v
	}
	return v[:6] + "..." + v[len(v)-4:]
}

func Digest12(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])[:12]
}

func SecretMeta(label string, raw string) string {
	return fmt.Sprintf("%s[len=%d sha12=%s]", label, len(raw), Digest12(raw))
}

func BytesMeta(label string, raw []byte) string {
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%s[len=%d sha12=%s]", label, len(raw), hex.EncodeToString(sum[:])[:12])
}

// SanitizeArgs prepares a subprocess argument list for logging. Passwords and
// key material never reach the log, long values get truncated.
func SanitizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	redactNext := false
	for _, a := range args {
		if redactNext {
			out = append(out, "[REDACTED_ARG]")
			redactNext = false
			continue
		}
		la := strings.ToLower(a)
		switch {
		case la == "-passin" || la == "-passout" || la == "--password":
			out = append(out, a)
			redactNext = true
		case strings.HasPrefix(la, "pass:") || strings.Contains(la, "password="):
			out = append(out, "[REDACTED_ARG]")
		default:
			out = append(out, truncate(a, 120))
		}
	}
	return out
}

func truncate(v string, max int) string {
	if max < 8 {
		max = 8
	}
	if len(v) <= max {
		return v
	}
	return v[:max] + "...(trunc)"
}
