// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package pdfinfo

import (
	"bytes"
	"fmt"
	"log"
	"os"

	pdflib "github.com/digitorus/pdf"

	"firmadoc/pkg/model"
)

// CountPages returns the page count of a PDF byte stream. Invalid or
// zero-page input yields ErrUnsupportedDocumentFormat.
func CountPages(data []byte) (n int, err error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return 0, fmt.Errorf("%w: cabecera PDF ausente", model.ErrUnsupportedDocumentFormat)
	}
	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			n = 0
			err = fmt.Errorf("%w: %v", model.ErrUnsupportedDocumentFormat, r)
		}
	}()
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", model.ErrUnsupportedDocumentFormat, err)
	}
	n = reader.NumPage()
	if n <= 0 {
		return 0, fmt.Errorf("%w: documento sin paginas", model.ErrUnsupportedDocumentFormat)
	}
	return n, nil
}

// CountPagesFile is CountPages over a file on disk.
func CountPagesFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return CountPages(data)
}

// CountPagesOrDefault returns the detected page count, or 1 when detection
// fails: el foliado debe poder continuar siempre. The failure is logged, the
// second result reports the fallback.
func CountPagesOrDefault(data []byte) (int, bool) {
	n, err := CountPages(data)
	if err != nil {
		log.Printf("[PDFInfo] WARNING: deteccion de paginas fallida, se asume 1 pagina: %v", err)
		return 1, true
	}
	return n, false
}
