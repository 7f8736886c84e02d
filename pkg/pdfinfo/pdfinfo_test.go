// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package pdfinfo

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"firmadoc/pkg/model"
)

// pdfMinimo construye un PDF valido de n paginas con offsets de xref reales.
func pdfMinimo(n int) []byte {
	var objetos []string
	kids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		kids = append(kids, fmt.Sprintf("%d 0 R", 3+i))
	}
	objetos = append(objetos,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n),
	)
	for i := 0; i < n; i++ {
		objetos = append(objetos, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>")
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objetos)+1)
	for i, cuerpo := range objetos {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, cuerpo)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objetos)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objetos); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objetos)+1, xref)
	return buf.Bytes()
}

func TestCountPagesDetectaPaginas(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		got, err := CountPages(pdfMinimo(n))
		if err != nil {
			t.Fatalf("n=%d: error inesperado: %v", n, err)
		}
		if got != n {
			t.Fatalf("n=%d: se detectaron %d paginas", n, got)
		}
	}
}

func TestCountPagesRechazaNoPDF(t *testing.T) {
	_, err := CountPages([]byte("esto no es un PDF"))
	if !errors.Is(err, model.ErrUnsupportedDocumentFormat) {
		t.Fatalf("se esperaba ErrUnsupportedDocumentFormat, se obtuvo %v", err)
	}
}

func TestCountPagesRechazaPDFTruncado(t *testing.T) {
	data := pdfMinimo(2)
	_, err := CountPages(data[:len(data)/2])
	if !errors.Is(err, model.ErrUnsupportedDocumentFormat) {
		t.Fatalf("se esperaba ErrUnsupportedDocumentFormat, se obtuvo %v", err)
	}
}

func TestCountPagesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, pdfMinimo(3), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := CountPagesFile(path)
	if err != nil {
		t.Fatalf("error inesperado: %v", err)
	}
	if got != 3 {
		t.Fatalf("se detectaron %d paginas, se esperaban 3", got)
	}
}

func TestCountPagesOrDefaultDegradaAUna(t *testing.T) {
	n, degradado := CountPagesOrDefault([]byte("basura"))
	if !degradado {
		t.Fatalf("la degradacion debia reportarse")
	}
	if n != 1 {
		t.Fatalf("la degradacion debe asumir 1 pagina, se obtuvo %d", n)
	}

	n, degradado = CountPagesOrDefault(pdfMinimo(4))
	if degradado || n != 4 {
		t.Fatalf("PDF valido no debia degradarse: n=%d degradado=%t", n, degradado)
	}
}
