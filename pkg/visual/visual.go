// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package visual

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"firmadoc/pkg/model"
	"firmadoc/pkg/pdfinfo"
)

// Caja maxima para la imagen de firma manuscrita, en puntos.
const (
	maxImagenAncho = 140.0
	maxImagenAlto  = 55.0
)

// BlockMeta describes the human-readable signature block stamped onto the
// last page of a document.
type BlockMeta struct {
	Titulo           string
	Firmante         string
	Fecha            time.Time
	HashExtracto     string
	Verificacion     string
	ImagenManuscrita []byte // PNG o JPEG, opcional
}

// Renderer draws visual signature blocks. It always works on a byte-level
// copy: the cryptographic-signature inputs are never touched.
type Renderer struct{}

// NewRenderer creates a visual signature renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderSignatureBlock stamps an opaque signature block (and the optional
// handwritten image) onto the LAST page of the PDF and returns the annotated
// copy. Invalid or zero-page input yields ErrUnsupportedDocumentFormat; the
// caller must never substitute a blank document.
func (r *Renderer) RenderSignatureBlock(pdfBytes []byte, meta BlockMeta) ([]byte, error) {
	if _, err := pdfinfo.CountPages(pdfBytes); err != nil {
		return nil, err
	}

	inFile := filepath.Join(os.TempDir(), fmt.Sprintf("firmadoc-visual-in-%d.pdf", time.Now().UnixNano()))
	outFile := filepath.Join(os.TempDir(), fmt.Sprintf("firmadoc-visual-out-%d.pdf", time.Now().UnixNano()))
	defer os.Remove(inFile)
	defer os.Remove(outFile)

	if err := os.WriteFile(inFile, pdfBytes, 0600); err != nil {
		return nil, fmt.Errorf("fallo al escribir archivo de entrada: %v", err)
	}

	// Solo la ultima pagina lleva el bloque de firma.
	ultimaPagina := []string{"l"}

	wm, err := api.TextWatermark(r.textoBloque(meta), textoBloqueDesc, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("fallo al construir el bloque de firma: %v", err)
	}
	if err := api.AddWatermarksFile(inFile, outFile, ultimaPagina, wm, nil); err != nil {
		return nil, fmt.Errorf("fallo al estampar el bloque de firma: %v", err)
	}

	if len(meta.ImagenManuscrita) > 0 {
		if err := r.estamparImagen(outFile, meta.ImagenManuscrita, ultimaPagina); err != nil {
			return nil, err
		}
	}

	out, err := os.ReadFile(outFile)
	if err != nil {
		return nil, fmt.Errorf("no se pudo leer el PDF anotado: %v", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("PDF anotado vacio")
	}
	return out, nil
}

// Bloque opaco abajo a la derecha, sin rotacion.
const textoBloqueDesc = "fontname:Helvetica, points:9, scalefactor:1 abs, position:br, " +
	"offset:-24 24, rotation:0, color:#1a1a1a, bgcolor:#f5f5f0, border:1 round, " +
	"margins:6, opacity:1"

func (r *Renderer) textoBloque(meta BlockMeta) string {
	titulo := strings.TrimSpace(meta.Titulo)
	if titulo == "" {
		titulo = "DOCUMENTO FIRMADO ELECTRONICAMENTE"
	}
	firmante := strings.TrimSpace(meta.Firmante)
	if firmante == "" {
		firmante = "Desconocido"
	}
	lineas := []string{
		titulo,
		"Firmante: " + firmante,
		"Fecha: " + meta.Fecha.Format("02/01/2006 15:04:05"),
	}
	if h := strings.TrimSpace(meta.HashExtracto); h != "" {
		lineas = append(lineas, "Huella: "+h)
	}
	if v := strings.TrimSpace(meta.Verificacion); v != "" {
		lineas = append(lineas, v)
	}
	return strings.Join(lineas, "\n")
}

// escalaImagen devuelve el factor que encaja la imagen en la caja maxima
// conservando la proporcion y sin ampliar. El cociente puede no ser exacto en
// binario (55/200 redondea hacia arriba al multiplicar), asi que el factor se
// reduce al representable anterior hasta que ancho*escala y alto*escala caben
// exactamente en la caja.
func escalaImagen(ancho, alto int) float64 {
	escala := maxImagenAncho / float64(ancho)
	if s := maxImagenAlto / float64(alto); s < escala {
		escala = s
	}
	if escala > 1 {
		escala = 1
	}
	for float64(ancho)*escala > maxImagenAncho || float64(alto)*escala > maxImagenAlto {
		escala = math.Nextafter(escala, 0)
	}
	return escala
}

// estamparImagen coloca la imagen manuscrita escalada a la caja maxima,
// a la izquierda del bloque de texto para no solaparlo.
func (r *Renderer) estamparImagen(pdfFile string, img []byte, paginas []string) error {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return fmt.Errorf("%w: imagen manuscrita no es PNG/JPEG (%v)", model.ErrUnsupportedDocumentFormat, err)
	}
	if format != "png" && format != "jpeg" {
		return fmt.Errorf("%w: imagen manuscrita en formato %s", model.ErrUnsupportedDocumentFormat, format)
	}
	if cfg.Width < 1 || cfg.Height < 1 {
		return fmt.Errorf("%w: imagen manuscrita sin dimensiones", model.ErrUnsupportedDocumentFormat)
	}

	ext := ".png"
	if format == "jpeg" {
		ext = ".jpg"
	}
	imgFile := filepath.Join(os.TempDir(), fmt.Sprintf("firmadoc-rubrica-%d%s", time.Now().UnixNano(), ext))
	tmpOut := filepath.Join(os.TempDir(), fmt.Sprintf("firmadoc-rubrica-out-%d.pdf", time.Now().UnixNano()))
	defer os.Remove(imgFile)
	defer os.Remove(tmpOut)

	if err := os.WriteFile(imgFile, img, 0600); err != nil {
		return fmt.Errorf("fallo al escribir imagen temporal: %v", err)
	}

	// A 72dpi un pixel equivale a un punto; se conserva la proporcion.
	escala := escalaImagen(cfg.Width, cfg.Height)

	desc := fmt.Sprintf("position:br, offset:-200 30, rotation:0, scalefactor:%.3f abs, opacity:1", escala)
	wm, err := api.ImageWatermark(imgFile, desc, true, false, types.POINTS)
	if err != nil {
		return fmt.Errorf("fallo al construir estampa de imagen: %v", err)
	}
	if err := api.AddWatermarksFile(pdfFile, tmpOut, paginas, wm, nil); err != nil {
		return fmt.Errorf("fallo al estampar imagen manuscrita: %v", err)
	}
	if err := os.Rename(tmpOut, pdfFile); err != nil {
		return fmt.Errorf("no se pudo reemplazar el PDF anotado: %v", err)
	}

	log.Printf("[Visual] imagen manuscrita estampada formato=%s escala=%.3f", format, escala)
	return nil
}
