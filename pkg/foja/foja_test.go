// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package foja

import (
	"errors"
	"testing"
	"time"

	"firmadoc/pkg/model"
)

func doc(id string, seq, inicial, final, paginas int) model.ExpedienteDocument {
	return model.ExpedienteDocument{
		ID:            id,
		ExpedienteID:  "exp-1",
		SequenceOrder: seq,
		FojaInicial:   inicial,
		FojaFinal:     final,
		PageCount:     paginas,
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, seq, 0, time.UTC),
	}
}

func TestNextFojaExpedienteVacio(t *testing.T) {
	if got := NextFoja(nil); got != 1 {
		t.Fatalf("expediente vacio debe empezar en foja 1, se obtuvo %d", got)
	}
}

func TestNextFojaContinuaTrasElMaximo(t *testing.T) {
	docs := []model.ExpedienteDocument{
		doc("a", 1, 1, 3, 3),
		doc("b", 2, 4, 10, 7),
	}
	if got := NextFoja(docs); got != 11 {
		t.Fatalf("se esperaba foja 11, se obtuvo %d", got)
	}
}

func TestNextFojaIgnoraOrdenDeInsercion(t *testing.T) {
	// El segundo documento llega antes en el slice: el resultado no cambia.
	docs := []model.ExpedienteDocument{
		doc("b", 2, 4, 10, 7),
		doc("a", 1, 1, 3, 3),
	}
	if got := NextFoja(docs); got != 11 {
		t.Fatalf("se esperaba foja 11, se obtuvo %d", got)
	}
}

func TestFojaRangeUnaPaginaPorRango(t *testing.T) {
	rango, coerced := FojaRange(5, 3)
	if coerced {
		t.Fatalf("no debia forzarse el numero de paginas")
	}
	if rango.Inicial != 5 || rango.Final != 7 {
		t.Fatalf("rango inesperado: [%d,%d]", rango.Inicial, rango.Final)
	}
}

func TestFojaRangeFuerzaPaginasInvalidas(t *testing.T) {
	for _, paginas := range []int{0, -3} {
		rango, coerced := FojaRange(2, paginas)
		if !coerced {
			t.Fatalf("paginas=%d debia forzarse a 1", paginas)
		}
		if rango.Inicial != 2 || rango.Final != 2 {
			t.Fatalf("paginas=%d: rango inesperado [%d,%d]", paginas, rango.Inicial, rango.Final)
		}
	}
}

func TestAsignarAutomaticoEsContiguo(t *testing.T) {
	docs := []model.ExpedienteDocument{doc("a", 1, 1, 4, 4)}
	asig := Asignar(docs, 2, nil)
	if asig.Overlap || asig.Coerced {
		t.Fatalf("asignacion automatica no debia marcar avisos: %+v", asig)
	}
	if asig.Rango.Inicial != 5 || asig.Rango.Final != 6 {
		t.Fatalf("rango inesperado: [%d,%d]", asig.Rango.Inicial, asig.Rango.Final)
	}
}

func TestAsignarManualMarcaSolape(t *testing.T) {
	docs := []model.ExpedienteDocument{doc("a", 1, 1, 4, 4)}
	inicio := 3
	asig := Asignar(docs, 2, &inicio)
	if !asig.Overlap {
		t.Fatalf("el rango manual [3,4] solapa con [1,4] y debia marcarse")
	}
	if asig.Rango.Inicial != 3 || asig.Rango.Final != 4 {
		t.Fatalf("rango inesperado: [%d,%d]", asig.Rango.Inicial, asig.Rango.Final)
	}
}

func TestAsignarManualSinSolape(t *testing.T) {
	docs := []model.ExpedienteDocument{doc("a", 1, 1, 4, 4)}
	inicio := 20
	asig := Asignar(docs, 2, &inicio)
	if asig.Overlap {
		t.Fatalf("el rango manual [20,21] no solapa con [1,4]")
	}
}

func TestValidarContiguidadAceptaSecuenciaCorrecta(t *testing.T) {
	docs := []model.ExpedienteDocument{
		doc("a", 1, 1, 3, 3),
		doc("b", 2, 4, 4, 1),
		doc("c", 3, 5, 9, 5),
	}
	if err := ValidarContiguidad(docs); err != nil {
		t.Fatalf("secuencia contigua rechazada: %v", err)
	}
}

func TestValidarContiguidadDetectaHueco(t *testing.T) {
	docs := []model.ExpedienteDocument{
		doc("a", 1, 1, 3, 3),
		doc("b", 2, 5, 6, 2), // falta la foja 4
	}
	err := ValidarContiguidad(docs)
	if !errors.Is(err, model.ErrInvalidFojaState) {
		t.Fatalf("se esperaba ErrInvalidFojaState, se obtuvo %v", err)
	}
}

func TestValidarContiguidadDetectaRangoIncoherente(t *testing.T) {
	docs := []model.ExpedienteDocument{
		doc("a", 1, 1, 5, 3), // [1,5] no cuadra con 3 paginas
	}
	err := ValidarContiguidad(docs)
	if !errors.Is(err, model.ErrInvalidFojaState) {
		t.Fatalf("se esperaba ErrInvalidFojaState, se obtuvo %v", err)
	}
}
