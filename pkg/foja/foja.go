// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package foja

import (
	"fmt"
	"sort"

	"firmadoc/pkg/model"
)

// Asignacion is the outcome of assigning a foja range to an incoming document.
type Asignacion struct {
	Rango model.RangoFojas
	// Coerced marks that the page count was invalid and defaulted to 1.
	// El foliado debe poder continuar aunque falle la deteccion de paginas.
	Coerced bool
	// Overlap marks that a manual override collides with existing ranges.
	// Se informa al llamante, nunca se oculta ni se bloquea.
	Overlap bool
}

// NextFoja returns the next free foja for an expediente: 1 when empty,
// max(FojaFinal)+1 otherwise. The maximum is order-independent, so
// out-of-order inserts do not matter.
func NextFoja(docs []model.ExpedienteDocument) int {
	max := 0
	for _, d := range docs {
		if d.FojaFinal > max {
			max = d.FojaFinal
		}
	}
	return max + 1
}

// FojaRange builds the closed interval starting at start for pageCount pages.
// pageCount is coerced to 1 when invalid; the second result reports the
// coercion so the caller can emit a warning.
func FojaRange(start, pageCount int) (model.RangoFojas, bool) {
	coerced := false
	if pageCount < 1 {
		pageCount = 1
		coerced = true
	}
	return model.RangoFojas{Inicial: start, Final: start + pageCount - 1}, coerced
}

// Asignar computes the foja range for a new document. Without override the
// start is NextFoja(docs) and the result is contiguous by construction. With
// an explicit override the calculator does not enforce non-overlap; it only
// flags the collision for the caller.
func Asignar(docs []model.ExpedienteDocument, pageCount int, override *int) Asignacion {
	start := NextFoja(docs)
	if override != nil {
		start = *override
	}
	rango, coerced := FojaRange(start, pageCount)

	out := Asignacion{Rango: rango, Coerced: coerced}
	if override != nil {
		for _, d := range docs {
			if rango.Inicial <= d.FojaFinal && d.FojaInicial <= rango.Final {
				out.Overlap = true
				break
			}
		}
	}
	return out
}

// ValidarContiguidad checks that the assigned ranges of an expediente form a
// contiguous, non-overlapping sequence starting at 1.
func ValidarContiguidad(docs []model.ExpedienteDocument) error {
	if len(docs) == 0 {
		return nil
	}
	ordered := make([]model.ExpedienteDocument, len(docs))
	copy(ordered, docs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].FojaInicial < ordered[j].FojaInicial
	})

	next := 1
	for _, d := range ordered {
		if d.FojaInicial != next {
			return fmt.Errorf("%w: documento %s empieza en foja %d, se esperaba %d",
				model.ErrInvalidFojaState, d.ID, d.FojaInicial, next)
		}
		if d.FojaFinal != d.FojaInicial+d.PageCount-1 {
			return fmt.Errorf("%w: documento %s declara rango [%d,%d] para %d paginas",
				model.ErrInvalidFojaState, d.ID, d.FojaInicial, d.FojaFinal, d.PageCount)
		}
		next = d.FojaFinal + 1
	}
	return nil
}
