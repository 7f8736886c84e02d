// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package model

import "errors"

// Taxonomia de errores del motor. Los fallos de confianza/validez/revocacion
// nunca se recuperan localmente: llegan al llamante tal cual, porque seguir
// adelante produciria un documento con validez legal falsa.
var (
	// ErrInvalidCertificateFile indica un PKCS#12 ilegible o clave erronea.
	ErrInvalidCertificateFile = errors.New("archivo de certificado invalido")

	// ErrCertificateNotTrusted indica un emisor fuera de la lista de confianza.
	ErrCertificateNotTrusted = errors.New("emisor del certificado no confiable")

	// ErrCertificateExpired indica un certificado fuera de su periodo de validez.
	ErrCertificateExpired = errors.New("certificado expirado")

	// ErrCertificateRevoked indica un certificado revocado.
	ErrCertificateRevoked = errors.New("certificado revocado")

	// ErrCertificateUnusable indica estado de revocacion desconocido (fail closed).
	ErrCertificateUnusable = errors.New("certificado no utilizable para firma")

	// ErrDuplicateCertificate indica un numero de serie ya registrado para el titular.
	ErrDuplicateCertificate = errors.New("certificado duplicado")

	// ErrSignatureMismatch indica una firma que no corresponde a los datos.
	ErrSignatureMismatch = errors.New("la firma no corresponde a los datos")

	// ErrConcurrentSigningConflict indica que otro llamante gano la transicion
	// pending->signed del mismo documento.
	ErrConcurrentSigningConflict = errors.New("conflicto de firma concurrente")

	// ErrUnsupportedDocumentFormat indica un PDF invalido o sin paginas.
	ErrUnsupportedDocumentFormat = errors.New("formato de documento no soportado")

	// ErrMergeExhausted indica que todas las estrategias de consolidacion fallaron.
	ErrMergeExhausted = errors.New("todas las estrategias de consolidacion fallaron")

	// ErrInvalidFojaState indica rangos de fojas no contiguos o solapados.
	ErrInvalidFojaState = errors.New("estado de foliado invalido")
)
