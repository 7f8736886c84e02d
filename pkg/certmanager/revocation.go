// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package certmanager

import (
	"bytes"
	"context"
	"crypto/x509"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/crypto/ocsp"

	"firmadoc/pkg/applog"
	"firmadoc/pkg/model"
)

const (
	// Una respuesta no concluyente se reintenta pronto; nunca se asume buena.
	unknownRetryInterval = 5 * time.Minute
	maxOCSPResponseSize  = 1 << 20
)

// RevocationChecker consulta el estado de revocacion via OCSP y cachea las
// respuestas definitivas. Un fallo de consulta devuelve estado desconocido:
// el llamante decide, y para firma oficial eso significa rechazar (fail closed).
type RevocationChecker struct {
	cache  *gocache.Cache
	client *http.Client
	ttl    time.Duration
	now    func() time.Time

	// Stub point for tests.
	fetchFunc func(ctx context.Context, leaf, issuer *x509.Certificate, url string) (*ocsp.Response, error)
}

// NewRevocationChecker creates a checker with the given lookup timeout and
// cache TTL for definitive answers.
func NewRevocationChecker(timeout, ttl time.Duration) *RevocationChecker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	r := &RevocationChecker{
		cache:  gocache.New(ttl, 2*ttl),
		client: &http.Client{Timeout: timeout},
		ttl:    ttl,
		now:    time.Now,
	}
	r.fetchFunc = r.fetchOCSP
	return r
}

// Check resolves the revocation status of a stored certificate.
func (r *RevocationChecker) Check(ctx context.Context, cert *model.Certificate) model.RevocationStatus {
	now := r.now()

	// La revocacion local (soft-revoke) manda sobre cualquier fuente externa.
	if cert.Status == model.StatusRevoked {
		return model.RevocationStatus{
			Revoked:   true,
			Reason:    "revocado en la plataforma",
			CheckedAt: now,
			NextCheck: now.Add(r.ttl),
		}
	}

	if cached, ok := r.cache.Get(cert.SerialNumber); ok {
		st := cached.(model.RevocationStatus)
		if now.Before(st.NextCheck) {
			return st
		}
	}

	st := r.consultar(ctx, cert, now)
	if !st.Unknown {
		r.cache.Set(cert.SerialNumber, st, st.NextCheck.Sub(now))
	}
	return st
}

func (r *RevocationChecker) consultar(ctx context.Context, cert *model.Certificate, now time.Time) model.RevocationStatus {
	leaf, err := cert.X509()
	if err != nil {
		log.Printf("[Revocacion] certificado ilegible serial=%s: %v", applog.MaskID(cert.SerialNumber), err)
		return r.desconocido(now, fmt.Sprintf("certificado ilegible: %v", err))
	}

	// Sin punto de consulta OCSP no hay fuente externa: los certificados
	// internos autoemitidos se gobiernan solo por el estado de plataforma.
	if len(leaf.OCSPServer) == 0 {
		return model.RevocationStatus{
			Revoked:   false,
			CheckedAt: now,
			NextCheck: now.Add(r.ttl),
		}
	}

	issuer, err := r.resolverEmisor(ctx, leaf)
	if err != nil {
		log.Printf("[Revocacion] emisor no resoluble serial=%s: %v", applog.MaskID(cert.SerialNumber), err)
		return r.desconocido(now, fmt.Sprintf("emisor no resoluble: %v", err))
	}

	var lastErr error
	for _, url := range leaf.OCSPServer {
		resp, err := r.fetchFunc(ctx, leaf, issuer, url)
		if err != nil {
			lastErr = err
			log.Printf("[Revocacion] consulta OCSP fallida url=%s serial=%s: %v",
				url, applog.MaskID(cert.SerialNumber), err)
			continue
		}
		return r.interpretar(resp, now)
	}
	return r.desconocido(now, fmt.Sprintf("todas las consultas OCSP fallaron: %v", lastErr))
}

func (r *RevocationChecker) interpretar(resp *ocsp.Response, now time.Time) model.RevocationStatus {
	next := resp.NextUpdate
	if next.IsZero() || next.Before(now) {
		next = now.Add(r.ttl)
	}
	switch resp.Status {
	case ocsp.Good:
		return model.RevocationStatus{Revoked: false, CheckedAt: now, NextCheck: next}
	case ocsp.Revoked:
		return model.RevocationStatus{
			Revoked:   true,
			Reason:    fmt.Sprintf("revocado el %s (%s)", resp.RevokedAt.Format(time.RFC3339), motivoRevocacion(resp.RevocationReason)),
			CheckedAt: now,
			NextCheck: next,
		}
	default:
		return r.desconocido(now, "el OCSP respondio estado desconocido")
	}
}

func (r *RevocationChecker) desconocido(now time.Time, reason string) model.RevocationStatus {
	return model.RevocationStatus{
		Unknown:   true,
		Reason:    reason,
		CheckedAt: now,
		NextCheck: now.Add(unknownRetryInterval),
	}
}

// resolverEmisor obtains the issuer certificate needed to build the OCSP
// request: the leaf itself when self-signed, or the AIA-published issuer.
func (r *RevocationChecker) resolverEmisor(ctx context.Context, leaf *x509.Certificate) (*x509.Certificate, error) {
	if bytes.Equal(leaf.RawIssuer, leaf.RawSubject) {
		return leaf, nil
	}
	for _, url := range leaf.IssuingCertificateURL {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			continue
		}
		resp, err := r.client.Do(req)
		if err != nil {
			continue
		}
		der, err := io.ReadAll(io.LimitReader(resp.Body, maxOCSPResponseSize))
		resp.Body.Close()
		if err != nil {
			continue
		}
		issuer, err := x509.ParseCertificate(der)
		if err != nil {
			continue
		}
		return issuer, nil
	}
	return nil, fmt.Errorf("sin certificado de emisor disponible")
}

func (r *RevocationChecker) fetchOCSP(ctx context.Context, leaf, issuer *x509.Certificate, url string) (*ocsp.Response, error) {
	reqDER, err := ocsp.CreateRequest(leaf, issuer, nil)
	if err != nil {
		return nil, fmt.Errorf("no se pudo construir la peticion OCSP: %v", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqDER))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/ocsp-request")
	httpReq.Header.Set("Accept", "application/ocsp-response")

	httpResp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OCSP respondio HTTP %d", httpResp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxOCSPResponseSize))
	if err != nil {
		return nil, err
	}
	return ocsp.ParseResponseForCert(raw, leaf, issuer)
}

func motivoRevocacion(code int) string {
	switch code {
	case ocsp.KeyCompromise:
		return "clave comprometida"
	case ocsp.CACompromise:
		return "CA comprometida"
	case ocsp.AffiliationChanged:
		return "cambio de afiliacion"
	case ocsp.Superseded:
		return "sustituido"
	case ocsp.CessationOfOperation:
		return "cese de operaciones"
	case ocsp.CertificateHold:
		return "suspension temporal"
	default:
		return "sin motivo declarado"
	}
}
