// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 Diputacion de Granada
// Autor: Oficina de Software Libre de la Diputacion de Granada

package certmanager

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	pkcs12 "software.sslmate.com/src/go-pkcs12"

	"firmadoc/pkg/applog"
	"firmadoc/pkg/model"
	"firmadoc/pkg/store"
)

const (
	rsaKeyBits      = 2048
	serialRandBytes = 8 // 64 bits de aleatoriedad, 16 caracteres hex
)

// Manager gestiona el ciclo de vida de certificados internos y gubernamentales.
type Manager struct {
	certs              store.CertificateStore
	revoker            *RevocationChecker
	diasValidez        int
	umbralRenovacion   int
	emisoresConfiables []string

	now func() time.Time
	sf  singleflight.Group
}

// New creates a lifecycle manager. emisores is the issuer allow-list for
// imported government certificates (matched against issuer CN or O).
func New(certs store.CertificateStore, revoker *RevocationChecker, diasValidez, umbralRenovacion int, emisores []string) *Manager {
	if diasValidez < 1 {
		diasValidez = 365
	}
	if umbralRenovacion < 0 {
		umbralRenovacion = 30
	}
	return &Manager{
		certs:              certs,
		revoker:            revoker,
		diasValidez:        diasValidez,
		umbralRenovacion:   umbralRenovacion,
		emisoresConfiables: emisores,
		now:                time.Now,
	}
}

// EnsureCertificate returns the owner's usable certificate of the given kind,
// issuing a fresh self-signed one when none exists. Safe under concurrent
// calls: in-process callers collapse via singleflight and cross-process races
// resolve through the storage uniqueness constraint (insert-or-fetch).
func (m *Manager) EnsureCertificate(ctx context.Context, ownerID int64, kind model.CertificateKind) (*model.Certificate, error) {
	key := fmt.Sprintf("%d/%s", ownerID, kind)
	v, err, _ := m.sf.Do(key, func() (interface{}, error) {
		return m.ensureCertificate(ctx, ownerID, kind)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Certificate), nil
}

func (m *Manager) ensureCertificate(ctx context.Context, ownerID int64, kind model.CertificateKind) (*model.Certificate, error) {
	now := m.now()

	existing, err := m.certs.FindActive(ctx, ownerID, kind)
	if err == nil {
		if existing.Vigente(now) {
			return existing, nil
		}
		// El flag activo no se considera verdad: la vigencia se recalcula aqui.
		log.Printf("[CertManager] certificado activo no vigente owner=%d kind=%s serial=%s, se marca expirado",
			ownerID, kind, applog.MaskID(existing.SerialNumber))
		if uerr := m.certs.UpdateStatus(ctx, existing.ID, model.StatusExpired); uerr != nil {
			return nil, fmt.Errorf("no se pudo expirar el certificado %s: %w", existing.ID, uerr)
		}
	} else if !store.IsNotFound(err) {
		return nil, err
	}

	if kind != model.KindInternal {
		return nil, fmt.Errorf("%w: los certificados %s no se autoemiten, deben importarse",
			store.ErrNotFound, kind)
	}

	cert, err := m.emitirInterno(ownerID, now)
	if err != nil {
		return nil, err
	}

	if err := m.certs.Insert(ctx, cert); err != nil {
		if store.IsConflict(err) {
			// Otro llamante gano la carrera: su certificado es el bueno.
			winner, ferr := m.certs.FindActive(ctx, ownerID, kind)
			if ferr != nil {
				return nil, fmt.Errorf("conflicto de emision sin certificado activo visible: %v", ferr)
			}
			log.Printf("[CertManager] emision concurrente owner=%d kind=%s: se reutiliza serial=%s",
				ownerID, kind, applog.MaskID(winner.SerialNumber))
			return winner, nil
		}
		return nil, err
	}

	log.Printf("[CertManager] certificado interno emitido owner=%d serial=%s valido_hasta=%s",
		ownerID, applog.MaskID(cert.SerialNumber), cert.NotAfter.Format(time.RFC3339))
	return cert, nil
}

// emitirInterno genera un par RSA-2048 y un certificado autofirmado.
func (m *Manager) emitirInterno(ownerID int64, now time.Time) (*model.Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("fallo al generar clave RSA: %v", err)
	}

	serialBytes := make([]byte, serialRandBytes)
	if _, err := rand.Read(serialBytes); err != nil {
		return nil, fmt.Errorf("fallo al generar numero de serie: %v", err)
	}
	serialHex := hex.EncodeToString(serialBytes)

	subject := pkix.Name{
		CommonName:   fmt.Sprintf("Firmante interno %d", ownerID),
		Organization: []string{"Plataforma de Expedientes"},
	}
	template := x509.Certificate{
		SerialNumber:          new(big.Int).SetBytes(serialBytes),
		Subject:               subject,
		Issuer:                subject,
		NotBefore:             now.Add(-5 * time.Minute),
		NotAfter:              now.AddDate(0, 0, m.diasValidez),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("fallo al autofirmar certificado: %v", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("fallo al serializar clave PKCS#8: %v", err)
	}

	return &model.Certificate{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		Kind:         model.KindInternal,
		Status:       model.StatusActive,
		SerialNumber: serialHex,
		Issuer:       subject.CommonName,
		Trusted:      true,
		CertPEM:      pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		KeyPEM:       pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}),
		NotBefore:    template.NotBefore,
		NotAfter:     template.NotAfter,
		CreatedAt:    now,
	}, nil
}

// ImportCertificate parses a PKCS#12 bundle and persists its leaf certificate
// as the owner's active government certificate. Nothing is persisted unless
// every check passes.
func (m *Manager) ImportCertificate(ctx context.Context, ownerID int64, p12 []byte, password string) (*model.Certificate, error) {
	now := m.now()
	log.Printf("[CertManager] import start owner=%d %s", ownerID, applog.BytesMeta("p12", p12))

	key, leaf, _, err := pkcs12.DecodeChain(p12, password)
	if err != nil {
		log.Printf("[CertManager] import decode failed owner=%d: %v", ownerID, err)
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidCertificateFile, err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: solo se admiten claves RSA", model.ErrInvalidCertificateFile)
	}
	if leaf == nil {
		return nil, fmt.Errorf("%w: el PKCS#12 no contiene certificado", model.ErrInvalidCertificateFile)
	}

	if now.After(leaf.NotAfter) {
		return nil, fmt.Errorf("%w: valido hasta %s", model.ErrCertificateExpired,
			leaf.NotAfter.Format(time.RFC3339))
	}
	if now.Before(leaf.NotBefore) {
		return nil, fmt.Errorf("%w: aun no vigente (desde %s)", model.ErrCertificateUnusable,
			leaf.NotBefore.Format(time.RFC3339))
	}
	if !m.emisorConfiable(leaf) {
		return nil, fmt.Errorf("%w: %q", model.ErrCertificateNotTrusted, leaf.Issuer.CommonName)
	}

	serialHex := leaf.SerialNumber.Text(16)
	if _, err := m.certs.FindBySerial(ctx, ownerID, serialHex); err == nil {
		return nil, fmt.Errorf("%w: serie %s ya registrada", model.ErrDuplicateCertificate,
			applog.MaskID(serialHex))
	} else if !store.IsNotFound(err) {
		return nil, err
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(rsaKey)
	if err != nil {
		return nil, fmt.Errorf("fallo al serializar clave PKCS#8: %v", err)
	}

	// Un certificado gubernamental nuevo sustituye al activo anterior. Se
	// recuerda el retirado para restaurarlo si la insercion del nuevo falla.
	var anterior *model.Certificate
	if prev, err := m.certs.FindActive(ctx, ownerID, model.KindGovernment); err == nil {
		if uerr := m.certs.UpdateStatus(ctx, prev.ID, model.StatusExpired); uerr != nil {
			return nil, fmt.Errorf("no se pudo retirar el certificado anterior: %w", uerr)
		}
		anterior = prev
	} else if !store.IsNotFound(err) {
		return nil, err
	}

	cert := &model.Certificate{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		Kind:         model.KindGovernment,
		Status:       model.StatusActive,
		SerialNumber: serialHex,
		Issuer:       leaf.Issuer.CommonName,
		Trusted:      true,
		CertPEM:      pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: leaf.Raw}),
		KeyPEM:       pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}),
		NotBefore:    leaf.NotBefore,
		NotAfter:     leaf.NotAfter,
		CreatedAt:    now,
	}
	if err := m.certs.Insert(ctx, cert); err != nil {
		m.restaurarAnterior(ctx, anterior)
		if store.IsConflict(err) {
			return nil, fmt.Errorf("%w: serie %s", model.ErrDuplicateCertificate, applog.MaskID(serialHex))
		}
		return nil, err
	}

	log.Printf("[CertManager] import success owner=%d serial=%s emisor=%q",
		ownerID, applog.MaskID(serialHex), cert.Issuer)
	return cert, nil
}

// restaurarAnterior reactiva el certificado retirado durante un import cuya
// insercion fallo: el titular no debe quedar sin certificado activo. Si otro
// proceso ya inserto un activo, la restauracion choca con la restriccion de
// unicidad y se deja constancia en el log.
func (m *Manager) restaurarAnterior(ctx context.Context, anterior *model.Certificate) {
	if anterior == nil {
		return
	}
	if err := m.certs.UpdateStatus(ctx, anterior.ID, model.StatusActive); err != nil {
		log.Printf("[CertManager] no se pudo restaurar el certificado anterior %s: %v",
			anterior.ID, err)
		return
	}
	log.Printf("[CertManager] certificado anterior restaurado owner=%d serial=%s",
		anterior.OwnerID, applog.MaskID(anterior.SerialNumber))
}

func (m *Manager) emisorConfiable(leaf *x509.Certificate) bool {
	if len(m.emisoresConfiables) == 0 {
		return false
	}
	candidatos := []string{leaf.Issuer.CommonName}
	candidatos = append(candidatos, leaf.Issuer.Organization...)
	for _, permitido := range m.emisoresConfiables {
		for _, c := range candidatos {
			if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(permitido)) {
				return true
			}
		}
	}
	return false
}

// CheckRevocationStatus delegates to the revocation checker. A lookup failure
// yields Unknown, which callers must treat as not usable for signing.
func (m *Manager) CheckRevocationStatus(ctx context.Context, cert *model.Certificate) model.RevocationStatus {
	return m.revoker.Check(ctx, cert)
}

// RenewIfNeeded replaces an internal certificate close to expiry. Government
// certificates cannot be self-renewed; they are returned unchanged.
func (m *Manager) RenewIfNeeded(ctx context.Context, cert *model.Certificate) (*model.Certificate, error) {
	if cert.Kind != model.KindInternal {
		return cert, nil
	}
	dias := cert.DiasParaExpirar(m.now())
	if dias > m.umbralRenovacion {
		return cert, nil
	}

	log.Printf("[CertManager] renovacion owner=%d serial=%s dias_restantes=%d",
		cert.OwnerID, applog.MaskID(cert.SerialNumber), dias)
	if err := m.certs.UpdateStatus(ctx, cert.ID, model.StatusExpired); err != nil {
		return nil, fmt.Errorf("no se pudo desactivar el certificado a renovar: %w", err)
	}
	return m.EnsureCertificate(ctx, cert.OwnerID, cert.Kind)
}
