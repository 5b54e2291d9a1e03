package security

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
)

// CryptoService signs and verifies gateway webhook bodies (RSA-SHA256,
// PKCS#1 v1.5).
type CryptoService interface {
	Sign(payload []byte) ([]byte, error)
	Verify(payload, signature []byte) error
}

// ---- Implementation ----

type cryptoService struct {
	rsaPub  *rsa.PublicKey
	rsaPriv *rsa.PrivateKey // optional; nil => verify-only
}

func NewCryptoService(cm *CryptoMaterial) (CryptoService, error) {
	if cm.RSAPub == nil {
		return nil, errors.New("rsa public key required")
	}
	return &cryptoService{rsaPub: cm.RSAPub, rsaPriv: cm.RSAPri}, nil
}

func (cs *cryptoService) Sign(payload []byte) ([]byte, error) {
	if cs.rsaPriv == nil {
		return nil, errors.New("signing not configured (no RSA private key)")
	}
	sum := sha256.Sum256(payload)
	sig, err := rsa.SignPKCS1v15(rand.Reader, cs.rsaPriv, crypto.SHA256, sum[:])
	if err != nil {
		return nil, fmt.Errorf("rsa sign: %w", err)
	}
	return sig, nil
}

func (cs *cryptoService) Verify(payload, signature []byte) error {
	sum := sha256.Sum256(payload)
	if err := rsa.VerifyPKCS1v15(cs.rsaPub, crypto.SHA256, sum[:], signature); err != nil {
		return fmt.Errorf("rsa verify: %w", err)
	}
	return nil
}
