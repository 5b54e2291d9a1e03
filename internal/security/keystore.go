package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/aq2208/gorder-settlement/configs"
)

// CryptoMaterial holds the keys shared with the payment gateway.
type CryptoMaterial struct {
	KeyID   string
	HMACKey []byte          // confirmation signatures
	RSAPub  *rsa.PublicKey  // webhook verification; nil disables the webhook
	RSAPri  *rsa.PrivateKey // sandbox webhook signing only
}

func NewCryptoMaterial(c configs.Config) (*CryptoMaterial, error) {
	cm, err := LoadCryptoMaterial(c)
	return &cm, err
}

func LoadCryptoMaterial(c configs.Config) (CryptoMaterial, error) {
	gw := c.PaymentGateway
	if gw.KeySecretB64 == "" {
		return CryptoMaterial{}, errors.New("missing payment_gateway.key_secret_b64url")
	}
	// --- HMAC key ---
	key, err := base64.RawURLEncoding.DecodeString(gw.KeySecretB64)
	if err != nil {
		return CryptoMaterial{}, fmt.Errorf("decode key_secret_b64url: %w", err)
	}
	if len(key) < 16 {
		return CryptoMaterial{}, fmt.Errorf("payment key must be at least 16 bytes, got %d", len(key))
	}

	// --- RSA public key (optional) ---
	var pub *rsa.PublicKey
	if gw.WebhookPubPEM != "" {
		if pub, err = parseRSAPublicKeyFromPEM([]byte(gw.WebhookPubPEM)); err != nil {
			return CryptoMaterial{}, fmt.Errorf("parse webhook pub pem: %w", err)
		}
	}

	// --- RSA private key (optional) ---
	var pri *rsa.PrivateKey
	if gw.WebhookPriPEM != "" {
		if pri, err = parseRSAPrivateKeyFromPEM([]byte(gw.WebhookPriPEM)); err != nil {
			return CryptoMaterial{}, fmt.Errorf("parse webhook pri pem: %w", err)
		}
	}

	id := gw.KeyID
	if id == "" {
		id = "v1"
	}
	return CryptoMaterial{
		KeyID:   id,
		HMACKey: key,
		RSAPub:  pub,
		RSAPri:  pri,
	}, nil
}

func parseRSAPublicKeyFromPEM(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no pem block")
	}
	pubAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := pubAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not rsa public key")
	}
	return pub, nil
}

func parseRSAPrivateKeyFromPEM(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no pem block in RSA private key")
	}

	// try PKCS#8 first
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err == nil {
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return rsaKey, nil
		}
		return nil, errors.New("not an RSA private key in PKCS#8")
	}

	// fallback to PKCS#1
	rsaKey, err2 := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err2 != nil {
		return nil, fmt.Errorf("parse RSA private key failed (PKCS#8: %v, PKCS#1: %v)", err, err2)
	}
	return rsaKey, nil
}
