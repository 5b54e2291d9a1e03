package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
)

// PaymentSigner computes and checks the processor's confirmation signature:
// hex(HMAC-SHA256(key, intentRef + "|" + confirmationID)).
type PaymentSigner struct {
	key []byte
}

func NewPaymentSigner(key []byte) (*PaymentSigner, error) {
	if len(key) == 0 {
		return nil, errors.New("payment signing key required")
	}
	return &PaymentSigner{key: key}, nil
}

func (s *PaymentSigner) Sign(intentRef, confirmationID string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(intentRef + "|" + confirmationID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *PaymentSigner) VerifyPayment(intentRef, confirmationID, signature string) error {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: signature is not hex", domain.ErrSignatureMismatch)
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(intentRef + "|" + confirmationID))
	if !hmac.Equal(got, mac.Sum(nil)) {
		return fmt.Errorf("%w: intent %s", domain.ErrSignatureMismatch, intentRef)
	}
	return nil
}
