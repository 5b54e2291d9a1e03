// Package gateway holds the in-process sandbox payment processor used for
// local runs and tests when no real gateway is reachable.
package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
	"github.com/aq2208/gorder-settlement/internal/usecase"
)

type Signer interface {
	Sign(intentRef, confirmationID string) string
}

type sandboxIntent struct {
	Amount   domain.Money
	Currency string
	Metadata map[string]string
}

// SandboxProcessor mints intent refs and, on request, signed confirmations
// the way the real gateway would after a successful capture.
type SandboxProcessor struct {
	signer Signer

	mu      sync.Mutex
	intents map[string]sandboxIntent
}

func NewSandboxProcessor(signer Signer) *SandboxProcessor {
	return &SandboxProcessor{signer: signer, intents: map[string]sandboxIntent{}}
}

func (s *SandboxProcessor) CreateIntent(_ context.Context, amount domain.Money, currency string, md map[string]string) (string, error) {
	if amount <= 0 {
		return "", domain.ErrInvalidAmount
	}
	ref := "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	s.mu.Lock()
	s.intents[ref] = sandboxIntent{Amount: amount, Currency: currency, Metadata: md}
	s.mu.Unlock()
	return ref, nil
}

// Capture simulates a successful payment and returns what the gateway
// would hand back to the client.
func (s *SandboxProcessor) Capture(intentRef string) (confirmationID, signature string, err error) {
	s.mu.Lock()
	_, ok := s.intents[intentRef]
	s.mu.Unlock()
	if !ok {
		return "", "", errors.New("sandbox: unknown intent " + intentRef)
	}
	confirmationID = "pay_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	return confirmationID, s.signer.Sign(intentRef, confirmationID), nil
}

func (s *SandboxProcessor) Amount(intentRef string) (domain.Money, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.intents[intentRef]
	return in.Amount, ok
}

var _ usecase.PaymentProcessor = (*SandboxProcessor)(nil)
