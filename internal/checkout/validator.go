// Package checkout proxies session validation to the payment provider. It
// carries no state of its own: given a checkout session id it answers whether
// the provider considers that session paid and recent. The main purchase flow
// does not depend on it; stricter deployments put it in front of downloads.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"go.uber.org/zap"
)

const (
	// sessionIDPrefix is the provider's checkout-session id prefix.
	sessionIDPrefix = "cs_"
	// maxSessionAge rejects stale sessions even when the provider still
	// reports them as paid.
	maxSessionAge = 24 * time.Hour
)

var (
	// ErrBadSessionID indicates an id not matching the provider's format.
	ErrBadSessionID = errors.New("checkout: invalid session id format")
	// ErrSessionTooOld indicates a session past the validation window.
	ErrSessionTooOld = errors.New("checkout: session expired")
)

// Verdict is the validator's answer for one session id.
type Verdict struct {
	Valid         bool   `json:"valid"`
	SessionID     string `json:"sessionId"`
	PaymentStatus string `json:"paymentStatus,omitempty"`
	Status        string `json:"status,omitempty"`
}

// SessionRetriever fetches a checkout session from the provider.
type SessionRetriever interface {
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Validator asks the payment provider whether a session is paid and recent.
type Validator struct {
	sessions SessionRetriever
	now      func() time.Time
	logger   *zap.Logger
}

// Option tunes the validator.
type Option func(*Validator)

// WithClock overrides the clock, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// WithLogger attaches a logger. Secrets never reach log output.
func WithLogger(logger *zap.Logger) Option {
	return func(v *Validator) { v.logger = logger }
}

// WithSessions overrides the provider client, for tests.
func WithSessions(s SessionRetriever) Option {
	return func(v *Validator) { v.sessions = s }
}

// New constructs a Validator. When apiKey is empty and no session client is
// injected, an offline fake serves deterministic verdicts for local runs.
func New(apiKey string, opts ...Option) *Validator {
	v := &Validator{now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(v)
	}
	if v.sessions == nil {
		apiKey = strings.TrimSpace(apiKey)
		if apiKey == "" {
			v.sessions = fakeSessions{now: v.now}
		} else {
			sc := client.New(apiKey, nil)
			v.sessions = sc.CheckoutSessions
		}
	}
	return v
}

// Validate answers whether the session is paid and recent. Format errors and
// stale sessions return typed errors; provider transport failures are wrapped
// and surface as internal errors at the HTTP layer.
func (v *Validator) Validate(ctx context.Context, sessionID string) (Verdict, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || !strings.HasPrefix(sessionID, sessionIDPrefix) {
		return Verdict{}, ErrBadSessionID
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := v.sessions.Get(sessionID, params)
	if err != nil {
		v.logger.Warn("session lookup failed", zap.String("session_id", sessionID))
		return Verdict{}, fmt.Errorf("checkout: retrieve session: %w", err)
	}

	created := time.Unix(sess.Created, 0)
	if v.now().Sub(created) > maxSessionAge {
		return Verdict{}, ErrSessionTooOld
	}

	verdict := Verdict{
		SessionID:     sessionID,
		PaymentStatus: string(sess.PaymentStatus),
		Status:        string(sess.Status),
		Valid: sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid &&
			sess.Status == stripe.CheckoutSessionStatusComplete,
	}
	v.logger.Info("session validated",
		zap.String("session_id", sessionID),
		zap.Bool("valid", verdict.Valid),
	)
	return verdict, nil
}
