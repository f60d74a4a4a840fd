package checkout

import (
	"time"

	"github.com/stripe/stripe-go/v78"
)

// fakeSessions serves deterministic verdicts when no provider key is
// configured: every well-formed id reads back as a freshly paid session.
type fakeSessions struct {
	now func() time.Time
}

func (f fakeSessions) Get(id string, _ *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	now := time.Now
	if f.now != nil {
		now = f.now
	}
	return &stripe.CheckoutSession{
		ID:            id,
		Created:       now().Unix(),
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		Status:        stripe.CheckoutSessionStatusComplete,
	}, nil
}
