package purchase

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// ReturnState tracks progress of one payment-return attempt.
type ReturnState int

const (
	StateIdle ReturnState = iota
	StateAwaitingSignal
	StateVerifying
	StateDownloading
	StateDone
	StateRejected
)

func (s ReturnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingSignal:
		return "awaiting_signal"
	case StateVerifying:
		return "verifying"
	case StateDownloading:
		return "downloading"
	case StateDone:
		return "done"
	case StateRejected:
		return "rejected"
	}
	return "unknown"
}

// Placeholder ids substituted when the provider redirect omits a real session
// id. Kept for fidelity with the historical flow; strict deployments reject
// the signal instead (see Config.RequireSessionID).
const (
	placeholderSuccess         = "stripe_success"
	placeholderCheckoutSuccess = "stripe_checkout_success"
)

// Signal is one payment-return entry signal extracted from the URL or from an
// inbound checkout event.
type Signal struct {
	SessionID   string
	Placeholder bool
	// Err carries the provider-reported error for checkout_error signals.
	Err string
}

// Event mirrors the JSON payload of inbound checkout events.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SignalFromQuery inspects redirect query parameters. Checked once per page
// load: an explicit success flag or session id wins over the generic
// success-path substring match.
func SignalFromQuery(u *url.URL) (Signal, bool) {
	q := u.Query()
	success := q.Get("payment_success")
	sessionID := strings.TrimSpace(q.Get("session_id"))
	if success == "true" || sessionID != "" {
		if sessionID != "" {
			return Signal{SessionID: sessionID}, true
		}
		return Signal{SessionID: placeholderSuccess, Placeholder: true}, true
	}
	raw := u.String()
	if strings.Contains(raw, "success") || strings.Contains(raw, "checkout-success") {
		return Signal{SessionID: placeholderCheckoutSuccess, Placeholder: true}, true
	}
	return Signal{}, false
}

// SignalFromEvent converts an inbound checkout event into a signal.
func SignalFromEvent(e Event) (Signal, bool) {
	switch e.Type {
	case "checkout_success":
		id := strings.TrimSpace(e.SessionID)
		if id == "" {
			return Signal{SessionID: placeholderSuccess, Placeholder: true}, true
		}
		return Signal{SessionID: id}, true
	case "checkout_error":
		msg := strings.TrimSpace(e.Error)
		if msg == "" {
			msg = "an error occurred during payment processing"
		}
		return Signal{Err: msg}, true
	}
	return Signal{}, false
}

// Config tunes return handling.
type Config struct {
	// Now overrides the clock, primarily for tests.
	Now func() time.Time
	// RequireSessionID rejects success signals lacking a provider-supplied
	// session id instead of substituting a placeholder.
	RequireSessionID bool
}

// Handler drives one payment-return attempt. Construct one per page load or
// inbound event; all remembered state lives in the visitor's State.
type Handler struct {
	now     func() time.Time
	strict  bool
	state   ReturnState
	session string
}

// NewHandler builds a return handler.
func NewHandler(cfg Config) *Handler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{now: now, strict: cfg.RequireSessionID, state: StateIdle}
}

// State exposes the current machine state.
func (h *Handler) State() ReturnState { return h.state }

// Process runs the verification chain for a signal and, on success, mints the
// single-use download grant. Any failure is terminal for this attempt: the
// machine lands in Rejected and the caller surfaces the error as a notice.
func (h *Handler) Process(st *State, sig Signal) (*Grant, error) {
	if sig.Err != "" {
		// Provider-reported failure: discard the in-flight selection.
		st.ClearSelection()
		st.ClearGrant()
		h.state = StateRejected
		return nil, fmt.Errorf("%w: %s", ErrProvider, sig.Err)
	}

	h.state = StateAwaitingSignal
	h.session = strings.TrimSpace(sig.SessionID)

	h.state = StateVerifying
	if h.session == "" || len(h.session) < MinSessionIDLen {
		return nil, h.reject(ErrSessionFormat)
	}
	if h.strict && sig.Placeholder {
		return nil, h.reject(ErrSessionFormat)
	}
	if st.SessionUsed(h.session) {
		return nil, h.reject(ErrSessionUsed)
	}
	sel := st.Selection
	if sel == nil {
		return nil, h.reject(ErrNoSelection)
	}
	if h.now().UTC().Sub(sel.SelectedAt) > SelectionTTL {
		st.ClearSelection()
		return nil, h.reject(ErrSelectionExpired)
	}
	if g := st.Grant; g != nil {
		// A grant already exists for this visitor; a duplicate success signal
		// must not mint a second one.
		return nil, h.reject(ErrAlreadyDownloaded)
	}

	// Consume the session id before any download side effect runs.
	st.MarkSessionUsed(h.session)
	grant := &Grant{
		Token:      ulid.Make().String(),
		File:       sel.File,
		Name:       sel.Name,
		SessionID:  h.session,
		VerifiedAt: h.now().UTC(),
	}
	st.Grant = grant
	h.state = StateDownloading
	g := *grant
	return &g, nil
}

// Redeem consumes a pending grant: re-sanitizes the file reference, appends
// the history record and clears all selection state so a reload cannot
// re-trigger the download. At most one redemption per grant.
func (h *Handler) Redeem(st *State, token string) (*Grant, error) {
	g := st.Grant
	if g == nil || token == "" || g.Token != token {
		return nil, h.reject(ErrGrantNotFound)
	}
	if h.now().UTC().Sub(g.VerifiedAt) > DownloadWindow {
		st.ClearGrant()
		st.ClearSelection()
		return nil, h.reject(ErrGrantExpired)
	}
	clean, err := SanitizeFileRef(g.File)
	if err != nil {
		st.ClearGrant()
		st.ClearSelection()
		return nil, h.reject(err)
	}

	grant := *g
	grant.File = clean
	st.AppendDownload(DownloadRecord{
		ID:        ulid.Make().String(),
		File:      clean,
		Name:      grant.Name,
		SessionID: grant.SessionID,
		Timestamp: h.now().UTC(),
	})
	// Clear state before the caller streams bytes: Done must be unreachable
	// twice for the same grant.
	st.ClearGrant()
	st.ClearSelection()
	h.state = StateDone
	h.session = ""
	return &grant, nil
}

func (h *Handler) reject(err error) error {
	h.state = StateRejected
	return err
}
