package purchase

import (
	"time"
)

// Retention bounds and expiry windows carried over from the production flow.
const (
	// SelectionTTL is how long a wallpaper selection stays redeemable.
	SelectionTTL = 30 * time.Minute
	// DownloadWindow bounds the time between verification and download.
	DownloadWindow = 10 * time.Minute
	// MaxUsedSessions caps the consumed-session set.
	MaxUsedSessions = 50
	// MaxDownloadHistory caps the download log.
	MaxDownloadHistory = 100
	// MinSessionIDLen is a format sanity bound, not a cryptographic check.
	MinSessionIDLen = 10
)

// Selection records which wallpaper the visitor most recently intends to buy.
type Selection struct {
	File       string    `json:"file"`
	Name       string    `json:"name"`
	SelectedAt time.Time `json:"selectedAt"`
	// Token is an opaque per-selection marker, not a credential.
	Token string `json:"token"`
}

// DownloadRecord is one informational entry in the download history.
type DownloadRecord struct {
	ID        string    `json:"id"`
	File      string    `json:"file"`
	Name      string    `json:"name"`
	SessionID string    `json:"sessionId"`
	Timestamp time.Time `json:"timestamp"`
}

// Grant authorizes exactly one download after a verified payment return.
type Grant struct {
	Token      string    `json:"token"`
	File       string    `json:"file"`
	Name       string    `json:"name"`
	SessionID  string    `json:"sessionId"`
	VerifiedAt time.Time `json:"verifiedAt"`
}

// State is the per-browser purchase state persisted in the session cookie.
// It is a convenience/anti-double-download heuristic, not a security
// boundary: the visitor fully controls their own cookie jar.
type State struct {
	Selection    *Selection       `json:"selection,omitempty"`
	UsedSessions []string         `json:"usedSessions,omitempty"`
	Downloads    []DownloadRecord `json:"downloads,omitempty"`
	Grant        *Grant           `json:"grant,omitempty"`
}

// SessionUsed reports whether the session id was already consumed.
func (s *State) SessionUsed(sessionID string) bool {
	for _, id := range s.UsedSessions {
		if id == sessionID {
			return true
		}
	}
	return false
}

// MarkSessionUsed appends the session id, evicting oldest entries beyond the
// bound.
func (s *State) MarkSessionUsed(sessionID string) {
	s.UsedSessions = append(s.UsedSessions, sessionID)
	if n := len(s.UsedSessions); n > MaxUsedSessions {
		s.UsedSessions = append(s.UsedSessions[:0:0], s.UsedSessions[n-MaxUsedSessions:]...)
	}
}

// AppendDownload records a download, evicting oldest entries beyond the bound.
func (s *State) AppendDownload(rec DownloadRecord) {
	s.Downloads = append(s.Downloads, rec)
	if n := len(s.Downloads); n > MaxDownloadHistory {
		s.Downloads = append(s.Downloads[:0:0], s.Downloads[n-MaxDownloadHistory:]...)
	}
}

// ClearSelection drops the live selection.
func (s *State) ClearSelection() { s.Selection = nil }

// ClearGrant drops the pending download grant.
func (s *State) ClearGrant() { s.Grant = nil }
