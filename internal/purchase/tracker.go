package purchase

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Tracker records purchase-control clicks into the visitor's state. A new
// click always overwrites the previous in-flight selection.
type Tracker struct {
	now func() time.Time
}

// NewTracker builds a tracker. now may be nil.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now}
}

// Select validates the clicked wallpaper and stores it as the single live
// selection. Nothing is stored when validation fails.
func (t *Tracker) Select(st *State, file, name string) (*Selection, error) {
	file = strings.TrimSpace(file)
	name = strings.TrimSpace(name)
	if file == "" || name == "" {
		return nil, ErrInvalidSelection
	}
	if err := ValidateFileRef(file); err != nil {
		return nil, err
	}

	// A fresh click invalidates any prior in-flight purchase.
	st.ClearGrant()
	sel := &Selection{
		File:       file,
		Name:       name,
		SelectedAt: t.now().UTC(),
		Token:      uuid.NewString(),
	}
	st.Selection = sel
	return sel, nil
}

// Current returns the live selection, clearing it when expired.
func (t *Tracker) Current(st *State) *Selection {
	sel := st.Selection
	if sel == nil {
		return nil
	}
	if t.now().UTC().Sub(sel.SelectedAt) > SelectionTTL {
		st.ClearSelection()
		return nil
	}
	return sel
}
