package purchase

import "errors"

// Every verification failure is terminal for the current attempt; callers map
// these to user-facing notices and never retry automatically.
var (
	// ErrInvalidSelection indicates empty or malformed product identifiers at
	// purchase-click time.
	ErrInvalidSelection = errors.New("purchase: invalid wallpaper selection")
	// ErrUnsafeFileRef indicates a file reference carrying path-separator or
	// parent-directory sequences.
	ErrUnsafeFileRef = errors.New("purchase: unsafe file reference")
	// ErrNoSelection indicates a success signal arrived with no live selection.
	ErrNoSelection = errors.New("purchase: no wallpaper selected")
	// ErrSelectionExpired indicates the stored selection outlived its window.
	ErrSelectionExpired = errors.New("purchase: wallpaper selection expired")
	// ErrSessionFormat indicates a missing or implausibly short session id.
	ErrSessionFormat = errors.New("purchase: invalid payment session id")
	// ErrSessionUsed indicates the session id was already consumed.
	ErrSessionUsed = errors.New("purchase: payment session already used")
	// ErrAlreadyDownloaded indicates a download was already granted for the
	// current session.
	ErrAlreadyDownloaded = errors.New("purchase: download already completed")
	// ErrGrantExpired indicates too much time passed between verification and
	// the download attempt.
	ErrGrantExpired = errors.New("purchase: download window expired")
	// ErrGrantNotFound indicates a redeem attempt with no matching grant.
	ErrGrantNotFound = errors.New("purchase: no pending download")
	// ErrProvider wraps an error signal reported by the checkout provider.
	ErrProvider = errors.New("purchase: checkout reported an error")
)
