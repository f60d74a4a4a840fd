package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/aeronautyy/math-wallpapers/internal/gallery"
	"github.com/aeronautyy/math-wallpapers/internal/handlers"
	"github.com/aeronautyy/math-wallpapers/internal/httpx"
	"github.com/aeronautyy/math-wallpapers/internal/pages"
	"github.com/aeronautyy/math-wallpapers/internal/purchase"
)

func badgeClass(color string) string { return gallery.BadgeClass(color) }

// noticeMessages maps redirect notice codes to the banner text shown above
// the gallery. Unknown codes render nothing.
var noticeMessages = map[string]handlers.Notice{
	"invalid_selection": {Kind: "error", Message: "Invalid wallpaper selection. Please refresh and try again."},
	"invalid_file":      {Kind: "error", Message: "Invalid wallpaper file. Please contact support."},
	"no_selection":      {Kind: "error", Message: "No wallpaper selected. Please try purchasing again."},
	"selection_expired": {Kind: "error", Message: "Your wallpaper selection has expired. Please start a new purchase."},
	"session_invalid":   {Kind: "error", Message: "Invalid payment session. Please try purchasing again."},
	"session_used":      {Kind: "error", Message: "This payment session has already been used. Please make a new purchase."},
	"already_done":      {Kind: "info", Message: "Download already completed for this payment session."},
	"window_expired":    {Kind: "error", Message: "Payment session expired. Please make a new purchase."},
	"no_download":       {Kind: "error", Message: "No pending download was found. Please make a new purchase."},
	"provider_error":    {Kind: "error", Message: "Payment failed. You have not been charged for an incomplete payment."},
	"file_unavailable":  {Kind: "error", Message: "Your payment was verified but the file could not be served. Please contact support."},
}

// noticeCode maps a purchase error onto its redirect code.
func noticeCode(err error) string {
	switch {
	case errors.Is(err, purchase.ErrInvalidSelection):
		return "invalid_selection"
	case errors.Is(err, purchase.ErrUnsafeFileRef):
		return "invalid_file"
	case errors.Is(err, purchase.ErrNoSelection):
		return "no_selection"
	case errors.Is(err, purchase.ErrSelectionExpired):
		return "selection_expired"
	case errors.Is(err, purchase.ErrSessionFormat):
		return "session_invalid"
	case errors.Is(err, purchase.ErrSessionUsed):
		return "session_used"
	case errors.Is(err, purchase.ErrAlreadyDownloaded):
		return "already_done"
	case errors.Is(err, purchase.ErrGrantExpired):
		return "window_expired"
	case errors.Is(err, purchase.ErrGrantNotFound):
		return "no_download"
	case errors.Is(err, purchase.ErrProvider):
		return "provider_error"
	}
	return "invalid_selection"
}

func redirectNotice(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, "/?notice="+url.QueryEscape(code), http.StatusSeeOther)
}

func saveState(w http.ResponseWriter, r *http.Request, st *purchase.State) {
	if err := sessionStore.Save(w, st); err != nil {
		logger.Error("save purchase state", zap.Error(err), zap.String("path", r.URL.Path))
	}
}

// HomeHandler renders the gallery. When the request URL carries a payment
// success signal (a provider redirect landed on the root), the signal is
// processed first and the visitor is redirected to a clean URL so a reload
// cannot replay it.
func HomeHandler(w http.ResponseWriter, r *http.Request) {
	st := sessionStore.Load(r)

	if sig, ok := purchase.SignalFromQuery(r.URL); ok {
		h := purchase.NewHandler(returnCfg)
		_, err := h.Process(st, sig)
		saveState(w, r, st)
		if err != nil {
			logger.Info("payment signal rejected",
				zap.String("state", h.State().String()),
				zap.String("reason", noticeCode(err)))
			redirectNotice(w, r, noticeCode(err))
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	q := r.URL.Query()
	category := q.Get("category")
	query := q.Get("q")
	var items = catalogData.FilterCategory(category)
	if query != "" {
		items = catalogData.Search(query)
		category = ""
	}

	data := handlers.BuildHomeData(catalogData, items, category, query, r.URL.Path, analyticsCfg)

	// A pending grant means verification just succeeded: show the success
	// banner and let the page auto-trigger the download.
	if g := st.Grant; g != nil && time.Since(g.VerifiedAt) <= purchase.DownloadWindow {
		data.Notice = &handlers.Notice{
			Kind:    "success",
			Message: fmt.Sprintf("Payment verified! Your download of %q will begin automatically.", g.Name),
		}
		data.Download = &handlers.Download{
			Name: g.Name,
			URL:  "/download?token=" + url.QueryEscape(g.Token),
		}
	} else if code := q.Get("notice"); code != "" {
		if n, ok := noticeMessages[code]; ok {
			data.Notice = &n
		}
	}

	render(w, "home", data)
}

// SelectHandler records a purchase click and forwards the visitor to the
// hosted checkout page for the chosen wallpaper.
func SelectHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectNotice(w, r, "invalid_selection")
		return
	}
	st := sessionStore.Load(r)
	sel, err := tracker.Select(st, r.PostFormValue("file"), r.PostFormValue("name"))
	if err != nil {
		logger.Info("selection rejected", zap.Error(err))
		redirectNotice(w, r, noticeCode(err))
		return
	}
	wp, ok := catalogData.ByFile(sel.File)
	if !ok || wp.PurchaseURL == "" {
		st.ClearSelection()
		saveState(w, r, st)
		redirectNotice(w, r, "invalid_selection")
		return
	}
	saveState(w, r, st)
	logger.Info("wallpaper selected", zap.String("file", sel.File))
	http.Redirect(w, r, wp.PurchaseURL, http.StatusSeeOther)
}

// CheckoutReturnHandler is the dedicated provider return URL. It runs the
// same verification as a signal-bearing root request.
func CheckoutReturnHandler(w http.ResponseWriter, r *http.Request) {
	sig, ok := purchase.SignalFromQuery(r.URL)
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	st := sessionStore.Load(r)
	h := purchase.NewHandler(returnCfg)
	_, err := h.Process(st, sig)
	saveState(w, r, st)
	if err != nil {
		logger.Info("checkout return rejected",
			zap.String("state", h.State().String()),
			zap.String("reason", noticeCode(err)))
		redirectNotice(w, r, noticeCode(err))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// DownloadHandler redeems a grant token and streams the wallpaper file. Each
// grant is redeemable once; the state is cleared before bytes are written.
func DownloadHandler(w http.ResponseWriter, r *http.Request) {
	st := sessionStore.Load(r)
	h := purchase.NewHandler(returnCfg)
	grant, err := h.Redeem(st, r.URL.Query().Get("token"))
	saveState(w, r, st)
	if err != nil {
		redirectNotice(w, r, noticeCode(err))
		return
	}

	f, err := os.Open(filepath.Join(wallpaperDir(), grant.File))
	if err != nil {
		logger.Error("wallpaper file unavailable", zap.String("file", grant.File), zap.Error(err))
		redirectNotice(w, r, "file_unavailable")
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil || fi.IsDir() {
		logger.Error("wallpaper file unavailable", zap.String("file", grant.File), zap.Error(err))
		redirectNotice(w, r, "file_unavailable")
		return
	}

	logger.Info("download served",
		zap.String("file", grant.File),
		zap.String("session", grant.SessionID))
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", purchase.DownloadFileName(grant.Name)))
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, "", fi.ModTime(), f)
}

type eventResponse struct {
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
	File        string `json:"file,omitempty"`
	DownloadURL string `json:"downloadUrl,omitempty"`
}

// CheckoutEventHandler accepts checkout outcome events posted by the client
// and runs them through the same verification chain as a redirect signal.
func CheckoutEventHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var evt purchase.Event
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&evt); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("bad_request", "invalid JSON body", http.StatusBadRequest))
		return
	}
	sig, ok := purchase.SignalFromEvent(evt)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unknown_event", "unsupported event type", http.StatusBadRequest))
		return
	}

	st := sessionStore.Load(r)
	h := purchase.NewHandler(returnCfg)
	grant, err := h.Process(st, sig)
	saveState(w, r, st)
	if err != nil {
		logger.Info("checkout event rejected",
			zap.String("type", evt.Type),
			zap.String("reason", noticeCode(err)))
		httpx.WriteJSON(w, http.StatusOK, eventResponse{
			Status: h.State().String(),
			Reason: noticeCode(err),
		})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, eventResponse{
		Status:      h.State().String(),
		File:        grant.File,
		DownloadURL: "/download?token=" + url.QueryEscape(grant.Token),
	})
}

// PageHandler serves a markdown content page by slug.
func PageHandler(slug string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := pageLoader.Get(slug)
		if err != nil {
			if errors.Is(err, pages.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			logger.Error("load content page", zap.String("slug", slug), zap.Error(err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		var updated string
		if !page.UpdatedAt.IsZero() {
			updated = page.UpdatedAt.Format("Jan 2, 2006")
		}
		data := handlers.BuildPageData(page.Title, r.URL.Path, page.Body, updated, analyticsCfg)
		render(w, "page", data)
	}
}
