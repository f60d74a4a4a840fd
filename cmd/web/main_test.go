package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/aeronautyy/math-wallpapers/internal/catalog"
	"github.com/aeronautyy/math-wallpapers/internal/checkout"
	"github.com/aeronautyy/math-wallpapers/internal/handlers"
	mw "github.com/aeronautyy/math-wallpapers/internal/middleware"
	"github.com/aeronautyy/math-wallpapers/internal/pages"
	"github.com/aeronautyy/math-wallpapers/internal/purchase"
	"github.com/aeronautyy/math-wallpapers/internal/session"
)

const wallpaperBytes = "not-really-a-png"

// newTestRouter builds a router similar to main() against temp asset dirs.
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	devMode = true
	templatesDir = "../../templates"
	contentDir = "../../content"
	publicDir = t.TempDir()
	if err := os.MkdirAll(wallpaperDir(), 0o755); err != nil {
		t.Fatalf("mkdir wallpapers: %v", err)
	}
	if err := os.WriteFile(filepath.Join(wallpaperDir(), "lorenz_attractor.png"), []byte(wallpaperBytes), 0o644); err != nil {
		t.Fatalf("write wallpaper: %v", err)
	}
	if _, err := parseTemplates(); err != nil {
		t.Fatalf("parseTemplates: %v", err)
	}

	logger = zap.NewNop()
	var err error
	catalogData, err = catalog.Load()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	sessionStore, err = session.New(session.Config{
		HashKey:  []byte("12345678901234567890123456789012"),
		BlockKey: []byte("abcdefghijklmnopqrstuv0123456789"),
	})
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	tracker = purchase.NewTracker(nil)
	pageLoader = pages.NewLoader(contentDir)
	analyticsCfg = handlers.Analytics{}
	returnCfg = purchase.Config{}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.Logger(logger))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})
	previews := http.StripPrefix("/wallpapers", mw.AssetsWithCache(wallpaperDir(), "/wallpapers"))
	r.Handle("/wallpapers/*", previews)
	r.Get("/", HomeHandler)
	r.Post("/purchase/select", SelectHandler)
	r.Get("/checkout/return", CheckoutReturnHandler)
	r.Get("/download", DownloadHandler)
	r.Post("/api/checkout/event", CheckoutEventHandler)
	r.Handle("/api/validate-session", checkout.NewHandler(checkout.New(""), logger))
	r.Get("/about", PageHandler("about"))
	r.Get("/license", PageHandler("license"))
	return r
}

// jar carries session cookies between requests in a flow test.
type jar struct {
	cookies map[string]*http.Cookie
}

func newJar() *jar { return &jar{cookies: map[string]*http.Cookie{}} }

func (j *jar) update(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(j.cookies, c.Name)
			continue
		}
		j.cookies[c.Name] = c
	}
}

func (j *jar) get(t *testing.T, srv http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	return j.do(t, srv, httptest.NewRequest(http.MethodGet, target, nil))
}

func (j *jar) do(t *testing.T, srv http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	for _, c := range j.cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	j.update(t, rec)
	return rec
}

func (j *jar) selectWallpaper(t *testing.T, srv http.Handler, file, name string) *httptest.ResponseRecorder {
	t.Helper()
	form := "file=" + file + "&name=" + strings.ReplaceAll(name, " ", "+")
	req := httptest.NewRequest(http.MethodPost, "/purchase/select", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return j.do(t, srv, req)
}

func parseDoc(t *testing.T, rec *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func TestHealthzOK(t *testing.T) {
	srv := newTestRouter(t)
	rec := newJar().get(t, srv, "/healthz")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestHomeRendersGallery(t *testing.T) {
	srv := newTestRouter(t)
	rec := newJar().get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body=%s", rec.Code, rec.Body.String())
	}
	doc := parseDoc(t, rec)
	if got := doc.Find(".purchase-form").Length(); got != catalogData.Len() {
		t.Fatalf("purchase forms = %d, want %d", got, catalogData.Len())
	}
	if doc.Find(`script[type="application/ld+json"]`).Length() == 0 {
		t.Fatalf("expected JSON-LD in head")
	}
}

func TestHomeCategoryFilter(t *testing.T) {
	srv := newTestRouter(t)
	rec := newJar().get(t, srv, "/?category=IFS")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Barnsley Fern") {
		t.Fatalf("expected IFS wallpaper in filtered view")
	}
	if strings.Contains(body, "Lorenz Attractor") {
		t.Fatalf("attractors must be filtered out")
	}
}

func TestHomeSearch(t *testing.T) {
	srv := newTestRouter(t)
	rec := newJar().get(t, srv, "/?q=lorenz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	doc := parseDoc(t, rec)
	if got := doc.Find(".purchase-form").Length(); got != 1 {
		t.Fatalf("expected 1 search hit, got %d", got)
	}
}

func TestSelectRedirectsToCheckout(t *testing.T) {
	srv := newTestRouter(t)
	rec := newJar().selectWallpaper(t, srv, "lorenz_attractor.png", "Lorenz Attractor")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, "https://buy.stripe.com/") {
		t.Fatalf("expected redirect to hosted checkout, got %q", loc)
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Fatalf("expected purchase state cookie")
	}
}

func TestSelectRejectsTraversal(t *testing.T) {
	srv := newTestRouter(t)
	rec := newJar().selectWallpaper(t, srv, "..%2F..%2Fetc%2Fpasswd", "Evil")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/?notice=invalid_file" {
		t.Fatalf("location = %q", got)
	}
}

func TestSelectRejectsUnknownWallpaper(t *testing.T) {
	srv := newTestRouter(t)
	rec := newJar().selectWallpaper(t, srv, "not_in_catalog.png", "Ghost")
	if got := rec.Header().Get("Location"); got != "/?notice=invalid_selection" {
		t.Fatalf("location = %q", got)
	}
}

func TestFullPurchaseFlow(t *testing.T) {
	srv := newTestRouter(t)
	j := newJar()

	// 1. Pick a wallpaper; the visitor is sent to hosted checkout.
	rec := j.selectWallpaper(t, srv, "lorenz_attractor.png", "Lorenz Attractor")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("select status = %d", rec.Code)
	}

	// 2. The provider redirects back with a session id. Verification mints the
	// grant and strips the success parameters from the visible URL.
	rec = j.get(t, srv, "/checkout/return?session_id=cs_test_12345")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Fatalf("return = %d %q", rec.Code, rec.Header().Get("Location"))
	}

	// 3. The clean home page shows the success banner with the download link.
	rec = j.get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("home status = %d", rec.Code)
	}
	doc := parseDoc(t, rec)
	href, ok := doc.Find("#download-link").Attr("href")
	if !ok || !strings.HasPrefix(href, "/download?token=") {
		t.Fatalf("download link = %q ok=%v", href, ok)
	}

	// 4. Redeeming the grant streams the file with the derived attachment name.
	rec = j.get(t, srv, href)
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d; location=%q", rec.Code, rec.Header().Get("Location"))
	}
	cd := rec.Header().Get("Content-Disposition")
	if !strings.Contains(cd, `filename="Lorenz_Attractor_by_aeronautyy.png"`) {
		t.Fatalf("content-disposition = %q", cd)
	}
	if rec.Body.String() != wallpaperBytes {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}

	// 5. The grant is single use.
	rec = j.get(t, srv, href)
	if got := rec.Header().Get("Location"); got != "/?notice=no_download" {
		t.Fatalf("replay download location = %q", got)
	}

	// 6. The session id is consumed: replaying the return is rejected even
	// with a fresh selection.
	rec = j.selectWallpaper(t, srv, "lorenz_attractor.png", "Lorenz Attractor")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("re-select status = %d", rec.Code)
	}
	rec = j.get(t, srv, "/checkout/return?session_id=cs_test_12345")
	if got := rec.Header().Get("Location"); got != "/?notice=session_used" {
		t.Fatalf("replay return location = %q", got)
	}
}

func TestReturnWithoutSelection(t *testing.T) {
	srv := newTestRouter(t)
	rec := newJar().get(t, srv, "/checkout/return?session_id=cs_test_12345")
	if got := rec.Header().Get("Location"); got != "/?notice=no_selection" {
		t.Fatalf("location = %q", got)
	}
}

func TestReturnRejectsShortSessionID(t *testing.T) {
	srv := newTestRouter(t)
	j := newJar()
	j.selectWallpaper(t, srv, "lorenz_attractor.png", "Lorenz Attractor")
	rec := j.get(t, srv, "/checkout/return?session_id=short")
	if got := rec.Header().Get("Location"); got != "/?notice=session_invalid" {
		t.Fatalf("location = %q", got)
	}
}

func TestHomeProcessesSuccessSignal(t *testing.T) {
	srv := newTestRouter(t)
	j := newJar()
	j.selectWallpaper(t, srv, "lorenz_attractor.png", "Lorenz Attractor")

	// A provider redirect landing on the root is handled the same way and
	// redirected to a clean URL.
	rec := j.get(t, srv, "/?payment_success=true&session_id=cs_test_99999")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Fatalf("signal on root = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	rec = j.get(t, srv, "/")
	if doc := parseDoc(t, rec); doc.Find("#download-link").Length() != 1 {
		t.Fatalf("expected pending download after root signal")
	}
}

func TestCheckoutEventFlow(t *testing.T) {
	srv := newTestRouter(t)
	j := newJar()
	j.selectWallpaper(t, srv, "lorenz_attractor.png", "Lorenz Attractor")

	req := httptest.NewRequest(http.MethodPost, "/api/checkout/event",
		strings.NewReader(`{"type":"checkout_success","sessionId":"cs_live_0123456789"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := j.do(t, srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Status      string `json:"status"`
		DownloadURL string `json:"downloadUrl"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "downloading" || !strings.HasPrefix(resp.DownloadURL, "/download?token=") {
		t.Fatalf("unexpected response %+v", resp)
	}

	// The download URL from the event response redeems like any other.
	rec = j.get(t, srv, resp.DownloadURL)
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d", rec.Code)
	}
}

func TestCheckoutEventError(t *testing.T) {
	srv := newTestRouter(t)
	j := newJar()
	j.selectWallpaper(t, srv, "lorenz_attractor.png", "Lorenz Attractor")

	req := httptest.NewRequest(http.MethodPost, "/api/checkout/event",
		strings.NewReader(`{"type":"checkout_error","error":"card declined"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := j.do(t, srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "rejected" || resp.Reason != "provider_error" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCheckoutEventBadPayloads(t *testing.T) {
	srv := newTestRouter(t)
	for _, body := range []string{"{not json", `{"type":"mystery"}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/checkout/event", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := newJar().do(t, srv, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d", body, rec.Code)
		}
	}
}

func TestValidateSessionEndpoint(t *testing.T) {
	srv := newTestRouter(t)
	j := newJar()

	rec := j.get(t, srv, "/api/validate-session")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/validate-session",
		strings.NewReader(`{"sessionId":"cs_test_12345"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = j.do(t, srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST status = %d body=%s", rec.Code, rec.Body.String())
	}
	var verdict struct {
		Valid     bool   `json:"valid"`
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !verdict.Valid || verdict.SessionID != "cs_test_12345" {
		t.Fatalf("unexpected verdict %+v", verdict)
	}
}

func TestContentPages(t *testing.T) {
	srv := newTestRouter(t)
	for _, path := range []string{"/about", "/license"} {
		rec := newJar().get(t, srv, path)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d; body=%s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestWallpaperAssetCaching(t *testing.T) {
	srv := newTestRouter(t)
	rec := newJar().get(t, srv, "/wallpapers/lorenz_attractor.png")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("ETag") == "" {
		t.Fatalf("expected ETag on asset response")
	}
	if !strings.Contains(rec.Header().Get("Cache-Control"), "max-age") {
		t.Fatalf("expected cache headers, got %q", rec.Header().Get("Cache-Control"))
	}
}

func TestNoticeBannerRendering(t *testing.T) {
	srv := newTestRouter(t)
	rec := newJar().get(t, srv, "/?notice=session_used")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "already been used") {
		t.Fatalf("expected session_used banner")
	}
	// Unknown codes render no banner.
	rec = newJar().get(t, srv, "/?notice=bogus")
	if doc := parseDoc(t, rec); doc.Find(`[role="status"]`).Length() != 0 {
		t.Fatalf("unexpected banner for unknown code")
	}
}

func TestSelectionExpiry(t *testing.T) {
	srv := newTestRouter(t)
	j := newJar()
	j.selectWallpaper(t, srv, "lorenz_attractor.png", "Lorenz Attractor")

	// Age the stored selection past its TTL by rewriting the cookie.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range j.cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	st := sessionStore.Load(req)
	if st.Selection == nil {
		t.Fatalf("expected stored selection")
	}
	st.Selection.SelectedAt = time.Now().Add(-purchase.SelectionTTL - time.Minute)
	rec := httptest.NewRecorder()
	if err := sessionStore.Save(rec, st); err != nil {
		t.Fatalf("save aged state: %v", err)
	}
	j.update(t, rec)

	res := j.get(t, srv, "/checkout/return?session_id=cs_test_12345")
	if got := res.Header().Get("Location"); got != "/?notice=selection_expired" {
		t.Fatalf("location = %q", got)
	}
}
