package main

import (
	"flag"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aeronautyy/math-wallpapers/internal/catalog"
	"github.com/aeronautyy/math-wallpapers/internal/checkout"
	"github.com/aeronautyy/math-wallpapers/internal/handlers"
	mw "github.com/aeronautyy/math-wallpapers/internal/middleware"
	"github.com/aeronautyy/math-wallpapers/internal/pages"
	"github.com/aeronautyy/math-wallpapers/internal/purchase"
	"github.com/aeronautyy/math-wallpapers/internal/session"
)

var (
	templatesDir = "templates"
	publicDir    = "public"
	contentDir   = "content"
	// devMode is set in main() based on env: MATHWALL_DEV (preferred) or DEV (fallback)
	devMode   bool
	tmplCache map[string]*template.Template

	logger       *zap.Logger
	catalogData  *catalog.Catalog
	sessionStore *session.Store
	tracker      *purchase.Tracker
	pageLoader   *pages.Loader
	analyticsCfg handlers.Analytics
	returnCfg    purchase.Config
)

// pageTemplates are the page entry points; each is parsed together with the
// base layout and partials.
var pageTemplates = []string{"home", "page"}

func main() {
	var (
		addr        string
		tmplPath    string
		pubPath     string
		contentPath string
		catalogPath string
	)
	// Port resolution: prefer MATHWALL_PORT, then PORT, else 8080
	port := os.Getenv("MATHWALL_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = "8080"
	}
	flag.StringVar(&addr, "addr", ":"+port, "HTTP listen address")
	flag.StringVar(&tmplPath, "templates", templatesDir, "templates directory")
	flag.StringVar(&pubPath, "public", publicDir, "public assets directory")
	flag.StringVar(&contentPath, "content", contentDir, "content pages directory")
	flag.StringVar(&catalogPath, "catalog", "", "catalog YAML override (default: embedded)")
	flag.Parse()

	templatesDir = tmplPath
	publicDir = pubPath
	contentDir = contentPath
	devMode = os.Getenv("MATHWALL_DEV") != "" || os.Getenv("DEV") != ""

	var err error
	logger, err = newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if catalogPath != "" {
		catalogData, err = catalog.LoadFile(catalogPath)
	} else {
		catalogData, err = catalog.Load()
	}
	if err != nil {
		logger.Fatal("load catalog", zap.Error(err))
	}

	if !devMode {
		// Parse templates once in production
		tc, err := parseTemplates()
		if err != nil {
			logger.Fatal("parse templates", zap.Error(err))
		}
		tmplCache = tc
	}

	sessionStore, err = session.New(sessionConfigFromEnv())
	if err != nil {
		logger.Fatal("session store", zap.Error(err))
	}
	tracker = purchase.NewTracker(nil)
	pageLoader = pages.NewLoader(contentDir)
	analyticsCfg = handlers.LoadAnalyticsFromEnv()
	returnCfg = purchase.Config{
		RequireSessionID: os.Getenv("MATHWALL_REQUIRE_SESSION_ID") != "",
	}

	validator := checkout.New(os.Getenv("MATHWALL_STRIPE_API_KEY"), checkout.WithLogger(logger))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	// If deployed behind a trusted reverse proxy/load balancer, RealIP will use
	// X-Forwarded-For to determine the client IP. Ensure only trusted proxies
	// can set these headers in production environments.
	r.Use(middleware.RealIP)
	r.Use(mw.Logger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(middleware.Timeout(30 * time.Second))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Wallpaper previews under /wallpapers/
	previews := http.StripPrefix("/wallpapers", mw.AssetsWithCache(wallpaperDir(), "/wallpapers"))
	r.Handle("/wallpapers/*", previews)

	r.Get("/", HomeHandler)
	r.Post("/purchase/select", SelectHandler)
	r.Get("/checkout/return", CheckoutReturnHandler)
	r.Get("/download", DownloadHandler)
	r.Post("/api/checkout/event", CheckoutEventHandler)
	// the validator handler answers 405 for non-POST itself
	r.Handle("/api/validate-session", checkout.NewHandler(validator, logger))
	r.Get("/about", PageHandler("about"))
	r.Get("/license", PageHandler("license"))

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("web listening", zap.String("addr", addr), zap.Bool("dev", devMode))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("listen", zap.Error(err))
	}
}

func wallpaperDir() string {
	return filepath.Join(publicDir, "wallpapers")
}

func newLogger() (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))))); err != nil {
		_ = level.UnmarshalText([]byte("info"))
	}
	cfg := zap.Config{
		Level:    level,
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey: "message",
			TimeKey:    "timestamp",
			LevelKey:   "severity",
			EncodeTime: zapcore.RFC3339NanoTimeEncoder,
			EncodeLevel: func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
				enc.AppendString(strings.ToUpper(l.String()))
			},
		},
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
	}
	return cfg.Build()
}

func sessionConfigFromEnv() session.Config {
	cfg := session.Config{
		CookieSecure: strings.ToLower(os.Getenv("MATHWALL_ENV")) == "prod",
	}
	if key := os.Getenv("MATHWALL_SESSION_HASH_KEY"); key != "" {
		cfg.HashKey = []byte(key)
	} else {
		cfg.HashKey = session.EphemeralKey()
		logger.Warn("using ephemeral session signing key; set MATHWALL_SESSION_HASH_KEY for production")
	}
	if key := os.Getenv("MATHWALL_SESSION_BLOCK_KEY"); key != "" {
		cfg.BlockKey = []byte(key)
	}
	return cfg
}

func parseTemplates() (map[string]*template.Template, error) {
	funcMap := template.FuncMap{
		"now":        time.Now,
		"badgeClass": badgeClass,
		// safeHTML injects server-generated markup (JSON-LD) verbatim.
		"safeHTML": func(s string) template.HTML { return template.HTML(s) },
	}
	shared := []string{
		filepath.Join(templatesDir, "base.tmpl"),
		filepath.Join(templatesDir, "partials", "banner.tmpl"),
		filepath.Join(templatesDir, "partials", "card.tmpl"),
	}
	out := make(map[string]*template.Template, len(pageTemplates))
	for _, name := range pageTemplates {
		files := append(append([]string(nil), shared...), filepath.Join(templatesDir, name+".tmpl"))
		t, err := template.New(name).Funcs(funcMap).ParseFiles(files...)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		out[name] = t
	}
	return out, nil
}

// render executes the base layout for the named page. In dev mode, templates
// are reparsed on each request.
func render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	cacheMap := tmplCache
	if devMode {
		tc, err := parseTemplates()
		if err != nil {
			http.Error(w, fmt.Sprintf("template parse error: %v", err), http.StatusInternalServerError)
			return
		}
		cacheMap = tc
	}
	t := cacheMap[name]
	if t == nil {
		http.Error(w, "template not initialized", http.StatusInternalServerError)
		return
	}
	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		http.Error(w, fmt.Sprintf("template exec error: %v", err), http.StatusInternalServerError)
		return
	}
}
