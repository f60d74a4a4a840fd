// Package pages serves the static content pages (about, license) from local
// markdown files with YAML front matter.
package pages

import (
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"
)

// ErrNotFound indicates the requested page does not exist.
var ErrNotFound = errors.New("pages: not found")

const defaultContentDir = "content"

// Page is a rendered content page.
type Page struct {
	Slug      string
	Title     string
	Summary   string
	Body      template.HTML
	UpdatedAt time.Time
}

type frontMatter struct {
	Title     string `yaml:"title"`
	Summary   string `yaml:"summary"`
	UpdatedAt string `yaml:"updated_at"`
}

var (
	md     = goldmark.New()
	policy = bluemonday.UGCPolicy()

	cache = struct {
		mu    sync.RWMutex
		items map[string]cacheEntry
	}{items: map[string]cacheEntry{}}
	cacheTTL = 5 * time.Minute
)

type cacheEntry struct {
	page    Page
	expires time.Time
}

// SetCacheDuration overrides the in-memory cache duration (for tests).
func SetCacheDuration(d time.Duration) {
	if d <= 0 {
		d = time.Minute
	}
	cacheTTL = d
}

// Loader reads pages from a content directory.
type Loader struct {
	dir string
}

// NewLoader builds a loader rooted at dir (default "content").
func NewLoader(dir string) *Loader {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = defaultContentDir
	}
	return &Loader{dir: dir}
}

// Get loads a page by slug, consulting the cache first.
func (l *Loader) Get(slug string) (Page, error) {
	slug = sanitizeSlug(slug)
	if slug == "" {
		return Page{}, ErrNotFound
	}
	if page, ok := cached(slug); ok {
		return page, nil
	}
	page, err := l.read(slug)
	if err != nil {
		return Page{}, err
	}
	store(slug, page)
	return page, nil
}

func (l *Loader) read(slug string) (Page, error) {
	file := filepath.Join(l.dir, slug+".md")
	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Page{}, ErrNotFound
		}
		return Page{}, err
	}
	fm, body := splitFrontMatter(string(data))
	front := frontMatter{}
	if strings.TrimSpace(fm) != "" {
		if err := yaml.Unmarshal([]byte(fm), &front); err != nil {
			return Page{}, fmt.Errorf("pages: parse front matter %s: %w", file, err)
		}
	}
	page := Page{
		Slug:    slug,
		Title:   strings.TrimSpace(front.Title),
		Summary: strings.TrimSpace(front.Summary),
		Body:    renderBody(body),
	}
	if page.Title == "" {
		page.Title = prettifySlug(slug)
	}
	page.UpdatedAt = parseDate(front.UpdatedAt)
	if page.UpdatedAt.IsZero() {
		if info, err := os.Stat(file); err == nil {
			page.UpdatedAt = info.ModTime()
		}
	}
	return page, nil
}

func renderBody(body string) template.HTML {
	var buf strings.Builder
	if err := md.Convert([]byte(body), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(body))
	}
	return template.HTML(policy.Sanitize(buf.String()))
}

func splitFrontMatter(input string) (string, string) {
	input = strings.TrimLeft(input, "\ufeff")
	lines := strings.Split(input, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return "", input
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.Join(lines[1:i], "\n"),
				strings.TrimLeft(strings.Join(lines[i+1:], "\n"), "\n\r")
		}
	}
	return "", input
}

func parseDate(v string) time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006/01/02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func prettifySlug(slug string) string {
	parts := strings.Split(slug, "-")
	for i, part := range parts {
		if part == "" {
			continue
		}
		runes := []rune(part)
		if runes[0] >= 'a' && runes[0] <= 'z' {
			runes[0] -= 'a' - 'A'
		}
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}

func sanitizeSlug(slug string) string {
	slug = strings.Trim(strings.TrimSpace(strings.ToLower(slug)), "/")
	if slug == "" || strings.Contains(slug, "..") ||
		strings.ContainsRune(slug, os.PathSeparator) || strings.Contains(slug, "/") {
		return ""
	}
	return slug
}

func cached(key string) (Page, bool) {
	cache.mu.RLock()
	entry, ok := cache.items[key]
	cache.mu.RUnlock()
	if !ok || time.Now().After(entry.expires) {
		return Page{}, false
	}
	return entry.page, true
}

func store(key string, page Page) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.items[key] = cacheEntry{page: page, expires: time.Now().Add(cacheTTL)}
}
