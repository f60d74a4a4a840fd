// Package catalog holds the static wallpaper catalog. Records are loaded once
// from the embedded YAML file (or an on-disk override) and never mutated;
// filter and search produce derived slices in catalog order.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed wallpapers.yaml
var embeddedData []byte

// Wallpaper is one purchasable catalog record.
type Wallpaper struct {
	Name        string `yaml:"name" validate:"required"`
	File        string `yaml:"file" validate:"required,asset_ref"`
	Description string `yaml:"description"`
	Equation    string `yaml:"equation"`
	Category    string `yaml:"category" validate:"required"`
	Color       string `yaml:"color"`
	PurchaseURL string `yaml:"purchase_url" validate:"omitempty,url"`
	PriceCents  int64  `yaml:"price_cents" validate:"gte=0"`
}

// defaultPriceCents applies when a record does not carry its own price.
const defaultPriceCents = 299

// Stats summarizes catalog contents for the gallery footer and JSON-LD.
type Stats struct {
	Total      int
	Categories map[string]int
}

// Catalog is an ordered, immutable set of wallpaper records.
type Catalog struct {
	items []Wallpaper
}

// CategoryColors maps categories to their default badge color when a record
// does not carry one of its own.
var CategoryColors = map[string]string{
	"Fractal":   "blue",
	"Attractor": "red",
	"IFS":       "green",
	"Art":       "indigo",
	"Pattern":   "yellow",
	"Curve":     "emerald",
	"Map":       "pink",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// asset_ref: must not be able to address anything outside the asset dir
	_ = v.RegisterValidation("asset_ref", func(fl validator.FieldLevel) bool {
		ref := fl.Field().String()
		if strings.TrimSpace(ref) == "" {
			return false
		}
		return !strings.Contains(ref, "..") &&
			!strings.ContainsAny(ref, "/\\")
	})
	return v
}

type catalogFile struct {
	Wallpapers []Wallpaper `yaml:"wallpapers"`
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return parse(embeddedData)
}

// LoadFile parses a catalog from disk, for deployments overriding the
// built-in data.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return parse(data)
}

func parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse yaml: %w", err)
	}
	if len(f.Wallpapers) == 0 {
		return nil, fmt.Errorf("catalog: no wallpapers defined")
	}
	seen := make(map[string]struct{}, len(f.Wallpapers))
	for i := range f.Wallpapers {
		w := &f.Wallpapers[i]
		w.Name = strings.TrimSpace(w.Name)
		w.File = strings.TrimSpace(w.File)
		w.Category = strings.TrimSpace(w.Category)
		if err := validate.Struct(w); err != nil {
			return nil, fmt.Errorf("catalog: record %d (%s): %w", i, w.Name, err)
		}
		if _, dup := seen[w.File]; dup {
			return nil, fmt.Errorf("catalog: duplicate file %s", w.File)
		}
		seen[w.File] = struct{}{}
		if w.Color == "" {
			w.Color = CategoryColors[w.Category]
		}
		if w.PriceCents == 0 {
			w.PriceCents = defaultPriceCents
		}
	}
	return &Catalog{items: f.Wallpapers}, nil
}

// All returns the records in catalog order. Callers get a copy.
func (c *Catalog) All() []Wallpaper {
	out := make([]Wallpaper, len(c.items))
	copy(out, c.items)
	return out
}

// Len reports the number of records.
func (c *Catalog) Len() int { return len(c.items) }

// ByFile looks a record up by its file reference.
func (c *Catalog) ByFile(file string) (Wallpaper, bool) {
	for _, w := range c.items {
		if w.File == file {
			return w, true
		}
	}
	return Wallpaper{}, false
}

// FilterCategory returns records in the given category, or everything when
// category is empty or "all".
func (c *Catalog) FilterCategory(category string) []Wallpaper {
	category = strings.TrimSpace(category)
	if category == "" || strings.EqualFold(category, "all") {
		return c.All()
	}
	var out []Wallpaper
	for _, w := range c.items {
		if strings.EqualFold(w.Category, category) {
			out = append(out, w)
		}
	}
	return out
}

// Search performs a case-insensitive substring match over name, description
// and category.
func (c *Catalog) Search(query string) []Wallpaper {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return c.All()
	}
	var out []Wallpaper
	for _, w := range c.items {
		if strings.Contains(strings.ToLower(w.Name), query) ||
			strings.Contains(strings.ToLower(w.Description), query) ||
			strings.Contains(strings.ToLower(w.Category), query) {
			out = append(out, w)
		}
	}
	return out
}

// Categories returns the distinct categories in first-seen order.
func (c *Catalog) Categories() []string {
	var out []string
	seen := map[string]struct{}{}
	for _, w := range c.items {
		if _, ok := seen[w.Category]; ok {
			continue
		}
		seen[w.Category] = struct{}{}
		out = append(out, w.Category)
	}
	return out
}

// Summarize computes gallery statistics.
func (c *Catalog) Summarize() Stats {
	s := Stats{Total: len(c.items), Categories: map[string]int{}}
	for _, w := range c.items {
		s.Categories[w.Category]++
	}
	return s
}
