// Package gallery turns catalog records into the card view models consumed
// by the page templates.
package gallery

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"

	"github.com/aeronautyy/math-wallpapers/internal/catalog"
	"github.com/aeronautyy/math-wallpapers/internal/format"
)

// Card is the view model for one wallpaper tile.
type Card struct {
	Name         string
	File         string
	Description  template.HTML
	Equation     string
	EquationSize string
	Category     string
	Color        string
	PurchaseURL  string
	PriceLabel   string
	ImagePath    string
}

var (
	md     = goldmark.New()
	policy = newDescriptionPolicy()

	matrixPattern   = regexp.MustCompile(`\\begin\{(pmatrix|bmatrix|matrix)\}`)
	fractionPattern = regexp.MustCompile(`\\frac\{`)
	complexSymbols  = regexp.MustCompile(`[∑∏∫∂∇∞√∆∈∉⊂⊃∪∩∧∨¬∀∃]`)
)

func newDescriptionPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(true)
	return p
}

// BuildCards maps wallpapers to cards, preserving order.
func BuildCards(items []catalog.Wallpaper) []Card {
	cards := make([]Card, 0, len(items))
	for _, w := range items {
		cards = append(cards, buildCard(w))
	}
	return cards
}

func buildCard(w catalog.Wallpaper) Card {
	return Card{
		Name:         w.Name,
		File:         w.File,
		Description:  renderDescription(w.Description),
		Equation:     w.Equation,
		EquationSize: EquationSizeClass(w.Equation),
		Category:     w.Category,
		Color:        w.Color,
		PurchaseURL:  w.PurchaseURL,
		PriceLabel:   format.FmtPrice(w.PriceCents, "USD"),
		ImagePath:    "/wallpapers/" + w.File,
	}
}

// renderDescription converts markdown to sanitized HTML. Plain text passes
// through wrapped in a paragraph.
func renderDescription(src string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(policy.SanitizeBytes(buf.Bytes()))
}

// EquationSizeClass picks a display size for a LaTeX expression based on its
// length and structure, so long matrix equations do not overflow the card.
func EquationSizeClass(equation string) string {
	switch {
	case len(equation) > 120 || matrixPattern.MatchString(equation):
		return "text-xs"
	case len(equation) > 80 ||
		complexSymbols.MatchString(equation) ||
		fractionPattern.MatchString(equation):
		return "text-sm"
	default:
		return "text-base"
	}
}

// BadgeClass renders the category badge color class for a card.
func BadgeClass(color string) string {
	if color == "" {
		color = "blue"
	}
	return fmt.Sprintf("bg-%s-600", color)
}

// Heading produces the gallery heading for a filtered or searched view.
func Heading(category, query string, count int) string {
	switch {
	case strings.TrimSpace(query) != "":
		return fmt.Sprintf("%d result(s) for %q", count, strings.TrimSpace(query))
	case strings.TrimSpace(category) != "" && !strings.EqualFold(category, "all"):
		return fmt.Sprintf("%s wallpapers", strings.TrimSpace(category))
	default:
		return "All wallpapers"
	}
}
