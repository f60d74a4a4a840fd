// Package handlers holds the view models shared by the page templates.
package handlers

import (
	"html/template"

	"github.com/aeronautyy/math-wallpapers/internal/catalog"
	"github.com/aeronautyy/math-wallpapers/internal/gallery"
	"github.com/aeronautyy/math-wallpapers/internal/nav"
	"github.com/aeronautyy/math-wallpapers/internal/seo"
)

// Notice is a dismissible banner shown above the gallery.
type Notice struct {
	Kind    string // "success", "error" or "info"
	Message string
}

// Download is rendered on the success page to auto-trigger the file fetch.
type Download struct {
	Name string
	URL  string
}

// HomeData is the view model for the gallery page.
type HomeData struct {
	Title     string
	SEO       seo.Meta
	Analytics Analytics
	Path      string
	Nav       []nav.RenderedItem
	Cats      []nav.RenderedItem
	Heading   string
	Cards     []gallery.Card
	Stats     catalog.Stats
	Query     string
	Category  string
	Notice    *Notice
	Download  *Download
}

// PageData is the view model for static content pages.
type PageData struct {
	Title     string
	SEO       seo.Meta
	Analytics Analytics
	Path      string
	Nav       []nav.RenderedItem
	Body      template.HTML
	Updated   string
}

const (
	siteName        = "Mathematical Wallpapers"
	siteDescription = "High-resolution wallpapers generated from strange attractors, fractals and parametric curves."
)

// BuildHomeData assembles the gallery view model for a derived subset of the
// catalog.
func BuildHomeData(cat *catalog.Catalog, items []catalog.Wallpaper, category, query, path string, an Analytics) HomeData {
	cards := gallery.BuildCards(items)
	meta := seo.Meta{
		Title:       siteName,
		Description: siteDescription,
		OG: seo.OpenGraph{
			Title:       siteName,
			Description: siteDescription,
			Type:        "website",
			SiteName:    siteName,
		},
		Twitter: seo.Twitter{Card: "summary_large_image"},
	}
	images := make([]string, 0, len(cards))
	for _, c := range cards {
		images = append(images, c.ImagePath)
	}
	meta.JSONLD = []string{
		seo.JSON(seo.WebSite(siteName, "/", "/?q=")),
		seo.JSON(seo.ImageGallery(siteName, "/", images)),
	}
	for _, w := range items {
		meta.JSONLD = append(meta.JSONLD,
			seo.JSON(seo.Product(w.Name, w.Description, w.PurchaseURL, "/wallpapers/"+w.File, w.File)))
	}
	return HomeData{
		Title:     siteName,
		SEO:       meta,
		Analytics: an,
		Path:      path,
		Nav:       nav.Build(path),
		Cats:      nav.Categories(cat.Categories(), category),
		Heading:   gallery.Heading(category, query, len(cards)),
		Cards:     cards,
		Stats:     cat.Summarize(),
		Query:     query,
		Category:  category,
	}
}

// BuildPageData assembles a content page view model.
func BuildPageData(title, path string, body template.HTML, updated string, an Analytics) PageData {
	return PageData{
		Title: title,
		SEO: seo.Meta{
			Title:       title + " - " + siteName,
			Description: siteDescription,
			JSONLD: []string{seo.JSON(seo.BreadcrumbList([]seo.BreadcrumbItem{
				{Name: siteName, Item: "/"},
				{Name: title, Item: path},
			}))},
		},
		Analytics: an,
		Path:      path,
		Nav:       nav.Build(path),
		Body:      body,
		Updated:   updated,
	}
}
