// Package nav builds the gallery navigation: one link per catalog category
// plus the static pages.
package nav

import (
	"net/url"
	"strings"
)

// Item represents a top-level navigation item.
type Item struct {
	Href  string
	Label string
}

// RenderedItem is a view model for templates.
type RenderedItem struct {
	Href   string
	Label  string
	Active bool
}

// Pages is the static page navigation shown next to the category links.
var Pages = []Item{
	{Href: "/about", Label: "About"},
	{Href: "/license", Label: "License"},
}

// Categories renders one filter link per category, with an "All" entry first.
// activeCategory is the currently selected filter ("" or "all" selects All).
func Categories(categories []string, activeCategory string) []RenderedItem {
	items := make([]RenderedItem, 0, len(categories)+1)
	allActive := activeCategory == "" || strings.EqualFold(activeCategory, "all")
	items = append(items, RenderedItem{Href: "/", Label: "All", Active: allActive})
	for _, c := range categories {
		items = append(items, RenderedItem{
			Href:   "/?category=" + url.QueryEscape(c),
			Label:  c,
			Active: strings.EqualFold(c, activeCategory),
		})
	}
	return items
}

// Build renders the static page items with active state for the current path.
func Build(currentPath string) []RenderedItem {
	if currentPath == "" {
		currentPath = "/"
	}
	items := make([]RenderedItem, 0, len(Pages))
	for _, it := range Pages {
		items = append(items, RenderedItem{
			Href:   it.Href,
			Label:  it.Label,
			Active: isActive(it.Href, currentPath),
		})
	}
	return items
}

func isActive(itemPath, currentPath string) bool {
	if itemPath == "/" {
		return currentPath == "/"
	}
	if currentPath == itemPath {
		return true
	}
	return strings.HasPrefix(currentPath, itemPath+"/")
}
