package seo

import (
	"encoding/json"
	"strings"
	"testing"
)

func roundTrip(t *testing.T, payload string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		t.Fatalf("invalid JSON-LD %q: %v", payload, err)
	}
	return m
}

func TestWebSiteSchema(t *testing.T) {
	payload := JSON(WebSite("Mathematical Wallpapers", "/", "/?q="))
	m := roundTrip(t, payload)
	if m["@type"] != "WebSite" || m["name"] != "Mathematical Wallpapers" {
		t.Fatalf("unexpected schema %v", m)
	}
	action, ok := m["potentialAction"].(map[string]any)
	if !ok || !strings.Contains(action["target"].(string), "{search_term_string}") {
		t.Fatalf("unexpected search action %v", m["potentialAction"])
	}
}

func TestProductSchema(t *testing.T) {
	payload := JSON(Product("Lorenz Attractor", "desc", "https://buy.example/x", "/wallpapers/lorenz_attractor.png", "lorenz_attractor.png"))
	m := roundTrip(t, payload)
	if m["@type"] != "Product" || m["sku"] != "lorenz_attractor.png" {
		t.Fatalf("unexpected schema %v", m)
	}
}

func TestBreadcrumbListSchema(t *testing.T) {
	payload := JSON(BreadcrumbList([]BreadcrumbItem{
		{Name: "Home", Item: "/"},
		{Name: "About", Item: "/about"},
	}))
	m := roundTrip(t, payload)
	items, ok := m["itemListElement"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("unexpected breadcrumbs %v", m)
	}
	second := items[1].(map[string]any)
	if second["position"] != float64(2) || second["name"] != "About" {
		t.Fatalf("unexpected entry %v", second)
	}
}

func TestImageGallerySchema(t *testing.T) {
	payload := JSON(ImageGallery("Gallery", "/", []string{"/wallpapers/a.png"}))
	m := roundTrip(t, payload)
	imgs, ok := m["image"].([]any)
	if !ok || len(imgs) != 1 {
		t.Fatalf("unexpected images %v", m["image"])
	}
}
