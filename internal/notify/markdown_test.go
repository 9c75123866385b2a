package notify

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/calebh/marketscout/internal/ai"
	"github.com/calebh/marketscout/internal/domain"
)

func testListing() *domain.Listing {
	return &domain.Listing{
		Marketplace: "local",
		ID:          "42",
		Title:       "Kubota B2601 low hours",
		Price:       domain.PriceOf(18500),
		Currency:    "USD",
		Location:    "Duvall, WA",
		URL:         "https://example.com/42",
	}
}

func TestValidateFilenameFormat(t *testing.T) {
	valid := []string{
		"{marketplace}_{id}",
		"{timestamp}-{title}",
		"listing-{id}",
		"plain",
	}
	for _, format := range valid {
		if err := validateFilenameFormat(format); err != nil {
			t.Errorf("validateFilenameFormat(%q) = %v, want nil", format, err)
		}
	}

	invalid := []string{
		"{market}_{id}",
		"{id",
		"{listing_id}",
	}
	for _, format := range invalid {
		if err := validateFilenameFormat(format); err == nil {
			t.Errorf("validateFilenameFormat(%q) succeeded, want error", format)
		}
	}
}

func TestMarkdownNotifierWritesFile(t *testing.T) {
	dir := t.TempDir()
	n, err := NewMarkdownNotifier(MarkdownConfig{
		OutputDir:          dir,
		IncludeFrontmatter: true,
	})
	if err != nil {
		t.Fatalf("NewMarkdownNotifier failed: %v", err)
	}

	eval := &ai.Evaluation{Rating: 4, Explanation: "good match"}
	if err := n.Notify(context.Background(), testListing(), eval); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dir, "local_42.md"))
	if err != nil {
		t.Fatalf("notification file missing: %v", err)
	}
	body := string(content)
	for _, want := range []string{
		"marketplace: local",
		"listing_id: 42",
		"price: 18500.00",
		"rating: 4",
		"# Kubota B2601 low hours",
		"https://example.com/42",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("notification body missing %q:\n%s", want, body)
		}
	}
}

func TestMarkdownNotifierOverwritePolicy(t *testing.T) {
	dir := t.TempDir()
	n, err := NewMarkdownNotifier(MarkdownConfig{OutputDir: dir})
	if err != nil {
		t.Fatal(err)
	}

	l := testListing()
	if err := n.Notify(context.Background(), l, nil); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "local_42.md")
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	l.Title = "Kubota B2601 PRICE DROP"
	if err := n.Notify(context.Background(), l, nil); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Error("existing file was overwritten without overwrite_existing")
	}

	n.cfg.OverwriteExisting = true
	if err := n.Notify(context.Background(), l, nil); err != nil {
		t.Fatal(err)
	}
	third, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(third), "PRICE DROP") {
		t.Error("file not rewritten with overwrite_existing enabled")
	}
}

func TestMarkdownNotifierRejectsBadConfig(t *testing.T) {
	if _, err := NewMarkdownNotifier(MarkdownConfig{}); err == nil {
		t.Error("missing output dir accepted")
	}
	if _, err := NewMarkdownNotifier(MarkdownConfig{
		OutputDir:      t.TempDir(),
		FilenameFormat: "{market}",
	}); err == nil {
		t.Error("unknown placeholder accepted")
	}
}

func TestFormatText(t *testing.T) {
	l := testListing()
	text := FormatText(l, &ai.Evaluation{Rating: 5, Explanation: "exact model"})
	for _, want := range []string{
		"Kubota B2601 low hours",
		"Price: 18500.00 USD",
		"Location: Duvall, WA",
		"Rating: 5/5",
		"https://example.com/42",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("FormatText missing %q:\n%s", want, text)
		}
	}

	l.Price = nil
	text = FormatText(l, nil)
	if !strings.Contains(text, "Price: not stated") {
		t.Errorf("unpriced listing not rendered:\n%s", text)
	}
	if strings.Contains(text, "Rating:") {
		t.Errorf("rating rendered without an evaluation:\n%s", text)
	}
}
