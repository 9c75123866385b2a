package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/calebh/marketscout/internal/ai"
	"github.com/calebh/marketscout/internal/domain"
)

// MarkdownConfig holds the markdown channel settings.
type MarkdownConfig struct {
	OutputDir string
	// FilenameFormat supports {marketplace}, {id}, {timestamp} and {title}
	// placeholders; empty uses "{marketplace}_{id}".
	FilenameFormat     string
	IncludeFrontmatter bool
	OverwriteExisting  bool
}

// MarkdownNotifier writes one markdown file per notified listing, for use
// with note-taking tools that watch a directory.
type MarkdownNotifier struct {
	cfg MarkdownConfig
	now func() time.Time
}

// NewMarkdownNotifier creates a MarkdownNotifier.
// Parameters:
//   - cfg: channel settings; OutputDir is required.
// Returns:
//   - *MarkdownNotifier: notifier instance.
//   - error: non-nil when the output directory cannot be created or the
//     filename format uses unknown placeholders.
func NewMarkdownNotifier(cfg MarkdownConfig) (*MarkdownNotifier, error) {
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("markdown notifier requires an output directory")
	}
	if cfg.FilenameFormat == "" {
		cfg.FilenameFormat = "{marketplace}_{id}"
	}
	if err := validateFilenameFormat(cfg.FilenameFormat); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create markdown output directory: %w", err)
	}
	return &MarkdownNotifier{cfg: cfg, now: time.Now}, nil
}

var validPlaceholders = map[string]bool{
	"{marketplace}": true,
	"{id}":          true,
	"{timestamp}":   true,
	"{title}":       true,
}

func validateFilenameFormat(format string) error {
	rest := format
	for {
		start := strings.Index(rest, "{")
		if start < 0 {
			return nil
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			return fmt.Errorf("unclosed placeholder in filename format %q", format)
		}
		placeholder := rest[start : start+end+1]
		if !validPlaceholders[placeholder] {
			return fmt.Errorf("unknown placeholder %s in filename format %q", placeholder, format)
		}
		rest = rest[start+end+1:]
	}
}

// Name identifies the channel in logs.
func (n *MarkdownNotifier) Name() string { return "markdown" }

// Notify writes the listing's markdown file.
func (n *MarkdownNotifier) Notify(ctx context.Context, listing *domain.Listing, eval *ai.Evaluation) error {
	path := filepath.Join(n.cfg.OutputDir, n.filename(listing)+".md")
	if !n.cfg.OverwriteExisting {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
	}

	var b strings.Builder
	if n.cfg.IncludeFrontmatter {
		b.WriteString("---\n")
		fmt.Fprintf(&b, "marketplace: %s\n", listing.Marketplace)
		fmt.Fprintf(&b, "listing_id: %s\n", listing.ID)
		if listing.HasPrice() {
			fmt.Fprintf(&b, "price: %.2f\n", *listing.Price)
		}
		if eval != nil && eval.Rating > 0 {
			fmt.Fprintf(&b, "rating: %d\n", eval.Rating)
		}
		fmt.Fprintf(&b, "notified_at: %s\n", n.now().Format(time.RFC3339))
		b.WriteString("---\n\n")
	}
	fmt.Fprintf(&b, "# %s\n\n", listing.Title)
	b.WriteString(FormatText(listing, eval))
	b.WriteString("\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write markdown notification: %w", err)
	}
	return nil
}

func (n *MarkdownNotifier) filename(listing *domain.Listing) string {
	name := n.cfg.FilenameFormat
	name = strings.ReplaceAll(name, "{marketplace}", listing.Marketplace)
	name = strings.ReplaceAll(name, "{id}", listing.ID)
	name = strings.ReplaceAll(name, "{timestamp}", n.now().Format("20060102T150405"))
	name = strings.ReplaceAll(name, "{title}", sanitizeTitle(listing.Title))
	return name
}

func sanitizeTitle(title string) string {
	mapper := func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '-'
		}
		return r
	}
	s := strings.Map(mapper, title)
	if len(s) > 60 {
		s = s[:60]
	}
	return s
}
