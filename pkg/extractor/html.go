package extractor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/mmrag/internal/types"
)

// Main content containers, most specific first.
var contentSelectors = []string{
	"main",
	"article",
	".content",
	"#content",
	".documentation",
	"#documentation",
}

var noisePatterns = []string{
	"Cookie Policy",
	"Accept Cookies",
	"Privacy Policy",
	"Terms of Service",
}

func extractHTML(_ context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrExtractionFailed, err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("%w: parse html: %v", types.ErrExtractionFailed, err)
	}
	doc.Find("script, style, noscript").Remove()

	var title string
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		title = t + "\n"
	}
	return title + mainContent(doc), nil
}

func mainContent(doc *goquery.Document) string {
	var content string
	for _, selector := range contentSelectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = blockText(selected)
			break
		}
	}

	// Fallback to body if no main content found
	if strings.TrimSpace(content) == "" {
		content = blockText(doc.Find("body"))
	}

	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}
	return content
}

// blockText keeps one line per block element so sentences of different
// paragraphs are not glued together.
func blockText(sel *goquery.Selection) string {
	var lines []string
	blocks := sel.Find("p, li, h1, h2, h3, h4, h5, h6, pre, td, th, blockquote")
	if blocks.Length() == 0 {
		return strings.Join(strings.Fields(sel.Text()), " ")
	}
	blocks.Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("p, li, td, th, blockquote").Length() > 0 {
			return
		}
		if line := strings.Join(strings.Fields(s.Text()), " "); line != "" {
			lines = append(lines, line)
		}
	})
	return strings.Join(lines, "\n")
}
