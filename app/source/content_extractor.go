package source

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"

	"codeberg.org/readeck/go-readability"
	"github.com/PuerkitoBio/goquery"
)

// ContentExtractor pulls the main text out of a listing detail page.
type ContentExtractor struct{}

func NewContentExtractor() *ContentExtractor {
	return &ContentExtractor{}
}

func (e *ContentExtractor) Run(data []byte, pageURL string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	var base *url.URL
	if u, err := url.Parse(pageURL); err == nil {
		base = u
	}

	article, err := readability.FromReader(bytes.NewReader(data), base)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	if article.Node == nil {
		return "", fmt.Errorf("no content extracted from HTML data")
	}

	text := selectionText(goquery.NewDocumentFromNode(article.Node).Selection)
	if text == "" {
		return "", fmt.Errorf("no content extracted from HTML data")
	}

	slog.Debug("Content extracted successfully",
		"url", pageURL,
		"content_length", len(text))

	return text, nil
}
