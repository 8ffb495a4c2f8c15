package source

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/fractional-comb/app/listing"
)

// BoardAdapter scrapes an HTML job board using the CSS selectors of its
// config. Detail pages are fetched only when fetch_details is set.
type BoardAdapter struct {
	config    *Config
	fetcher   *fetcher
	extractor *ContentExtractor
	now       func() time.Time
}

func NewBoardAdapter(config *Config, deps Deps) *BoardAdapter {
	return &BoardAdapter{
		config:    config,
		fetcher:   deps.fetcher(config),
		extractor: NewContentExtractor(),
		now:       deps.clock(),
	}
}

func (a *BoardAdapter) Name() string {
	return a.config.Name
}

func (a *BoardAdapter) Fetch(ctx context.Context) ([]listing.RawRecord, error) {
	data, err := a.fetcher.get(ctx, a.config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch board: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse board: %w", err)
	}

	observedAt := a.now().UTC()
	var records []listing.RawRecord
	skipped := 0

	doc.Find(a.config.Board.Item).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		record, ok := a.parseItem(item, observedAt)
		if !ok {
			skipped++
			return true
		}
		records = append(records, record)
		return len(records) < a.config.Settings.MaxItems
	})

	records, filtered := Filter(records, a.config.Filters)

	if a.config.Settings.FetchDetails {
		for i := range records {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			a.fillDescription(ctx, &records[i])
		}
	}

	slog.Debug("Board parsed",
		"source", a.config.Name,
		"skipped", skipped,
		"filtered", filtered,
		"kept", len(records))

	return records, nil
}

func (a *BoardAdapter) parseItem(item *goquery.Selection, observedAt time.Time) (listing.RawRecord, bool) {
	sel := a.config.Board

	title := selectText(item, sel.Title)
	if title == "" {
		return listing.RawRecord{}, false
	}

	link := resolveURL(a.config.URL, selectAttr(item, sel.Link, "href"))
	company := selectText(item, sel.Company)

	sourceID := linkSlug(link)
	if sourceID == "" {
		sourceID = slugify(company + " " + title)
	}
	if sourceID == "" {
		return listing.RawRecord{}, false
	}

	record := listing.RawRecord{
		Source:      a.config.Name,
		SourceID:    sourceID,
		SourceURL:   link,
		Title:       title,
		CompanyName: company,
		LocationRaw: selectText(item, sel.Location),
		ObservedAt:  observedAt,
	}

	if sel.CompanyURL != "" {
		record.CompanyURL = resolveURL(a.config.URL, selectAttr(item, sel.CompanyURL, "href"))
	}
	if sel.Description != "" {
		record.DescriptionRaw = selectionText(item.Find(sel.Description).First())
	}

	record.CompensationType, record.CompensationMin, record.CompensationMax =
		ParseCompensation(selectText(item, sel.Compensation))
	record.HoursMin, record.HoursMax = parseHours(selectText(item, sel.Hours))

	if t, ok := ParseDatePosted(selectText(item, sel.Date), observedAt); ok {
		record.DatePosted = t
	}

	return record, true
}

// fillDescription replaces the card summary with the detail page text. A
// failed detail fetch keeps the summary.
func (a *BoardAdapter) fillDescription(ctx context.Context, record *listing.RawRecord) {
	if record.SourceURL == "" {
		return
	}

	data, err := a.fetcher.get(ctx, record.SourceURL)
	if err != nil {
		slog.Warn("Failed to fetch listing details", "source", a.config.Name, "url", record.SourceURL, "error", err)
		return
	}

	text, err := a.extractor.Run(data, record.SourceURL)
	if err != nil {
		slog.Warn("Failed to extract listing details", "source", a.config.Name, "url", record.SourceURL, "error", err)
		return
	}

	record.DescriptionRaw = text
}

func selectText(item *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return collapseSpace(item.Find(selector).First().Text())
}

// selectAttr reads attr from the first match of selector, or from item
// itself when selector is empty.
func selectAttr(item *goquery.Selection, selector, attr string) string {
	target := item
	if selector != "" {
		target = item.Find(selector).First()
	}
	value, _ := target.Attr(attr)
	return strings.TrimSpace(value)
}

func linkSlug(link string) string {
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	slug := path.Base(strings.TrimRight(u.Path, "/"))
	if slug == "." || slug == "/" {
		return ""
	}
	return slug
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
