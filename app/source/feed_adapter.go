package source

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/lysyi3m/fractional-comb/app/listing"
)

// FeedAdapter reads job listings from an RSS or Atom feed.
type FeedAdapter struct {
	config  *Config
	fetcher *fetcher
	now     func() time.Time
}

func NewFeedAdapter(config *Config, deps Deps) *FeedAdapter {
	return &FeedAdapter{
		config:  config,
		fetcher: deps.fetcher(config),
		now:     deps.clock(),
	}
}

func (a *FeedAdapter) Name() string {
	return a.config.Name
}

func (a *FeedAdapter) Fetch(ctx context.Context) ([]listing.RawRecord, error) {
	data, err := a.fetcher.get(ctx, a.config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	observedAt := a.now().UTC()
	records := make([]listing.RawRecord, 0, len(feed.Items))
	skipped := 0

	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		record, ok := a.normalizeItem(item, observedAt)
		if !ok {
			skipped++
			continue
		}
		records = append(records, record)
		if len(records) >= a.config.Settings.MaxItems {
			break
		}
	}

	records, filtered := Filter(records, a.config.Filters)

	slog.Debug("Feed parsed",
		"source", a.config.Name,
		"items", len(feed.Items),
		"skipped", skipped,
		"filtered", filtered,
		"kept", len(records))

	return records, nil
}

func (a *FeedAdapter) normalizeItem(item *gofeed.Item, observedAt time.Time) (listing.RawRecord, bool) {
	sourceID := strings.TrimSpace(cmp.Or(item.GUID, item.Link))
	title := collapseSpace(item.Title)
	if sourceID == "" || title == "" {
		return listing.RawRecord{}, false
	}

	description := htmlToText(cmp.Or(item.Content, item.Description))

	company := labeledValue(description, a.config.Fields.Company)
	if sep := a.config.Settings.TitleSeparator; sep != "" {
		if before, after, ok := strings.Cut(title, sep); ok && strings.TrimSpace(after) != "" {
			company = cmp.Or(company, strings.TrimSpace(before))
			title = strings.TrimSpace(after)
		}
	}
	if company == "" {
		company = authorName(item)
	}

	record := listing.RawRecord{
		Source:         a.config.Name,
		SourceID:       sourceID,
		SourceURL:      item.Link,
		Title:          title,
		CompanyName:    company,
		LocationRaw:    labeledValue(description, a.config.Fields.Location),
		DescriptionRaw: description,
		ObservedAt:     observedAt,
	}

	record.CompensationType, record.CompensationMin, record.CompensationMax =
		ParseCompensation(labeledValue(description, a.config.Fields.Compensation))
	record.HoursMin, record.HoursMax = parseHours(labeledValue(description, a.config.Fields.Hours))

	switch {
	case item.PublishedParsed != nil:
		record.DatePosted = item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		record.DatePosted = item.UpdatedParsed.UTC()
	default:
		if t, ok := ParseDatePosted(item.Published, observedAt); ok {
			record.DatePosted = t
		}
	}

	return record, true
}

func authorName(item *gofeed.Item) string {
	for _, author := range item.Authors {
		if author != nil && strings.TrimSpace(author.Name) != "" {
			return strings.TrimSpace(author.Name)
		}
	}
	if item.Author != nil {
		return strings.TrimSpace(item.Author.Name)
	}
	return ""
}

// labeledValue returns the value of the first "Label: value" line in text.
func labeledValue(text, label string) string {
	if label == "" {
		return ""
	}
	prefix := strings.ToLower(label) + ":"
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimLeft(strings.TrimSpace(line), "*-• ")
		if len(line) >= len(prefix) && strings.EqualFold(line[:len(prefix)], prefix) {
			return strings.Trim(strings.TrimSpace(line[len(prefix):]), "* ")
		}
	}
	return ""
}
