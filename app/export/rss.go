package export

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/lysyi3m/fractional-comb/app/listing"
)

// Channel describes the feed that wraps the listings.
type Channel struct {
	Title       string
	Link        string
	SelfLink    string
	Description string
	Generator   string
}

// RSSGenerator renders listings as an RSS 2.0 feed, newest first.
type RSSGenerator struct{}

func NewRSSGenerator() *RSSGenerator {
	return &RSSGenerator{}
}

func (g *RSSGenerator) Run(channel Channel, records []listing.Record) (string, error) {
	sorted := append([]listing.Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].FirstSeen.After(sorted[j].FirstSeen) })

	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", channel.Title, 4)
	g.writeElement(&buf, "link", channel.Link, 4)
	g.writeElement(&buf, "description", cmp.Or(channel.Description, channel.Title), 4)

	if channel.SelfLink != "" {
		buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
			html.EscapeString(channel.SelfLink)))
	}

	lastBuildDate := time.Now().In(time.Local)
	if len(sorted) > 0 {
		lastBuildDate = sorted[0].FirstSeen
	}
	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", channel.Generator, 4)

	for _, r := range sorted {
		g.writeItem(&buf, r)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *RSSGenerator) writeItem(buf *bytes.Buffer, r listing.Record) {
	buf.WriteString("    <item>\n")

	buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"false\">%s</guid>\n", html.EscapeString(r.ID)))

	title := r.Title
	if r.CompanyName != "" {
		title = r.Title + " at " + r.CompanyName
	}
	g.writeElement(buf, "title", title, 6)
	g.writeElement(buf, "link", r.SourceURL, 6)
	g.writeElement(buf, "description", itemDescription(r), 6)

	published := r.DatePosted
	if published.IsZero() {
		published = r.FirstSeen
	}
	g.writeElement(buf, "pubDate", published.Format(time.RFC1123Z), 6)

	for _, category := range []string{r.FunctionCategory, r.SeniorityTier, r.LocationType} {
		if category != "" {
			g.writeElement(buf, "category", category, 6)
		}
	}

	buf.WriteString("    </item>\n")
}

// itemDescription summarizes the structured fields ahead of the snippet.
func itemDescription(r listing.Record) string {
	var lines []string

	if rate := rateRange(r.HourlyMin, r.HourlyMax); rate != "" {
		lines = append(lines, fmt.Sprintf("Rate: %s/hr", rate))
	}
	if r.HoursBucket != "" && r.HoursBucket != "not_specified" {
		lines = append(lines, fmt.Sprintf("Hours: %s per week", r.HoursBucket))
	}
	if r.LocationType != "" {
		location := r.LocationType
		if r.LocationRestriction != "" {
			location += " (" + r.LocationRestriction + ")"
		}
		lines = append(lines, "Location: "+location)
	}

	lines = append(lines, cmp.Or(r.DescriptionSnippet, "No description available"))
	return strings.Join(lines, "\n")
}

func rateRange(lo, hi *float64) string {
	switch {
	case lo != nil && hi != nil && *lo != *hi:
		return fmt.Sprintf("$%.0f-$%.0f", *lo, *hi)
	case lo != nil:
		return fmt.Sprintf("$%.0f", *lo)
	case hi != nil:
		return fmt.Sprintf("$%.0f", *hi)
	default:
		return ""
	}
}

func (g *RSSGenerator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}
