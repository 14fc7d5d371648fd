package feed

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser     *gofeed.Parser
	contentExtractor *ContentExtractor
}

func NewParser(contentExtractor *ContentExtractor) *Parser {
	return &Parser{
		gofeedParser:     gofeed.NewParser(),
		contentExtractor: contentExtractor,
	}
}

// Decode dispatches on the source format.
func (p *Parser) Decode(data []byte, source *Config) (*RawPayload, error) {
	if source != nil && source.Format == FormatRSS {
		return p.RunRSS(data, source)
	}
	return p.Run(data)
}

type rawEnvelope struct {
	Success *bool `json:"success"`
	Data    *struct {
		Items      json.RawMessage `json:"noticias"`
		Categories []RawCategory   `json:"categorias"`
	} `json:"data"`
}

// Run decodes a report payload. A single undecodable entry does not fail the
// payload; it is carried to the normalizer, which reports it as a warning.
func (p *Parser) Run(data []byte) (*RawPayload, error) {
	var envelope rawEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, &MalformedFeedError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	payload := &RawPayload{Success: envelope.Success}
	if envelope.Data == nil {
		return payload, nil
	}
	payload.Categories = envelope.Data.Categories

	rawItems := bytes.TrimSpace(envelope.Data.Items)
	if len(rawItems) == 0 || bytes.Equal(rawItems, []byte("null")) {
		return payload, nil
	}
	if rawItems[0] != '[' {
		return nil, &MalformedFeedError{Reason: "items collection is not a sequence"}
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(rawItems, &entries); err != nil {
		return nil, &MalformedFeedError{Reason: fmt.Sprintf("invalid items collection: %v", err)}
	}

	payload.Items = make([]RawItem, len(entries))
	for i, entry := range entries {
		if err := json.Unmarshal(entry, &payload.Items[i]); err != nil {
			payload.Items[i] = RawItem{decodeErr: err}
		}
	}

	return payload, nil
}

// RunRSS adapts an RSS or Atom document into a report payload. Every entry is
// filed under the source's category and scope.
func (p *Parser) RunRSS(data []byte, source *Config) (*RawPayload, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &MalformedFeedError{Reason: fmt.Sprintf("failed to parse feed: %v", err)}
	}

	success := true
	payload := &RawPayload{
		Success:    &success,
		Items:      make([]RawItem, 0, len(parsed.Items)),
		Categories: make([]RawCategory, 0, len(source.Categories)),
	}

	for _, c := range source.Categories {
		payload.Categories = append(payload.Categories, RawCategory{
			Slug:  c.Slug,
			Name:  c.Name,
			Icon:  c.Icon,
			Color: c.Color,
		})
	}

	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		payload.Items = append(payload.Items, p.adaptItem(item, parsed.Title, source))
	}

	return payload, nil
}

func (p *Parser) adaptItem(item *gofeed.Item, outlet string, source *Config) RawItem {
	raw := RawItem{
		Title:    item.Title,
		URL:      cmp.Or(item.Link, item.GUID),
		Category: source.Category,
		Scope:    source.Scope,
		Outlet:   outlet,
		Tags:     item.Categories,
	}

	switch {
	case item.PublishedParsed != nil:
		raw.Date = item.PublishedParsed.Format(time.RFC3339)
	case item.UpdatedParsed != nil:
		raw.Date = item.UpdatedParsed.Format(time.RFC3339)
	default:
		raw.Date = cmp.Or(item.Published, item.Updated)
	}

	limit := source.Settings.SummaryLength
	if item.Description != "" {
		raw.Summary = Truncate(StripHTML(item.Description), limit)
	} else if item.Content != "" {
		raw.Summary = Truncate(p.contentExtractor.Text([]byte(item.Content)), limit)
	}

	if item.Image != nil && item.Image.URL != "" {
		raw.Image = item.Image.URL
	} else {
		for _, enclosure := range item.Enclosures {
			if enclosure != nil && strings.HasPrefix(enclosure.Type, "image/") {
				raw.Image = enclosure.URL
				break
			}
		}
	}

	return raw
}
