package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses raw feed data. Entries come back oldest first so accepted
// articles are posted in publication order.
func (p *Parser) Run(data []byte) (*Metadata, []Entry, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:       parsed.Title,
		Link:        parsed.Link,
		Description: parsed.Description,
	}

	entries := make([]Entry, 0, len(parsed.Items))
	for i := len(parsed.Items) - 1; i >= 0; i-- {
		entries = append(entries, p.normalizeItem(parsed.Items[i]))
	}

	return metadata, entries, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Entry {
	entry := Entry{
		GUID:    item.GUID,
		Title:   item.Title,
		Link:    item.Link,
		Summary: cmp.Or(item.Description, item.Content),
	}

	// Feeds without a published date often carry an updated one instead.
	if item.PublishedParsed != nil {
		entry.PublishedAt = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		entry.PublishedAt = item.UpdatedParsed.UTC()
	} else {
		entry.PublishedAt = time.Now().UTC()
	}

	return entry
}
