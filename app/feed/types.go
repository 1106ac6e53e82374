package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

type Metadata struct {
	Title       string
	Link        string
	Description string
}

type Entry struct {
	GUID        string
	Title       string
	Link        string
	Summary     string
	PublishedAt time.Time
}

// IdentityKey derives the stable dedup identity for an entry. Fallback
// order: explicit GUID, then canonical link, then a hash of
// title+publish-timestamp. Feeds vary in what metadata they supply, so
// the order is fixed and must not be reordered.
func (e Entry) IdentityKey() string {
	if e.GUID != "" {
		return e.GUID
	}
	if e.Link != "" {
		return e.Link
	}
	content := fmt.Sprintf("%s|%s", e.Title, e.PublishedAt.UTC().Format(time.RFC3339))
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// FetchResult is the outcome of one conditional fetch. Entries are in
// oldest-to-newest order. Validators are the ones the server returned
// with this response, not the ones the request was made with.
type FetchResult struct {
	NotModified   bool
	Metadata      *Metadata
	Entries       []Entry
	ETag          string
	LastModified  string
	HasValidators bool
}
