package feed

import (
	"fmt"
	"regexp"

	"github.com/feedhook/lemmy-rssbot/app/config"
)

// Filterer evaluates normalized titles against reject-pattern sets:
// global patterns first, then the destination community's patterns.
// A match at either level rejects. Pattern sets are compiled once from
// configuration; the filterer itself is pure and safe for concurrent use.
type Filterer struct {
	global      []*regexp.Regexp
	communities map[string][]*regexp.Regexp
}

func NewFilterer(filters config.Filters) (*Filterer, error) {
	global, err := compilePatterns(filters.Global)
	if err != nil {
		return nil, fmt.Errorf("invalid global filter: %w", err)
	}

	communities := make(map[string][]*regexp.Regexp, len(filters.Communities))
	for community, patterns := range filters.Communities {
		compiled, err := compilePatterns(patterns)
		if err != nil {
			return nil, fmt.Errorf("invalid filter for community %q: %w", community, err)
		}
		communities[community] = compiled
	}

	return &Filterer{global: global, communities: communities}, nil
}

// Run reports whether the title is allowed for the community. When
// rejected, the matched pattern is returned for logging.
func (f *Filterer) Run(title, community string) (bool, string) {
	for _, pattern := range f.global {
		if pattern.MatchString(title) {
			return false, pattern.String()
		}
	}
	for _, pattern := range f.communities[community] {
		if pattern.MatchString(title) {
			return false, pattern.String()
		}
	}
	return true, ""
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}
