package feed

import (
	"testing"

	"github.com/feedhook/lemmy-rssbot/app/config"
)

func TestFiltererNoPatterns(t *testing.T) {
	filterer, err := NewFilterer(config.Filters{})
	if err != nil {
		t.Fatalf("NewFilterer failed: %v", err)
	}

	allowed, reason := filterer.Run("Breaking News: Important Update", "news")
	if !allowed {
		t.Errorf("Title should be allowed with no patterns, rejected by %q", reason)
	}
}

func TestFiltererGlobalReject(t *testing.T) {
	filterer, err := NewFilterer(config.Filters{
		Global: []string{`Daily Deal:.*`, `.*Wordle.*`},
	})
	if err != nil {
		t.Fatalf("NewFilterer failed: %v", err)
	}

	tests := []struct {
		title   string
		allowed bool
	}{
		{"Daily Deal: 50% off everything", false},
		{"Today's Wordle hints and answer", false},
		{"Parliament passes new budget", true},
	}

	for _, tt := range tests {
		allowed, reason := filterer.Run(tt.title, "news")
		if allowed != tt.allowed {
			t.Errorf("Run(%q) = %v, want %v (reason %q)", tt.title, allowed, tt.allowed, reason)
		}
		if !allowed && reason == "" {
			t.Errorf("Rejected title %q should report the matched pattern", tt.title)
		}
	}
}

func TestFiltererCommunityScope(t *testing.T) {
	filterer, err := NewFilterer(config.Filters{
		Communities: map[string][]string{
			"technology": {`.*sponsored.*`},
		},
	})
	if err != nil {
		t.Fatalf("NewFilterer failed: %v", err)
	}

	if allowed, _ := filterer.Run("This sponsored post is great", "technology"); allowed {
		t.Error("Community pattern should reject within its scope")
	}
	if allowed, _ := filterer.Run("This sponsored post is great", "news"); !allowed {
		t.Error("Community pattern must not leak into other communities")
	}
}

func TestFiltererGlobalTakesPrecedence(t *testing.T) {
	filterer, err := NewFilterer(config.Filters{
		Global: []string{`spam`},
		Communities: map[string][]string{
			"news": {`other`},
		},
	})
	if err != nil {
		t.Fatalf("NewFilterer failed: %v", err)
	}

	_, reason := filterer.Run("pure spam headline", "news")
	if reason != "spam" {
		t.Errorf("Global pattern should match first, got reason %q", reason)
	}
}

func TestFiltererInvalidPattern(t *testing.T) {
	if _, err := NewFilterer(config.Filters{Global: []string{`[unclosed`}}); err == nil {
		t.Error("Expected error for invalid pattern")
	}
}
