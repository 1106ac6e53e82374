package lemmy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func newFakeLemmy(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()

	var authHeaders []string
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v3/user/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["username_or_email"] != "rssbot" || body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"jwt": "test-jwt"})
	})

	mux.HandleFunc("/api/v3/post", func(w http.ResponseWriter, r *http.Request) {
		authHeaders = append(authHeaders, r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"post_view": map[string]any{
				"post": map[string]any{"id": 123},
			},
		})
	})

	mux.HandleFunc("/api/v3/community", func(w http.ResponseWriter, r *http.Request) {
		authHeaders = append(authHeaders, r.Header.Get("Authorization"))
		if r.URL.Query().Get("name") != "news" {
			json.NewEncoder(w).Encode(map[string]any{})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"community_view": map[string]any{
				"community": map[string]any{"id": 42},
			},
		})
	})

	mux.HandleFunc("/api/v3/resolve_object", func(w http.ResponseWriter, r *http.Request) {
		authHeaders = append(authHeaders, r.Header.Get("Authorization"))
		if r.URL.Query().Get("q") != "!news@other.example" {
			json.NewEncoder(w).Encode(map[string]any{})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"community": map[string]any{
				"community": map[string]any{"id": 77},
			},
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &authHeaders
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	return NewClient(server.URL, "rssbot", "secret", "Lemmy RSSBot/test", t.TempDir(), server.Client())
}

func TestCreatePost(t *testing.T) {
	server, authHeaders := newFakeLemmy(t)
	client := newTestClient(t, server)

	id, err := client.CreatePost(context.Background(), 42, "Headline", "https://example.org/1")
	if err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	if id != 123 {
		t.Errorf("Expected post id 123, got %d", id)
	}
	if len(*authHeaders) != 1 || (*authHeaders)[0] != "Bearer test-jwt" {
		t.Errorf("Expected bearer token on post request, got %v", *authHeaders)
	}
}

func TestGetCommunityID(t *testing.T) {
	server, _ := newFakeLemmy(t)
	client := newTestClient(t, server)

	id, err := client.GetCommunityID(context.Background(), "news")
	if err != nil {
		t.Fatalf("GetCommunityID failed: %v", err)
	}
	if id != 42 {
		t.Errorf("Expected community id 42, got %d", id)
	}

	if _, err := client.GetCommunityID(context.Background(), "missing"); err == nil {
		t.Error("Expected error for unknown community")
	}
}

func TestResolveRemoteCommunity(t *testing.T) {
	server, _ := newFakeLemmy(t)
	client := newTestClient(t, server)

	// Unknown locally, so the lookup falls through to a federated resolve.
	id, err := client.GetCommunityID(context.Background(), "news@other.example")
	if err != nil {
		t.Fatalf("GetCommunityID failed: %v", err)
	}
	if id != 77 {
		t.Errorf("Expected community id 77, got %d", id)
	}
}

func TestLoginFailure(t *testing.T) {
	server, _ := newFakeLemmy(t)
	client := NewClient(server.URL, "rssbot", "wrong", "Lemmy RSSBot/test", t.TempDir(), server.Client())

	if err := client.EnsureLogin(context.Background()); err == nil {
		t.Error("Expected login failure with wrong password")
	}
}

func TestTokenCachedOnDisk(t *testing.T) {
	server, _ := newFakeLemmy(t)
	dataDir := t.TempDir()

	client := NewClient(server.URL, "rssbot", "secret", "Lemmy RSSBot/test", dataDir, server.Client())
	if err := client.EnsureLogin(context.Background()); err != nil {
		t.Fatalf("EnsureLogin failed: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dataDir, "*_token.json"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("Expected one cached token file, got %v, %v", matches, err)
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("Failed to read token file: %v", err)
	}
	var cached tokenFile
	if err := json.Unmarshal(data, &cached); err != nil || cached.JWT != "test-jwt" {
		t.Errorf("Token file content wrong: %s", data)
	}

	// A second client with a bad password must reuse the cached token.
	reuse := NewClient(server.URL, "rssbot", "wrong", "Lemmy RSSBot/test", dataDir, server.Client())
	if err := reuse.EnsureLogin(context.Background()); err != nil {
		t.Errorf("Cached token should avoid a fresh login: %v", err)
	}
}
