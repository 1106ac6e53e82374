package lemmy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/carlmjohnson/requests"
)

// Client talks to one Lemmy account's API session. The JWT is cached on
// disk so restarts do not re-login. Idempotency of posting is the
// caller's responsibility; the API happily creates duplicates.
type Client struct {
	baseURL   string
	username  string
	password  string
	userAgent string
	tokenPath string
	client    *http.Client
	token     string
}

type tokenFile struct {
	JWT string `json:"jwt"`
}

func NewClient(server, username, password, userAgent, dataDir string, httpClient *http.Client) *Client {
	baseURL := server
	if !strings.Contains(baseURL, "://") {
		baseURL = "https://" + baseURL
	}

	tokenName := fmt.Sprintf("%s_%s_token.json", sanitize(server), sanitize(username))

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		username:  username,
		password:  password,
		userAgent: userAgent,
		tokenPath: filepath.Join(dataDir, tokenName),
		client:    httpClient,
	}
}

func (c *Client) Username() string {
	return c.username
}

// EnsureLogin loads the cached token or performs a fresh login.
func (c *Client) EnsureLogin(ctx context.Context) error {
	if c.token != "" {
		return nil
	}

	if data, err := os.ReadFile(c.tokenPath); err == nil {
		var cached tokenFile
		if json.Unmarshal(data, &cached) == nil && cached.JWT != "" {
			c.token = cached.JWT
			return nil
		}
	}

	return c.login(ctx)
}

func (c *Client) login(ctx context.Context) error {
	body := map[string]string{
		"username_or_email": c.username,
		"password":          c.password,
	}

	var resp struct {
		JWT string `json:"jwt"`
	}

	err := requests.URL(c.baseURL + "/api/v3/user/login").
		Client(c.client).
		UserAgent(c.userAgent).
		BodyJSON(&body).
		ToJSON(&resp).
		Fetch(ctx)
	if err != nil {
		return fmt.Errorf("login failed for %s: %w", c.username, err)
	}
	if resp.JWT == "" {
		return fmt.Errorf("login for %s returned no token", c.username)
	}

	c.token = resp.JWT
	c.saveToken()
	return nil
}

func (c *Client) saveToken() {
	data, err := json.Marshal(tokenFile{JWT: c.token})
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.tokenPath), 0755); err != nil {
		return
	}
	_ = os.WriteFile(c.tokenPath, data, 0600)
}

// CreatePost publishes a link post and returns the Lemmy post id.
func (c *Client) CreatePost(ctx context.Context, communityID int64, title, link string) (int64, error) {
	if err := c.EnsureLogin(ctx); err != nil {
		return 0, err
	}

	body := map[string]any{
		"community_id": communityID,
		"name":         title,
		"url":          link,
	}

	var resp struct {
		PostView struct {
			Post struct {
				ID int64 `json:"id"`
			} `json:"post"`
		} `json:"post_view"`
	}

	err := requests.URL(c.baseURL+"/api/v3/post").
		Client(c.client).
		UserAgent(c.userAgent).
		Header("Authorization", "Bearer "+c.token).
		BodyJSON(&body).
		ToJSON(&resp).
		Fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to create post: %w", err)
	}
	if resp.PostView.Post.ID == 0 {
		return 0, fmt.Errorf("create post returned no id")
	}

	return resp.PostView.Post.ID, nil
}

// GetCommunityID resolves a community name to its numeric id.
func (c *Client) GetCommunityID(ctx context.Context, name string) (int64, error) {
	if err := c.EnsureLogin(ctx); err != nil {
		return 0, err
	}

	var resp struct {
		CommunityView struct {
			Community struct {
				ID int64 `json:"id"`
			} `json:"community"`
		} `json:"community_view"`
	}

	err := requests.URL(c.baseURL+"/api/v3/community").
		Client(c.client).
		UserAgent(c.userAgent).
		Header("Authorization", "Bearer "+c.token).
		Param("name", name).
		ToJSON(&resp).
		Fetch(ctx)
	if err == nil && resp.CommunityView.Community.ID != 0 {
		return resp.CommunityView.Community.ID, nil
	}

	// Remote communities are unknown locally until resolved once.
	if strings.Contains(name, "@") {
		return c.ResolveCommunity(ctx, name)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve community %q: %w", name, err)
	}
	return 0, fmt.Errorf("community %q not found", name)
}

// ResolveCommunity asks the instance to perform a federated lookup of a
// remote community ("name@host") and returns its local numeric id.
func (c *Client) ResolveCommunity(ctx context.Context, name string) (int64, error) {
	if err := c.EnsureLogin(ctx); err != nil {
		return 0, err
	}

	var resp struct {
		Community struct {
			Community struct {
				ID int64 `json:"id"`
			} `json:"community"`
		} `json:"community"`
	}

	err := requests.URL(c.baseURL+"/api/v3/resolve_object").
		Client(c.client).
		UserAgent(c.userAgent).
		Header("Authorization", "Bearer "+c.token).
		Param("q", "!"+strings.TrimPrefix(name, "!")).
		ToJSON(&resp).
		Fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve community %q: %w", name, err)
	}
	if resp.Community.Community.ID == 0 {
		return 0, fmt.Errorf("community %q not found", name)
	}

	return resp.Community.Community.ID, nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
