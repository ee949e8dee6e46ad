package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"

	"comicdl/internal/config"
	"comicdl/internal/services"
	"comicdl/internal/textutil"
)

const (
	searchPath     = "/search.v1.Search/SearchKeyword"
	comicPath      = "/comic.v1.Comic/ComicDetail"
	imageIndexPath = "/comic.v1.Comic/GetImageIndex"
	imageTokenPath = "/comic.v1.Comic/ImageToken"
)

// maxErrorBody bounds how much of a failed response ends up in error messages.
const maxErrorBody = 512

var highlightTags = regexp.MustCompile(`</?em[^>]*>`)

// Client talks to the catalog API.
type Client struct {
	baseURL     string
	accessToken string
	userAgent   string
	httpClient  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithAccessToken sends token as the access_key query parameter.
func WithAccessToken(token string) Option {
	return func(c *Client) {
		c.accessToken = strings.TrimSpace(token)
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(agent string) Option {
	return func(c *Client) {
		if agent = strings.TrimSpace(agent); agent != "" {
			c.userAgent = agent
		}
	}
}

// New creates a catalog client rooted at baseURL (the twirp prefix).
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("catalog base url required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse catalog base url: %w", err)
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  "comicdl",
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// NewFromConfig builds a client from the [catalog] section.
func NewFromConfig(cfg config.Catalog) (*Client, error) {
	return New(
		cfg.BaseURL,
		WithAccessToken(cfg.AccessToken),
		WithUserAgent(cfg.UserAgent),
		WithHTTPClient(&http.Client{Timeout: cfg.Timeout()}),
	)
}

// Search returns one page of comics matching keyword.
func (c *Client) Search(ctx context.Context, keyword string, page int) (*SearchResult, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, services.Wrap(services.ErrValidation, "catalog", "search", "keyword must not be empty", nil)
	}
	page = max(page, 1)
	var data searchData
	body := map[string]any{"keyword": keyword, "pageNum": page, "pageSize": SearchPageSize}
	if err := c.call(ctx, "search", searchPath, body, &data); err != nil {
		return nil, err
	}

	result := &SearchResult{TotalPage: data.TotalPage, TotalNum: data.TotalNum}
	for _, item := range data.List {
		result.Comics = append(result.Comics, SearchComic{
			ID:          item.ID,
			Title:       strings.TrimSpace(highlightTags.ReplaceAllString(item.Title, "")),
			AuthorNames: item.AuthorName,
			Styles:      item.Styles,
			IsFinish:    item.IsFinish == 1,
			Cover:       item.VerticalCover,
		})
	}
	return result, nil
}

// Comic fetches the details of one comic. Episodes come back oldest first
// with titles already sanitized for use as directory names.
func (c *Client) Comic(ctx context.Context, comicID int64) (*Comic, error) {
	if comicID <= 0 {
		return nil, services.Wrap(services.ErrValidation, "catalog", "comic", "comic id must be positive", nil)
	}
	var data comicDetailData
	if err := c.call(ctx, "comic", comicPath, map[string]any{"comic_id": comicID}, &data); err != nil {
		return nil, err
	}

	title := textutil.SanitizeFileName(data.Title)
	comic := &Comic{
		ID:          data.ID,
		Title:       title,
		AuthorNames: data.AuthorName,
		Styles:      data.Styles,
		Evaluate:    data.Evaluate,
		IsFinish:    data.IsFinish == 1,
		Cover:       data.VerticalCover,
		Episodes:    make([]Episode, 0, len(data.EpList)),
	}
	for _, ep := range slices.Backward(data.EpList) {
		comic.Episodes = append(comic.Episodes, Episode{
			EpisodeID:    ep.ID,
			EpisodeTitle: textutil.EpisodeTitle(ep.ShortTitle, ep.Title),
			MangaID:      data.ID,
			MangaTitle:   title,
			Order:        ep.Ord,
			IsLocked:     ep.IsLocked,
		})
	}
	return comic, nil
}

// ImageIndex lists the images of an episode.
func (c *Client) ImageIndex(ctx context.Context, episodeID int64) (*ImageIndex, error) {
	var index ImageIndex
	if err := c.call(ctx, "image index", imageIndexPath, map[string]any{"ep_id": episodeID}, &index); err != nil {
		return nil, err
	}
	return &index, nil
}

// ImageTokens exchanges image paths for download tokens, one per path in the
// same order.
func (c *Client) ImageTokens(ctx context.Context, paths []string) ([]ImageToken, error) {
	encoded, err := json.Marshal(paths)
	if err != nil {
		return nil, fmt.Errorf("encode image paths: %w", err)
	}
	var tokens []ImageToken
	if err := c.call(ctx, "image token", imageTokenPath, map[string]any{"urls": string(encoded)}, &tokens); err != nil {
		return nil, err
	}
	if len(tokens) != len(paths) {
		return nil, services.Wrap(services.ErrExternal, "catalog", "image token",
			fmt.Sprintf("expected %d tokens, got %d", len(paths), len(tokens)), nil)
	}
	return tokens, nil
}

func (c *Client) call(ctx context.Context, operation, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", operation, err)
	}
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse catalog url: %w", err)
	}
	params := url.Values{}
	params.Set("device", "pc")
	params.Set("platform", "web")
	if c.accessToken != "" {
		params.Set("access_key", c.accessToken)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("User-Agent", c.userAgent)

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		if ctx.Err() != nil {
			return services.Wrap(services.ErrCancelled, "catalog", operation, "request cancelled", ctx.Err())
		}
		return services.Wrap(services.ErrTransient, "catalog", operation, fmt.Sprintf("request failed (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return services.Wrap(services.ErrTransient, "catalog", operation, "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		marker := services.ErrExternal
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			marker = services.ErrTransient
		}
		return services.Wrap(marker, "catalog", operation,
			fmt.Sprintf("unexpected status %d (latency=%v): %s", resp.StatusCode, latency, truncate(raw)), nil)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return services.Wrap(services.ErrExternal, "catalog", operation, "decode envelope: "+truncate(raw), err)
	}
	if env.Code != 0 {
		msg := env.Msg
		if msg == "" {
			msg = env.Message
		}
		return services.Wrap(services.ErrExternal, "catalog", operation, fmt.Sprintf("code %d: %s", env.Code, msg), nil)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return services.Wrap(services.ErrExternal, "catalog", operation, "response has no data", nil)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return services.Wrap(services.ErrExternal, "catalog", operation, "decode data", err)
	}
	return nil
}

func truncate(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		return text[:maxErrorBody] + "..."
	}
	return text
}
