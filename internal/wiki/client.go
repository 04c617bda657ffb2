// Package wiki writes workflow documentation and ops records to a Notion
// workspace over its REST API.
package wiki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3/client"
	apperrors "github.com/goliatone/go-errors"

	"github.com/meikuraledutech/workflow/internal/logging"
)

const (
	ErrCodeHTTP       = "WIKI_HTTP_ERROR"
	ErrCodeConfig     = "WIKI_NOT_CONFIGURED"
	ErrCodeBadPayload = "WIKI_BAD_PAYLOAD"

	DefaultBaseURL = "https://api.notion.com/v1"
	DefaultVersion = "2022-06-28"

	// maxChildren is the API's limit of blocks per create or append call.
	maxChildren = 100
)

type Options struct {
	BaseURL string
	APIKey  string
	Version string
	Timeout time.Duration
}

// Client talks to the Notion API.
type Client struct {
	http   *client.Client
	logger logging.Logger
}

// NewClient requires an API key; base URL and version fall back to the defaults.
func NewClient(opts Options, logger logging.Logger) (*Client, error) {
	if opts.APIKey == "" {
		return nil, apperrors.New("wiki: api key must be set", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeConfig)
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	version := opts.Version
	if version == "" {
		version = DefaultVersion
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cc := client.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Authorization", "Bearer "+opts.APIKey).
		SetHeader("Notion-Version", version)

	return &Client{http: cc, logger: logging.Or(logger)}, nil
}

// Page is the part of a page object the tools care about.
type Page struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreatePage adds a page titled title to a database. Extra properties are
// merged next to the title; children beyond the per-call limit are appended
// in follow-up requests.
func (c *Client) CreatePage(ctx context.Context, databaseID, title string, props map[string]any, children []Block) (*Page, error) {
	properties := map[string]any{"Name": TitleProperty(title)}
	for k, v := range props {
		properties[k] = v
	}
	first, rest := splitBlocks(children)
	body := map[string]any{
		"parent":     map[string]any{"database_id": databaseID},
		"properties": properties,
		"children":   first,
	}

	var page Page
	if err := c.do(ctx, "POST", "/pages", body, &page); err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		if err := c.AppendBlocks(ctx, page.ID, rest); err != nil {
			return &page, err
		}
	}
	c.logger.Info("wiki page created: %s", page.URL)
	return &page, nil
}

// UpdatePage patches page properties.
func (c *Client) UpdatePage(ctx context.Context, pageID string, props map[string]any) (*Page, error) {
	var page Page
	if err := c.do(ctx, "PATCH", "/pages/"+url.PathEscape(pageID), map[string]any{"properties": props}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// QueryByTitle returns the pages of a database whose Name contains title.
func (c *Client) QueryByTitle(ctx context.Context, databaseID, title string) ([]Page, error) {
	body := map[string]any{
		"filter": map[string]any{
			"property": "Name",
			"title":    map[string]any{"contains": title},
		},
	}
	var out struct {
		Results []Page `json:"results"`
	}
	if err := c.do(ctx, "POST", "/databases/"+url.PathEscape(databaseID)+"/query", body, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// FindByTitle returns the first page matching title, or nil.
func (c *Client) FindByTitle(ctx context.Context, databaseID, title string) (*Page, error) {
	pages, err := c.QueryByTitle(ctx, databaseID, title)
	if err != nil || len(pages) == 0 {
		return nil, err
	}
	return &pages[0], nil
}

// AppendBlocks adds children to a page or block.
func (c *Client) AppendBlocks(ctx context.Context, blockID string, blocks []Block) error {
	path := "/blocks/" + url.PathEscape(blockID) + "/children"
	for len(blocks) > 0 {
		var batch []Block
		batch, blocks = splitBlocks(blocks)
		if err := c.do(ctx, "PATCH", path, map[string]any{"children": batch}, nil); err != nil {
			return err
		}
	}
	return nil
}

func splitBlocks(blocks []Block) ([]Block, []Block) {
	if blocks == nil {
		return []Block{}, nil
	}
	if len(blocks) <= maxChildren {
		return blocks, nil
	}
	return blocks[:maxChildren], blocks[maxChildren:]
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	cfg := client.Config{Ctx: ctx, Body: body}

	var (
		resp *client.Response
		err  error
	)
	switch method {
	case "GET":
		resp, err = c.http.Get(path, cfg)
	case "POST":
		resp, err = c.http.Post(path, cfg)
	case "PATCH":
		resp, err = c.http.Patch(path, cfg)
	default:
		resp, err = c.http.Custom(path, method, cfg)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.CategoryExternal, fmt.Sprintf("wiki: %s %s", method, path)).
			WithTextCode(ErrCodeHTTP)
	}
	defer resp.Close()

	if status := resp.StatusCode(); status >= 400 {
		var apiErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(resp.Body(), &apiErr)
		c.logger.Error("wiki %s %s returned %d: %s", method, path, status, apiErr.Message)
		return apperrors.New(fmt.Sprintf("wiki: %s %s returned %d", method, path, status), apperrors.CategoryExternal).
			WithTextCode(ErrCodeHTTP).
			WithMetadata(map[string]any{"status": status, "code": apiErr.Code, "message": apiErr.Message})
	}
	if out == nil || len(bytes.TrimSpace(resp.Body())) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return apperrors.Wrap(err, apperrors.CategoryExternal, fmt.Sprintf("wiki: decode %s %s", method, path)).
			WithTextCode(ErrCodeBadPayload)
	}
	return nil
}
