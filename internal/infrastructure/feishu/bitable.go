package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"medwatch/internal/config"
	"medwatch/internal/domain"
	"medwatch/internal/ports"
)

const defaultBaseName = "医疗器械医美新闻收集"

// Client syncs articles into a Feishu Bitable. When no app token or table id
// is configured it creates a fresh base and table on first sync and reuses
// them afterwards.
type Client struct {
	baseURL    string
	appID      string
	appSecret  string
	appToken   string
	tableID    string
	httpClient *http.Client

	token       string
	tokenExpiry time.Time
}

var _ ports.TableSyncer = (*Client)(nil)

// NewClient builds a Bitable client from configuration.
func NewClient(cfg config.FeishuConfig) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		appID:      cfg.AppID,
		appSecret:  cfg.AppSecret,
		appToken:   cfg.AppToken,
		tableID:    cfg.TableID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Sync batch-inserts one record per article and returns the synced count.
func (c *Client) Sync(ctx context.Context, articles []domain.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}
	if c.appID == "" || c.appSecret == "" {
		return 0, fmt.Errorf("feishu client misconfigured")
	}

	if err := c.ensureToken(ctx); err != nil {
		return 0, err
	}
	if err := c.ensureTable(ctx); err != nil {
		return 0, err
	}

	type record struct {
		Fields map[string]any `json:"fields"`
	}
	records := make([]record, 0, len(articles))
	for _, article := range articles {
		records = append(records, record{Fields: map[string]any{
			"标题":  article.Title,
			"日期":  article.PublishDate,
			"来源":  article.Source,
			"地区":  article.Region,
			"关键词": strings.Join(article.Keywords, ", "),
			"链接":  article.URL,
			"摘要":  article.Summary,
		}})
	}

	var resp struct {
		Data struct {
			Records []json.RawMessage `json:"records"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/bitable/v1/apps/%s/tables/%s/records/batch_create", c.appToken, c.tableID)
	if err := c.request(ctx, http.MethodPost, path, map[string]any{"records": records}, &resp); err != nil {
		return 0, fmt.Errorf("batch create records: %w", err)
	}

	return len(resp.Data.Records), nil
}

// ensureToken fetches (or refreshes) the tenant access token.
func (c *Client) ensureToken(ctx context.Context) error {
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return nil
	}

	body, err := json.Marshal(map[string]string{
		"app_id":     c.appID,
		"app_secret": c.appSecret,
	})
	if err != nil {
		return fmt.Errorf("marshal token payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v3/tenant_access_token/internal", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request tenant token: %w", err)
	}
	defer resp.Body.Close()

	var parsed struct {
		Code              int    `json:"code"`
		Msg               string `json:"msg"`
		TenantAccessToken string `json:"tenant_access_token"`
		Expire            int    `json:"expire"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	if parsed.Code != 0 {
		return fmt.Errorf("tenant token error %d: %s", parsed.Code, parsed.Msg)
	}

	c.token = parsed.TenantAccessToken
	// Refresh a minute early to avoid using a token at its expiry edge.
	c.tokenExpiry = time.Now().Add(time.Duration(parsed.Expire)*time.Second - time.Minute)
	return nil
}

// ensureTable creates the base and table when their ids are not configured.
func (c *Client) ensureTable(ctx context.Context) error {
	if c.appToken == "" {
		var resp struct {
			Data struct {
				App struct {
					AppToken string `json:"app_token"`
				} `json:"app"`
			} `json:"data"`
		}
		if err := c.request(ctx, http.MethodPost, "/bitable/v1/apps", map[string]string{"name": defaultBaseName}, &resp); err != nil {
			return fmt.Errorf("create base: %w", err)
		}
		c.appToken = resp.Data.App.AppToken
	}

	if c.tableID == "" {
		var resp struct {
			Data struct {
				TableID string `json:"table_id"`
				Table   struct {
					TableID string `json:"table_id"`
				} `json:"table"`
			} `json:"data"`
		}
		payload := map[string]any{
			"table": map[string]any{
				"name": "news_data",
				"fields": []map[string]any{
					{"field_name": "标题", "type": 1},
					{"field_name": "日期", "type": 1},
					{"field_name": "来源", "type": 1},
					{"field_name": "地区", "type": 1},
					{"field_name": "关键词", "type": 1},
					{"field_name": "链接", "type": 1},
					{"field_name": "摘要", "type": 1},
				},
			},
		}
		path := fmt.Sprintf("/bitable/v1/apps/%s/tables", c.appToken)
		if err := c.request(ctx, http.MethodPost, path, payload, &resp); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
		c.tableID = resp.Data.Table.TableID
		if c.tableID == "" {
			c.tableID = resp.Data.TableID
		}
		if c.tableID == "" {
			return fmt.Errorf("create table: response carried no table_id")
		}
	}

	return nil
}

func (c *Client) request(ctx context.Context, method, path string, payload, out any) error {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var envelope struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Code != 0 {
		return fmt.Errorf("api error %d: %s", envelope.Code, envelope.Msg)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response body: %w", err)
		}
	}
	return nil
}
