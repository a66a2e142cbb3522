// Package gateway is a thin HTTP client for the remote properties and
// clients REST API. It owns the base URL, default headers and the request
// timeout. It does not cache and it does not retry; both belong to callers.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"propdesk/internal/model"
	"propdesk/internal/obs"
)

// Client talks to the remote REST API.
type Client struct {
	baseURL string
	hc      *http.Client
}

// New creates a Client for the given base URL. A zero timeout falls back
// to 10 seconds.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
	}
}

// PropertyQuery holds the filters the list endpoint accepts server-side.
// Status is not a query parameter; when it is the only field set, the
// convenience paths /properties/available and /properties/sold are used.
type PropertyQuery struct {
	Type      string
	MinPrice  string
	MaxPrice  string
	BHK       string
	Ownership string
	Sector    string
	Status    model.Status
}

func (q PropertyQuery) values() url.Values {
	v := url.Values{}
	set := func(key, val string) {
		if val != "" {
			v.Set(key, val)
		}
	}
	set("type", q.Type)
	set("minPrice", q.MinPrice)
	set("maxPrice", q.MaxPrice)
	set("bhk", q.BHK)
	set("ownership", q.Ownership)
	set("sector", q.Sector)
	return v
}

func (q PropertyQuery) statusOnly() bool {
	return q.Status != "" && len(q.values()) == 0
}

// ClientQuery holds the clients list parameters.
type ClientQuery struct {
	Page        int
	Limit       int
	Search      string
	Requirement string
}

func (q ClientQuery) values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Requirement != "" {
		v.Set("requirement", q.Requirement)
	}
	return v
}

// ListProperties fetches listings matching the server-side filters.
func (c *Client) ListProperties(ctx context.Context, q PropertyQuery) ([]model.Property, error) {
	path := "/properties"
	if q.statusOnly() {
		if q.Status == model.StatusSold {
			path = "/properties/sold"
		} else {
			path = "/properties/available"
		}
	}
	var page model.PropertyPage
	if err := c.do(ctx, http.MethodGet, path, q.values(), nil, &page); err != nil {
		return nil, err
	}
	return page.Properties, nil
}

// GetProperty fetches one listing by id.
func (c *Client) GetProperty(ctx context.Context, id string) (model.Property, error) {
	var p model.Property
	err := c.do(ctx, http.MethodGet, "/properties/"+id, nil, nil, &p)
	return p, err
}

// CreateProperty posts a new listing and returns the created entity.
func (c *Client) CreateProperty(ctx context.Context, p model.Property) (model.Property, error) {
	var out model.Property
	err := c.do(ctx, http.MethodPost, "/properties", nil, p, &out)
	return out, err
}

// UpdateProperty replaces a listing in place. Last write wins; the API has
// no version check.
func (c *Client) UpdateProperty(ctx context.Context, id string, p model.Property) (model.Property, error) {
	var out model.Property
	err := c.do(ctx, http.MethodPut, "/properties/"+id, nil, p, &out)
	return out, err
}

// DeleteProperty removes a listing permanently.
func (c *Client) DeleteProperty(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/properties/"+id, nil, nil, nil)
}

// clientEnvelope is the response wrapper used by all /clients endpoints.
type clientEnvelope struct {
	Success    bool              `json:"success"`
	Data       json.RawMessage   `json:"data"`
	Pagination *model.Pagination `json:"pagination"`
	Message    string            `json:"message"`
}

func (env clientEnvelope) failure() error {
	if env.Success {
		return nil
	}
	return fmt.Errorf("api failure: %s", env.Message)
}

// ListClients fetches a page of the client roster.
func (c *Client) ListClients(ctx context.Context, q ClientQuery) (model.ClientPage, error) {
	var env clientEnvelope
	if err := c.do(ctx, http.MethodGet, "/clients", q.values(), nil, &env); err != nil {
		return model.ClientPage{}, err
	}
	if err := env.failure(); err != nil {
		return model.ClientPage{}, err
	}
	var list []model.Client
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &list); err != nil {
			return model.ClientPage{}, fmt.Errorf("decode clients: %w", err)
		}
	}
	return model.ClientPage{Clients: list, Pagination: env.Pagination}, nil
}

// GetClient fetches one roster entry by id.
func (c *Client) GetClient(ctx context.Context, id string) (model.Client, error) {
	return c.clientCall(ctx, http.MethodGet, "/clients/"+id, nil)
}

// CreateClient posts a new roster entry.
func (c *Client) CreateClient(ctx context.Context, cl model.Client) (model.Client, error) {
	return c.clientCall(ctx, http.MethodPost, "/clients", cl)
}

// UpdateClient replaces a roster entry in place.
func (c *Client) UpdateClient(ctx context.Context, id string, cl model.Client) (model.Client, error) {
	return c.clientCall(ctx, http.MethodPut, "/clients/"+id, cl)
}

// DeleteClient removes a roster entry permanently.
func (c *Client) DeleteClient(ctx context.Context, id string) error {
	var env clientEnvelope
	if err := c.do(ctx, http.MethodDelete, "/clients/"+id, nil, nil, &env); err != nil {
		return err
	}
	return env.failure()
}

func (c *Client) clientCall(ctx context.Context, method, path string, body any) (model.Client, error) {
	var env clientEnvelope
	if err := c.do(ctx, method, path, nil, body, &env); err != nil {
		return model.Client{}, err
	}
	if err := env.failure(); err != nil {
		return model.Client{}, err
	}
	var cl model.Client
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &cl); err != nil {
			return model.Client{}, fmt.Errorf("decode client: %w", err)
		}
	}
	return cl, nil
}

const maxErrorBody = 8 << 10

func (c *Client) do(ctx context.Context, method, path string, q url.Values, in, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	reqID := uuid.NewString()
	req.Header.Set("X-Request-Id", reqID)

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		obs.Logger.Warn("api_request_failed",
			"method", method, "path", path, "request_id", reqID, "error", err)
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	obs.Logger.Info("api_request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"latency_ms", float64(time.Since(start).Microseconds())/1000.0,
		"request_id", reqID,
	)

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{
			Status:  resp.StatusCode,
			Body:    string(raw),
			Message: extractMessage(raw),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractMessage(raw []byte) string {
	var m struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return ""
	}
	if m.Message != "" {
		return m.Message
	}
	return m.Error
}
