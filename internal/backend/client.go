// Package backend is the HTTP client for the storefront server: inventory
// checks, catalog reads, cart mirroring, profile/settings writes and orders.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"harvestcart/internal/metrics"
	"harvestcart/internal/model"
)

// Options configures a Client. Zero RPS disables outbound rate limiting.
type Options struct {
	BaseURL string
	Timeout time.Duration
	RPS     float64
	Burst   int
	// Secret, when set, signs cart-sync bodies with X-Signature. Other calls
	// are not signed.
	Secret string
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
	Limiter *rate.Limiter
	Secret  string
	log     zerolog.Logger
}

func New(o Options, log zerolog.Logger) *Client {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &Client{
		BaseURL: strings.TrimRight(o.BaseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		Secret:  o.Secret,
		log:     log,
	}
	if o.RPS > 0 {
		burst := o.Burst
		if burst <= 0 {
			burst = 1
		}
		c.Limiter = rate.NewLimiter(rate.Limit(o.RPS), burst)
	}
	return c
}

type stockRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type templateStockRequest struct {
	TemplateID string `json:"templateId"`
}

// CheckStock authorizes a prospective total quantity for one product.
func (c *Client) CheckStock(ctx context.Context, productID string, quantity int) error {
	err := c.do(ctx, http.MethodPost, "/api/check-stock", stockRequest{ProductID: productID, Quantity: quantity}, nil)
	var se *StatusError
	if errors.As(err, &se) && se.Status < 500 {
		err = &StockError{ProductID: productID, Requested: quantity, Status: se.Status, Reason: se.Message}
	}
	metrics.StockChecks.WithLabelValues("product", stockOutcome(err)).Inc()
	return err
}

// CheckTemplateStock authorizes a box and returns its current contents.
func (c *Client) CheckTemplateStock(ctx context.Context, templateID string) (model.TemplateStock, error) {
	var out model.TemplateStock
	err := c.do(ctx, http.MethodPost, "/api/check-template-stock", templateStockRequest{TemplateID: templateID}, &out)
	var se *StatusError
	if errors.As(err, &se) && se.Status < 500 {
		err = &StockError{TemplateID: templateID, Status: se.Status, Reason: se.Message}
	}
	metrics.StockChecks.WithLabelValues("template", stockOutcome(err)).Inc()
	if err != nil {
		return model.TemplateStock{}, err
	}
	return out, nil
}

// SyncCart mirrors the cart server-side. The response body is ignored.
func (c *Client) SyncCart(ctx context.Context, req model.SyncRequest) error {
	return c.send(ctx, http.MethodPost, "/api/cart/sync", req, nil, c.Secret != "")
}

func (c *Client) FetchProducts(ctx context.Context) ([]model.Product, error) {
	var out []model.Product
	if err := c.do(ctx, http.MethodGet, "/api/products", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchCatalog loads products, featured products and box templates at once.
func (c *Client) FetchCatalog(ctx context.Context) (model.Catalog, error) {
	var out model.Catalog
	if err := c.do(ctx, http.MethodGet, "/api/catalog", nil, &out); err != nil {
		return model.Catalog{}, err
	}
	return out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, u model.User) (model.User, error) {
	var out model.User
	if err := c.do(ctx, http.MethodPut, "/api/profile", u, &out); err != nil {
		return model.User{}, err
	}
	return out, nil
}

func (c *Client) UpdateSettings(ctx context.Context, s model.Settings) (model.Settings, error) {
	var out model.Settings
	if err := c.do(ctx, http.MethodPut, "/api/settings", s, &out); err != nil {
		return model.Settings{}, err
	}
	return out, nil
}

func (c *Client) PlaceOrder(ctx context.Context, req model.OrderRequest) (model.OrderOut, error) {
	var out model.OrderOut
	if err := c.do(ctx, http.MethodPost, "/api/orders", req, &out); err != nil {
		return model.OrderOut{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	return c.send(ctx, method, path, in, out, false)
}

// send performs one JSON round-trip; sign adds the sync signature header.
func (c *Client) send(ctx context.Context, method, path string, in, out any, sign bool) error {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrNetwork, err)
		}
	}
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = b
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
		if sign {
			req.Header.Set(SignatureHeader, SignSync(c.Secret, time.Now(), body))
		}
	}
	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("method", method).Str("path", path).Msg("backend request failed")
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("backend request")

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Status: resp.StatusCode, Message: errorMessage(data)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// errorMessage pulls a human message out of {"error":..} / {"message":..} /
// problem-details bodies, falling back to the raw text.
func errorMessage(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(data, &body) == nil {
		for _, s := range []string{body.Error, body.Message, body.Detail} {
			if s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(string(data))
}

func stockOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrStockUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
