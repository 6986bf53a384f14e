// Package payos talks to the PayOS payment gateway: payment link creation,
// data signatures and order code generation.
package payos

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/printz/fulfillment-backend/pkg/config"
	"github.com/printz/fulfillment-backend/pkg/logger"
)

const (
	defaultBaseURL = "https://api-merchant.payos.vn"
	// PayOS rejects descriptions longer than this.
	maxDescriptionLen = 25
	successCode       = "00"
)

var (
	errClientIDRequired    = errors.New("payos client id is required")
	errAPIKeyRequired      = errors.New("payos api key is required")
	errChecksumKeyRequired = errors.New("payos checksum key is required")
)

// Client wraps the PayOS merchant API.
type Client struct {
	baseURL     string
	clientID    string
	apiKey      string
	checksumKey string
	http        *http.Client
	logg        *logger.Logger
}

type Option func(*Client)

func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(cfg config.PayOSConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errClientIDRequired
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errAPIKeyRequired
	}
	if strings.TrimSpace(cfg.ChecksumKey) == "" {
		return nil, errChecksumKeyRequired
	}
	if logg == nil {
		logg = logger.Nop()
	}
	c := &Client{
		baseURL:     defaultBaseURL,
		clientID:    cfg.ClientID,
		apiKey:      cfg.APIKey,
		checksumKey: cfg.ChecksumKey,
		http:        &http.Client{Timeout: 15 * time.Second},
		logg:        logg,
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		c.baseURL = strings.TrimRight(base, "/")
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Item is one line shown on the PayOS checkout page.
type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

type PaymentRequest struct {
	OrderCode   int64  `json:"orderCode"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	Items       []Item `json:"items,omitempty"`
	ReturnURL   string `json:"returnUrl"`
	CancelURL   string `json:"cancelUrl"`
	Signature   string `json:"signature"`
}

type PaymentLink struct {
	OrderCode     int64  `json:"orderCode"`
	Amount        int64  `json:"amount"`
	PaymentLinkID string `json:"paymentLinkId"`
	CheckoutURL   string `json:"checkoutUrl"`
	QRCode        string `json:"qrCode"`
	Status        string `json:"status"`
}

type apiResponse struct {
	Code      string          `json:"code"`
	Desc      string          `json:"desc"`
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

// CreatePaymentLink registers the order with PayOS and returns its checkout URL.
func (c *Client) CreatePaymentLink(ctx context.Context, req PaymentRequest) (*PaymentLink, error) {
	if req.OrderCode <= 0 || req.Amount <= 0 {
		return nil, fmt.Errorf("payos: order code and amount must be positive")
	}
	if len(req.Description) > maxDescriptionLen {
		req.Description = req.Description[:maxDescriptionLen]
	}
	req.Signature = c.Sign(map[string]any{
		"amount":      req.Amount,
		"cancelUrl":   req.CancelURL,
		"description": req.Description,
		"orderCode":   req.OrderCode,
		"returnUrl":   req.ReturnURL,
	})

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/payment-requests", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-client-id", c.clientID)
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("payos: create payment link: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("payos: create payment link: status %d", resp.StatusCode)
	}
	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("payos: decode response: %w", err)
	}
	if envelope.Code != successCode {
		return nil, fmt.Errorf("payos: create payment link: %s %s", envelope.Code, envelope.Desc)
	}
	var link PaymentLink
	if err := json.Unmarshal(envelope.Data, &link); err != nil {
		return nil, fmt.Errorf("payos: decode payment link: %w", err)
	}

	logCtx := c.logg.WithFields(ctx, map[string]any{"order_code": req.OrderCode, "amount": req.Amount})
	c.logg.Info(logCtx, "payos payment link created")
	return &link, nil
}

// Sign computes the PayOS signature over data: keys sorted, joined as k=v with
// '&', HMAC-SHA256 with the checksum key, hex encoded.
func (c *Client) Sign(data map[string]any) string {
	return Sign(c.checksumKey, data)
}

// Verify reports whether signature matches data.
func (c *Client) Verify(data map[string]any, signature string) bool {
	return Verify(c.checksumKey, data, signature)
}

func Sign(checksumKey string, data map[string]any) string {
	mac := hmac.New(sha256.New, []byte(checksumKey))
	mac.Write([]byte(canonical(data)))
	return hex.EncodeToString(mac.Sum(nil))
}

func Verify(checksumKey string, data map[string]any, signature string) bool {
	want := Sign(checksumKey, data)
	got := strings.ToLower(strings.TrimSpace(signature))
	return hmac.Equal([]byte(want), []byte(got))
}

func canonical(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+stringify(data[k]))
	}
	return strings.Join(parts, "&")
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		if val == "null" || val == "undefined" {
			return ""
		}
		return val
	case json.Number:
		return val.String()
	case float64:
		return big.NewFloat(val).Text('f', -1)
	case int, int32, int64, uint, uint32, uint64, bool:
		return fmt.Sprint(val)
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

// NewOrderCode returns a numeric order code unique enough for PayOS: the
// current unix milliseconds followed by three random digits.
func NewOrderCode(now time.Time) int64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1000))
	if err != nil {
		return now.UnixMilli() * 1000
	}
	return now.UnixMilli()*1000 + n.Int64()
}
