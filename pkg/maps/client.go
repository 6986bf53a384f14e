package maps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/printz/fulfillment-backend/pkg/config"
	pkgerrors "github.com/printz/fulfillment-backend/pkg/errors"
)

const (
	defaultBaseURL        = "https://places.googleapis.com/v1"
	autocompleteFieldMask = "suggestions.placePrediction.placeId,suggestions.placePrediction.text"
	placeFieldMask        = "id,formattedAddress,location,addressComponents"
	errorBodyLimit  int64 = 1024
)

var errAPIKeyRequired = errors.New("google maps api key is required")

// Client talks to the Google Places API to help staff and customers enter
// recipient addresses.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	region     string
	language   string
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

func NewClient(cfg config.MapsConfig, opts ...Option) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:     key,
		baseURL:    defaultBaseURL,
		region:     strings.ToUpper(strings.TrimSpace(cfg.RegionCode)),
		language:   strings.TrimSpace(cfg.LanguageCode),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type AutocompleteRequest struct {
	Input               string   `json:"input"`
	IncludedRegionCodes []string `json:"includedRegionCodes,omitempty"`
	LanguageCode        string   `json:"languageCode,omitempty"`
}

type Prediction struct {
	PlaceID string
	Text    string
}

type Place struct {
	PlaceID          string
	FormattedAddress string
	Latitude         float64
	Longitude        float64
	Components       []Component
}

type Component struct {
	LongText  string
	ShortText string
	Types     []string
}

// Lookup returns the long text of the first component tagged with any of the
// given types, in order of preference.
func (p *Place) Lookup(kinds ...string) string {
	if p == nil {
		return ""
	}
	for _, kind := range kinds {
		for _, comp := range p.Components {
			if comp.LongText == "" {
				continue
			}
			for _, typ := range comp.Types {
				if typ == kind {
					return comp.LongText
				}
			}
		}
	}
	return ""
}

// Autocomplete fills in the client's default region and language when the
// request leaves them empty.
func (c *Client) Autocomplete(ctx context.Context, req AutocompleteRequest) ([]Prediction, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "google maps client not configured")
	}
	if strings.TrimSpace(req.Input) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "autocomplete input is required")
	}
	if len(req.IncludedRegionCodes) == 0 && c.region != "" {
		req.IncludedRegionCodes = []string{c.region}
	}
	if req.LanguageCode == "" {
		req.LanguageCode = c.language
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal autocomplete request")
	}

	var decoded struct {
		Suggestions []struct {
			PlacePrediction struct {
				PlaceID string `json:"placeId"`
				Text    struct {
					Text string `json:"text"`
				} `json:"text"`
			} `json:"placePrediction"`
		} `json:"suggestions"`
	}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/places:autocomplete", autocompleteFieldMask, payload, &decoded); err != nil {
		return nil, err
	}

	out := make([]Prediction, 0, len(decoded.Suggestions))
	for _, s := range decoded.Suggestions {
		if s.PlacePrediction.PlaceID == "" {
			continue
		}
		out = append(out, Prediction{PlaceID: s.PlacePrediction.PlaceID, Text: s.PlacePrediction.Text.Text})
	}
	return out, nil
}

func (c *Client) Place(ctx context.Context, placeID string) (*Place, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "google maps client not configured")
	}
	id := strings.TrimSpace(placeID)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "place id is required")
	}

	endpoint := c.baseURL + "/places/" + url.PathEscape(id)
	if c.language != "" {
		endpoint += "?languageCode=" + url.QueryEscape(c.language)
	}

	var decoded struct {
		ID               string `json:"id"`
		FormattedAddress string `json:"formattedAddress"`
		Location         struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"location"`
		AddressComponents []struct {
			LongText  string   `json:"longText"`
			ShortText string   `json:"shortText"`
			Types     []string `json:"types"`
		} `json:"addressComponents"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, placeFieldMask, nil, &decoded); err != nil {
		return nil, err
	}

	place := &Place{
		PlaceID:          decoded.ID,
		FormattedAddress: decoded.FormattedAddress,
		Latitude:         decoded.Location.Latitude,
		Longitude:        decoded.Location.Longitude,
		Components:       make([]Component, 0, len(decoded.AddressComponents)),
	}
	for _, comp := range decoded.AddressComponents {
		place.Components = append(place.Components, Component{
			LongText:  comp.LongText,
			ShortText: comp.ShortText,
			Types:     comp.Types,
		})
	}
	return place, nil
}

func (c *Client) do(ctx context.Context, method, endpoint, fieldMask string, body []byte, dest any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build places request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute places request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"places request failed")
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode places response")
	}
	return nil
}
