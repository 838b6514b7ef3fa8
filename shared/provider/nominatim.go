package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultNominatimURL = "https://nominatim.openstreetmap.org"
	DefaultUserAgent    = "GeoLib/1.0"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected status code from geocoding provider")
)

// SearchResult is a single forward geocoding match. Nominatim encodes the
// coordinates as strings.
type SearchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// ReverseResult is the reverse geocoding response. Error is set by Nominatim
// instead of a non-2xx status when nothing is found.
type ReverseResult struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// NominatimProvider talks to an OpenStreetMap Nominatim instance.
type NominatimProvider struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewNominatimProvider creates a provider. Empty arguments fall back to the
// public instance and the default user agent.
func NewNominatimProvider(baseURL, userAgent string, client *http.Client) *NominatimProvider {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if client == nil {
		client = &http.Client{}
	}

	return &NominatimProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    client,
	}
}

// Search resolves a free-form address, returning at most one match.
func (p *NominatimProvider) Search(ctx context.Context, address string) ([]SearchResult, error) {
	query := url.Values{}
	query.Set("q", address)
	query.Set("format", "json")
	query.Set("limit", "1")

	var results []SearchResult
	if err := p.get(ctx, "/search", query, &results); err != nil {
		return nil, err
	}

	return results, nil
}

// Reverse resolves a latitude/longitude pair into a display address.
func (p *NominatimProvider) Reverse(ctx context.Context, lat, lng float64) (*ReverseResult, error) {
	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	query.Set("format", "json")

	var result ReverseResult
	if err := p.get(ctx, "/reverse", query, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (p *NominatimProvider) get(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}

	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
