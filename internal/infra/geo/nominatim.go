package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yanqian/prayer-companion/internal/domain/location"
)

const defaultReverseURL = "https://nominatim.openstreetmap.org/reverse"

// NominatimGeocoder resolves place names through an OpenStreetMap Nominatim instance.
type NominatimGeocoder struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
}

// NewNominatimGeocoder builds a reverse geocoder. Nominatim rejects requests
// without a User-Agent.
func NewNominatimGeocoder(endpoint, userAgent string, timeout time.Duration) *NominatimGeocoder {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = defaultReverseURL
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = "prayer-companion"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NominatimGeocoder{
		endpoint:   endpoint,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Reverse returns the city, or the full display name when no city is known.
func (g *NominatimGeocoder) Reverse(ctx context.Context, latitude, longitude float64) (string, error) {
	values := url.Values{}
	values.Set("format", "jsonv2")
	values.Set("lat", strconv.FormatFloat(latitude, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(longitude, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+values.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build reverse geocode request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("reverse geocode request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("reverse geocode status %d", resp.StatusCode)
	}

	var body struct {
		DisplayName string `json:"display_name"`
		Error       string `json:"error"`
		Address     struct {
			City    string `json:"city"`
			Town    string `json:"town"`
			Village string `json:"village"`
			Country string `json:"country"`
		} `json:"address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode reverse geocode response: %w", err)
	}
	if body.Error != "" {
		return "", fmt.Errorf("reverse geocode: %s", body.Error)
	}
	for _, place := range []string{body.Address.City, body.Address.Town, body.Address.Village} {
		if strings.TrimSpace(place) != "" {
			return displayName(place, body.Address.Country), nil
		}
	}
	if strings.TrimSpace(body.DisplayName) == "" {
		return "", fmt.Errorf("reverse geocode returned no name")
	}
	return body.DisplayName, nil
}

var _ location.ReverseGeocoder = (*NominatimGeocoder)(nil)
