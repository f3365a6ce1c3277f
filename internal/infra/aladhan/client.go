package aladhan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yanqian/prayer-companion/internal/domain/prayer"
	"github.com/yanqian/prayer-companion/internal/domain/timing"
	apperrors "github.com/yanqian/prayer-companion/pkg/errors"
)

const defaultBaseURL = "https://api.aladhan.com/v1"

// Client fetches prayer times from the Aladhan API.
type Client struct {
	baseURL    string
	loc        *time.Location
	httpClient *http.Client
}

// NewClient builds an API client. Returned times are interpreted in loc.
func NewClient(baseURL string, loc *time.Location, timeout time.Duration) *Client {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = defaultBaseURL
	}
	if loc == nil {
		loc = time.Local
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		loc:        loc,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchDay retrieves the timings for one day.
func (c *Client) FetchDay(ctx context.Context, coord prayer.Coordinate, day time.Time, method prayer.Method) (prayer.DailySchedule, error) {
	local := day.In(c.loc)
	endpoint := fmt.Sprintf("%s/timings/%s?%s", c.baseURL, local.Format("02-01-2006"), query(coord, method).Encode())

	var body dayResponse
	if err := c.get(ctx, endpoint, &body); err != nil {
		return prayer.DailySchedule{}, err
	}
	if body.Code != http.StatusOK {
		return prayer.DailySchedule{}, apperrors.Wrap(prayer.CodeTimingUnavailable, fmt.Sprintf("aladhan returned code %d", body.Code), nil)
	}
	return buildDay(local, c.loc, body.Data.Timings, coord, method)
}

// FetchMonth retrieves every day of a month.
func (c *Client) FetchMonth(ctx context.Context, coord prayer.Coordinate, year int, month time.Month, method prayer.Method) ([]prayer.DailySchedule, error) {
	endpoint := fmt.Sprintf("%s/calendar/%d/%d?%s", c.baseURL, year, int(month), query(coord, method).Encode())

	var body monthResponse
	if err := c.get(ctx, endpoint, &body); err != nil {
		return nil, err
	}
	if body.Code != http.StatusOK {
		return nil, apperrors.Wrap(prayer.CodeTimingUnavailable, fmt.Sprintf("aladhan returned code %d", body.Code), nil)
	}
	out := make([]prayer.DailySchedule, 0, len(body.Data))
	for _, entry := range body.Data {
		day, err := time.ParseInLocation("02-01-2006", entry.Date.Gregorian.Date, c.loc)
		if err != nil {
			return nil, apperrors.Wrap(prayer.CodeTimingParseError, fmt.Sprintf("malformed calendar date %q", entry.Date.Gregorian.Date), err)
		}
		schedule, err := buildDay(day, c.loc, entry.Timings, coord, method)
		if err != nil {
			return nil, err
		}
		out = append(out, schedule)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, endpoint string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return apperrors.Wrap(prayer.CodeTimingUnavailable, "build aladhan request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(prayer.CodeTimingUnavailable, "aladhan request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return apperrors.Wrap(prayer.CodeTimingUnavailable,
			fmt.Sprintf("aladhan request error: status=%d", resp.StatusCode),
			fmt.Errorf("body=%s", strings.TrimSpace(string(payload))))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return apperrors.Wrap(prayer.CodeTimingUnavailable, "decode aladhan response", err)
	}
	return nil
}

func query(coord prayer.Coordinate, method prayer.Method) url.Values {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(coord.Latitude, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(coord.Longitude, 'f', -1, 64))
	values.Set("method", strconv.Itoa(int(method)))
	return values
}

// buildDay maps the API's timings object onto a schedule. Missing keys mean the
// body is unusable; bad values are parse errors.
func buildDay(day time.Time, loc *time.Location, timings map[string]string, coord prayer.Coordinate, method prayer.Method) (prayer.DailySchedule, error) {
	raw := make(map[prayer.Name]string, len(prayer.Names))
	for _, name := range prayer.Names {
		value, ok := timings[string(name)]
		if !ok {
			return prayer.DailySchedule{}, apperrors.Wrap(prayer.CodeTimingUnavailable, fmt.Sprintf("aladhan response is missing %s", name), nil)
		}
		raw[name] = stripZone(value)
	}
	return prayer.BuildSchedule(day, loc, raw, coord, method)
}

// stripZone drops a trailing annotation such as " (+03)" or " (AST)".
func stripZone(value string) string {
	if i := strings.IndexByte(value, '('); i >= 0 {
		value = value[:i]
	}
	return strings.TrimSpace(value)
}

type dayResponse struct {
	Code int `json:"code"`
	Data struct {
		Timings map[string]string `json:"timings"`
	} `json:"data"`
}

type monthResponse struct {
	Code int `json:"code"`
	Data []struct {
		Timings map[string]string `json:"timings"`
		Date    struct {
			Gregorian struct {
				Date string `json:"date"`
			} `json:"gregorian"`
		} `json:"date"`
	} `json:"data"`
}

var _ timing.Provider = (*Client)(nil)
