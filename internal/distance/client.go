// Package distance answers travel-time questions between two coordinates.
package distance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"roadplan/internal/types"
)

// ErrNoRoute is returned when the service has no route between the points.
var ErrNoRoute = errors.New("distance: no route")

// Service is the travel-time lookup used by the optimizer and detector.
type Service interface {
	TravelTime(ctx context.Context, from, to types.LatLng, mode types.TravelMode) (types.TravelEstimate, error)
}

const DefaultBaseURL = "https://maps.googleapis.com/maps/api/distancematrix/json"

// HTTPClient calls a distance-matrix API for a single origin/destination pair.
type HTTPClient struct {
	http    *http.Client
	apiKey  string
	baseURL string
}

func NewHTTPClient(apiKey, baseURL string) *HTTPClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPClient{
		http:    &http.Client{Timeout: 10 * time.Second},
		apiKey:  apiKey,
		baseURL: baseURL,
	}
}

type matrixResp struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Rows         []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value int `json:"value"`
			} `json:"distance"`
			Duration struct {
				Value int `json:"value"`
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

func formatPoint(p types.LatLng) string {
	return strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 6, 64)
}

func (c *HTTPClient) TravelTime(ctx context.Context, from, to types.LatLng, mode types.TravelMode) (types.TravelEstimate, error) {
	if mode == "" {
		mode = types.ModeWalking
	}
	q := url.Values{}
	q.Set("origins", formatPoint(from))
	q.Set("destinations", formatPoint(to))
	q.Set("mode", string(mode))
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return types.TravelEstimate{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return types.TravelEstimate{}, fmt.Errorf("distance: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return types.TravelEstimate{}, fmt.Errorf("distance: unexpected status %s: %s", resp.Status, string(body))
	}
	var out matrixResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return types.TravelEstimate{}, fmt.Errorf("distance: decode: %w", err)
	}
	if out.Status != "" && out.Status != "OK" {
		return types.TravelEstimate{}, fmt.Errorf("distance: status %s: %s", out.Status, out.ErrorMessage)
	}
	if len(out.Rows) == 0 || len(out.Rows[0].Elements) == 0 {
		return types.TravelEstimate{}, ErrNoRoute
	}
	el := out.Rows[0].Elements[0]
	if el.Status != "OK" {
		return types.TravelEstimate{}, fmt.Errorf("%w: element status %s", ErrNoRoute, el.Status)
	}
	return types.TravelEstimate{DistanceMeters: el.Distance.Value, DurationSeconds: el.Duration.Value}, nil
}
