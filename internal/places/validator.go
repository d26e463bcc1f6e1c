// Package places confirms that a named place exists and returns its
// coordinates, address, identifier and type tags.
package places

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

	"roadplan/internal/types"
)

// ErrNotFound is returned when the lookup has no match for the name.
var ErrNotFound = errors.New("places: not found")

// Validator resolves a place name, optionally scoped to a country.
type Validator interface {
	Validate(ctx context.Context, name, country string) (types.PlaceDetails, error)
}

const (
	DefaultBaseURL = "https://places.googleapis.com/v1/places:searchText"
	fieldMask      = "places.id,places.displayName,places.formattedAddress,places.location,places.types,places.regularOpeningHours"
)

// HTTPValidator calls a text-search places API.
type HTTPValidator struct {
	http    *http.Client
	apiKey  string
	baseURL string
}

func NewHTTPValidator(apiKey, baseURL string) *HTTPValidator {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPValidator{
		http:    &http.Client{Timeout: 15 * time.Second},
		apiKey:  apiKey,
		baseURL: baseURL,
	}
}

type searchReq struct {
	TextQuery    string `json:"textQuery"`
	PageSize     int    `json:"pageSize,omitempty"`
	LanguageCode string `json:"languageCode,omitempty"`
}

type searchPoint struct {
	Day    int `json:"day"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

type searchResp struct {
	Places []struct {
		ID          string `json:"id"`
		DisplayName struct {
			Text string `json:"text"`
		} `json:"displayName"`
		FormattedAddress string `json:"formattedAddress"`
		Location         struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"location"`
		Types               []string `json:"types"`
		RegularOpeningHours *struct {
			Periods []struct {
				Open  searchPoint  `json:"open"`
				Close *searchPoint `json:"close"`
			} `json:"periods"`
		} `json:"regularOpeningHours"`
	} `json:"places"`
}

func (v *HTTPValidator) Validate(ctx context.Context, name, country string) (types.PlaceDetails, error) {
	query := strings.TrimSpace(name)
	if query == "" {
		return types.PlaceDetails{}, fmt.Errorf("places: empty name")
	}
	if c := strings.TrimSpace(country); c != "" {
		query += ", " + c
	}
	b, _ := json.Marshal(searchReq{TextQuery: query, PageSize: 1})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL, bytes.NewReader(b))
	if err != nil {
		return types.PlaceDetails{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-FieldMask", fieldMask)
	if v.apiKey != "" {
		req.Header.Set("X-Goog-Api-Key", v.apiKey)
	}

	resp, err := v.http.Do(req)
	if err != nil {
		return types.PlaceDetails{}, fmt.Errorf("places: search %q: %w", query, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return types.PlaceDetails{}, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return types.PlaceDetails{}, fmt.Errorf("places: unexpected status %s: %s", resp.Status, string(body))
	}
	var out searchResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return types.PlaceDetails{}, fmt.Errorf("places: decode: %w", err)
	}
	if len(out.Places) == 0 {
		return types.PlaceDetails{}, ErrNotFound
	}
	p := out.Places[0]
	d := types.PlaceDetails{
		Location:         types.LatLng{Lat: p.Location.Latitude, Lng: p.Location.Longitude},
		FormattedAddress: p.FormattedAddress,
		PlaceID:          p.ID,
		Types:            p.Types,
	}
	if d.Location.IsZero() {
		return types.PlaceDetails{}, ErrNotFound
	}
	if p.RegularOpeningHours != nil {
		for _, per := range p.RegularOpeningHours.Periods {
			op := types.OpeningPeriod{Open: types.DayTime{Day: per.Open.Day, Time: types.NewClock(per.Open.Hour, per.Open.Minute)}}
			if per.Close != nil {
				op.Close = &types.DayTime{Day: per.Close.Day, Time: types.NewClock(per.Close.Hour, per.Close.Minute)}
			}
			d.OpeningHours = append(d.OpeningHours, op)
		}
	}
	return d, nil
}
