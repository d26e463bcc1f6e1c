package content

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"roadplan/internal/types"
)

// Model answers are loosely shaped: a waypoint may be keyed "city" or
// "name", highlights may arrive as "activities", nights as a "2-3" string.
// Everything below folds those variants into the canonical types.

var (
	nameKeys          = []string{"name", "city", "place", "title", "town"}
	countryKeys       = []string{"country", "country_name", "countryName"}
	justificationKeys = []string{"justification", "reason", "why", "description", "summary"}
	highlightKeys     = []string{"highlights", "activities", "attractions", "things_to_do", "thingsToDo"}
	minNightKeys      = []string{"min_nights", "minNights", "recommended_min_nights", "recommendedMinNights", "nights_min"}
	maxNightKeys      = []string{"max_nights", "maxNights", "recommended_max_nights", "recommendedMaxNights", "nights_max"}
	rangeNightKeys    = []string{"recommended_nights", "recommendedNights", "nights"}
	waypointKeys      = []string{"waypoints", "stops", "cities", "route", "places"}
	alternateKeys     = []string{"alternates", "alternatives", "alternative_stops", "backup"}
	insightKeys       = []string{"theme_insights", "themeInsights", "insights", "tips"}
)

var nightRangeRe = regexp.MustCompile(`(\d+)\s*(?:-|–|to)\s*(\d+)`)

func firstValue(m map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func stringValue(m map[string]any, keys []string) string {
	v, ok := firstValue(m, keys)
	if !ok {
		return ""
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return ""
}

func intValue(v any) (int, bool) {
	switch x := v.(type) {
	case float64:
		return int(math.Round(x)), true
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
			return n, true
		}
	}
	return 0, false
}

func stringList(v any) []string {
	var out []string
	switch x := v.(type) {
	case []any:
		for _, item := range x {
			switch it := item.(type) {
			case string:
				if s := strings.TrimSpace(it); s != "" {
					out = append(out, s)
				}
			case map[string]any:
				if s := stringValue(it, nameKeys); s != "" {
					out = append(out, s)
				}
			}
		}
	case string:
		for _, part := range strings.Split(x, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// normalizePlace converts one loosely shaped waypoint into a CandidatePlace.
// Strings are accepted as bare names.
func normalizePlace(v any) (types.CandidatePlace, bool) {
	switch x := v.(type) {
	case string:
		name := strings.TrimSpace(x)
		return types.CandidatePlace{Name: name}, name != ""
	case map[string]any:
		c := types.CandidatePlace{
			Name:          stringValue(x, nameKeys),
			Country:       stringValue(x, countryKeys),
			Justification: stringValue(x, justificationKeys),
		}
		if hv, ok := firstValue(x, highlightKeys); ok {
			c.Highlights = stringList(hv)
		}
		if mv, ok := firstValue(x, minNightKeys); ok {
			c.MinNights, _ = intValue(mv)
		}
		if mv, ok := firstValue(x, maxNightKeys); ok {
			c.MaxNights, _ = intValue(mv)
		}
		if rv, ok := firstValue(x, rangeNightKeys); ok && (c.MinNights == 0 || c.MaxNights == 0) {
			lo, hi := nightRange(rv)
			if c.MinNights == 0 {
				c.MinNights = lo
			}
			if c.MaxNights == 0 {
				c.MaxNights = hi
			}
		}
		return c, c.Name != ""
	}
	return types.CandidatePlace{}, false
}

func nightRange(v any) (int, int) {
	switch x := v.(type) {
	case float64:
		n := int(math.Round(x))
		return n, n
	case string:
		if m := nightRangeRe.FindStringSubmatch(x); m != nil {
			lo, _ := strconv.Atoi(m[1])
			hi, _ := strconv.Atoi(m[2])
			return lo, hi
		}
		if n, ok := intValue(x); ok {
			return n, n
		}
	case map[string]any:
		lo, _ := intValue(x["min"])
		hi, _ := intValue(x["max"])
		return lo, hi
	case []any:
		if len(x) == 2 {
			lo, _ := intValue(x[0])
			hi, _ := intValue(x[1])
			return lo, hi
		}
	}
	return 0, 0
}

func placeList(v any) []types.CandidatePlace {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]types.CandidatePlace, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		c, ok := normalizePlace(item)
		if !ok {
			continue
		}
		key := strings.ToLower(c.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// NormalizeProposal folds a decoded candidate answer into the canonical shape.
// A bare array is read as the waypoint list.
func NormalizeProposal(doc any) (types.CandidateProposal, error) {
	var p types.CandidateProposal
	switch x := doc.(type) {
	case []any:
		p.Waypoints = placeList(x)
	case map[string]any:
		if v, ok := x["origin"]; ok {
			p.Origin, _ = normalizePlace(v)
		}
		if v, ok := x["destination"]; ok {
			p.Destination, _ = normalizePlace(v)
		}
		if v, ok := firstValue(x, waypointKeys); ok {
			p.Waypoints = placeList(v)
		}
		if v, ok := firstValue(x, alternateKeys); ok {
			p.Alternates = placeList(v)
		}
		if v, ok := firstValue(x, insightKeys); ok {
			p.ThemeInsights = stringList(v)
		}
	default:
		return p, fmt.Errorf("%w: unexpected top-level %T", ErrUnparseable, doc)
	}
	if len(p.Waypoints) == 0 && len(p.Alternates) == 0 {
		return p, fmt.Errorf("%w: no waypoints in answer", ErrUnparseable)
	}
	return p, nil
}

var (
	activityNameKeys = []string{"name", "title", "activity", "place", "place_name"}
	activityTypeKeys = []string{"type", "category", "kind"}
	energyKeys       = []string{"energy", "energy_level", "energyLevel", "intensity"}
	costKeys         = []string{"cost", "price", "admission", "admission_fee", "entry_fee", "estimated_cost"}
	addressKeys      = []string{"address", "formatted_address", "location_name"}
)

// NormalizeActivity folds a decoded replacement answer into an Activity.
// The answer may wrap the activity under "activity" or "replacement".
func NormalizeActivity(doc any) (types.Activity, error) {
	m, ok := doc.(map[string]any)
	if !ok {
		if arr, isArr := doc.([]any); isArr && len(arr) > 0 {
			return NormalizeActivity(arr[0])
		}
		return types.Activity{}, fmt.Errorf("%w: unexpected activity %T", ErrUnparseable, doc)
	}
	for _, wrap := range []string{"activity", "replacement", "suggestion"} {
		if inner, ok := m[wrap].(map[string]any); ok {
			m = inner
			break
		}
	}
	a := types.Activity{
		Name:   stringValue(m, activityNameKeys),
		Type:   stringValue(m, activityTypeKeys),
		Energy: strings.ToLower(stringValue(m, energyKeys)),
	}
	if a.Name == "" {
		return types.Activity{}, fmt.Errorf("%w: activity without name", ErrUnparseable)
	}
	ref := &types.PlaceRef{
		Cost:    stringValue(m, costKeys),
		Address: stringValue(m, addressKeys),
	}
	if loc, ok := locationOf(m); ok {
		ref.Location = &loc
	}
	if ref.Cost != "" || ref.Address != "" || ref.Location != nil {
		a.Place = ref
	}
	return a, nil
}

func locationOf(m map[string]any) (types.LatLng, bool) {
	if v, ok := firstValue(m, []string{"location", "coordinates", "geo"}); ok {
		if lm, ok := v.(map[string]any); ok {
			return latLngOf(lm)
		}
	}
	return latLngOf(m)
}

func latLngOf(m map[string]any) (types.LatLng, bool) {
	lat, okLat := firstValue(m, []string{"lat", "latitude"})
	lng, okLng := firstValue(m, []string{"lng", "lon", "long", "longitude"})
	if !okLat || !okLng {
		return types.LatLng{}, false
	}
	la, ok1 := floatValue(lat)
	lo, ok2 := floatValue(lng)
	if !ok1 || !ok2 || (la == 0 && lo == 0) {
		return types.LatLng{}, false
	}
	return types.LatLng{Lat: la, Lng: lo}, true
}

func floatValue(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}
