package pipeline

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadplan/internal/places"
	"roadplan/internal/types"
)

func gazetteer() *places.StaticValidator {
	return places.NewStaticValidator(map[string]types.PlaceDetails{
		"Aix-en-Provence": {Location: aix, PlaceID: "aix", FormattedAddress: "Aix-en-Provence, France"},
		"Barcelona":       {Location: barcelona, PlaceID: "bcn", FormattedAddress: "Barcelona, Spain"},
		"Nîmes":           {Location: nimes, PlaceID: "nim"},
		"Montpellier":     {Location: montpellier, PlaceID: "mpl"},
		"Carcassonne":     {Location: carcassonne, PlaceID: "car"},
		"Perpignan":       {Location: types.LatLng{Lat: 42.6887, Lng: 2.8948}, PlaceID: "per"},
		"Arles":           {Location: types.LatLng{Lat: 43.6766, Lng: 4.6278}, PlaceID: "arl"},
	})
}

func proposal(waypoints ...string) types.CandidateProposal {
	p := types.CandidateProposal{
		Origin:      types.CandidatePlace{Name: "Aix-en-Provence"},
		Destination: types.CandidatePlace{Name: "Barcelona"},
		Alternates:  []types.CandidatePlace{{Name: "Sète"}},
	}
	for _, w := range waypoints {
		p.Waypoints = append(p.Waypoints, types.CandidatePlace{Name: w})
	}
	return p
}

func waypointNames(ws []types.ValidatedPlace) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Name
	}
	return out
}

func TestTargetWaypointCount(t *testing.T) {
	cases := []struct{ nights, stops, want int }{
		{0, 0, 1},
		{1, 0, 1},
		{5, 0, 3},
		{6, 0, 3},
		{30, 0, 10},
		{6, 2, 2},
		{6, 9, 3},
	}
	for _, tc := range cases {
		if got := TargetWaypointCount(tc.nights, tc.stops); got != tc.want {
			t.Fatalf("TargetWaypointCount(%d,%d)=%d want %d", tc.nights, tc.stops, got, tc.want)
		}
	}
}

func TestSelectOrdersFromOriginAndAllocatesNights(t *testing.T) {
	content := &fakeContent{proposal: proposal("Montpellier", "Carcassonne", "Nîmes")}
	s := &WaypointSelector{Content: content, Places: gazetteer(), Logger: quietLogger()}

	sk := s.Select(context.Background(), types.TripRequest{
		Origin: "Aix-en-Provence", Destination: "Barcelona", Style: "culture",
		NightsOnRoad: 6, NightsAtDestination: 2,
	})

	require.False(t, sk.Meta.Fallback)
	assert.Equal(t, 3, sk.Meta.TargetCount)
	assert.Equal(t, []string{"Nîmes", "Montpellier", "Carcassonne"}, waypointNames(sk.Waypoints))
	for _, w := range sk.Waypoints {
		assert.True(t, w.Verified, w.Name)
		assert.Equal(t, 2, w.Nights, w.Name)
	}
	assert.Equal(t, 6, sk.TotalNights())
	assert.Equal(t, 2, sk.Destination.Nights)
	assert.True(t, sk.Origin.Verified)

	require.Len(t, content.candReqs, 1)
	req := content.candReqs[0]
	assert.Equal(t, "Aix-en-Provence", req.Origin)
	assert.Equal(t, "Barcelona", req.Destination)
	assert.Equal(t, 3, req.Waypoints)
	assert.Equal(t, AlternateCount, req.Alternates)
	assert.Equal(t, types.StyleCulture, req.Style)
}

func TestSelectDropsUnvalidatedWaypoints(t *testing.T) {
	content := &fakeContent{proposal: proposal("Nîmes", "Atlantis", "Carcassonne")}
	s := &WaypointSelector{Content: content, Places: gazetteer(), Logger: quietLogger()}

	sk := s.Select(context.Background(), types.TripRequest{
		Origin: "Aix-en-Provence", Destination: "Barcelona", NightsOnRoad: 6,
	})

	assert.Equal(t, []string{"Nîmes", "Carcassonne"}, waypointNames(sk.Waypoints))
	assert.Equal(t, []string{"Atlantis"}, sk.Meta.DroppedWaypoints)
	assert.Equal(t, 6, sk.TotalNights())
	for _, a := range sk.Alternates {
		assert.NotEqual(t, "Atlantis", a.Name)
	}
}

func TestSelectKeepsTopScoredWithinStopCount(t *testing.T) {
	p := proposal("Nîmes", "Montpellier", "Carcassonne", "Perpignan", "Arles")
	p.Waypoints[1].Highlights = []string{"Place de la Comédie", "Écusson", "Musée Fabre"}
	p.Waypoints[1].Justification = "university city with a lively medieval core"
	content := &fakeContent{proposal: p}
	s := &WaypointSelector{Content: content, Places: gazetteer(), Logger: quietLogger()}

	sk := s.Select(context.Background(), types.TripRequest{
		Origin: "Aix-en-Provence", Destination: "Barcelona", StopCount: 2, NightsOnRoad: 8,
	})

	require.Len(t, sk.Waypoints, 2)
	assert.Contains(t, waypointNames(sk.Waypoints), "Montpellier")
	// Sète from the proposal plus the three losers
	assert.Len(t, sk.Alternates, 4)
	assert.Equal(t, 8, sk.TotalNights())
}

func TestSelectDegradedAllocation(t *testing.T) {
	p := proposal("Nîmes", "Montpellier", "Carcassonne")
	for i := range p.Waypoints {
		p.Waypoints[i].MinNights = 3
		p.Waypoints[i].MaxNights = 4
	}
	s := &WaypointSelector{Content: &fakeContent{proposal: p}, Places: gazetteer(), Logger: quietLogger()}

	sk := s.Select(context.Background(), types.TripRequest{
		Origin: "Aix-en-Provence", Destination: "Barcelona", NightsOnRoad: 6,
	})

	require.True(t, sk.Meta.Degraded)
	for _, w := range sk.Waypoints {
		assert.Equal(t, 1, w.Nights)
	}
}

func TestSelectFallsBackOnCollaboratorFailure(t *testing.T) {
	content := &fakeContent{proposeErr: errors.New("model overloaded")}
	s := &WaypointSelector{Content: content, Places: gazetteer(), Logger: quietLogger()}

	sk := s.Select(context.Background(), types.TripRequest{
		Origin: "Aix-en-Provence", Destination: "Barcelona", NightsOnRoad: 4, NightsAtDestination: 3,
	})

	assert.True(t, sk.Meta.Fallback)
	assert.Contains(t, sk.Meta.FailureReason, "model overloaded")
	assert.Empty(t, sk.Waypoints)
	assert.Equal(t, "Aix-en-Provence", sk.Origin.Name)
	assert.True(t, sk.Origin.Verified)
	assert.Equal(t, 3, sk.Destination.Nights)
}

func TestSelectUnknownEndpointStaysUnverified(t *testing.T) {
	p := proposal("Nîmes")
	p.Origin.Name = "Nowhere"
	s := &WaypointSelector{Content: &fakeContent{proposal: p}, Places: gazetteer(), Logger: quietLogger()}

	sk := s.Select(context.Background(), types.TripRequest{Origin: "Nowhere", Destination: "Barcelona", NightsOnRoad: 2})

	assert.Equal(t, "Nowhere", sk.Origin.Name)
	assert.False(t, sk.Origin.Verified)
	assert.Equal(t, []string{"Nîmes"}, waypointNames(sk.Waypoints))
	assert.NotEmpty(t, sk.Meta.Warnings)
}

func TestSelectNightsAndCountProperties(t *testing.T) {
	all := []string{"Nîmes", "Montpellier", "Carcassonne", "Perpignan", "Arles"}
	for nights := 0; nights <= 14; nights++ {
		for stops := 0; stops <= 4; stops++ {
			s := &WaypointSelector{Content: &fakeContent{proposal: proposal(all...)}, Places: gazetteer(), Logger: quietLogger()}
			sk := s.Select(context.Background(), types.TripRequest{
				Origin: "Aix-en-Provence", Destination: "Barcelona", StopCount: stops, NightsOnRoad: nights,
			})
			if stops > 0 && len(sk.Waypoints) > stops {
				t.Fatalf("nights=%d stops=%d: %d waypoints", nights, stops, len(sk.Waypoints))
			}
			if !sk.Meta.Degraded && sk.Meta.UnallocatedNights == 0 && sk.TotalNights() != nights {
				t.Fatalf("nights=%d stops=%d: allocated %d", nights, stops, sk.TotalNights())
			}
			got := waypointNames(sk.Waypoints)
			sort.Strings(got)
			for i := 1; i < len(got); i++ {
				if got[i] == got[i-1] {
					t.Fatalf("duplicate waypoint %s", got[i])
				}
			}
		}
	}
}

func TestMiddleOutNights(t *testing.T) {
	cases := []struct {
		name       string
		mins, maxs []int
		nights     int
		want       []int
		degraded   bool
	}{
		{"middle first", []int{1, 1, 1}, []int{5, 5, 5}, 4, []int{1, 2, 1}, false},
		{"even middle pair", []int{1, 1, 1, 1}, []int{5, 5, 5, 5}, 6, []int{1, 2, 2, 1}, false},
		{"saturates at max", []int{1, 1}, []int{2, 2}, 10, []int{2, 2}, false},
		{"degraded", []int{3, 3}, []int{5, 5}, 5, []int{1, 1}, true},
		{"defaults", []int{0, 0, 0}, []int{0, 0, 0}, 5, []int{2, 2, 1}, false},
		{"empty", nil, nil, 3, []int{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, degraded := MiddleOutNights(tc.mins, tc.maxs, tc.nights)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.degraded, degraded)
		})
	}
}

func TestMiddleOutOrder(t *testing.T) {
	assert.Equal(t, []int{2, 1, 3, 0, 4}, middleOutOrder(5))
	assert.Equal(t, []int{1, 2, 0, 3}, middleOutOrder(4))
	assert.Equal(t, []int{0}, middleOutOrder(1))
	assert.Empty(t, middleOutOrder(0))
}

func TestSelectUsesCustomNightPolicy(t *testing.T) {
	calls := 0
	policy := func(mins, maxs []int, nights int) ([]int, bool) {
		calls++
		out := make([]int, len(mins))
		out[0] = nights
		return out, false
	}
	s := &WaypointSelector{
		Content: &fakeContent{proposal: proposal("Nîmes", "Carcassonne")},
		Places:  gazetteer(),
		Nights:  policy,
		Logger:  quietLogger(),
	}
	sk := s.Select(context.Background(), types.TripRequest{Origin: "Aix-en-Provence", Destination: "Barcelona", NightsOnRoad: 4})
	assert.Equal(t, 1, calls)
	assert.Equal(t, 4, sk.Waypoints[0].Nights)
	assert.Equal(t, 0, sk.Waypoints[1].Nights)
}
