package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"

	"roadplan/internal/types"
)

var (
	vieuxPort   = types.LatLng{Lat: 43.2951, Lng: 5.3745}
	mucem       = types.LatLng{Lat: 43.2967, Lng: 5.3610}
	aix         = types.LatLng{Lat: 43.5297, Lng: 5.4474}
	barcelona   = types.LatLng{Lat: 41.3874, Lng: 2.1686}
	nimes       = types.LatLng{Lat: 43.8367, Lng: 4.3601}
	montpellier = types.LatLng{Lat: 43.6108, Lng: 3.8767}
	carcassonne = types.LatLng{Lat: 43.2130, Lng: 2.3491}
)

type fakeContent struct {
	mu         sync.Mutex
	proposal   types.CandidateProposal
	proposeErr error
	candReqs   []types.CandidateRequest

	replies []fakeReplacement
	repReqs []types.ReplacementRequest
}

type fakeReplacement struct {
	act types.Activity
	err error
}

func (f *fakeContent) ProposeCandidates(_ context.Context, req types.CandidateRequest) (types.CandidateProposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candReqs = append(f.candReqs, req)
	return f.proposal, f.proposeErr
}

// ProposeReplacement replays replies in order; the last one repeats.
func (f *fakeContent) ProposeReplacement(_ context.Context, req types.ReplacementRequest) (types.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.repReqs)
	f.repReqs = append(f.repReqs, req)
	if len(f.replies) == 0 {
		return types.Activity{}, errors.New("no replacement scripted")
	}
	if n >= len(f.replies) {
		n = len(f.replies) - 1
	}
	r := f.replies[n]
	return r.act.Clone(), r.err
}

func (f *fakeContent) replacementRequests() []types.ReplacementRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.ReplacementRequest(nil), f.repReqs...)
}

type failingDistance struct{}

func (failingDistance) TravelTime(context.Context, types.LatLng, types.LatLng, types.TravelMode) (types.TravelEstimate, error) {
	return types.TravelEstimate{}, errors.New("upstream 503")
}

func quietLogger() *log.Logger {
	return log.New(&bytes.Buffer{}, "", 0)
}

func clock(h, m int) types.Clock { return types.NewClock(h, m) }

func act(name string, sh, sm, eh, em int) types.Activity {
	return types.Activity{Name: name, Window: types.TimeWindow{Start: clock(sh, sm), End: clock(eh, em)}}
}

func located(a types.Activity, loc types.LatLng) types.Activity {
	if a.Place == nil {
		a.Place = &types.PlaceRef{}
	}
	l := loc
	a.Place.Location = &l
	return a
}

func names(acts []types.Activity) []string {
	out := make([]string, len(acts))
	for i, a := range acts {
		out[i] = a.Name
	}
	return out
}

// weekly builds opening periods that open and close on the same day.
func weekly(open, close types.Clock, days ...int) []types.OpeningPeriod {
	out := make([]types.OpeningPeriod, 0, len(days))
	for _, d := range days {
		out = append(out, types.OpeningPeriod{
			Open:  types.DayTime{Day: d, Time: open},
			Close: &types.DayTime{Day: d, Time: close},
		})
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func countType(cs []types.Conflict, t types.ConflictType) int {
	n := 0
	for _, c := range cs {
		if c.Type == t {
			n++
		}
	}
	return n
}
