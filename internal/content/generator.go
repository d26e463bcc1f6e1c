// Package content is the generative-content collaborator: it prompts a
// model for candidate waypoints and replacement activities and turns the
// free-form answers into canonical types.
package content

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"roadplan/internal/llm"
	"roadplan/internal/types"
	"roadplan/internal/util/jsonutil"
)

// ErrUnparseable marks an answer that could not be decoded even after repair.
var ErrUnparseable = errors.New("content: unparseable model answer")

const (
	PhaseCandidates  = "candidates"
	PhaseReplacement = "replacement"
)

const promptCandidates = `You are planning a road trip.

Input JSON provides:
- origin, destination: fixed endpoints of the trip. Never change, replace or reorder them.
- waypoint_count: exact number of intermediate stops to propose.
- alternate_count: number of extra stops to propose as alternates.
- travel_style: one of adventure, culture, food, hidden-gems, best-overall.
- budget_tier: budget level of the traveller.
- nights_on_road: nights available between origin and destination.

Task:
Return STRICT JSON:
{
  "origin":      {"name": "string", "country": "string"},
  "destination": {"name": "string", "country": "string"},
  "waypoints": [
    {
      "name": "string",            // city or town, real and geocodable
      "country": "string",
      "justification": "string",   // why it fits the travel style
      "highlights": ["string"],    // 3-5 concrete things to do
      "min_nights": 1,
      "max_nights": 3
    }
  ],
  "alternates":     [ same shape as waypoints ],
  "theme_insights": ["string"]
}

Rules:
- Propose exactly waypoint_count waypoints, in rough travel order from origin to destination.
- Waypoints must lie between origin and destination; avoid large detours.
- Do not repeat origin or destination as a waypoint.
- min_nights <= max_nights.
- JSON only; no comments or trailing commas.
`

const promptReplacement = `You are repairing one slot of a day itinerary.

Input JSON describes the slot:
- city, date, day_of_week, time_window: when and where the new activity happens.
- activity_type, energy_level, travel_style, day_theme: what the slot is for.
- remaining_budget, max_cost: spending limits (omitted when unconstrained).
- near, radius_km: when present, the activity must be within radius_km of near.
- require_open: when true, the place must be open for the whole time_window on day_of_week.
- excluded: places that must NOT be proposed.
- reason: why the previous activity failed.

Task:
Return STRICT JSON for exactly one activity:
{
  "name": "string",
  "type": "string",
  "energy_level": "low|medium|high",
  "cost": "string",            // e.g. "€12", "Free"
  "address": "string",
  "location": {"lat": 0.0, "lng": 0.0}
}

Rules:
- Never propose a place listed in excluded.
- Respect every constraint in the input; prefer free or cheap options when max_cost is set.
- JSON only; no comments or trailing commas.
`

// Generator implements the content collaborator on top of an LLMClient.
type Generator struct {
	LLM    llm.LLMClient
	Logger *log.Logger
}

func (g *Generator) logger() *log.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return log.Default()
}

// ProposeCandidates asks the model for waypoints and alternates. The
// requested origin and destination always win over whatever the model
// echoes back.
func (g *Generator) ProposeCandidates(ctx context.Context, req types.CandidateRequest) (types.CandidateProposal, error) {
	if g == nil || g.LLM == nil {
		return types.CandidateProposal{}, errors.New("content: generator has no LLM client")
	}
	raw, err := g.LLM.GenerateJSON(llm.WithPhase(ctx, PhaseCandidates), promptCandidates, req)
	if err != nil {
		return types.CandidateProposal{}, fmt.Errorf("content: propose candidates: %w", err)
	}
	var doc any
	if err := jsonutil.Decode(raw, &doc); err != nil {
		return types.CandidateProposal{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	p, err := NormalizeProposal(doc)
	if err != nil {
		return types.CandidateProposal{}, err
	}
	p.Origin = pinEndpoint(g.logger(), "origin", p.Origin, req.Origin, req.Country)
	p.Destination = pinEndpoint(g.logger(), "destination", p.Destination, req.Destination, req.Country)
	p.Waypoints = dropEndpoints(p.Waypoints, req.Origin, req.Destination)
	p.Alternates = dropEndpoints(p.Alternates, req.Origin, req.Destination)
	return p, nil
}

func pinEndpoint(lg *log.Logger, role string, got types.CandidatePlace, want, country string) types.CandidatePlace {
	if got.Name != "" && !strings.EqualFold(got.Name, want) {
		lg.Printf("content: model changed %s %q -> %q, keeping %q", role, want, got.Name, want)
		got = types.CandidatePlace{}
	}
	got.Name = want
	if got.Country == "" {
		got.Country = country
	}
	return got
}

func dropEndpoints(in []types.CandidatePlace, origin, destination string) []types.CandidatePlace {
	out := in[:0]
	for _, c := range in {
		if strings.EqualFold(c.Name, origin) || strings.EqualFold(c.Name, destination) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ProposeReplacement asks the model for one activity that fits the slot.
// Answers naming an excluded place are rejected.
func (g *Generator) ProposeReplacement(ctx context.Context, req types.ReplacementRequest) (types.Activity, error) {
	if g == nil || g.LLM == nil {
		return types.Activity{}, errors.New("content: generator has no LLM client")
	}
	raw, err := g.LLM.GenerateJSON(llm.WithPhase(ctx, PhaseReplacement), promptReplacement, req)
	if err != nil {
		return types.Activity{}, fmt.Errorf("content: propose replacement: %w", err)
	}
	var doc any
	if err := jsonutil.Decode(raw, &doc); err != nil {
		return types.Activity{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	a, err := NormalizeActivity(doc)
	if err != nil {
		return types.Activity{}, err
	}
	for _, ex := range req.Excluded {
		if strings.EqualFold(strings.TrimSpace(ex), a.Name) {
			return types.Activity{}, fmt.Errorf("content: model re-proposed excluded place %q", a.Name)
		}
	}
	a.Window = req.Window
	if a.Type == "" {
		a.Type = req.ActivityType
	}
	if a.Energy == "" {
		a.Energy = req.Energy
	}
	return a, nil
}
