package distance

import (
	"context"
	"math"

	"roadplan/internal/common/geo"
	"roadplan/internal/types"
)

// Assumed speeds in km/h for straight-line estimates.
var modeSpeedKmh = map[types.TravelMode]float64{
	types.ModeWalking:   geo.WalkingSpeedKmh,
	types.ModeBicycling: 15,
	types.ModeTransit:   25,
	types.ModeDriving:   50,
}

// Estimate derives a synthetic travel time from great-circle distance.
func Estimate(from, to types.LatLng, mode types.TravelMode) types.TravelEstimate {
	km := geo.Distance(from, to)
	speed, ok := modeSpeedKmh[mode]
	if !ok {
		speed = geo.WalkingSpeedKmh
	}
	return types.TravelEstimate{
		DistanceMeters:  int(math.Round(km * 1000)),
		DurationSeconds: int(math.Round(km / speed * 3600)),
		Estimated:       true,
	}
}

// Estimator is a Service that never calls out. It is the offline default.
type Estimator struct{}

func (Estimator) TravelTime(ctx context.Context, from, to types.LatLng, mode types.TravelMode) (types.TravelEstimate, error) {
	if err := ctx.Err(); err != nil {
		return types.TravelEstimate{}, err
	}
	return Estimate(from, to, mode), nil
}
