package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"busease/internal/domain"

	"googlemaps.github.io/maps"
)

// RouteEstimate is a provider's driving estimate for a route.
type RouteEstimate struct {
	Duration   time.Duration
	DistanceKm float64
}

type RouteEstimator interface {
	Estimate(ctx context.Context, origin, destination string, waypoints []string) (RouteEstimate, error)
}

// MapsRouter asks the Google Directions API for the route through every stop.
type MapsRouter struct {
	client *maps.Client
}

// NewMapsRouter builds a Directions client whose HTTP calls give up after timeout.
func NewMapsRouter(apiKey string, timeout time.Duration, opts ...maps.ClientOption) (*MapsRouter, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	opts = append([]maps.ClientOption{
		maps.WithAPIKey(apiKey),
		maps.WithHTTPClient(&http.Client{Timeout: timeout}),
	}, opts...)
	c, err := maps.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	return &MapsRouter{client: c}, nil
}

func (r *MapsRouter) Estimate(ctx context.Context, origin, destination string, waypoints []string) (RouteEstimate, error) {
	routes, _, err := r.client.Directions(ctx, &maps.DirectionsRequest{
		Origin:      origin,
		Destination: destination,
		Waypoints:   waypoints,
		Mode:        maps.TravelModeDriving,
	})
	if err != nil {
		return RouteEstimate{}, domain.ExternalServiceError{Service: "maps", Err: err}
	}
	if len(routes) == 0 {
		return RouteEstimate{}, domain.ExternalServiceError{Service: "maps", Err: fmt.Errorf("no route from %q to %q", origin, destination)}
	}

	var est RouteEstimate
	meters := 0
	for _, leg := range routes[0].Legs {
		est.Duration += leg.Duration
		meters += leg.Distance.Meters
	}
	est.DistanceKm = float64(meters) / 1000
	return est, nil
}
