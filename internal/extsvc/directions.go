package extsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/service-matching/internal/models"
)

// DirectionsClient queries an OSRM-compatible routing server for road
// distance between two points.
type DirectionsClient struct {
	Endpoint string
	Client   *http.Client
}

func NewDirectionsClient(endpoint string) *DirectionsClient {
	return &DirectionsClient{Endpoint: endpoint, Client: &http.Client{Timeout: 2 * time.Second}}
}

// GetRouteDistance returns the route length in meters.
func (c *DirectionsClient) GetRouteDistance(ctx context.Context, origin, destination models.Coord) (float64, error) {
	u := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=false",
		c.Endpoint, origin.Lng, origin.Lat, destination.Lng, destination.Lat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	var out struct {
		Routes []struct {
			Distance float64 `json:"distance"`
		} `json:"routes"`
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		return 0, fmt.Errorf("directions: no route (%s)", out.Code)
	}
	return out.Routes[0].Distance, nil
}
