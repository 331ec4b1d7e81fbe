package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// PollutantReading is the current-conditions slice of the air quality source.
type PollutantReading struct {
	Pm10           float64 `json:"pm10"`
	Pm25           float64 `json:"pm2_5"`
	CarbonMonoxide float64 `json:"carbon_monoxide"`
	Dust           float64 `json:"dust"`
}

// AirQualityClient fetches ambient pollutant data from a configured
// current-conditions endpoint.
type AirQualityClient struct {
	url    string
	client *Client
}

func NewAirQualityClient(httpClient *http.Client, url string) *AirQualityClient {
	return &AirQualityClient{
		url:    url,
		client: NewClient(httpClient, "air-quality", BackoffConfig{}),
	}
}

// Fetch returns the current pollutant readings. A response without a
// populated "current" object fails the call.
func (c *AirQualityClient) Fetch(ctx context.Context) (PollutantReading, error) {
	if c.url == "" {
		return PollutantReading{}, fmt.Errorf("air quality api url is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, c.url, nil)
	}

	resp, err := c.client.Do(ctx, buildRequest)
	if err != nil {
		return PollutantReading{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Current *PollutantReading `json:"current"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return PollutantReading{}, err
	}
	if payload.Current == nil {
		return PollutantReading{}, fmt.Errorf("air quality response missing current data")
	}
	return *payload.Current, nil
}
