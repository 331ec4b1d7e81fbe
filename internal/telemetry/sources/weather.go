package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// WeatherReading is the current-conditions slice of the weather source.
type WeatherReading struct {
	Temperature2m      float64 `json:"temperature_2m"`
	RelativeHumidity2m float64 `json:"relative_humidity_2m"`
	WindSpeed10m       float64 `json:"wind_speed_10m"`
	WindDirection10m   float64 `json:"wind_direction_10m"`
	WindGusts10m       float64 `json:"wind_gusts_10m"`
	Rain               float64 `json:"rain"`
	Precipitation      float64 `json:"precipitation"`
	IsDay              int     `json:"is_day"`
}

// WeatherClient fetches ambient weather data from a configured
// current-conditions endpoint.
type WeatherClient struct {
	url    string
	client *Client
}

func NewWeatherClient(httpClient *http.Client, url string) *WeatherClient {
	return &WeatherClient{
		url:    url,
		client: NewClient(httpClient, "weather", BackoffConfig{}),
	}
}

// Fetch returns the current weather readings. A response without a populated
// "current" object fails the call.
func (c *WeatherClient) Fetch(ctx context.Context) (WeatherReading, error) {
	if c.url == "" {
		return WeatherReading{}, fmt.Errorf("weather api url is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, c.url, nil)
	}

	resp, err := c.client.Do(ctx, buildRequest)
	if err != nil {
		return WeatherReading{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Current *WeatherReading `json:"current"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return WeatherReading{}, err
	}
	if payload.Current == nil {
		return WeatherReading{}, fmt.Errorf("weather response missing current data")
	}
	return *payload.Current, nil
}
