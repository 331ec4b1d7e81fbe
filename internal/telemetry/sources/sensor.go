package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// NodeSample is one per-device sample as reported by the sensor aggregation
// endpoint. Data keeps every reported key, including the source timestamp.
type NodeSample struct {
	DeviceKey string
	Data      map[string]any
}

// SensorClient talks to the sensor aggregation endpoint with a shared
// API-key credential.
type SensorClient struct {
	url    string
	apiKey string
	client *Client
}

func NewSensorClient(httpClient *http.Client, url, apiKey string) *SensorClient {
	return &SensorClient{
		url:    url,
		apiKey: apiKey,
		client: NewClient(httpClient, "sensor-aggregation", BackoffConfig{}),
	}
}

// Fetch issues one authenticated POST and returns the reported samples. An
// empty list is not an error: callers treat it as a no-op cycle.
func (c *SensorClient) Fetch(ctx context.Context) ([]NodeSample, error) {
	if c.url == "" {
		return nil, fmt.Errorf("sensor api url is not configured")
	}

	body, err := json.Marshal(map[string]string{"apiKey": c.apiKey})
	if err != nil {
		return nil, err
	}

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	resp, err := c.client.Do(ctx, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Data []struct {
			ID   json.RawMessage `json:"_id"`
			Data map[string]any  `json:"data"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	samples := make([]NodeSample, 0, len(payload.Data))
	for _, item := range payload.Data {
		samples = append(samples, NodeSample{
			DeviceKey: deviceKeyString(item.ID),
			Data:      item.Data,
		})
	}
	return samples, nil
}

// deviceKeyString normalizes the reported device identifier, which the
// upstream emits as either a number or a string.
func deviceKeyString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return string(raw)
}
