package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/airsense/indoor-comfort/internal/store"
	"github.com/airsense/indoor-comfort/internal/telemetry/sources"
)

// InferenceClient forwards condition snapshots to the remote inference
// service. Calls are never retried: expiry of the caller's timeout budget
// triggers the cache-fallback path instead.
type InferenceClient struct {
	baseURL string
	client  *sources.Client
}

func NewInferenceClient(httpClient *http.Client, baseURL string) *InferenceClient {
	return &InferenceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  sources.NewClient(httpClient, "inference", sources.BackoffConfig{}),
	}
}

// Recommend posts the snapshot and returns the recommendation payload.
func (c *InferenceClient) Recommend(ctx context.Context, snapshot store.JSONMap) (store.JSONMap, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("inference api base is not configured")
	}

	body, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.baseURL+"/ai/recommend", bytes.NewReader(body))
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
		Recommendation store.JSONMap `json:"recommendation"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if payload.Recommendation == nil {
		payload.Recommendation = store.JSONMap{}
	}
	return payload.Recommendation, nil
}
