package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/airsense/indoor-comfort/internal/telemetry/sources"
)

// noReplySentinel substitutes for an empty remote reply: an empty reply is
// not an error, only an unreachable agent is.
const noReplySentinel = "no response from assistant"

// AgentClient forwards user utterances to the remote conversational boundary.
type AgentClient struct {
	baseURL string
	client  *sources.Client
}

func NewAgentClient(httpClient *http.Client, baseURL string) *AgentClient {
	return &AgentClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: sources.NewClient(httpClient, "agent", sources.BackoffConfig{
			MaxRetries:      2,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		}),
	}
}

// Reply sends one utterance and extracts the agent's reply. The remote
// response arrives in one of several shapes; the first populated field wins.
func (c *AgentClient) Reply(ctx context.Context, userInput string) (string, error) {
	body, err := json.Marshal(map[string]string{"user_input": userInput})
	if err != nil {
		return "", err
	}

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.baseURL+"/ai/agent", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	resp, err := c.client.Do(ctx, buildRequest)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var payload struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	return extractReply(payload.Result), nil
}

// extractReply tries the known response shapes in order: an object with a
// "message" field, one with a "response" field, a bare string, then the
// sentinel.
func extractReply(raw json.RawMessage) string {
	if len(raw) == 0 {
		return noReplySentinel
	}

	var obj struct {
		Message  string `json:"message"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		if obj.Response != "" {
			return obj.Response
		}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s
	}

	return noReplySentinel
}
