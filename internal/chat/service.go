package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/airsense/indoor-comfort/internal/common"
	"github.com/airsense/indoor-comfort/internal/store"
)

// Store is the slice of persistence the conversation orchestrator needs.
type Store interface {
	CreateConversation(ctx context.Context, c *store.Conversation) error
	AppendExchange(ctx context.Context, id string, entry store.JSONMap, lastActivityAt string) (store.Conversation, error)
	ListConversations(ctx context.Context, userID, roomID string, page, limit int) ([]store.Conversation, int, error)
	SoftDeleteConversation(ctx context.Context, id string) (store.Conversation, error)
}

// Agent is the remote conversational boundary.
type Agent interface {
	Reply(ctx context.Context, userInput string) (string, error)
}

// Service threads paired exchanges onto append-only conversation logs.
type Service struct {
	store Store
	agent Agent
}

func NewService(st Store, agent Agent) *Service {
	return &Service{store: st, agent: agent}
}

// ExchangeResult lets the caller render the new pair immediately without
// re-fetching the whole thread.
type ExchangeResult struct {
	ChatID   string        `json:"chatId"`
	Exchange store.JSONMap `json:"result"`
}

// AppendExchange forwards one utterance to the agent and appends the
// {user, agent} pair to a thread, creating the thread when no identifier is
// supplied. Agent transport failures surface as errors: there is no
// meaningful fallback reply.
func (s *Service) AppendExchange(ctx context.Context, userID, roomID, message, conversationID string) (ExchangeResult, error) {
	if strings.TrimSpace(message) == "" {
		return ExchangeResult{}, fmt.Errorf("%w: message must be a non-empty string", common.ErrInvalidArgument)
	}

	reply, err := s.agent.Reply(ctx, message)
	if err != nil {
		return ExchangeResult{}, fmt.Errorf("%w: agent request failed: %v", common.ErrUpstreamUnavailable, err)
	}

	pair := store.JSONMap{"user": message, "agent": reply}
	chatID, err := s.append(ctx, userID, roomID, conversationID, pair)
	if err != nil {
		return ExchangeResult{}, err
	}
	return ExchangeResult{ChatID: chatID, Exchange: pair}, nil
}

// AppendRawMessage appends a structured {sender, message, timestamp} entry
// with the same threading rule but no remote forwarding. Used for direct
// human-style logging.
func (s *Service) AppendRawMessage(ctx context.Context, userID, roomID, sender, message, conversationID string) (store.Conversation, error) {
	if strings.TrimSpace(sender) == "" || strings.TrimSpace(message) == "" {
		return store.Conversation{}, fmt.Errorf("%w: message must include sender and non-empty text", common.ErrInvalidArgument)
	}

	now := common.FormatDisplay(time.Now())
	entry := store.JSONMap{"sender": sender, "message": message, "timestamp": now}

	if conversationID != "" {
		return s.store.AppendExchange(ctx, conversationID, entry, now)
	}

	c := store.Conversation{
		UserID:         userID,
		RoomID:         roomID,
		Exchanges:      []store.JSONMap{entry},
		LastActivityAt: now,
	}
	if err := s.store.CreateConversation(ctx, &c); err != nil {
		return store.Conversation{}, err
	}
	return c, nil
}

func (s *Service) append(ctx context.Context, userID, roomID, conversationID string, entry store.JSONMap) (string, error) {
	now := common.FormatDisplay(time.Now())

	if conversationID != "" {
		c, err := s.store.AppendExchange(ctx, conversationID, entry, now)
		if err != nil {
			return "", err
		}
		return c.ID, nil
	}

	c := store.Conversation{
		UserID:         userID,
		RoomID:         roomID,
		Exchanges:      []store.JSONMap{entry},
		LastActivityAt: now,
	}
	if err := s.store.CreateConversation(ctx, &c); err != nil {
		return "", err
	}
	return c.ID, nil
}

// ListThreads returns live threads most recently active first.
func (s *Service) ListThreads(ctx context.Context, userID, roomID string, page, limit int) ([]store.Conversation, int, error) {
	if userID == "" {
		return nil, 0, fmt.Errorf("%w: userId required", common.ErrInvalidArgument)
	}
	return s.store.ListConversations(ctx, userID, roomID, page, limit)
}

// SoftDelete marks a thread deleted and returns it.
func (s *Service) SoftDelete(ctx context.Context, id string) (store.Conversation, error) {
	if id == "" {
		return store.Conversation{}, fmt.Errorf("%w: conversation id required", common.ErrInvalidArgument)
	}
	return s.store.SoftDeleteConversation(ctx, id)
}
