package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"catmatch/internal/app/policies"
	"catmatch/internal/domain/chat"
)

// Config defines HTTP gateway client settings.
type Config struct {
	BaseURL     string
	Token       string
	CallTimeout time.Duration
}

// Client wraps the hosted backend's chat API. Every response body is decoded
// and schema-validated before anything is returned to the core.
type Client struct {
	base        *url.URL
	token       string
	httpClient  *http.Client
	callTimeout time.Duration
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewClient builds a gateway client for the given base URL.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("gateway: base url required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("gateway: invalid base url: %w", err)
	}
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 5 * time.Second
	}
	return &Client{
		base:        base,
		token:       cfg.Token,
		httpClient:  &http.Client{Timeout: callTimeout},
		callTimeout: callTimeout,
		validate:    validator.New(),
		logger:      logger,
	}, nil
}

// ListConversations fetches one page of a user's inbox, fully denormalized.
func (c *Client) ListConversations(ctx context.Context, userID chat.UserID, page, pageSize int) (chat.ConversationPage, error) {
	var payload conversationListPayload
	query := pageQuery(page, pageSize)
	if err := c.do(ctx, "list conversations", http.MethodGet, "/conversations", userID, query, nil, &payload); err != nil {
		return chat.ConversationPage{}, err
	}
	result := chat.ConversationPage{
		Conversations: make([]chat.Conversation, 0, len(payload.Conversations)),
		Total:         payload.Total,
		Page:          payload.Page,
		PageSize:      payload.PageSize,
	}
	for _, item := range payload.Conversations {
		conversation, err := item.toDomain()
		if err != nil {
			return chat.ConversationPage{}, &Error{Kind: KindValidation, Op: "list conversations", Err: err}
		}
		result.Conversations = append(result.Conversations, conversation)
	}
	return result, nil
}

// ListMessages fetches one page of a conversation's history.
func (c *Client) ListMessages(ctx context.Context, userID chat.UserID, conversationID chat.ConversationID, page, pageSize int) (chat.MessagePage, error) {
	var payload messageListPayload
	query := pageQuery(page, pageSize)
	path := "/conversations/" + url.PathEscape(string(conversationID)) + "/messages"
	if err := c.do(ctx, "list messages", http.MethodGet, path, userID, query, nil, &payload); err != nil {
		return chat.MessagePage{}, err
	}
	result := chat.MessagePage{
		Messages: make([]chat.Message, 0, len(payload.Messages)),
		Total:    payload.Total,
		Page:     payload.Page,
		PageSize: payload.PageSize,
	}
	for _, item := range payload.Messages {
		result.Messages = append(result.Messages, item.toDomain())
	}
	return result, nil
}

// SendMessage posts content into a conversation.
func (c *Client) SendMessage(ctx context.Context, userID chat.UserID, conversationID chat.ConversationID, content string) (chat.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return chat.Message{}, &Error{Kind: KindBusiness, Op: "send message", Err: chat.ErrContentRequired}
	}
	var payload struct {
		Message messagePayload `json:"message" validate:"required"`
	}
	path := "/conversations/" + url.PathEscape(string(conversationID)) + "/messages"
	body := map[string]string{"content": content}
	if err := c.do(ctx, "send message", http.MethodPost, path, userID, nil, body, &payload); err != nil {
		return chat.Message{}, err
	}
	return payload.Message.toDomain(), nil
}

// GetOrCreateConversation resolves the unique thread for the triple in one
// atomic backend call; the find-or-insert decision is entirely server-side.
func (c *Client) GetOrCreateConversation(ctx context.Context, adopterID, rehomerID chat.UserID, animalID chat.AnimalID) (chat.Conversation, error) {
	var payload struct {
		Conversation conversationPayload `json:"conversation" validate:"required"`
	}
	body := map[string]string{
		"rehomer_id": string(rehomerID),
		"animal_id":  string(animalID),
	}
	if err := c.do(ctx, "get or create conversation", http.MethodPost, "/conversations", adopterID, nil, body, &payload); err != nil {
		return chat.Conversation{}, err
	}
	conversation, err := payload.Conversation.toDomain()
	if err != nil {
		return chat.Conversation{}, &Error{Kind: KindValidation, Op: "get or create conversation", Err: err}
	}
	return conversation, nil
}

// SetTypingStatus flips the caller's typing flag for a conversation.
func (c *Client) SetTypingStatus(ctx context.Context, userID chat.UserID, conversationID chat.ConversationID, isTyping bool) error {
	var payload successPayload
	path := "/conversations/" + url.PathEscape(string(conversationID)) + "/typing"
	body := map[string]bool{"is_typing": isTyping}
	return c.do(ctx, "set typing status", http.MethodPut, path, userID, nil, body, &payload)
}

// MarkConversationRead bulk-marks all unread messages in the conversation as
// read for the caller. Re-marking an already-read conversation succeeds.
func (c *Client) MarkConversationRead(ctx context.Context, userID chat.UserID, conversationID chat.ConversationID) error {
	var payload successPayload
	path := "/conversations/" + url.PathEscape(string(conversationID)) + "/read"
	return c.do(ctx, "mark conversation read", http.MethodPost, path, userID, nil, nil, &payload)
}

// MarkMessageRead marks a single message read and reports which conversation
// it belongs to so the caller can scope its invalidations.
func (c *Client) MarkMessageRead(ctx context.Context, userID chat.UserID, messageID chat.MessageID) (chat.ConversationID, error) {
	var payload struct {
		Success        bool   `json:"success"`
		ConversationID string `json:"conversation_id" validate:"required"`
	}
	path := "/messages/" + url.PathEscape(string(messageID)) + "/read"
	if err := c.do(ctx, "mark message read", http.MethodPost, path, userID, nil, nil, &payload); err != nil {
		return "", err
	}
	return chat.ConversationID(payload.ConversationID), nil
}

// GetUnreadCount returns the server-computed unread total for the caller.
func (c *Client) GetUnreadCount(ctx context.Context, userID chat.UserID) (int, error) {
	var payload struct {
		UnreadCount int `json:"unread_count" validate:"gte=0"`
	}
	if err := c.do(ctx, "get unread count", http.MethodGet, "/conversations/unread", userID, nil, nil, &payload); err != nil {
		return 0, err
	}
	return payload.UnreadCount, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, userID chat.UserID, query url.Values, body, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	target := c.base.JoinPath(path)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindTransport, Op: op, Err: err}
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(callCtx, method, target.String(), reader)
	if err != nil {
		return &Error{Kind: KindTransport, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-User-ID", string(userID))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &Error{Kind: KindTransport, Op: op, Status: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}
	if resp.StatusCode >= 400 {
		return &Error{Kind: KindBusiness, Op: op, Status: resp.StatusCode, Err: errors.New(decodeServerError(resp.Body))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindValidation, Op: op, Status: resp.StatusCode, Err: err}
	}
	if err := c.validate.Struct(out); err != nil {
		return &Error{Kind: KindValidation, Op: op, Status: resp.StatusCode, Err: err}
	}
	return nil
}

func decodeServerError(body io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return "request rejected"
}

func pageQuery(page, pageSize int) url.Values {
	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		query.Set("page_size", strconv.Itoa(pageSize))
	}
	return query
}

var _ policies.Gateway = (*Client)(nil)
