package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	stdsync "sync"
	"time"

	gin "github.com/gin-gonic/gin"

	"catmatch/internal/app/dto"
	"catmatch/internal/app/policies"
	appsync "catmatch/internal/app/sync"
	"catmatch/internal/domain/chat"
	"catmatch/internal/infra/gateway"
)

// ChatHTTP exposes inbox endpoints.
type ChatHTTP interface {
	ListMyConversations(c *gin.Context)
	ListMessages(c *gin.Context)
	SendMessage(c *gin.Context)
	StartConversation(c *gin.Context)
	MarkConversationRead(c *gin.Context)
	MarkMessageRead(c *gin.Context)
	SetTyping(c *gin.Context)
	Unread(c *gin.Context)
	Watch(c *gin.Context)
	Unwatch(c *gin.Context)
}

// ChatHandler bridges HTTP to the sync core. Reads go through the Query
// Cache (stale-but-present wins over blank screens); mutations go through the
// core so every success invalidates the right keys.
type ChatHandler struct {
	Cache     policies.Cache
	Gateway   policies.Gateway
	Messenger *appsync.Messenger
	Resolver  *appsync.Resolver
	Reads     *appsync.ReadState
	Typing    *appsync.Coordinator
	Subs      *appsync.Subscriber
	Presence  *appsync.Tracker
	Logger    *slog.Logger

	watchMu stdsync.Mutex
	watches map[chat.ConversationID]*appsync.Subscription
}

// ListMyConversations serves the inbox, cache-first for the default page.
func (h *ChatHandler) ListMyConversations(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	page := parsePositiveIntStrict(c.Query("page"), 1)
	pageSize := parsePositiveIntStrict(c.Query("page_size"), 20)

	var result chat.ConversationPage
	var hit bool
	key := appsync.ConversationListKey(userID)
	if page == 1 {
		if cached, ok := h.Cache.Read(c.Request.Context(), key); ok {
			// An empty inbox is a valid cached answer; only a real miss
			// goes to the backend.
			if value, valid := cached.(chat.ConversationPage); valid {
				result = value
				hit = true
			}
		}
	}
	if !hit {
		fetched, err := h.Gateway.ListConversations(c.Request.Context(), userID, page, pageSize)
		if err != nil {
			h.respondGatewayError(c, err, "list conversations", "user_id", string(userID))
			return
		}
		result = fetched
		if page == 1 {
			h.Cache.Write(c.Request.Context(), key, fetched)
		}
	}
	c.JSON(http.StatusOK, h.toConversationList(userID, result))
}

// ListMessages serves one conversation's history, cache-first for page one.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID := chat.ConversationID(strings.TrimSpace(c.Param("id")))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	page := parsePositiveIntStrict(c.Query("page"), 1)
	pageSize := parsePositiveIntStrict(c.Query("page_size"), 50)

	var result chat.MessagePage
	var hit bool
	key := appsync.MessagesKey(conversationID)
	if page == 1 {
		if cached, ok := h.Cache.Read(c.Request.Context(), key); ok {
			if value, valid := cached.(chat.MessagePage); valid {
				result = value
				hit = true
			}
		}
	}
	if !hit {
		fetched, err := h.Gateway.ListMessages(c.Request.Context(), userID, conversationID, page, pageSize)
		if err != nil {
			h.respondGatewayError(c, err, "list messages", "conversation_id", string(conversationID), "user_id", string(userID))
			return
		}
		result = fetched
		if page == 1 {
			h.Cache.Write(c.Request.Context(), key, fetched)
		}
	}
	collection := dto.ChatMessageList{
		Items:    make([]dto.ChatMessage, 0, len(result.Messages)),
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
	}
	for _, msg := range result.Messages {
		collection.Items = append(collection.Items, toChatMessage(msg))
	}
	c.JSON(http.StatusOK, collection)
}

// SendMessage posts a message to a conversation.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID := chat.ConversationID(strings.TrimSpace(c.Param("id")))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}
	message, err := h.Messenger.Send(c.Request.Context(), userID, conversationID, req.Content)
	if err != nil {
		h.respondGatewayError(c, err, "send message", "conversation_id", string(conversationID), "user_id", string(userID))
		return
	}
	c.JSON(http.StatusCreated, toChatMessage(message))
}

// StartConversation resolves the thread for (me, rehomer, animal) and sends
// the opening message. A send failure after a successful resolve is reported
// distinctly so the UI can retry just the send.
func (h *ChatHandler) StartConversation(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req struct {
		RehomerID string `json:"rehomer_id"`
		AnimalID  string `json:"animal_id"`
		Message   string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.RehomerID = strings.TrimSpace(req.RehomerID)
	req.Message = strings.TrimSpace(req.Message)
	if req.RehomerID == "" || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rehomer_id and message are required"})
		return
	}
	if req.RehomerID == string(userID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot start chat with yourself"})
		return
	}
	conversation, message, err := h.Resolver.StartConversation(
		c.Request.Context(), userID, chat.UserID(req.RehomerID), chat.AnimalID(req.AnimalID), req.Message)
	if err != nil {
		var firstMsg *appsync.FirstMessageError
		if errors.As(err, &firstMsg) {
			c.JSON(http.StatusOK, dto.StartConversationResult{
				Conversation: h.toConversation(userID, firstMsg.Conversation),
				SendError:    "message_send_failed",
			})
			return
		}
		h.respondGatewayError(c, err, "start conversation", "user_id", string(userID), "rehomer_id", req.RehomerID)
		return
	}
	sent := toChatMessage(message)
	c.JSON(http.StatusCreated, dto.StartConversationResult{
		Conversation: h.toConversation(userID, conversation),
		Message:      &sent,
	})
}

// MarkConversationRead bulk-marks the conversation read for the caller.
func (h *ChatHandler) MarkConversationRead(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID := chat.ConversationID(strings.TrimSpace(c.Param("id")))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	if err := h.Reads.MarkConversationRead(c.Request.Context(), userID, conversationID); err != nil {
		h.respondGatewayError(c, err, "mark conversation read", "conversation_id", string(conversationID), "user_id", string(userID))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// MarkMessageRead marks one message as it scrolls into view.
func (h *ChatHandler) MarkMessageRead(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	messageID := chat.MessageID(strings.TrimSpace(c.Param("id")))
	if messageID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message id is required"})
		return
	}
	if err := h.Reads.MarkMessageRead(c.Request.Context(), userID, messageID); err != nil {
		h.respondGatewayError(c, err, "mark message read", "message_id", string(messageID), "user_id", string(userID))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SetTyping reacts to compose-box changes. Always succeeds from the UI's
// point of view: typing is best-effort.
func (h *ChatHandler) SetTyping(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID := chat.ConversationID(strings.TrimSpace(c.Param("id")))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	var req struct {
		HasText bool `json:"has_text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	h.Typing.SetComposing(c.Request.Context(), userID, conversationID, req.HasText)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Unread serves the global unread badge, cache-first.
func (h *ChatHandler) Unread(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	key := appsync.UnreadCountKey(userID)
	if cached, ok := h.Cache.Read(c.Request.Context(), key); ok {
		if count, valid := cached.(int); valid {
			c.JSON(http.StatusOK, dto.UnreadCount{UnreadCount: count})
			return
		}
	}
	count, err := h.Gateway.GetUnreadCount(c.Request.Context(), userID)
	if err != nil {
		h.respondGatewayError(c, err, "get unread count", "user_id", string(userID))
		return
	}
	h.Cache.Write(c.Request.Context(), key, count)
	c.JSON(http.StatusOK, dto.UnreadCount{UnreadCount: count})
}

// Watch marks a conversation as the open one: subscribes its message channel
// and bulk-marks it read. Idempotent per conversation.
func (h *ChatHandler) Watch(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID := chat.ConversationID(strings.TrimSpace(c.Param("id")))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}

	h.watchMu.Lock()
	if h.watches == nil {
		h.watches = make(map[chat.ConversationID]*appsync.Subscription)
	}
	_, watching := h.watches[conversationID]
	h.watchMu.Unlock()

	if !watching {
		subscription, err := h.Subs.SubscribeMessages(conversationID, userID)
		if err != nil {
			h.respondGatewayError(c, err, "watch conversation", "conversation_id", string(conversationID))
			return
		}
		h.watchMu.Lock()
		if _, raced := h.watches[conversationID]; raced {
			h.watchMu.Unlock()
			_ = subscription.Close()
		} else {
			h.watches[conversationID] = subscription
			h.watchMu.Unlock()
		}
	}
	if err := h.Reads.MarkConversationRead(c.Request.Context(), userID, conversationID); err != nil {
		h.respondGatewayError(c, err, "mark conversation read", "conversation_id", string(conversationID), "user_id", string(userID))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Unwatch closes the conversation's message channel when the UI leaves it.
// Leaving it open would keep firing invalidations nobody reads.
func (h *ChatHandler) Unwatch(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}
	conversationID := chat.ConversationID(strings.TrimSpace(c.Param("id")))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	h.watchMu.Lock()
	subscription, ok := h.watches[conversationID]
	delete(h.watches, conversationID)
	h.watchMu.Unlock()
	if ok {
		if err := subscription.Close(); err != nil && h.Logger != nil {
			h.Logger.Warn("unwatch close failed", "conversation_id", string(conversationID), "error", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CloseWatches releases every open message channel; called on shutdown.
func (h *ChatHandler) CloseWatches() {
	h.watchMu.Lock()
	defer h.watchMu.Unlock()
	for id, subscription := range h.watches {
		_ = subscription.Close()
		delete(h.watches, id)
	}
}

func (h *ChatHandler) toConversationList(userID chat.UserID, page chat.ConversationPage) dto.ConversationList {
	collection := dto.ConversationList{
		Items:    make([]dto.Conversation, 0, len(page.Conversations)),
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}
	for _, conversation := range page.Conversations {
		collection.Items = append(collection.Items, h.toConversation(userID, conversation))
	}
	return collection
}

func (h *ChatHandler) toConversation(userID chat.UserID, conversation chat.Conversation) dto.Conversation {
	item := dto.Conversation{
		ID:                      string(conversation.ID),
		AdopterID:               string(conversation.AdopterID),
		RehomerID:               string(conversation.RehomerID),
		AnimalID:                string(conversation.AnimalID),
		CreatedAt:               conversation.CreatedAt,
		LastMessageAt:           conversation.LastMessageAt,
		UnreadCount:             conversation.UnreadCount,
		OtherUserName:           conversation.OtherUserName,
		OtherUserProfilePicture: conversation.OtherUserProfilePic,
		AnimalName:              conversation.AnimalName,
		OtherPartyTyping:        conversation.OtherPartyTyping(userID, time.Now()),
	}
	if other, err := conversation.OtherParticipant(userID); err == nil && h.Presence != nil {
		item.OtherPartyOnline = h.Presence.IsOnline(other)
	}
	return item
}

func toChatMessage(message chat.Message) dto.ChatMessage {
	return dto.ChatMessage{
		ID:             string(message.ID),
		ConversationID: string(message.ConversationID),
		SenderID:       string(message.SenderID),
		Content:        message.Content,
		CreatedAt:      message.CreatedAt,
		IsRead:         message.IsRead,
		ReadAt:         message.ReadAt,
	}
}

func (h *ChatHandler) respondGatewayError(c *gin.Context, err error, action string, attrs ...any) {
	if h.Logger != nil {
		h.Logger.Error("gateway call failed", append([]any{"action", action, "error", err}, attrs...)...)
	}
	var ge *gateway.Error
	if errors.As(err, &ge) {
		switch ge.Kind {
		case gateway.KindBusiness:
			status := ge.Status
			if status < 400 || status >= 500 {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"error": ge.Err.Error()})
			return
		case gateway.KindValidation:
			c.JSON(http.StatusBadGateway, gin.H{"error": "invalid backend response"})
			return
		case gateway.KindTransport:
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backend unavailable"})
			return
		}
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": "backend unavailable"})
}

func requireUser(c *gin.Context) (chat.UserID, bool) {
	userID := strings.TrimSpace(c.GetHeader("X-User-ID"))
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user identity required"})
		return "", false
	}
	return chat.UserID(userID), true
}

func parsePositiveIntStrict(raw string, def int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return def
	}
	return value
}

var _ ChatHTTP = (*ChatHandler)(nil)
