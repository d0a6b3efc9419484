package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-feed/internal/core"
	"github.com/vovakirdan/wirechat-feed/internal/proto"
	"github.com/vovakirdan/wirechat-feed/internal/store"
	"github.com/vovakirdan/wirechat-feed/internal/utils"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// MessageHandlers exposes the message log over REST.
type MessageHandlers struct {
	feed  *core.Feed
	store store.MessageStore
	log   *zerolog.Logger
}

// NewMessageHandlers creates message handlers reading from st and appending through feed.
func NewMessageHandlers(feed *core.Feed, st store.MessageStore, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{feed: feed, store: st, log: logger}
}

// CreateMessageRequest is the body of POST /api/messages.
type CreateMessageRequest struct {
	Text string `json:"text"`
}

// MessagesResponse is a page of the log in append order.
type MessagesResponse struct {
	Messages []proto.EventMessageData `json:"messages"`
}

// List returns a page of messages.
// GET /api/messages?after=<id>&limit=<n>
func (h *MessageHandlers) List(c *gin.Context) {
	var after *int64
	if raw := c.Query("after"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid after"})
			return
		}
		after = &id
	}

	limit := defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = min(n, maxPageSize)
	}

	page, err := h.store.Range(c.Request.Context(), after, limit)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrUnavailable) {
			status = http.StatusServiceUnavailable
		}
		h.log.Error().Err(err).Msg("failed to list messages")
		c.JSON(status, ErrorResponse{Error: "failed to list messages"})
		return
	}

	resp := MessagesResponse{Messages: make([]proto.EventMessageData, 0, len(page))}
	for _, m := range page {
		resp.Messages = append(resp.Messages, proto.EventMessageData{
			ID:       m.ID,
			User:     m.AuthorName,
			Text:     m.Text,
			ImageURL: m.ImageURL,
			TS:       m.CreatedAt.Unix(),
		})
	}
	c.JSON(http.StatusOK, resp)
}

// Create appends a message as the authenticated identity.
// POST /api/messages
func (h *MessageHandlers) Create(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	session := core.NewSession()
	session.Bind(identity.DisplayName)
	client := core.NewClient(utils.NewID(), h.feed, session)

	msg, err := client.Send(c.Request.Context(), req.Text)
	if err != nil {
		switch core.ErrorCode(err) {
		case core.ErrCodeValidationFailed:
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		case core.ErrCodeDisconnected:
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "message store unavailable"})
		default:
			h.log.Error().Err(err).Str("username", identity.DisplayName).Msg("failed to append message")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}
	if msg == nil {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusCreated, eventMessageFromCore(*msg))
}
