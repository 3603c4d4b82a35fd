package messaging

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/skillswap/backend/internal/middleware"
)

// Conversation is a 1:1 thread between two users.
type Conversation struct {
	ID              int64      `json:"id"`
	OtherUserID     int64      `json:"other_user_id,omitempty"`
	OtherUserName   string     `json:"other_user_name,omitempty"`
	LastMessage     *string    `json:"last_message,omitempty"`
	LastMessageTime *time.Time `json:"last_message_time,omitempty"`
	UnreadCount     int        `json:"unread_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Message is one chat message inside a conversation.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	SenderName     string    `json:"sender_name,omitempty"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

type Handler struct {
	pool *pgxpool.Pool
}

func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

// OpenConversation returns the existing 1:1 conversation with the other
// user, creating it when absent.
func (h *Handler) OpenConversation(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "unauthorized"})
	}

	var req struct {
		OtherUserID int64 `json:"other_user_id"`
	}
	if err := c.Bind(&req); err != nil || req.OtherUserID == 0 || req.OtherUserID == userID {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "invalid other_user_id"})
	}

	ctx := c.Request().Context()

	var conv Conversation
	err := h.pool.QueryRow(ctx,
		`SELECT c.id, c.created_at, c.updated_at
		 FROM conversations c
		 JOIN conversation_participants cp1 ON c.id = cp1.conversation_id
		 JOIN conversation_participants cp2 ON c.id = cp2.conversation_id
		 WHERE cp1.user_id = $1 AND cp2.user_id = $2`,
		userID, req.OtherUserID,
	).Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)
	if err == nil {
		return c.JSON(http.StatusOK, echo.Map{"success": true, "conversation": conv})
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to fetch conversation"})
	}

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to create conversation"})
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO conversations DEFAULT VALUES RETURNING id, created_at, updated_at`,
	).Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)
	if err == nil {
		_, err = tx.Exec(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2), ($1, $3)`,
			conv.ID, userID, req.OtherUserID,
		)
	}
	if err == nil {
		err = tx.Commit(ctx)
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to create conversation"})
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "conversation": conv})
}

// ListConversations returns the caller's conversations with the last message
// and unread count.
func (h *Handler) ListConversations(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "unauthorized"})
	}

	rows, err := h.pool.Query(c.Request().Context(),
		`SELECT c.id, c.created_at, c.updated_at,
		        u.id, u.username,
		        (SELECT content FROM messages WHERE conversation_id = c.id ORDER BY created_at DESC LIMIT 1),
		        (SELECT created_at FROM messages WHERE conversation_id = c.id ORDER BY created_at DESC LIMIT 1),
		        (SELECT COUNT(*) FROM messages m
		         WHERE m.conversation_id = c.id AND m.sender_id != $1 AND m.created_at > cp.last_read_at)
		 FROM conversations c
		 JOIN conversation_participants cp ON c.id = cp.conversation_id
		 JOIN conversation_participants cp2 ON c.id = cp2.conversation_id
		 JOIN users u ON cp2.user_id = u.id
		 WHERE cp.user_id = $1 AND cp2.user_id != $1
		 ORDER BY c.updated_at DESC`,
		userID,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to fetch conversations"})
	}
	defer rows.Close()

	convs := []Conversation{}
	for rows.Next() {
		var conv Conversation
		if err := rows.Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt,
			&conv.OtherUserID, &conv.OtherUserName,
			&conv.LastMessage, &conv.LastMessageTime, &conv.UnreadCount); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to read conversations"})
		}
		convs = append(convs, conv)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "conversations": convs})
}

// ListMessages returns a conversation's messages oldest-first and marks the
// conversation read for the caller. Participants only.
func (h *Handler) ListMessages(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "unauthorized"})
	}

	convID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "invalid conversation id"})
	}

	ctx := c.Request().Context()
	if err := h.requireParticipant(c, convID, userID); err != nil {
		return err
	}

	rows, err := h.pool.Query(ctx,
		`SELECT m.id, m.conversation_id, m.sender_id, u.username, m.content, m.created_at
		 FROM messages m
		 JOIN users u ON m.sender_id = u.id
		 WHERE m.conversation_id = $1
		 ORDER BY m.created_at ASC`,
		convID,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to fetch messages"})
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderName, &m.Content, &m.CreatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to read messages"})
		}
		msgs = append(msgs, m)
	}

	_, _ = h.pool.Exec(ctx,
		`UPDATE conversation_participants SET last_read_at = NOW()
		 WHERE conversation_id = $1 AND user_id = $2`,
		convID, userID,
	)

	return c.JSON(http.StatusOK, echo.Map{"success": true, "messages": msgs})
}

// Send posts a message into a conversation the caller participates in.
func (h *Handler) Send(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "unauthorized"})
	}

	convID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "invalid conversation id"})
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "message content required"})
	}

	ctx := c.Request().Context()
	if err := h.requireParticipant(c, convID, userID); err != nil {
		return err
	}

	var m Message
	err = h.pool.QueryRow(ctx,
		`INSERT INTO messages (conversation_id, sender_id, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, conversation_id, sender_id, content, created_at`,
		convID, userID, req.Content,
	).Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.CreatedAt)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to send message"})
	}

	_, _ = h.pool.Exec(ctx, `UPDATE conversations SET updated_at = NOW() WHERE id = $1`, convID)

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "message": m})
}

func (h *Handler) requireParticipant(c echo.Context, convID, userID int64) error {
	var exists bool
	err := h.pool.QueryRow(c.Request().Context(),
		`SELECT EXISTS (
			SELECT 1 FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2
		)`,
		convID, userID,
	).Scan(&exists)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to check conversation"})
	}
	if !exists {
		return c.JSON(http.StatusForbidden, echo.Map{"success": false, "message": "not a participant"})
	}
	return nil
}
