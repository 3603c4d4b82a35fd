package posts

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/skillswap/backend/internal/credits"
	"github.com/skillswap/backend/internal/db"
	"github.com/skillswap/backend/internal/escrow"
	"github.com/skillswap/backend/internal/middleware"
)

// Post is a published listing.
type Post struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Username    string    `json:"username,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       *int64    `json:"price"`
	Category    string    `json:"category,omitempty"`
	Status      string    `json:"status"`
	AssignedTo  *int64    `json:"assigned_to,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       *int64 `json:"price"`
	Category    string `json:"category"`
}

type Handler struct {
	pool *pgxpool.Pool
}

func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

// Create publishes a listing. The publication fee, the offsetting bonus and
// the listing insert are one transaction: if the insert fails, the fee was
// never charged.
func (h *Handler) Create(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "unauthorized"})
	}

	req := new(CreateRequest)
	if err := c.Bind(req); err != nil || strings.TrimSpace(req.Title) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "title is required"})
	}
	if req.Price != nil && *req.Price < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "price cannot be negative"})
	}

	ctx := c.Request().Context()
	var post Post
	err := db.WithTx(ctx, h.pool, func(tx pgx.Tx) error {
		if err := credits.ChargePublication(ctx, credits.NewPGStore(tx), userID); err != nil {
			return err
		}
		return tx.QueryRow(ctx,
			`INSERT INTO posts (user_id, title, description, price, category, status)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id, user_id, title, COALESCE(description, ''), price, COALESCE(category, ''), status, created_at`,
			userID, req.Title, req.Description, req.Price, req.Category, escrow.PostOpen,
		).Scan(&post.ID, &post.UserID, &post.Title, &post.Description, &post.Price, &post.Category, &post.Status, &post.CreatedAt)
	})
	if errors.Is(err, credits.ErrInsufficientCredits) {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "insufficient credits"})
	}
	if err != nil {
		slog.Error("create post failed", "user_id", userID, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to create post"})
	}

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "post": post})
}

// List browses listings with optional q, category and status filters.
func (h *Handler) List(c echo.Context) error {
	query := `SELECT p.id, p.user_id, u.username, p.title, COALESCE(p.description, ''), p.price,
	                 COALESCE(p.category, ''), p.status, p.assigned_to, p.created_at
	          FROM posts p
	          JOIN users u ON p.user_id = u.id`
	var conds []string
	var args []any

	if q := c.QueryParam("q"); q != "" {
		args = append(args, "%"+q+"%")
		n := strconv.Itoa(len(args))
		conds = append(conds, "(p.title ILIKE $"+n+" OR p.description ILIKE $"+n+")")
	}
	if cat := c.QueryParam("category"); cat != "" {
		args = append(args, cat)
		conds = append(conds, "p.category = $"+strconv.Itoa(len(args)))
	}
	if status := c.QueryParam("status"); status != "" {
		args = append(args, status)
		conds = append(conds, "p.status = $"+strconv.Itoa(len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY p.created_at DESC"

	rows, err := h.pool.Query(c.Request().Context(), query, args...)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to fetch posts"})
	}
	defer rows.Close()

	posts := []Post{}
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.UserID, &p.Username, &p.Title, &p.Description, &p.Price,
			&p.Category, &p.Status, &p.AssignedTo, &p.CreatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to read posts"})
		}
		posts = append(posts, p)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "posts": posts})
}

// Get returns a single listing.
func (h *Handler) Get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "invalid post id"})
	}

	var p Post
	err = h.pool.QueryRow(c.Request().Context(),
		`SELECT p.id, p.user_id, u.username, p.title, COALESCE(p.description, ''), p.price,
		        COALESCE(p.category, ''), p.status, p.assigned_to, p.created_at
		 FROM posts p
		 JOIN users u ON p.user_id = u.id
		 WHERE p.id = $1`,
		id,
	).Scan(&p.ID, &p.UserID, &p.Username, &p.Title, &p.Description, &p.Price,
		&p.Category, &p.Status, &p.AssignedTo, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "post not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to fetch post"})
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "post": p})
}
