package comments

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
	"github.com/skillswap/backend/internal/middleware"
)

// Comment is a rated review on a listing.
type Comment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Content   string    `json:"content"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats aggregates the comments on a listing.
type Stats struct {
	TotalComments int     `json:"total_comments"`
	AverageRating float64 `json:"average_rating"`
}

type CreateRequest struct {
	Comment string `json:"comment"`
	Rating  int    `json:"rating"`
}

type Handler struct {
	pool *pgxpool.Pool
}

func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

// Create inserts a comment and, when the rating meets the quality threshold,
// grants the listing owner a bonus in the same transaction. No bonus when
// commenting on your own listing.
func (h *Handler) Create(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "unauthorized"})
	}

	postID, err := strconv.ParseInt(c.Param("postId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "invalid post id"})
	}

	req := new(CreateRequest)
	if err := c.Bind(req); err != nil || strings.TrimSpace(req.Comment) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "comment is required"})
	}
	if req.Rating < 1 || req.Rating > 5 {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "rating must be between 1 and 5"})
	}

	ctx := c.Request().Context()

	var ownerID int64
	err = h.pool.QueryRow(ctx, `SELECT user_id FROM posts WHERE id = $1`, postID).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "post not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to fetch post"})
	}

	var comment Comment
	err = db.WithTx(ctx, h.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO comments (post_id, user_id, content, rating)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id, post_id, user_id, content, rating, created_at`,
			postID, userID, req.Comment, req.Rating,
		).Scan(&comment.ID, &comment.PostID, &comment.UserID, &comment.Content, &comment.Rating, &comment.CreatedAt)
		if err != nil {
			return err
		}
		if ownerID == userID {
			return nil
		}
		_, err = credits.GrantRatingBonus(ctx, credits.NewPGStore(tx), ownerID, postID, req.Rating)
		return err
	})
	if err != nil {
		slog.Error("create comment failed", "post_id", postID, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to create comment"})
	}

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "comment": comment})
}

// List returns a listing's comments, newest first, plus aggregate stats.
func (h *Handler) List(c echo.Context) error {
	postID, err := strconv.ParseInt(c.Param("postId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "invalid post id"})
	}

	ctx := c.Request().Context()

	rows, err := h.pool.Query(ctx,
		`SELECT c.id, c.post_id, c.user_id, u.username, c.content, c.rating, c.created_at
		 FROM comments c
		 JOIN users u ON c.user_id = u.id
		 WHERE c.post_id = $1
		 ORDER BY c.created_at DESC`,
		postID,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to fetch comments"})
	}
	defer rows.Close()

	list := []Comment{}
	for rows.Next() {
		var cm Comment
		if err := rows.Scan(&cm.ID, &cm.PostID, &cm.UserID, &cm.Username, &cm.Content, &cm.Rating, &cm.CreatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to read comments"})
		}
		list = append(list, cm)
	}

	var stats Stats
	err = h.pool.QueryRow(ctx,
		`SELECT COUNT(*)::int, COALESCE(ROUND(AVG(rating), 1), 0)::float
		 FROM comments WHERE post_id = $1`,
		postID,
	).Scan(&stats.TotalComments, &stats.AverageRating)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to fetch comment stats"})
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "comments": list, "commentStats": stats})
}
