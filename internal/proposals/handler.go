package proposals

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
	"github.com/skillswap/backend/internal/uploads"
)

const maxProposalFiles = 5

// Proposal is a buyer's offer on a listing.
type Proposal struct {
	ID          int64     `json:"id"`
	PostID      int64     `json:"post_id"`
	BuyerID     int64     `json:"buyer_id"`
	BuyerName   string    `json:"buyer_name,omitempty"`
	PostTitle   string    `json:"post_title,omitempty"`
	CoverLetter string    `json:"cover_letter"`
	Files       []string  `json:"files"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type Handler struct {
	pool      *pgxpool.Pool
	uploadDir string
}

func NewHandler(pool *pgxpool.Pool, uploadDir string) *Handler {
	return &Handler{pool: pool, uploadDir: uploadDir}
}

// Create submits a proposal on a listing. Multipart: cover_letter plus up to
// five attachment files.
func (h *Handler) Create(c echo.Context) error {
	buyerID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "unauthorized"})
	}

	postID, err := strconv.ParseInt(c.Param("postId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "invalid post id"})
	}

	coverLetter := strings.TrimSpace(c.FormValue("cover_letter"))
	if coverLetter == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "cover letter required"})
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
	if ownerID == buyerID {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "cannot propose on your own post"})
	}

	var files []string
	if form, err := c.MultipartForm(); err == nil && form != nil {
		files, err = uploads.SaveAll(h.uploadDir, form.File["files"], maxProposalFiles)
		if err != nil {
			slog.Error("proposal upload failed", "post_id", postID, "error", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "file upload failed"})
		}
	}
	if files == nil {
		files = []string{}
	}

	var p Proposal
	err = h.pool.QueryRow(ctx,
		`INSERT INTO proposals (post_id, buyer_id, cover_letter, files, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, post_id, buyer_id, cover_letter, files, status, created_at`,
		postID, buyerID, coverLetter, files, escrow.ProposalPending,
	).Scan(&p.ID, &p.PostID, &p.BuyerID, &p.CoverLetter, &p.Files, &p.Status, &p.CreatedAt)
	if err != nil {
		slog.Error("create proposal failed", "post_id", postID, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to create proposal"})
	}

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "proposal": p})
}

// ListForSeller returns proposals across the caller's listings.
func (h *Handler) ListForSeller(c echo.Context) error {
	sellerID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "unauthorized"})
	}

	rows, err := h.pool.Query(c.Request().Context(),
		`SELECT pr.id, pr.post_id, pr.buyer_id, u.username, p.title,
		        pr.cover_letter, COALESCE(pr.files, ARRAY[]::text[]), pr.status, pr.created_at
		 FROM proposals pr
		 JOIN posts p ON pr.post_id = p.id
		 JOIN users u ON pr.buyer_id = u.id
		 WHERE p.user_id = $1
		 ORDER BY pr.created_at DESC`,
		sellerID,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to fetch proposals"})
	}
	defer rows.Close()

	proposals := []Proposal{}
	for rows.Next() {
		var p Proposal
		if err := rows.Scan(&p.ID, &p.PostID, &p.BuyerID, &p.BuyerName, &p.PostTitle,
			&p.CoverLetter, &p.Files, &p.Status, &p.CreatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to read proposals"})
		}
		proposals = append(proposals, p)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "proposals": proposals})
}

// Accept opens escrow: debits the buyer, creates the order and marks the
// proposal accepted, all in one transaction.
func (h *Handler) Accept(c echo.Context) error {
	sellerID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "unauthorized"})
	}

	proposalID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "invalid proposal id"})
	}

	ctx := c.Request().Context()
	var order *escrow.Order
	err = db.WithTx(ctx, h.pool, func(tx pgx.Tx) error {
		opener := &escrow.Opener{
			Proposals: escrow.NewPGProposalStore(tx),
			Posts:     escrow.NewPGPostStore(tx),
			Orders:    escrow.NewPGOrderStore(tx),
			Ledger:    credits.NewPGStore(tx),
		}
		order, err = opener.Accept(ctx, proposalID, sellerID)
		return err
	})

	switch {
	case errors.Is(err, escrow.ErrProposalNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "proposal not found"})
	case errors.Is(err, escrow.ErrNotOwner):
		return c.JSON(http.StatusForbidden, echo.Map{"success": false, "message": "not your listing"})
	case errors.Is(err, escrow.ErrAlreadyAccepted):
		return c.JSON(http.StatusConflict, echo.Map{"success": false, "message": "proposal already handled"})
	case errors.Is(err, escrow.ErrOwnListing):
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "cannot accept your own proposal"})
	case errors.Is(err, credits.ErrInsufficientCredits):
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "buyer has insufficient credits"})
	case err != nil:
		slog.Error("accept proposal failed", "proposal_id", proposalID, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to accept proposal"})
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "order": order})
}

// Reject marks a pending proposal rejected. Only the listing owner may
// reject, and only from PENDING.
func (h *Handler) Reject(c echo.Context) error {
	sellerID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "unauthorized"})
	}

	proposalID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "invalid proposal id"})
	}

	tag, err := h.pool.Exec(c.Request().Context(),
		`UPDATE proposals pr SET status = $1
		 FROM posts p
		 WHERE pr.id = $2 AND pr.post_id = p.id AND p.user_id = $3 AND pr.status = $4`,
		escrow.ProposalRejected, proposalID, sellerID, escrow.ProposalPending,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to reject proposal"})
	}
	if tag.RowsAffected() == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "proposal not found, not yours, or already handled"})
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
