package orders

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/skillswap/backend/internal/credits"
	"github.com/skillswap/backend/internal/db"
	"github.com/skillswap/backend/internal/escrow"
	"github.com/skillswap/backend/internal/middleware"
	"github.com/skillswap/backend/internal/uploads"
)

const maxDeliveryFiles = 10

// OrderView is an order joined with its listing title for list responses.
type OrderView struct {
	escrow.Order
	PostTitle string `json:"post_title"`
}

type Handler struct {
	pool      *pgxpool.Pool
	uploadDir string
}

func NewHandler(pool *pgxpool.Pool, uploadDir string) *Handler {
	return &Handler{pool: pool, uploadDir: uploadDir}
}

// List returns the caller's orders as buyer or seller, newest first.
func (h *Handler) List(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "unauthorized"})
	}

	rows, err := h.pool.Query(c.Request().Context(),
		`SELECT o.id, o.post_id, o.proposal_id, o.buyer_id, o.seller_id, o.escrow_amount, o.status,
		        o.buyer_confirmed, o.seller_confirmed,
		        COALESCE(o.seller_delivered_files, ARRAY[]::text[]),
		        o.created_at, o.updated_at, p.title
		 FROM orders o
		 JOIN posts p ON o.post_id = p.id
		 WHERE o.buyer_id = $1 OR o.seller_id = $1
		 ORDER BY o.created_at DESC`,
		userID,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to fetch orders"})
	}
	defer rows.Close()

	orders := []OrderView{}
	for rows.Next() {
		var o OrderView
		if err := rows.Scan(&o.ID, &o.PostID, &o.ProposalID, &o.BuyerID, &o.SellerID, &o.EscrowAmount, &o.Status,
			&o.BuyerConfirmed, &o.SellerConfirmed, &o.DeliveredFiles, &o.CreatedAt, &o.UpdatedAt, &o.PostTitle); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to read orders"})
		}
		orders = append(orders, o)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "orders": orders})
}

// Deliver lets the seller attach deliverable files. The order row is locked
// so the status check and the file append cannot race a concurrent
// settlement.
func (h *Handler) Deliver(c echo.Context) error {
	sellerID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "unauthorized"})
	}

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "invalid order id"})
	}

	form, err := c.MultipartForm()
	if err != nil || form == nil || len(form.File["files"]) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "no files uploaded"})
	}
	paths, err := uploads.SaveAll(h.uploadDir, form.File["files"], maxDeliveryFiles)
	if err != nil {
		slog.Error("delivery upload failed", "order_id", orderID, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "file upload failed"})
	}

	ctx := c.Request().Context()
	var httpErr *echo.HTTPError
	err = db.WithTx(ctx, h.pool, func(tx pgx.Tx) error {
		order, err := escrow.NewPGOrderStore(tx).GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.SellerID != sellerID {
			httpErr = echo.NewHTTPError(http.StatusForbidden, "not allowed")
			return httpErr
		}
		if order.Status == escrow.OrderCompleted || order.Status == escrow.OrderCancelled {
			httpErr = echo.NewHTTPError(http.StatusBadRequest, "order is already closed")
			return httpErr
		}
		_, err = tx.Exec(ctx,
			`UPDATE orders
			 SET seller_delivered_files = COALESCE(seller_delivered_files, ARRAY[]::text[]) || $1,
			     status = $2,
			     updated_at = NOW()
			 WHERE id = $3`,
			paths, escrow.OrderDelivered, orderID,
		)
		return err
	})
	if httpErr != nil {
		return c.JSON(httpErr.Code, echo.Map{"success": false, "message": httpErr.Message})
	}
	if errors.Is(err, escrow.ErrOrderNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "order not found"})
	}
	if err != nil {
		slog.Error("deliver order failed", "order_id", orderID, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to deliver order"})
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Files uploaded successfully"})
}

// Confirm records the caller's completion confirmation; when both parties
// have confirmed, the escrow is released to the seller.
func (h *Handler) Confirm(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "unauthorized"})
	}

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "invalid order id"})
	}

	ctx := c.Request().Context()
	var order *escrow.Order
	err = db.WithTx(ctx, h.pool, func(tx pgx.Tx) error {
		closer := &escrow.Closer{
			Orders: escrow.NewPGOrderStore(tx),
			Posts:  escrow.NewPGPostStore(tx),
			Ledger: credits.NewPGStore(tx),
		}
		order, err = closer.Confirm(ctx, orderID, userID)
		return err
	})

	switch {
	case errors.Is(err, escrow.ErrOrderNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "order not found"})
	case errors.Is(err, escrow.ErrNotParticipant):
		return c.JSON(http.StatusForbidden, echo.Map{"success": false, "message": "not a party to this order"})
	case errors.Is(err, escrow.ErrOrderClosed):
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "order is cancelled"})
	case err != nil:
		slog.Error("confirm order failed", "order_id", orderID, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to confirm order"})
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "order": order})
}
