package credits

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/skillswap/backend/internal/middleware"
)

// Handler serves the read-only credits endpoints.
type Handler struct {
	pool *pgxpool.Pool
}

func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

// Balance returns the authenticated user's spendable credits.
func (h *Handler) Balance(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "unauthorized"})
	}

	balance, err := NewPGStore(h.pool).Balance(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to fetch balance"})
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "user_id": userID, "credits": balance})
}

// History returns the authenticated user's ledger entries, newest first.
func (h *Handler) History(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "unauthorized"})
	}

	entries, err := NewPGStore(h.pool).History(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to fetch history"})
	}
	if entries == nil {
		entries = []Entry{}
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "history": entries})
}
