package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/skillswap/backend/internal/credits"
	"github.com/skillswap/backend/internal/db"
	"github.com/skillswap/backend/internal/middleware"
)

type Handler struct {
	pool      *pgxpool.Pool
	jwtSecret []byte
}

func NewHandler(pool *pgxpool.Pool, jwtSecret []byte) *Handler {
	return &Handler{pool: pool, jwtSecret: jwtSecret}
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Credits  int64  `json:"credits"`
}

// Register creates the account and issues the welcome bonus in one
// transaction.
func (h *Handler) Register(c echo.Context) error {
	req := new(RegisterRequest)
	if err := c.Bind(req); err != nil || req.Username == "" || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "username, email and password are required"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "server error"})
	}

	ctx := c.Request().Context()
	var user User
	err = db.WithTx(ctx, h.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO users (email, username, password)
			 VALUES ($1, $2, $3)
			 RETURNING id, email, username`,
			req.Email, req.Username, string(hashed),
		).Scan(&user.ID, &user.Email, &user.Username)
		if err != nil {
			return err
		}
		if err := credits.GrantWelcome(ctx, credits.NewPGStore(tx), user.ID); err != nil {
			return err
		}
		user.Credits = credits.WelcomeBonus
		return nil
	})
	if err != nil {
		slog.Error("registration failed", "email", req.Email, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "registration failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": user})
}

// Login verifies credentials, grants the daily login bonus when due, and
// returns a signed token.
func (h *Handler) Login(c echo.Context) error {
	req := new(LoginRequest)
	if err := c.Bind(req); err != nil || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "email and password are required"})
	}

	ctx := c.Request().Context()

	var user User
	var hashed string
	err := h.pool.QueryRow(ctx,
		`SELECT id, username, email, password FROM users WHERE email = $1`,
		req.Email,
	).Scan(&user.ID, &user.Username, &user.Email, &hashed)
	if errors.Is(err, pgx.ErrNoRows) {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "invalid email or password"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "login failed"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(req.Password)); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "invalid email or password"})
	}

	// Once per UTC calendar day; same-day logins are a no-op.
	err = db.WithTx(ctx, h.pool, func(tx pgx.Tx) error {
		_, err := credits.GrantDailyLogin(ctx, credits.NewPGStore(tx), user.ID, time.Now())
		return err
	})
	if err != nil {
		slog.Error("daily login bonus failed", "user_id", user.ID, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "login failed"})
	}

	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.jwtSecret)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "token generation failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Login successful",
		"token":   signed,
		"user":    echo.Map{"id": user.ID, "email": user.Email, "username": user.Username},
	})
}

// Me returns the authenticated user with their current balance.
func (h *Handler) Me(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "unauthorized"})
	}

	var user User
	err := h.pool.QueryRow(c.Request().Context(),
		`SELECT id, username, email, credits FROM users WHERE id = $1`,
		userID,
	).Scan(&user.ID, &user.Username, &user.Email, &user.Credits)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "user not found"})
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": user})
}
