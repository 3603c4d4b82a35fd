package profile

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/skillswap/backend/internal/db"
	"github.com/skillswap/backend/internal/middleware"
)

var errNotFound = errors.New("user not found")

// Profile is a user's public-facing profile.
type Profile struct {
	UserID            int64       `json:"user_id"`
	Username          string      `json:"username"`
	Email             string      `json:"email,omitempty"`
	Headline          string      `json:"headline"`
	Bio               string      `json:"bio"`
	Location          string      `json:"location"`
	ProfilePictureURL *string     `json:"profile_picture_url"`
	PortfolioURL      string      `json:"portfolio_url"`
	LinkedinURL       string      `json:"linkedin_url"`
	GithubURL         string      `json:"github_url"`
	Education         []Education `json:"education"`
	Languages         []Language  `json:"languages"`
}

type Education struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	StartYear   int    `json:"start_year"`
	EndYear     *int   `json:"end_year"`
}

type Language struct {
	Language string `json:"language"`
	Level    string `json:"level"`
}

type UpdateRequest struct {
	Headline          string      `json:"headline"`
	Bio               string      `json:"bio"`
	Location          string      `json:"location"`
	ProfilePictureURL *string     `json:"profile_picture_url"`
	PortfolioURL      string      `json:"portfolio_url"`
	LinkedinURL       string      `json:"linkedin_url"`
	GithubURL         string      `json:"github_url"`
	Education         []Education `json:"education"`
	Languages         []Language  `json:"languages"`
}

type Handler struct {
	pool *pgxpool.Pool
}

func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

// Me returns the caller's own profile, falling back to bare account info
// when no profile row exists yet.
func (h *Handler) Me(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "unauthorized"})
	}

	p, err := h.load(c, userID, true)
	if errors.Is(err, errNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "user not found"})
	}
	if err != nil {
		slog.Error("load profile failed", "user_id", userID, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to fetch profile"})
	}
	return c.JSON(http.StatusOK, p)
}

// Update upserts the profile row and replaces education and languages.
func (h *Handler) Update(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "unauthorized"})
	}

	req := new(UpdateRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "invalid request"})
	}

	ctx := c.Request().Context()
	err := db.WithTx(ctx, h.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO profiles (user_id, headline, bio, location, profile_picture_url, portfolio_url, linkedin_url, github_url, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
			 ON CONFLICT (user_id)
			 DO UPDATE SET
			   headline = EXCLUDED.headline,
			   bio = EXCLUDED.bio,
			   location = EXCLUDED.location,
			   profile_picture_url = EXCLUDED.profile_picture_url,
			   portfolio_url = EXCLUDED.portfolio_url,
			   linkedin_url = EXCLUDED.linkedin_url,
			   github_url = EXCLUDED.github_url,
			   updated_at = NOW()`,
			userID, req.Headline, req.Bio, req.Location, req.ProfilePictureURL,
			req.PortfolioURL, req.LinkedinURL, req.GithubURL,
		)
		if err != nil {
			return err
		}

		// Replace-all strategy for the child tables.
		if req.Education != nil {
			if _, err := tx.Exec(ctx, `DELETE FROM user_education WHERE user_id = $1`, userID); err != nil {
				return err
			}
			for _, edu := range req.Education {
				if _, err := tx.Exec(ctx,
					`INSERT INTO user_education (user_id, institution, degree, start_year, end_year)
					 VALUES ($1, $2, $3, $4, $5)`,
					userID, edu.Institution, edu.Degree, edu.StartYear, edu.EndYear,
				); err != nil {
					return err
				}
			}
		}
		if req.Languages != nil {
			if _, err := tx.Exec(ctx, `DELETE FROM user_languages WHERE user_id = $1`, userID); err != nil {
				return err
			}
			for _, lang := range req.Languages {
				if _, err := tx.Exec(ctx,
					`INSERT INTO user_languages (user_id, language, level) VALUES ($1, $2, $3)`,
					userID, lang.Language, lang.Level,
				); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("update profile failed", "user_id", userID, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to update profile"})
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Profile updated successfully"})
}

// Public returns a profile by username, without the email address.
func (h *Handler) Public(c echo.Context) error {
	username := c.Param("username")
	if username == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "missing username"})
	}

	var userID int64
	err := h.pool.QueryRow(c.Request().Context(),
		`SELECT id FROM users WHERE username = $1`, username,
	).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "user not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to fetch user"})
	}

	p, err := h.load(c, userID, false)
	if errors.Is(err, errNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false, "message": "user not found"})
	}
	if err != nil {
		slog.Error("load public profile failed", "user_id", userID, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "failed to fetch profile"})
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) load(c echo.Context, userID int64, includeEmail bool) (*Profile, error) {
	ctx := c.Request().Context()

	p := &Profile{UserID: userID, Education: []Education{}, Languages: []Language{}}
	var email string
	err := h.pool.QueryRow(ctx,
		`SELECT u.username, u.email,
		        COALESCE(pr.headline, ''), COALESCE(pr.bio, ''), COALESCE(pr.location, ''),
		        pr.profile_picture_url,
		        COALESCE(pr.portfolio_url, ''), COALESCE(pr.linkedin_url, ''), COALESCE(pr.github_url, '')
		 FROM users u
		 LEFT JOIN profiles pr ON pr.user_id = u.id
		 WHERE u.id = $1`,
		userID,
	).Scan(&p.Username, &email, &p.Headline, &p.Bio, &p.Location,
		&p.ProfilePictureURL, &p.PortfolioURL, &p.LinkedinURL, &p.GithubURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, err
	}
	if includeEmail {
		p.Email = email
	}

	eduRows, err := h.pool.Query(ctx,
		`SELECT institution, COALESCE(degree, ''), start_year, end_year
		 FROM user_education WHERE user_id = $1 ORDER BY start_year DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer eduRows.Close()
	for eduRows.Next() {
		var e Education
		if err := eduRows.Scan(&e.Institution, &e.Degree, &e.StartYear, &e.EndYear); err != nil {
			return nil, err
		}
		p.Education = append(p.Education, e)
	}

	langRows, err := h.pool.Query(ctx,
		`SELECT language, COALESCE(level, '') FROM user_languages WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer langRows.Close()
	for langRows.Next() {
		var l Language
		if err := langRows.Scan(&l.Language, &l.Level); err != nil {
			return nil, err
		}
		p.Languages = append(p.Languages, l)
	}

	return p, nil
}
