package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/werawoot/Krua-Thai1-sub006/internal/database"
	"github.com/werawoot/Krua-Thai1-sub006/internal/middleware"
	"github.com/werawoot/Krua-Thai1-sub006/internal/models"
	"github.com/werawoot/Krua-Thai1-sub006/pkg/utils"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	OK    bool                 `json:"ok"`
	Token string               `json:"token,omitempty"`
	User  *models.UserResponse `json:"user,omitempty"`
}

// Login exchanges staff credentials for a bearer token. Customers have no
// console access.
func Login(db *sqlx.DB, jwtSecret string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		user, err := database.GetUserByEmail(r.Context(), db, req.Email)
		if errors.Is(err, database.ErrNotFound) {
			logger.Info("login rejected: unknown email", zap.String("email", req.Email))
			utils.RespondJSON(w, http.StatusUnauthorized, LoginResponse{OK: false})
			return
		}
		if err != nil {
			logger.Error("login lookup failed", zap.Error(err))
			utils.RespondError(w, http.StatusInternalServerError, "Login failed")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			logger.Info("login rejected: bad password", zap.String("email", user.Email))
			utils.RespondJSON(w, http.StatusUnauthorized, LoginResponse{OK: false})
			return
		}
		if user.Role == models.RoleCustomer {
			utils.RespondJSON(w, http.StatusForbidden, LoginResponse{OK: false})
			return
		}

		token, err := middleware.GenerateToken(jwtSecret, middleware.UserClaims{
			UserID: user.ID,
			Email:  user.Email,
			Role:   user.Role,
		}, time.Now())
		if err != nil {
			logger.Error("failed to create token", zap.Error(err))
			utils.RespondError(w, http.StatusInternalServerError, "Failed to create token")
			return
		}

		userResponse := user.ToUserResponse()
		logger.Info("login successful", zap.String("email", user.Email), zap.String("role", user.Role))

		utils.RespondJSON(w, http.StatusOK, LoginResponse{
			OK:    true,
			Token: token,
			User:  &userResponse,
		})
	}
}
