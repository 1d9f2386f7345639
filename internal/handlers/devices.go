package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/werawoot/Krua-Thai1-sub006/internal/database"
	"github.com/werawoot/Krua-Thai1-sub006/internal/middleware"
	"github.com/werawoot/Krua-Thai1-sub006/internal/models"
	"github.com/werawoot/Krua-Thai1-sub006/pkg/utils"
)

// RegisterFCMToken stores the caller's push token
func RegisterFCMToken(db *sqlx.DB, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req models.RegisterDeviceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		req.Token = strings.TrimSpace(req.Token)
		if req.Token == "" {
			utils.RespondError(w, http.StatusBadRequest, "token is required")
			return
		}
		if req.DeviceType != "ios" && req.DeviceType != "android" {
			utils.RespondError(w, http.StatusBadRequest, "Invalid device_type (must be 'ios' or 'android')")
			return
		}

		device := &models.DriverDevice{
			UserID:     userClaims.UserID,
			Token:      req.Token,
			DeviceType: req.DeviceType,
		}
		if err := database.RegisterDevice(r.Context(), db, device); err != nil {
			logger.Error("failed to register FCM token", zap.String("user_id", userClaims.UserID), zap.Error(err))
			utils.RespondError(w, http.StatusInternalServerError, "Failed to register FCM token")
			return
		}

		logger.Info("FCM token registered", zap.String("email", userClaims.Email), zap.String("device_type", req.DeviceType))

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "FCM token registered successfully",
		})
	}
}
