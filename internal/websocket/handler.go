package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/werawoot/Krua-Thai1-sub006/internal/middleware"
	"github.com/werawoot/Krua-Thai1-sub006/pkg/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The admin console is served from a different origin; the bearer token gates access
		return true
	},
}

// HandleWebSocket upgrades an authenticated request. Browsers cannot set
// headers on a WebSocket handshake, so the token may come in ?token=.
func HandleWebSocket(hub *Hub, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			tokenString := r.URL.Query().Get("token")
			if tokenString == "" {
				tokenString, _ = middleware.BearerToken(r)
			}
			claims, err := middleware.ParseToken(jwtSecret, tokenString)
			if err != nil {
				hub.logger.Debug("websocket token rejected")
				utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			userClaims = claims
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the error response
			return
		}

		client := NewClient(userClaims.UserID, userClaims.Role, conn, hub)
		if !hub.registerClient(client) {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump()
	}
}
