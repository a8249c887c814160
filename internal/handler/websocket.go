package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"sentinel/internal/logger"
	pushhub "sentinel/internal/service/websocket"
)

// pongWait must exceed the hub's ping interval.
const pongWait = 70 * time.Second

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// PushHandler upgrades dashboard connections and registers them in the hub
// to receive metrics_update and anomaly_detected messages.
func PushHandler(hub *pushhub.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		connection.SetReadLimit(4096)
		connection.SetReadDeadline(time.Now().Add(pongWait))
		connection.SetPongHandler(func(string) error {
			return connection.SetReadDeadline(time.Now().Add(pongWait))
		})

		hub.Register(connection)
		defer hub.Unregister(connection)

		logger.Info("Dashboard connected from %s", r.RemoteAddr)

		// Dashboards only listen; reading keeps control frames flowing.
		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Dashboard disconnected normally")
				} else {
					logger.Warning("Dashboard disconnected with error: %v", err)
				}
				return
			}
		}
	}
}
