package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/kidpoints/internal/auth"
)

// HandleWebSocket upgrades an authenticated request and streams the
// principal's family events until the connection closes.
func HandleWebSocket(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.FromContext(r.Context())
		if !ok || p.FamilyID == 0 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // devices on the family LAN use varying origins
		})
		if err != nil {
			logger.Warn("websocket accept", "family_id", p.FamilyID, "error", err)
			return
		}

		client := NewClient(hub, conn, p, logger)
		client.Run(r.Context())
	}
}
