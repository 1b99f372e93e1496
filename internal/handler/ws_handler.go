/*
Package handler provides the HTTP handler function for upgrading event stream connections.

HandleEventStream validates the caller, upgrades the connection to WebSocket and hands it
to the chat manager, which serves it until either side closes.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"chatroom/internal/pkg/logx"
)

// HandleEventStream creates an HTTP HandlerFunc serving the live event stream of the calling user.
func HandleEventStream(deps *AppDeps, upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := deps.currentUser(w, r)
		if !ok {
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket", "user_id", u.ID)
			return
		}

		logx.Debug("Event stream established", "user_id", u.ID)

		deps.Manager.Attach(conn, u.ID)
	}
}
