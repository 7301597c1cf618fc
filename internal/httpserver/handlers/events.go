package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MrSnakeDoc/lookout/internal/events"
	"github.com/MrSnakeDoc/lookout/internal/httpserver/deps"
	"github.com/MrSnakeDoc/lookout/internal/logger"
	"github.com/MrSnakeDoc/lookout/internal/source"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = pongWait * 9 / 10
	eventBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// helloMessage is the first message of every stream, so a client starts from
// a consistent view before notifications arrive.
type helloMessage struct {
	Kind       string        `json:"kind"`
	Sources    []source.View `json:"sources"`
	SelectedID string        `json:"selected_id,omitempty"`
}

// Events streams registry notifications and worker status over a WebSocket.
// Frames are not sent; clients fetch them from the frame endpoint.
func Events(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			d.Logger.Debug("websocket upgrade failed", logger.Error(err))
			return
		}
		defer ws.Close()

		notes, cancel := d.Registry.Hub().Subscribe(eventBuffer)
		defer cancel()

		log := d.Logger.With(logger.String("remote_ip", r.RemoteAddr))
		log.Info("event stream opened")
		defer log.Info("event stream closed")

		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteJSON(helloMessage{
			Kind:       "hello",
			Sources:    d.Registry.Views(),
			SelectedID: d.Registry.SelectedID(),
		}); err != nil {
			return
		}

		done := make(chan struct{})
		go readPump(ws, done)

		pump(ws, notes, done, log)
	}
}

func pump(ws *websocket.Conn, notes <-chan events.Notification, done <-chan struct{}, log logger.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case n, ok := <-notes:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := ws.WriteJSON(n); err != nil {
				log.Debug("event write failed", logger.Error(err))
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// readPump discards client messages and keeps the pong deadline fresh. It
// closes done when the peer goes away.
func readPump(ws *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	ws.SetReadLimit(512)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}
