package server

import (
	"time"

	"github.com/danmuck/grassroots/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	eventBuffer    = 64
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxClientFrame = 512
)

// events streams registry reports as JSON text messages until the client
// goes away or the server stops.
func (s *Server) events(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warnf("server.Server.events upgrade failed remote=%s err=%v", c.ClientIP(), err)
		return
	}
	defer conn.Close()

	stream, unsubscribe := s.station.Subscribe(eventBuffer)
	defer unsubscribe()
	logging.Debugf("server.Server.events client connected remote=%s", c.ClientIP())

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(maxClientFrame)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			logging.Debugf("server.Server.events client closed remote=%s", c.ClientIP())
			return
		case <-s.closing:
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
				time.Now().Add(writeWait),
			)
			return
		case ev, ok := <-stream:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				logging.Debugf("server.Server.events write failed remote=%s err=%v", c.ClientIP(), err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
