package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jroosing/dnsdash/internal/realtime"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

// SessionWS godoc
// @Summary Session push stream
// @Description WebSocket. The first message is {"type":"init"} with the view and HTML; then "view" after every state change and "counters" frames while stat cards animate. A "closed" message ends the stream.
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 101
// @Failure 404 {object} models.ErrorResponse
// @Security ApiKeyAuth
// @Router /sessions/{id}/ws [get]
func (h *Handler) SessionWS(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	id, events := s.Subscribe()
	defer s.Unsubscribe(id)

	// The reader only notices the peer going away; clients send nothing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(ev realtime.Event) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(ev)
	}

	if err := write(s.InitEvent()); err != nil {
		return
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(wsWriteWait))
				return
			}
			if err := write(ev); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
