package api

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// stream pushes a snapshot to a websocket client every StreamInterval until
// the client goes away.
func (s *Server) stream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", slogError(err))
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.opts.StreamInterval)
	defer ticker.Stop()
	for {
		snap, err := s.till.Snapshot(ctx)
		if err != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "till stopped"), time.Now().Add(writeWait))
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(snap); err != nil {
			return
		}
		select {
		case <-gone:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	for _, allowed := range s.opts.AllowOrigins {
		if allowed == origin || allowed == "*" {
			return true
		}
	}
	return false
}
