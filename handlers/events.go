package handlers

import (
	"io"
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// keepAlive is how often an idle event stream sends a ping
var keepAlive = 25 * time.Second

// Events handles GET /api/events: a server-sent stream of change events
// ("change") until the client disconnects
func (h *APIHandler) Events(c *gin.Context) {
	events, err := h.RedisService.Subscribe(c.Request.Context())
	if err != nil {
		respondError(c, err, "subscribe to changes")
		return
	}
	log.Printf("Event stream opened by %s", currentUser(c).Username)

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case evt, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("change", evt)
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		}
	})
	log.Printf("Event stream closed for %s", currentUser(c).Username)
}
