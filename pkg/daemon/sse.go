package daemon

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/devicedata/datacollector/pkg/events"
)

// streamEvents relays hub events as server-sent events until the client
// goes away or the hub closes.
func (s *Server) streamEvents(c *gin.Context) {
	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	logrus.Debug("event stream opened")
	defer logrus.Debug("event stream closed")

	// Send the current state first so clients need not poll.
	c.SSEvent(events.StateChanged, s.current().collector.State())
	c.Writer.Flush()

	var dropped uint64
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, string(ev.Data))
			// A slow client missed events; a full snapshot brings it back in sync.
			if n := s.hub.Dropped(ch); n > dropped {
				dropped = n
				c.SSEvent(events.StateChanged, s.current().collector.State())
			}
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
