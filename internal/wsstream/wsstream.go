// Package wsstream is the push-transport adapter that forwards eventbus
// events to browser clients, filtered by the investorId path parameter.
// Grounded on hyperlicked's Hub/Client/read-write-pump websocket server,
// simplified to one subscription per connection (an investorId, fixed at
// connect time) instead of the hub's many-channel subscribe/unsubscribe
// protocol, since the core only ever publishes per-investor.
package wsstream

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/ksred/order-core/internal/eventbus"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server upgrades HTTP connections and relays an investor's events.
type Server struct {
	bus *eventbus.Bus
}

// New constructs a Server over bus.
func New(bus *eventbus.Bus) *Server {
	return &Server{bus: bus}
}

// Handle upgrades the connection and streams events for the investorId
// path parameter until the client disconnects.
func (s *Server) Handle(c *gin.Context) {
	investorID := c.Param("investorId")
	if investorID == "" {
		c.String(http.StatusBadRequest, "investorId is required")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("wsstream: upgrade failed")
		return
	}

	events, unsubscribe := s.bus.Subscribe(investorID)
	defer unsubscribe()

	go s.readPump(conn)
	s.writePump(conn, events)
}

// readPump drains client frames so control frames (pong, close) are
// processed and a disconnect closes the connection; no read deadline is
// set. The event stream is server-to-client only, so anything the client
// sends is discarded.
func (s *Server) readPump(conn *websocket.Conn) {
	defer conn.Close()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, events <-chan eventbus.Event) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
