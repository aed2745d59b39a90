package fanout

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
)

// wsSink adapts a websocket connection to the Sink interface.
type wsSink struct {
	conn *websocket.Conn
}

func (s wsSink) Send(ctx context.Context, data []byte) error {
	return s.conn.Write(ctx, websocket.MessageText, data)
}

// ServeWS upgrades the request into a subscriber session for the given
// tenant and runs it until the client disconnects or the hub closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, tenant string) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket accept failed", "error", err)
		return
	}
	defer func() {
		_ = c.Close(websocket.StatusNormalClosure, "")
	}()

	// Sessions outlive the upgrade request; the hub context ends them
	// on shutdown.
	ctx := h.ctx

	sub, err := h.Attach(ctx, wsSink{conn: c}, tenant)
	if err != nil {
		h.logger.Warn("subscriber greeting failed", "tenant", tenant, "error", err)
		return
	}
	defer h.Detach(sub)

	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			return
		}
		if err := h.HandleMessage(ctx, sub, data); err != nil {
			return
		}
	}
}
