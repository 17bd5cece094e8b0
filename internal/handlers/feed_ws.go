// internal/handlers/feed_ws.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/Furiten/riichi-api/internal/middleware"
	"github.com/Furiten/riichi-api/internal/models"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// FeedSubprotocol must be requested by feed clients.
const FeedSubprotocol = "riichi-feed"

const feedWriteTimeout = 5 * time.Second

// feed streams the round events of one session. The first message carries
// the current overview; the stream closes after the game_finished event.
func (a *API) feed(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "sessionID")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	ov, err := a.svc.Overview(r.Context(), id)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{FeedSubprotocol},
		OriginPatterns: hostPatterns(a.AllowedOrigins),
	})
	if err != nil {
		a.logger.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != FeedSubprotocol {
		c.Close(BadSubprotocolError, "client must speak the "+FeedSubprotocol+" subprotocol")
		return
	}

	middleware.LogWebSocketConnect(a.logger, r.RemoteAddr, r.URL.Path)
	events, cancel := a.hub.Subscribe(id)
	defer cancel()

	// the feed is one way; CloseRead handles pings and the peer's close
	ctx := c.CloseRead(r.Context())

	first := models.RoundEvent{SessionID: id, Action: "overview", Payload: map[string]interface{}{"overview": ov}, Timestamp: time.Now()}
	if err := writeEvent(ctx, c, first); err != nil {
		middleware.LogWebSocketDisconnect(a.logger, r.RemoteAddr, r.URL.Path, err)
		return
	}
	if ov.Finished {
		c.Close(SessionFinishedClosure, "session finished")
		return
	}

	for {
		select {
		case <-ctx.Done():
			middleware.LogWebSocketDisconnect(a.logger, r.RemoteAddr, r.URL.Path, nil)
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(ctx, c, ev); err != nil {
				if !errors.Is(err, context.Canceled) {
					middleware.LogWebSocketDisconnect(a.logger, r.RemoteAddr, r.URL.Path, err)
				}
				return
			}
			if ev.Action == models.ActionGameFinished {
				middleware.LogWebSocketDisconnect(a.logger, r.RemoteAddr, r.URL.Path, nil)
				c.Close(SessionFinishedClosure, "session finished")
				return
			}
		}
	}
}

// hostPatterns turns CORS origins like "https://example.org" into the host
// patterns websocket.Accept expects.
func hostPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			o = u.Host
		}
		out = append(out, o)
	}
	return out
}

func writeEvent(ctx context.Context, c *websocket.Conn, ev models.RoundEvent) error {
	ctx, cancel := context.WithTimeout(ctx, feedWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, c, ev)
}
