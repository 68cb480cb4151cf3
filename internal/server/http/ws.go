package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/scrumkit/scrumkit/internal/anon"
	"github.com/scrumkit/scrumkit/internal/model"
	"github.com/scrumkit/scrumkit/internal/realtime"
	"github.com/scrumkit/scrumkit/internal/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const wsWriteTimeout = 10 * time.Second

// wsOutbound is every frame the server pushes over the socket.
type wsOutbound struct {
	Type     string                `json:"type"` // status | baseline | change | presence | cursor
	Status   string                `json:"status,omitempty"`
	Asset    *assetDTO             `json:"asset,omitempty"`
	Items    []itemDTO             `json:"items,omitempty"`
	Change   *model.RowChange      `json:"change,omitempty"`
	Presence []model.PresenceEntry `json:"presence,omitempty"`
	Cursor   *model.CursorPosition `json:"cursor,omitempty"`
}

// wsInbound is what clients may send: cursor moves and presence heartbeats.
type wsInbound struct {
	Type  string  `json:"type"` // cursor | heartbeat
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
}

// handleWS runs one client's collaboration session. The ordering is fixed:
// the hub subscription is live before the baseline is fetched, so a write
// landing between the two shows up as a (possibly duplicate) change event
// rather than a lost update.
func (s *Server) handleWS(typ model.AssetType) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := s.assets.GetByURL(c.Request.Context(), typ, c.Param("url"))
		if err != nil {
			respondErr(c, err)
			return
		}

		selfID, name, color, err := s.wsIdentity(c)
		if err != nil {
			respondErr(c, err)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			s.logger.Warn("websocket upgrade", zap.Error(err))
			return
		}
		defer conn.Close()

		writeFrame(conn, wsOutbound{Type: "status", Status: "connecting"})

		topic := service.Topic(typ, a.ID)
		sub, err := s.hub.Subscribe(c.Request.Context(), topic, selfID)
		if err != nil {
			s.logger.Warn("hub subscribe", zap.String("topic", topic), zap.Error(err))
			writeFrame(conn, wsOutbound{Type: "status", Status: "disconnected"})
			return
		}

		ctx := c.Request.Context()
		entry := model.PresenceEntry{ID: selfID, Name: name, Color: color}
		if err := s.hub.Track(ctx, topic, entry); err != nil {
			s.logger.Warn("presence track", zap.Error(err))
		}

		writeFrame(conn, wsOutbound{Type: "status", Status: "connected"})

		// baseline strictly after the subscription is live
		dto := toAssetDTO(a)
		baseline := wsOutbound{Type: "baseline", Asset: &dto, Presence: s.hub.Presence(topic)}
		if typ == model.AssetRetrospective {
			items, err := s.content.ListItems(ctx, a.ID)
			if err != nil {
				s.logger.Warn("baseline items", zap.Error(err))
			}
			baseline.Items = make([]itemDTO, 0, len(items))
			for i := range items {
				baseline.Items = append(baseline.Items, toItemDTO(&items[i]))
			}
		}
		writeFrame(conn, baseline)

		done := make(chan struct{})
		go s.wsReadPump(ctx, conn, topic, entry, done)

		ping := time.NewTicker(realtime.HeartbeatInterval())
		defer ping.Stop()

	loop:
		for {
			select {
			case ev, ok := <-sub.Events():
				if !ok {
					break loop
				}
				frame := wsOutbound{Type: string(ev.Type), Change: ev.Change, Presence: ev.Presence, Cursor: ev.Cursor}
				if !writeFrame(conn, frame) {
					break loop
				}
			case <-ping.C:
				deadline := time.Now().Add(wsWriteTimeout)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					break loop
				}
				// An open socket is presence enough. Clients that never
				// send heartbeat frames must not be swept as stale.
				if err := s.hub.Track(ctx, topic, entry); err != nil {
					s.logger.Warn("presence refresh", zap.Error(err))
				}
			case <-done:
				break loop
			}
		}

		// untrack before unsubscribe so peers see the departure
		if err := s.hub.Untrack(ctx, topic, selfID); err != nil {
			s.logger.Warn("presence untrack", zap.Error(err))
		}
		_ = sub.Close()
		writeFrame(conn, wsOutbound{Type: "status", Status: "disconnected"})
	}
}

// wsIdentity resolves who this socket speaks for. Display name and color come
// from query parameters, defaulting to the anonymous pseudo-identity's name.
func (s *Server) wsIdentity(c *gin.Context) (selfID, name, color string, err error) {
	name = c.Query("name")
	color = c.Query("color")
	if uid, ok := currentUser(c); ok {
		return uid.String(), name, color, nil
	}
	id, err := anon.NewIdentityStore(s.visitorStorage(c)).GetOrCreate(c.Request.Context())
	if err != nil {
		return "", "", "", err
	}
	if name == "" {
		name = id.Name
	}
	return id.ID, name, color, nil
}

// wsReadPump consumes client frames until the socket errors. Heartbeats
// refresh presence; anything unrecognized is ignored.
func (s *Server) wsReadPump(ctx context.Context, conn *websocket.Conn, topic string, entry model.PresenceEntry, done chan<- struct{}) {
	defer close(done)

	readTimeout := 3 * realtime.HeartbeatInterval()
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		var in wsInbound
		if err := json.Unmarshal(data, &in); err != nil {
			continue
		}
		switch in.Type {
		case "cursor":
			cur := model.CursorPosition{UserID: entry.ID, X: in.X, Y: in.Y, Color: in.Color}
			if cur.Color == "" {
				cur.Color = entry.Color
			}
			if err := s.hub.SendCursor(ctx, topic, cur); err != nil {
				s.logger.Warn("cursor broadcast", zap.Error(err))
			}
		case "heartbeat":
			if err := s.hub.Track(ctx, topic, entry); err != nil {
				s.logger.Warn("presence heartbeat", zap.Error(err))
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, frame wsOutbound) bool {
	payload, err := json.Marshal(frame)
	if err != nil {
		return false
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload) == nil
}
