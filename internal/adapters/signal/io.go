package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/parlorchat/parlor/internal/app"
	"github.com/parlorchat/parlor/internal/domain"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	pingPeriod := ctl.PingPeriod
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, sid app.SessionID, c *wsConn) {
	defer c.Close()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			ctl.dispatch(sid, data)
		}
	}
}

// dispatch decodes the envelope and routes to exactly one engine handler.
// The event set is closed; unknown events are logged and dropped.
func (ctl *Controller) dispatch(sid app.SessionID, data []byte) {
	var env struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad envelope")
		return
	}

	switch env.Event {
	case app.EvRegisterUser:
		var p app.RegisterUserPayload
		if bind(env.Data, &p) {
			ctl.Engine.RegisterUser(sid, p)
		}
	case app.EvCreateRoom:
		var p app.CreateRoomPayload
		if bind(env.Data, &p) {
			ctl.Engine.CreateRoom(sid, p)
		}
	case app.EvJoinRoom:
		var p app.JoinRoomPayload
		if bind(env.Data, &p) {
			ctl.Engine.JoinRoom(sid, p)
		}
	case app.EvLeaveRoom:
		var p app.LeaveRoomPayload
		if bind(env.Data, &p) {
			ctl.Engine.LeaveRoom(sid, p)
		}
	case app.EvChangeUsername:
		var p app.ChangeUsernamePayload
		if bind(env.Data, &p) {
			ctl.Engine.ChangeUsername(sid, p)
		}
	case app.EvStatusUpdate:
		var p app.StatusUpdatePayload
		if bind(env.Data, &p) {
			ctl.Engine.StatusUpdate(sid, p)
		}
	case app.EvChatMessage:
		var msg domain.Message
		if bind(env.Data, &msg) {
			ctl.Engine.SendChatMessage(sid, msg)
		}
	case app.EvStartDM:
		var p app.StartDMPayload
		if bind(env.Data, &p) {
			ctl.Engine.StartDM(sid, p)
		}
	case app.EvInviteToRoom:
		var p app.InvitePayload
		if bind(env.Data, &p) {
			ctl.Engine.InviteToRoom(sid, p)
		}
	case app.EvJoinVoice:
		var p app.VoicePayload
		if bind(env.Data, &p) {
			ctl.Engine.JoinVoice(sid, p)
		}
	case app.EvLeaveVoice:
		var p app.VoicePayload
		if bind(env.Data, &p) {
			ctl.Engine.LeaveVoice(sid, p)
		}
	case app.EvSignal:
		var p app.SignalPayload
		if bind(env.Data, &p) {
			ctl.Engine.RelaySignal(sid, p)
		}
	default:
		log.Warn().Str("module", "signal").Str("event", env.Event).Msg("unknown event")
	}
}

func bind(data json.RawMessage, v any) bool {
	if len(data) == 0 {
		return true
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad payload")
		return false
	}
	return true
}
