package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/harvey0995/GhostBridge/internal/core"
	"github.com/harvey0995/GhostBridge/internal/domain"
)

// Inbound event names. Shared wire contract with deployed clients.
const (
	EvRegisterDevice = "register-device"
	EvJoinRoom       = "join-room"
	EvButtonClicked  = "button-clicked"
	EvSendFile       = "send-file"
)

// Handle dispatches one inbound envelope. A malformed event is logged and
// skipped; it never tears down the connection or affects other sessions.
func (ctl *Controller) Handle(sid core.SessionID, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad json")
		return
	}

	switch env.Type {
	case EvRegisterDevice:
		ctl.handleRegisterDevice(sid, data)
	case EvJoinRoom:
		ctl.handleJoinRoom(sid, data)
	case EvButtonClicked:
		ctl.handleButtonClicked(sid, data)
	case EvSendFile:
		ctl.handleSendFile(sid, data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown event")
	}
}

func (ctl *Controller) handleRegisterDevice(sid core.SessionID, data []byte) {
	var p struct {
		Device struct {
			Type string `json:"type"`
			Name string `json:"name"`
		} `json:"device"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad register payload")
		return
	}
	ctl.Engine.RegisterDevice(sid, p.Device.Type, p.Device.Name)
}

func (ctl *Controller) handleJoinRoom(sid core.SessionID, data []byte) {
	var p struct {
		Room string `json:"room"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad join payload")
		return
	}
	if !ctl.limiter.Allow(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("join rate limited")
		return
	}
	ctl.Engine.Join(sid, domain.RoomID(p.Room))
}

func (ctl *Controller) handleButtonClicked(sid core.SessionID, data []byte) {
	var p domain.ClickPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad click payload")
		return
	}
	ctl.Engine.RelayClick(sid, p)
}

func (ctl *Controller) handleSendFile(sid core.SessionID, data []byte) {
	var p struct {
		Room string             `json:"room"`
		File domain.FilePayload `json:"file"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad file payload")
		return
	}
	ctl.Engine.RelayFile(sid, domain.RoomID(p.Room), p.File)
}
