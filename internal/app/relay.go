package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/harvey0995/GhostBridge/internal/core"
	"github.com/harvey0995/GhostBridge/internal/domain"
)

const statusSent = "sent"

// Engine is the relay core: it owns join/leave bookkeeping through the
// registry and performs the broadcast-to-others fan-out with a single
// sender-side confirmation per accepted payload. Delivery is fire-and-forget;
// a full receiver buffer feeds the backpressure policy instead of blocking.
type Engine struct {
	Registry *Registry
	Policy   Policy
}

func NewEngine(reg *Registry, policy Policy) *Engine {
	return &Engine{Registry: reg, Policy: policy}
}

// stamp matches the wall-clock strings the original clients render verbatim.
func stamp() string {
	return time.Now().Format("15:04:05")
}

// Connect records a fresh transport session with no device identity or room.
func (e *Engine) Connect(sid core.SessionID, conn core.SignalConnection, cancel context.CancelFunc) {
	e.Registry.Bind(sid, conn, cancel)
	log.Info().Str("module", "app.relay").Str("sid", string(sid)).Msg("device connected")
}

// Disconnect is idempotent; duplicate or late disconnect signals are no-ops.
func (e *Engine) Disconnect(sid core.SessionID) {
	room, dev, ok := e.Registry.Unbind(sid)
	if !ok {
		return
	}
	name := ""
	if dev != nil {
		name = dev.DeviceName
	}
	log.Info().Str("module", "app.relay").Str("sid", string(sid)).Str("device", name).Msg("device disconnected")
	// Unregistered connections still count toward the connection total, so
	// every disconnect pushes a fresh snapshot to the survivors.
	e.broadcastDevices(name)
	if room != "" {
		e.notifyRoom(room)
	}
}

// RegisterDevice attaches an identity to the connection and pushes a fresh
// device snapshot to everyone. Unknown sids are ignored.
func (e *Engine) RegisterDevice(sid core.SessionID, deviceType, name string) {
	dev := domain.NewDevice(string(sid), deviceType, name, stamp())
	if !e.Registry.SetDevice(sid, dev) {
		return
	}
	e.broadcastDevices("")
}

// Join overwrites the connection's room association. Rejoining the same room
// is a no-op materially but still rebroadcasts the membership snapshot; a
// different room notifies both the new and the previous room's members.
func (e *Engine) Join(sid core.SessionID, room domain.RoomID) {
	prev, ok := e.Registry.SetRoom(sid, room)
	if !ok {
		return
	}
	log.Info().Str("module", "app.relay").Str("sid", string(sid)).Str("room", string(room)).Msg("joined room")
	e.notifyRoom(room)
	if prev != "" && prev != room {
		e.notifyRoom(prev)
	}
}

// RelayClick broadcasts a click to every other connection, then confirms to
// the sender exactly once. Clicks are connection-global, not room-scoped.
func (e *Engine) RelayClick(sid core.SessionID, click domain.ClickPayload) {
	now := stamp()
	e.Registry.Touch(sid, now)

	senderName, senderType := "Unknown Device", "unknown"
	if dev, ok := e.Registry.Device(sid); ok {
		senderName, senderType = dev.DeviceName, dev.DeviceType
	}

	bc := ClickBroadcast{
		Type:              EvClickReceived,
		ClickID:           uuid.NewString(),
		SenderSocketID:    string(sid),
		SenderName:        senderName,
		SenderType:        senderType,
		Message:           click.MessageOrDefault(),
		Timestamp:         now,
		OriginalTimestamp: click.Timestamp,
	}

	targets := e.Registry.Others(sid)
	res := e.fanOut(targets, bc)
	addRelayed(res.SentTo)
	log.Info().Str("module", "app.relay").Str("sid", string(sid)).
		Int("recipients", len(targets)).Int("sent_to", res.SentTo).Msg("click relayed")

	confirm := ClickConfirmedEvent{
		ClickBroadcast: bc,
		Status:         statusSent,
		RecipientCount: len(targets),
	}
	confirm.Type = EvClickConfirmed
	e.sendTo(sid, confirm)
}

// RelayFile delivers the payload verbatim to every current room member
// except the sender, then confirms once. A malformed payload is dropped with
// a local log only: no forwarding and no confirmation.
func (e *Engine) RelayFile(sid core.SessionID, room domain.RoomID, file domain.FilePayload) {
	if err := file.Validate(); err != nil {
		incRejected()
		log.Warn().Err(err).Str("module", "app.relay").Str("sid", string(sid)).
			Str("room", string(room)).Str("file", file.Name).Msg("payload rejected")
		return
	}

	now := stamp()
	e.Registry.Touch(sid, now)

	bc := FileBroadcast{
		Type:           EvReceiveFile,
		File:           file,
		SenderSocketID: string(sid),
		Timestamp:      now,
	}
	if dev, ok := e.Registry.Device(sid); ok {
		bc.SenderName = dev.DeviceName
	}

	targets := make([]regSnap, 0)
	for _, m := range e.Registry.MembersOfRoom(room) {
		if m.SID != sid {
			targets = append(targets, m)
		}
	}
	res := e.fanOut(targets, bc)
	addRelayed(res.SentTo)
	log.Info().Str("module", "app.relay").Str("sid", string(sid)).Str("room", string(room)).
		Str("file", file.Name).Int("recipients", len(targets)).Int("sent_to", res.SentTo).Msg("file relayed")

	e.sendTo(sid, FileConfirmedEvent{
		Type:      EvClickConfirmed,
		Status:    statusSent,
		FileName:  file.Name,
		Timestamp: now,
	})
}

// ShutdownNotice tells every connection the process is going away. Send
// failures are ignored; the transport is about to close regardless.
func (e *Engine) ShutdownNotice(message string) {
	frame, err := json.Marshal(ServerShutdownEvent{
		Type:      EvServerShutdown,
		Message:   message,
		Timestamp: stamp(),
	})
	if err != nil {
		return
	}
	for _, s := range e.Registry.All() {
		_ = s.Conn.TrySend(frame)
	}
	log.Info().Str("module", "app.relay").Int("connections", e.Registry.Count()).Msg("shutdown notice sent")
}

// DrainOutbound blocks until every connection's send buffer is empty or ctx
// expires. The HTTP server cannot wait for hijacked WebSocket connections, so
// this is what gives queued shutdown notices a chance to reach the wire.
func (e *Engine) DrainOutbound(ctx context.Context) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		pending := 0
		for _, s := range e.Registry.All() {
			pending += s.Conn.Pending()
		}
		if pending == 0 {
			return
		}
		select {
		case <-ctx.Done():
			log.Warn().Str("module", "app.relay").Int("pending", pending).Msg("shutdown drain timed out")
			return
		case <-ticker.C:
		}
	}
}

// broadcastDevices pushes the global registered-device snapshot to every
// connection, registered or not.
func (e *Engine) broadcastDevices(disconnected string) {
	ev := DevicesUpdatedEvent{
		Type:         EvDevicesUpdated,
		Devices:      e.Registry.Devices(),
		Timestamp:    stamp(),
		TotalCount:   e.Registry.DeviceCount(),
		Disconnected: disconnected,
	}
	res := e.fanOut(e.Registry.All(), ev)
	log.Debug().Str("module", "app.relay").Int("sent_to", res.SentTo).Msg("devices snapshot broadcast")
}

// notifyRoom pushes a room-scoped membership snapshot to the room's current
// members so presence views stay loosely consistent without polling.
func (e *Engine) notifyRoom(room domain.RoomID) {
	members := e.Registry.MembersOfRoom(room)
	ev := DevicesUpdatedEvent{
		Type:       EvDevicesUpdated,
		Devices:    e.Registry.DevicesOfRoom(room),
		Timestamp:  stamp(),
		TotalCount: len(members),
	}
	e.fanOut(members, ev)
}

// fanOut marshals once and delivers the identical frame to each target.
// Frames are never transformed or chunked per recipient.
func (e *Engine) fanOut(targets []regSnap, v any) core.PublishResult {
	res := core.PublishResult{}
	frame, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Msg("marshal outbound event")
		return res
	}
	for _, t := range targets {
		if err := t.Conn.TrySend(frame); err != nil {
			res.Dropped = append(res.Dropped, t.SID)
			continue
		}
		res.SentTo++
	}
	if len(res.Dropped) > 0 {
		addSendsDropped(len(res.Dropped))
		e.applyPolicy(res.Dropped)
	}
	return res
}

func (e *Engine) sendTo(sid core.SessionID, v any) {
	conn, ok := e.Registry.Conn(sid)
	if !ok {
		return
	}
	frame, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Msg("marshal outbound event")
		return
	}
	if err := conn.TrySend(frame); err != nil {
		addSendsDropped(1)
		e.applyPolicy([]core.SessionID{sid})
	}
}

func (e *Engine) applyPolicy(slow []core.SessionID) {
	if e.Policy == nil {
		return
	}
	for _, sid := range slow {
		switch e.Policy.OnBackPressure(sid) {
		case KickDevice:
			log.Warn().Str("module", "app.relay").Str("sid", string(sid)).Msg("kicking slow receiver")
			e.Registry.Cancel(sid)
		case DropFrame, NoAction:
		}
	}
}
