package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/keyforge/keyforge/internal/pkg/errs"
	"github.com/keyforge/keyforge/internal/pkg/timeutil"
	"github.com/keyforge/keyforge/internal/repo"
	"github.com/keyforge/keyforge/internal/service"
)

// Protocol error messages surfaced to clients. Per-event errors go to the
// originating connection only and never tear the connection down.
const (
	msgInvalidLink    = "invalid share link"
	msgLinkExpired    = "share link expired"
	msgLoginRequired  = "login required"
	msgForbidden      = "forbidden"
	msgInvalidSession = "invalid session"
	msgInvalidPayload = "invalid payload"
	msgInternal       = "internal error"
)

// Gateway drives the share-session protocol: it validates joins against the
// share-link store, tracks membership in the registry, and fans updates out
// to rooms.
type Gateway struct {
	shares   *repo.ShareLinkRepo
	layouts  *repo.LayoutRepo
	users    *service.UserLookup
	registry *Registry
	now      func() time.Time
}

func NewGateway(shares *repo.ShareLinkRepo, layouts *repo.LayoutRepo, users *service.UserLookup, registry *Registry) *Gateway {
	return &Gateway{
		shares:   shares,
		layouts:  layouts,
		users:    users,
		registry: registry,
		now:      time.Now,
	}
}

func (g *Gateway) Registry() *Registry {
	return g.registry
}

// HandleEvent dispatches one inbound envelope for a connection. Events for
// a single connection are expected to arrive sequentially (one read loop
// per connection).
func (g *Gateway) HandleEvent(ctx context.Context, sink Sink, ev Envelope) {
	switch ev.Event {
	case EventJoin:
		var payload JoinPayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil || payload.Token == "" {
			g.reply(sink, errorEnvelope(msgInvalidPayload))
			return
		}
		g.handleJoin(ctx, sink, payload)
	case EventUpdate:
		var payload UpdatePayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil || payload.Token == "" {
			g.reply(sink, errorEnvelope(msgInvalidPayload))
			return
		}
		g.handleUpdate(ctx, sink, payload)
	case EventLeave:
		g.HandleDisconnect(sink)
	default:
		g.reply(sink, errorEnvelope(msgInvalidPayload))
	}
}

func (g *Gateway) handleJoin(ctx context.Context, sink Sink, payload JoinPayload) {
	if g.registry.Get(sink.ID()) != nil {
		// one active room per connection; disconnect and reconnect to switch
		g.reply(sink, errorEnvelope(msgInvalidSession))
		return
	}
	link, err := g.shares.GetByToken(ctx, payload.Token)
	if err != nil {
		if errs.IsNotFound(err) {
			g.reply(sink, errorEnvelope(msgInvalidLink))
		} else {
			g.logStoreError(ctx, sink, "share lookup failed", err)
		}
		return
	}
	if link.Expired(g.now()) {
		g.reply(sink, errorEnvelope(msgLinkExpired))
		return
	}
	requester := g.users.Resolve(ctx, payload.UserID)
	dec, err := service.Evaluate(link, requester, g.now())
	if err != nil {
		g.reply(sink, errorEnvelope(msgLinkExpired))
		return
	}
	if !dec.Granted {
		if requester == nil {
			g.reply(sink, errorEnvelope(msgLoginRequired))
		} else {
			g.reply(sink, errorEnvelope(msgForbidden))
		}
		return
	}
	state, err := g.layouts.GetState(ctx, link.ConfigID)
	if err != nil {
		if errs.IsNotFound(err) {
			g.reply(sink, errorEnvelope(msgInvalidLink))
		} else {
			g.logStoreError(ctx, sink, "layout state load failed", err)
		}
		return
	}
	// the connection may have gone away while we were in the store; a
	// late registration would resurrect a dead room member
	select {
	case <-sink.Done():
		return
	default:
	}
	participant := &Participant{
		ConnID: sink.ID(),
		Token:  link.Token,
		UserID: payload.UserID,
		Role:   dec.Role,
		Sink:   sink,
	}
	if err := g.registry.Register(participant); err != nil {
		g.reply(sink, errorEnvelope(msgInvalidSession))
		return
	}
	if !g.reply(sink, mustEnvelope(EventSynced, SyncedPayload{
		ConfigID: link.ConfigID,
		State:    state,
		Role:     dec.Role,
	})) {
		// reply failed: the connection died between the check and the
		// send; roll the registration back instead of leaving a ghost
		g.registry.Unregister(sink.ID())
		return
	}
	if client, ok := sink.(*Client); ok {
		client.Transition(StateJoined)
	}
	g.registry.Broadcast(link.Token, sink.ID(), mustEnvelope(EventParticipantJoined, ParticipantJoinedPayload{
		ConnID: sink.ID(),
		UserID: payload.UserID,
		Role:   dec.Role,
	}))
}

func (g *Gateway) handleUpdate(ctx context.Context, sink Sink, payload UpdatePayload) {
	participant := g.registry.Get(sink.ID())
	if participant == nil || participant.Token != payload.Token {
		g.reply(sink, errorEnvelope(msgInvalidSession))
		return
	}
	if !participant.Role.CanEdit() {
		g.reply(sink, errorEnvelope(msgForbidden))
		return
	}
	// re-resolve: the owner may have revoked the link since join
	link, err := g.shares.GetByToken(ctx, payload.Token)
	if err != nil {
		if errs.IsNotFound(err) {
			g.reply(sink, errorEnvelope(msgInvalidLink))
		} else {
			g.logStoreError(ctx, sink, "share re-resolve failed", err)
		}
		return
	}
	if err := g.applyUpdate(ctx, link.ConfigID, payload.State); err != nil {
		g.logStoreError(ctx, sink, "layout state persist failed", err)
		return
	}
	// no echo to the sender; a disconnected sender is already out of the
	// room so the snapshot below cannot include it
	g.registry.Broadcast(participant.Token, sink.ID(), mustEnvelope(EventUpdated, UpdatedPayload{
		State:     payload.State,
		UpdatedBy: participant.UserID,
	}))
}

// applyUpdate is the single write path for session edits: last write wins,
// no version check. A future consistency scheme replaces this function
// without touching the protocol handling above.
func (g *Gateway) applyUpdate(ctx context.Context, configID string, state json.RawMessage) error {
	return g.layouts.SetState(ctx, configID, state, timeutil.NowUnix())
}

// HandleDisconnect removes the connection from its room (if any) and tells
// the remaining members. Always valid, idempotent.
func (g *Gateway) HandleDisconnect(sink Sink) {
	token, ok := g.registry.Unregister(sink.ID())
	if !ok {
		return
	}
	g.registry.Broadcast(token, sink.ID(), mustEnvelope(EventParticipantLeft, ParticipantLeftPayload{
		ConnID: sink.ID(),
	}))
}

// reply sends to the originating connection only, dropping silently when it
// is already gone.
func (g *Gateway) reply(sink Sink, ev Envelope) bool {
	select {
	case <-sink.Done():
		return false
	default:
	}
	return sink.Deliver(ev)
}

func (g *Gateway) logStoreError(ctx context.Context, sink Sink, msg string, err error) {
	logutil.GetLogger(ctx).Error(msg, zap.String("conn_id", sink.ID()), zap.Error(err))
	g.reply(sink, errorEnvelope(msgInternal))
}
