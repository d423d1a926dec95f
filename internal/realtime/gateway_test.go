package realtime

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keyforge/keyforge/internal/model"
	"github.com/keyforge/keyforge/internal/pkg/timeutil"
	"github.com/keyforge/keyforge/internal/repo"
	"github.com/keyforge/keyforge/internal/service"
	"github.com/keyforge/keyforge/internal/testutil"
)

func newTestGateway(t *testing.T) (*Gateway, *sql.DB, func()) {
	t.Helper()
	db, cleanup := testutil.OpenTestDB(t)
	shares := repo.NewShareLinkRepo(db)
	layouts := repo.NewLayoutRepo(db)
	users := service.NewUserLookup(repo.NewUserRepo(db), 16, time.Minute)
	gw := NewGateway(shares, layouts, users, NewRegistry())
	return gw, db, cleanup
}

func seedTestLayout(t *testing.T, db *sql.DB, id, ownerID string, state string) {
	t.Helper()
	now := timeutil.NowUnix()
	require.NoError(t, repo.NewLayoutRepo(db).Create(context.Background(), &model.Layout{
		ID:      id,
		OwnerID: ownerID,
		Name:    "tkl",
		State:   json.RawMessage(state),
		Ctime:   now,
		Mtime:   now,
	}))
}

func seedTestUser(t *testing.T, db *sql.DB, id, email string) {
	t.Helper()
	require.NoError(t, repo.NewUserRepo(db).Create(context.Background(), &model.User{
		ID:    id,
		Email: email,
		Ctime: timeutil.NowUnix(),
	}))
}

func seedTestShare(t *testing.T, db *sql.DB, link *model.ShareLink) {
	t.Helper()
	if link.Role == "" {
		link.Role = model.RoleViewer
	}
	now := timeutil.NowUnix()
	link.Ctime = now
	link.Mtime = now
	require.NoError(t, repo.NewShareLinkRepo(db).Create(context.Background(), link))
}

func joinEvent(token, userID string) Envelope {
	data, _ := json.Marshal(JoinPayload{Token: token, UserID: userID})
	return Envelope{Event: EventJoin, Data: data}
}

func updateEvent(token, state string) Envelope {
	data, _ := json.Marshal(UpdatePayload{Token: token, State: json.RawMessage(state)})
	return Envelope{Event: EventUpdate, Data: data}
}

func takeEvent(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case ev := <-c.send:
		return ev
	default:
		t.Fatal("no event queued")
		return Envelope{}
	}
}

func requireNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case ev := <-c.send:
		t.Fatalf("unexpected event queued: %s", ev.Event)
	default:
	}
}

func requireError(t *testing.T, c *Client, message string) {
	t.Helper()
	ev := takeEvent(t, c)
	require.Equal(t, EventError, ev.Event)
	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(ev.Data, &payload))
	require.Equal(t, message, payload.Message)
}

func TestGatewayJoinPublicAnonymous(t *testing.T) {
	gw, db, cleanup := newTestGateway(t)
	defer cleanup()
	seedTestLayout(t, db, "cfg-1", "owner-1", `{"keys":[1,2,3]}`)
	seedTestShare(t, db, &model.ShareLink{
		Token: "tok-1", ConfigID: "cfg-1", OwnerID: "owner-1", IsPublic: true,
	})

	client := NewClient("conn-1", 8)
	gw.HandleEvent(context.Background(), client, joinEvent("tok-1", ""))

	ev := takeEvent(t, client)
	require.Equal(t, EventSynced, ev.Event)
	var synced SyncedPayload
	require.NoError(t, json.Unmarshal(ev.Data, &synced))
	require.Equal(t, "cfg-1", synced.ConfigID)
	require.JSONEq(t, `{"keys":[1,2,3]}`, string(synced.State))
	require.Equal(t, model.RoleViewer, synced.Role)

	p := gw.Registry().Get("conn-1")
	require.NotNil(t, p)
	require.Equal(t, "tok-1", p.Token)
	require.Equal(t, StateJoined, client.State())
}

func TestGatewayJoinRejections(t *testing.T) {
	gw, db, cleanup := newTestGateway(t)
	defer cleanup()
	seedTestLayout(t, db, "cfg-1", "owner-1", `{}`)
	seedTestUser(t, db, "outsider-1", "outsider@example.com")
	seedTestShare(t, db, &model.ShareLink{
		Token: "private", ConfigID: "cfg-1", OwnerID: "owner-1",
		AllowedEmails: []string{"friend@example.com"},
	})
	seedTestShare(t, db, &model.ShareLink{
		Token: "stale", ConfigID: "cfg-1", OwnerID: "owner-1", IsPublic: true,
		ExpiresAt: time.Now().Add(-time.Hour).Unix(),
	})

	ctx := context.Background()

	unknown := NewClient("conn-unknown", 8)
	gw.HandleEvent(ctx, unknown, joinEvent("no-such-token", ""))
	requireError(t, unknown, msgInvalidLink)

	expired := NewClient("conn-expired", 8)
	gw.HandleEvent(ctx, expired, joinEvent("stale", ""))
	requireError(t, expired, msgLinkExpired)

	anon := NewClient("conn-anon", 8)
	gw.HandleEvent(ctx, anon, joinEvent("private", ""))
	requireError(t, anon, msgLoginRequired)

	outsider := NewClient("conn-outsider", 8)
	gw.HandleEvent(ctx, outsider, joinEvent("private", "outsider-1"))
	requireError(t, outsider, msgForbidden)

	malformed := NewClient("conn-bad", 8)
	gw.HandleEvent(ctx, malformed, Envelope{Event: EventJoin, Data: json.RawMessage(`{`)})
	requireError(t, malformed, msgInvalidPayload)
	gw.HandleEvent(ctx, malformed, Envelope{Event: "bogus"})
	requireError(t, malformed, msgInvalidPayload)

	require.Nil(t, gw.Registry().Get("conn-anon"))
	require.Nil(t, gw.Registry().Get("conn-outsider"))
}

func TestGatewayOwnerJoinsPrivateAsEditor(t *testing.T) {
	gw, db, cleanup := newTestGateway(t)
	defer cleanup()
	seedTestLayout(t, db, "cfg-1", "owner-1", `{}`)
	seedTestUser(t, db, "owner-1", "owner@example.com")
	seedTestShare(t, db, &model.ShareLink{
		Token: "private", ConfigID: "cfg-1", OwnerID: "owner-1",
		AllowedEmails: []string{"friend@example.com"},
	})

	client := NewClient("conn-1", 8)
	gw.HandleEvent(context.Background(), client, joinEvent("private", "owner-1"))

	ev := takeEvent(t, client)
	require.Equal(t, EventSynced, ev.Event)
	var synced SyncedPayload
	require.NoError(t, json.Unmarshal(ev.Data, &synced))
	require.Equal(t, model.RoleEditor, synced.Role)
}

func TestGatewaySecondJoinSameConnRejected(t *testing.T) {
	gw, db, cleanup := newTestGateway(t)
	defer cleanup()
	seedTestLayout(t, db, "cfg-1", "owner-1", `{}`)
	seedTestShare(t, db, &model.ShareLink{
		Token: "tok-1", ConfigID: "cfg-1", OwnerID: "owner-1", IsPublic: true,
	})

	client := NewClient("conn-1", 8)
	gw.HandleEvent(context.Background(), client, joinEvent("tok-1", ""))
	require.Equal(t, EventSynced, takeEvent(t, client).Event)

	gw.HandleEvent(context.Background(), client, joinEvent("tok-1", ""))
	requireError(t, client, msgInvalidSession)
}

func TestGatewayJoinNotifiesRoom(t *testing.T) {
	gw, db, cleanup := newTestGateway(t)
	defer cleanup()
	seedTestLayout(t, db, "cfg-1", "owner-1", `{}`)
	seedTestShare(t, db, &model.ShareLink{
		Token: "tok-1", ConfigID: "cfg-1", OwnerID: "owner-1", IsPublic: true,
	})

	ctx := context.Background()
	first := NewClient("conn-1", 8)
	gw.HandleEvent(ctx, first, joinEvent("tok-1", ""))
	require.Equal(t, EventSynced, takeEvent(t, first).Event)

	second := NewClient("conn-2", 8)
	gw.HandleEvent(ctx, second, joinEvent("tok-1", ""))
	require.Equal(t, EventSynced, takeEvent(t, second).Event)

	ev := takeEvent(t, first)
	require.Equal(t, EventParticipantJoined, ev.Event)
	var joined ParticipantJoinedPayload
	require.NoError(t, json.Unmarshal(ev.Data, &joined))
	require.Equal(t, "conn-2", joined.ConnID)

	// the joiner itself gets no join notification
	requireNoEvent(t, second)
}

func TestGatewayUpdateFanOut(t *testing.T) {
	gw, db, cleanup := newTestGateway(t)
	defer cleanup()
	seedTestLayout(t, db, "cfg-1", "owner-1", `{"rev":0}`)
	seedTestLayout(t, db, "cfg-2", "owner-1", `{"rev":0}`)
	seedTestUser(t, db, "owner-1", "owner@example.com")
	seedTestShare(t, db, &model.ShareLink{
		Token: "tok-1", ConfigID: "cfg-1", OwnerID: "owner-1", IsPublic: true, Role: model.RoleEditor,
	})
	seedTestShare(t, db, &model.ShareLink{
		Token: "tok-2", ConfigID: "cfg-2", OwnerID: "owner-1", IsPublic: true, Role: model.RoleEditor,
	})

	ctx := context.Background()
	editor := NewClient("conn-editor", 8)
	peer := NewClient("conn-peer", 8)
	otherRoom := NewClient("conn-other", 8)
	gw.HandleEvent(ctx, editor, joinEvent("tok-1", "owner-1"))
	gw.HandleEvent(ctx, peer, joinEvent("tok-1", ""))
	gw.HandleEvent(ctx, otherRoom, joinEvent("tok-2", ""))
	takeEvent(t, editor) // synced
	takeEvent(t, editor) // peer joined
	takeEvent(t, peer)   // synced
	takeEvent(t, otherRoom)

	gw.HandleEvent(ctx, editor, updateEvent("tok-1", `{"rev":1}`))

	ev := takeEvent(t, peer)
	require.Equal(t, EventUpdated, ev.Event)
	var updated UpdatedPayload
	require.NoError(t, json.Unmarshal(ev.Data, &updated))
	require.JSONEq(t, `{"rev":1}`, string(updated.State))
	require.Equal(t, "owner-1", updated.UpdatedBy)

	// no echo to the sender, nothing across rooms
	requireNoEvent(t, editor)
	requireNoEvent(t, otherRoom)

	state, err := repo.NewLayoutRepo(db).GetState(ctx, "cfg-1")
	require.NoError(t, err)
	require.JSONEq(t, `{"rev":1}`, string(state))
}

func TestGatewayViewerCannotUpdate(t *testing.T) {
	gw, db, cleanup := newTestGateway(t)
	defer cleanup()
	seedTestLayout(t, db, "cfg-1", "owner-1", `{"rev":0}`)
	seedTestShare(t, db, &model.ShareLink{
		Token: "tok-1", ConfigID: "cfg-1", OwnerID: "owner-1", IsPublic: true,
	})

	ctx := context.Background()
	viewer := NewClient("conn-viewer", 8)
	peer := NewClient("conn-peer", 8)
	gw.HandleEvent(ctx, viewer, joinEvent("tok-1", ""))
	gw.HandleEvent(ctx, peer, joinEvent("tok-1", ""))
	takeEvent(t, viewer) // synced
	takeEvent(t, viewer) // peer joined
	takeEvent(t, peer)   // synced

	gw.HandleEvent(ctx, viewer, updateEvent("tok-1", `{"rev":1}`))
	requireError(t, viewer, msgForbidden)
	requireNoEvent(t, peer)

	state, err := repo.NewLayoutRepo(db).GetState(ctx, "cfg-1")
	require.NoError(t, err)
	require.JSONEq(t, `{"rev":0}`, string(state))
}

func TestGatewayUpdateRequiresJoinedSession(t *testing.T) {
	gw, db, cleanup := newTestGateway(t)
	defer cleanup()
	seedTestLayout(t, db, "cfg-1", "owner-1", `{}`)
	seedTestShare(t, db, &model.ShareLink{
		Token: "tok-1", ConfigID: "cfg-1", OwnerID: "owner-1", IsPublic: true, Role: model.RoleEditor,
	})
	seedTestShare(t, db, &model.ShareLink{
		Token: "tok-other", ConfigID: "cfg-1", OwnerID: "owner-1", IsPublic: true, Role: model.RoleEditor,
	})

	ctx := context.Background()

	// update before any join
	stranger := NewClient("conn-1", 8)
	gw.HandleEvent(ctx, stranger, updateEvent("tok-1", `{}`))
	requireError(t, stranger, msgInvalidSession)

	// update against a different token than the joined one
	joined := NewClient("conn-2", 8)
	gw.HandleEvent(ctx, joined, joinEvent("tok-1", ""))
	require.Equal(t, EventSynced, takeEvent(t, joined).Event)
	gw.HandleEvent(ctx, joined, updateEvent("tok-other", `{}`))
	requireError(t, joined, msgInvalidSession)
}

func TestGatewayDisconnectLifecycle(t *testing.T) {
	gw, db, cleanup := newTestGateway(t)
	defer cleanup()
	seedTestLayout(t, db, "cfg-1", "owner-1", `{}`)
	seedTestShare(t, db, &model.ShareLink{
		Token: "tok-1", ConfigID: "cfg-1", OwnerID: "owner-1", IsPublic: true, Role: model.RoleEditor,
	})

	ctx := context.Background()
	leaver := NewClient("conn-leaver", 8)
	peer := NewClient("conn-peer", 8)
	gw.HandleEvent(ctx, leaver, joinEvent("tok-1", ""))
	gw.HandleEvent(ctx, peer, joinEvent("tok-1", ""))
	takeEvent(t, leaver) // synced
	takeEvent(t, leaver) // peer joined
	takeEvent(t, peer)   // synced

	gw.HandleDisconnect(leaver)

	ev := takeEvent(t, peer)
	require.Equal(t, EventParticipantLeft, ev.Event)
	var left ParticipantLeftPayload
	require.NoError(t, json.Unmarshal(ev.Data, &left))
	require.Equal(t, "conn-leaver", left.ConnID)

	require.Nil(t, gw.Registry().Get("conn-leaver"))

	// idempotent; no second notification
	gw.HandleDisconnect(leaver)
	requireNoEvent(t, peer)

	// events after disconnect hit a dead session
	gw.HandleEvent(ctx, leaver, updateEvent("tok-1", `{}`))
	requireError(t, leaver, msgInvalidSession)
}

func TestGatewayLeaveEventActsAsDisconnect(t *testing.T) {
	gw, db, cleanup := newTestGateway(t)
	defer cleanup()
	seedTestLayout(t, db, "cfg-1", "owner-1", `{}`)
	seedTestShare(t, db, &model.ShareLink{
		Token: "tok-1", ConfigID: "cfg-1", OwnerID: "owner-1", IsPublic: true,
	})

	ctx := context.Background()
	client := NewClient("conn-1", 8)
	gw.HandleEvent(ctx, client, joinEvent("tok-1", ""))
	require.Equal(t, EventSynced, takeEvent(t, client).Event)

	gw.HandleEvent(ctx, client, Envelope{Event: EventLeave})
	require.Nil(t, gw.Registry().Get("conn-1"))
}

func TestGatewayJoinAfterCloseIsNoOp(t *testing.T) {
	gw, db, cleanup := newTestGateway(t)
	defer cleanup()
	seedTestLayout(t, db, "cfg-1", "owner-1", `{}`)
	seedTestShare(t, db, &model.ShareLink{
		Token: "tok-1", ConfigID: "cfg-1", OwnerID: "owner-1", IsPublic: true,
	})

	client := NewClient("conn-1", 8)
	client.Close()
	gw.HandleEvent(context.Background(), client, joinEvent("tok-1", ""))

	// a dead connection never becomes a room member
	require.Nil(t, gw.Registry().Get("conn-1"))
	require.Empty(t, gw.Registry().RoomMembers("tok-1"))
}
