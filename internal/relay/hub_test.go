package relay

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/park285/checkers-relay/pkg/relaydto"
)

func startHub(t *testing.T, opts Options) *Hub {
	t.Helper()
	h := New(opts)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

type client struct {
	id  SessionID
	out chan relaydto.Envelope
}

func connect(t *testing.T, h *Hub, buf int) *client {
	t.Helper()
	out := make(chan relaydto.Envelope, buf)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	id, err := h.Connect(ctx, out)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return &client{id: id, out: out}
}

// settle waits until every previously posted op has been handled.
func settle(t *testing.T, h *Hub) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := h.Rooms(ctx); err != nil {
		t.Fatalf("Rooms: %v", err)
	}
}

func drain(c *client) []relaydto.Envelope {
	var got []relaydto.Envelope
	for {
		select {
		case env := <-c.out:
			got = append(got, env)
		default:
			return got
		}
	}
}

func expect(t *testing.T, c *client, action relaydto.Action, data string) {
	t.Helper()
	select {
	case env := <-c.out:
		if env.Action != action || env.Data != data {
			t.Fatalf("got %+v, want {%s %s}", env, action, data)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for {%s %s}", action, data)
	}
}

func expectNothing(t *testing.T, c *client) {
	t.Helper()
	if got := drain(c); len(got) != 0 {
		t.Fatalf("unexpected envelopes: %+v", got)
	}
}

func names(t *testing.T, h *Hub, id SessionID, room string) []string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := h.ListUserNames(ctx, id, room)
	if err != nil {
		t.Fatalf("ListUserNames: %v", err)
	}
	return got
}

// pair connects two named sessions and moves both into room.
func pair(t *testing.T, h *Hub, room string) (*client, *client) {
	t.Helper()
	a := connect(t, h, 16)
	b := connect(t, h, 16)
	h.SetName(a.id, "alice")
	h.SetName(b.id, "bob")
	h.Join(a.id, room)
	h.Join(b.id, room)
	settle(t, h)
	drain(a)
	drain(b)
	return a, b
}

func TestConnectIDsAreUnique(t *testing.T) {
	h := startHub(t, Options{})
	seen := make(map[SessionID]bool)
	for i := 0; i < 200; i++ {
		c := connect(t, h, 512)
		if c.id == "" || seen[c.id] {
			t.Fatalf("duplicate or empty id %q", c.id)
		}
		seen[c.id] = true
	}
}

func TestConnectCollisionRetries(t *testing.T) {
	h := New(Options{})
	ids := []string{"same", "same", "other"}
	h.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	out := make(chan relaydto.Envelope, 4)
	first := h.connect(out)
	second := h.connect(out)
	if first != "same" || second != "other" {
		t.Fatalf("ids %q %q", first, second)
	}
}

func TestConnectAnnouncesToDefaultRoom(t *testing.T) {
	h := startHub(t, Options{})
	a := connect(t, h, 8)
	b := connect(t, h, 8)
	settle(t, h)
	expect(t, a, relaydto.ActionConnect, "Someone joined")
	expectNothing(t, b)
}

func TestChatReachesOthersOnly(t *testing.T) {
	h := startHub(t, Options{})
	a, b := pair(t, h, "R")
	outsider := connect(t, h, 8)
	settle(t, h)
	drain(a)
	drain(b)

	h.SendChatMessage(a.id, "R", "alice: hello")
	settle(t, h)
	expect(t, b, relaydto.ActionReceivedMessage, "alice: hello")
	expectNothing(t, a)
	expectNothing(t, outsider)
}

func TestGameMoveIsForwardedVerbatim(t *testing.T) {
	h := startHub(t, Options{})
	a, b := pair(t, h, "R")
	payload := `{"opaque":true}`
	h.SendGameMove(a.id, "R", payload)
	settle(t, h)
	expect(t, b, relaydto.ActionReceivedCheckerPieceMove, payload)
	expectNothing(t, a)
}

func TestJoinNotifiesBothRooms(t *testing.T) {
	h := startHub(t, Options{})
	a, b := pair(t, h, "R")
	h.Join(a.id, "S")
	settle(t, h)
	expect(t, b, relaydto.ActionDisconnect, "alice")
	expectNothing(t, a)

	h.Join(b.id, "S")
	settle(t, h)
	expect(t, a, relaydto.ActionConnect, "Someone connected")
}

func TestListUserNames(t *testing.T) {
	h := startHub(t, Options{})
	a, b := pair(t, h, "R")
	anon := connect(t, h, 8)
	h.Join(anon.id, "R")
	c := connect(t, h, 8)
	h.SetName(c.id, "carol")
	h.Join(c.id, "R")

	got := names(t, h, a.id, "R")
	want := []string{"bob", "carol"}
	if !sort.StringsAreSorted(got) || len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("names %v, want %v", got, want)
	}

	h.Disconnect(c.id)
	for _, n := range names(t, h, b.id, "R") {
		if n == "carol" {
			t.Fatalf("disconnected session still listed")
		}
	}
	if got := names(t, h, a.id, "nowhere"); len(got) != 0 {
		t.Fatalf("empty room listed %v", got)
	}
}

func TestDisconnectNotices(t *testing.T) {
	h := startHub(t, Options{})
	a, b := pair(t, h, "R")
	anon := connect(t, h, 8)
	h.Join(anon.id, "R")
	settle(t, h)
	drain(a)
	drain(b)

	h.Disconnect(anon.id)
	settle(t, h)
	expect(t, a, relaydto.ActionDisconnect, "Someone disconnected")
	expect(t, b, relaydto.ActionDisconnect, "Someone disconnected")

	h.Disconnect(b.id)
	h.Disconnect(b.id)
	h.Disconnect("never-existed")
	settle(t, h)
	expect(t, a, relaydto.ActionDisconnect, "bob")
	expectNothing(t, a)
}

func TestEmptyRoomsAreCollected(t *testing.T) {
	h := startHub(t, Options{})
	a := connect(t, h, 8)
	h.Join(a.id, "R")
	settle(t, h)

	rooms, _ := h.Rooms(context.Background())
	if len(rooms) != 2 || rooms[0].Name != "Main" || rooms[1].Name != "R" || rooms[1].Members != 1 {
		t.Fatalf("rooms %+v", rooms)
	}

	h.Join(a.id, "Main")
	settle(t, h)
	rooms, _ = h.Rooms(context.Background())
	if len(rooms) != 1 || rooms[0].Name != "Main" {
		t.Fatalf("empty room kept: %+v", rooms)
	}

	h.Disconnect(a.id)
	settle(t, h)
	rooms, _ = h.Rooms(context.Background())
	if len(rooms) != 1 || rooms[0].Members != 0 {
		t.Fatalf("default room must survive: %+v", rooms)
	}
}

func TestInvitationAccept(t *testing.T) {
	accepted := make(chan [3]string, 1)
	h := startHub(t, Options{OnAccept: func(room, inviter, invitee string) {
		accepted <- [3]string{room, inviter, invitee}
	}})
	a, b := pair(t, h, "R")

	h.SendInvitation(a.id, "R", "bob", relaydto.ActionInvitation)
	settle(t, h)
	expect(t, b, relaydto.ActionInvitation, "alice")

	h.SendInvitation(b.id, "R", "alice", relaydto.ActionAcceptInvitation)
	settle(t, h)
	expect(t, a, relaydto.ActionAcceptInvitation, "bob")

	select {
	case got := <-accepted:
		if got != [3]string{"R", "alice", "bob"} {
			t.Fatalf("OnAccept(%v)", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("OnAccept not called")
	}
}

func noAccept(t *testing.T, accepted <-chan [3]string) {
	t.Helper()
	select {
	case got := <-accepted:
		t.Fatalf("OnAccept(%v) for a stale invitation", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestInviterChangingRoomCancelsInvitation(t *testing.T) {
	accepted := make(chan [3]string, 1)
	h := startHub(t, Options{OnAccept: func(room, inviter, invitee string) {
		accepted <- [3]string{room, inviter, invitee}
	}})
	a, b := pair(t, h, "R")

	h.SendInvitation(a.id, "R", "bob", relaydto.ActionInvitation)
	settle(t, h)
	expect(t, b, relaydto.ActionInvitation, "alice")

	h.Join(a.id, "S")
	settle(t, h)
	expect(t, b, relaydto.ActionDisconnect, "alice")
	drain(a)

	h.SendInvitation(b.id, "R", "alice", relaydto.ActionAcceptInvitation)
	settle(t, h)
	expectNothing(t, a)
	noAccept(t, accepted)

	// back in R, an old accept does not revive anything
	h.Join(a.id, "R")
	h.SendInvitation(b.id, "R", "alice", relaydto.ActionAcceptInvitation)
	settle(t, h)
	noAccept(t, accepted)
}

func TestAcceptFromOutsideTheRoomStartsNothing(t *testing.T) {
	accepted := make(chan [3]string, 1)
	h := startHub(t, Options{OnAccept: func(room, inviter, invitee string) {
		accepted <- [3]string{room, inviter, invitee}
	}})
	a := connect(t, h, 16)
	b := connect(t, h, 16)
	h.SetName(a.id, "alice")
	h.SetName(b.id, "bob")
	h.Join(a.id, "R")
	settle(t, h)
	drain(a)

	// bob is still in the default room
	h.SendInvitation(a.id, "R", "bob", relaydto.ActionInvitation)
	h.SendInvitation(b.id, "R", "alice", relaydto.ActionAcceptInvitation)
	settle(t, h)
	noAccept(t, accepted)
}

func TestClaimNameRejectsDuplicates(t *testing.T) {
	h := startHub(t, Options{})
	a := connect(t, h, 16)
	b := connect(t, h, 16)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := h.ClaimName(ctx, a.id, "alice"); err != nil {
		t.Fatalf("ClaimName: %v", err)
	}
	if err := h.ClaimName(ctx, b.id, "alice"); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("want ErrNameTaken, got %v", err)
	}
	if err := h.ClaimName(ctx, a.id, "alice"); err != nil {
		t.Fatalf("re-claiming own name: %v", err)
	}
	if err := h.ClaimName(ctx, "nobody", "zed"); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("want ErrUnknownSession, got %v", err)
	}

	h.Disconnect(a.id)
	if err := h.ClaimName(ctx, b.id, "alice"); err != nil {
		t.Fatalf("name should be free after disconnect: %v", err)
	}
	if got := names(t, h, a.id, DefaultRoom); len(got) != 1 || got[0] != "alice" {
		t.Fatalf("names = %v", got)
	}
}

func TestInvitationFromUnnamedSessionIsDropped(t *testing.T) {
	h := startHub(t, Options{})
	a, b := pair(t, h, "R")
	anon := connect(t, h, 8)
	h.Join(anon.id, "R")
	settle(t, h)
	drain(a)
	drain(b)

	h.SendInvitation(anon.id, "R", "bob", relaydto.ActionInvitation)
	settle(t, h)
	expectNothing(t, b)
}

func TestInvitationExpires(t *testing.T) {
	h := startHub(t, Options{InviteTimeout: 30 * time.Millisecond})
	a, b := pair(t, h, "R")
	h.SendInvitation(a.id, "R", "bob", relaydto.ActionInvitation)
	expect(t, b, relaydto.ActionInvitation, "alice")
	expect(t, a, relaydto.ActionDeclineInvitation, "bob")
}

func TestAnsweredInvitationDoesNotExpire(t *testing.T) {
	h := startHub(t, Options{InviteTimeout: 50 * time.Millisecond})
	a, b := pair(t, h, "R")
	h.SendInvitation(a.id, "R", "bob", relaydto.ActionInvitation)
	h.SendInvitation(b.id, "R", "alice", relaydto.ActionDeclineInvitation)
	settle(t, h)
	expect(t, a, relaydto.ActionDeclineInvitation, "bob")

	time.Sleep(150 * time.Millisecond)
	settle(t, h)
	expectNothing(t, a)
}

func TestSlowRecipientDoesNotBlockOthers(t *testing.T) {
	h := startHub(t, Options{})
	a, b := pair(t, h, "R")
	slow := connect(t, h, 1)
	h.Join(slow.id, "R")
	settle(t, h)
	drain(a)
	drain(b)

	for i := 0; i < 10; i++ {
		h.SendChatMessage(a.id, "R", "spam")
	}
	settle(t, h)
	if got := len(drain(b)); got != 10 {
		t.Fatalf("fast recipient got %d of 10", got)
	}
	if h.Dropped() == 0 {
		t.Fatalf("expected drops for the slow recipient")
	}
}

func TestOperationsAfterStopFail(t *testing.T) {
	h := New(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.Run(ctx)
		close(done)
	}()
	cancel()
	<-done
	if _, err := h.Connect(context.Background(), make(chan relaydto.Envelope, 1)); err == nil {
		t.Fatalf("Connect on a stopped hub succeeded")
	}
	h.Disconnect("x")
}
