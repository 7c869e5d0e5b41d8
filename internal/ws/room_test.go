package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func TestRoomGetConnection(t *testing.T) {
	room := NewRoom(10, *testLogger())

	conn, err := room.GetConnection(1, false)
	if err != nil || conn != nil {
		t.Fatalf("lenient miss should return nil, nil; got %v, %v", conn, err)
	}

	if _, err := room.GetConnection(1, true); !errors.Is(err, ErrConnectionNotFound) {
		t.Fatalf("expected ErrConnectionNotFound, got %v", err)
	}

	created, _ := openConnection(t, room, 1)
	found, err := room.GetConnection(1, true)
	if err != nil || found != created {
		t.Fatalf("expected registered connection back, got %v, %v", found, err)
	}
}

func TestRoomDuplicateJoinRejectMode(t *testing.T) {
	room := NewRoom(10, *testLogger())
	original, transport := openConnection(t, room, 1)

	_, err := room.CreateConnection(1, newFakeTransport(), false)
	if !errors.Is(err, ErrConnectionExists) {
		t.Fatalf("expected ErrConnectionExists, got %v", err)
	}

	// The original connection is untouched and still registered.
	if count, _, _ := transport.closes(); count != 0 {
		t.Fatalf("original connection was closed %d times", count)
	}
	found, _ := room.GetConnection(1, true)
	if found != original {
		t.Fatalf("original connection no longer registered")
	}
}

func TestRoomDuplicateJoinSupersedeMode(t *testing.T) {
	room := NewRoom(10, *testLogger())
	original, oldTransport := openConnection(t, room, 1)

	replacement, err := room.CreateConnection(1, newFakeTransport(), true)
	if err != nil {
		t.Fatalf("supersede: %v", err)
	}

	count, code, _ := oldTransport.closes()
	if count != 1 || code != websocket.StatusPolicyViolation {
		t.Fatalf("expected one policy-violation close of the old session, got count=%d code=%v", count, code)
	}
	if original.State() != StateDisconnected {
		t.Fatalf("superseded connection should be disconnected")
	}

	found, _ := room.GetConnection(1, true)
	if found != replacement {
		t.Fatalf("replacement not registered under the id")
	}
	if room.Len() != 1 {
		t.Fatalf("expected one connection, got %d", room.Len())
	}
}

func TestRoomBroadcastCompleteness(t *testing.T) {
	room := NewRoom(10, *testLogger())
	_, t1 := openConnection(t, room, 1)
	_, t2 := openConnection(t, room, 2)
	_, t3 := openConnection(t, room, 3)

	room.Send(context.Background(), NewConnectMessage(3), nil)

	for i, transport := range []*fakeTransport{t1, t2, t3} {
		msgs := transport.sent(t)
		if len(msgs) != 1 || msgs[0].Type != MessageTypeConnect {
			t.Fatalf("connection %d: expected one connect message, got %+v", i+1, msgs)
		}
	}
}

func TestRoomTargetedDelivery(t *testing.T) {
	room := NewRoom(10, *testLogger())
	_, t1 := openConnection(t, room, 1)
	_, t2 := openConnection(t, room, 2)
	_, t3 := openConnection(t, room, 3)

	// Id 9 departed long ago; it is skipped, not an error.
	to := To(1, 2, 9)
	room.Send(context.Background(), Message{Type: MessageTypeChat, Text: "psst", Sender: 3}, &to)

	if got := len(t1.sent(t)); got != 1 {
		t.Fatalf("connection 1: expected delivery, got %d messages", got)
	}
	if got := len(t2.sent(t)); got != 1 {
		t.Fatalf("connection 2: expected delivery, got %d messages", got)
	}
	if got := len(t3.sent(t)); got != 0 {
		t.Fatalf("connection 3: expected no delivery, got %d messages", got)
	}
}

func TestRoomSendIsolatesRecipientFailures(t *testing.T) {
	room := NewRoom(10, *testLogger())
	_, bad := openConnection(t, room, 1)
	_, good := openConnection(t, room, 2)
	bad.writeErr = errors.New("broken pipe")

	room.Send(context.Background(), NewConnectMessage(2), nil)

	if got := len(good.sent(t)); got != 1 {
		t.Fatalf("healthy recipient missed the broadcast, got %d messages", got)
	}
}

func TestRoomReceiveCleansUpOnPeerClose(t *testing.T) {
	room := NewRoom(10, *testLogger())
	conn, transport := openConnection(t, room, 1)

	transport.push(t, Inbound{Text: "hi"})
	transport.peerClose()

	var seen []string
	err := room.Receive(context.Background(), conn, func(in *Inbound) error {
		seen = append(seen, in.Text)
		return nil
	})
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(seen) != 1 || seen[0] != "hi" {
		t.Fatalf("unexpected frames: %v", seen)
	}

	if _, err := room.GetConnection(1, true); !errors.Is(err, ErrConnectionNotFound) {
		t.Fatalf("connection still registered after receive ended: %v", err)
	}

	count, code, _ := transport.closes()
	if count != 1 || code != websocket.StatusNormalClosure {
		t.Fatalf("expected one normal close, got count=%d code=%v", count, code)
	}
}

func TestRoomReceiveClosesWithHandlerErrorReason(t *testing.T) {
	room := NewRoom(10, *testLogger())
	conn, transport := openConnection(t, room, 1)

	transport.pushRaw(`{"message": "hi", "message_type": "shout"}`)

	err := room.Receive(context.Background(), conn, func(*Inbound) error { return nil })
	if !errors.Is(err, ErrInvalidMessageType) {
		t.Fatalf("expected ErrInvalidMessageType, got %v", err)
	}

	_, code, _ := transport.closes()
	if code != websocket.StatusUnsupportedData {
		t.Fatalf("expected unsupported-data close, got %v", code)
	}
	if room.Len() != 0 {
		t.Fatalf("connection left behind after protocol error")
	}
}

func TestRoomSupersededReceiveDoesNotEvictReplacement(t *testing.T) {
	room := NewRoom(10, *testLogger())
	oldConn, oldTransport := openConnection(t, room, 1)

	done := make(chan error, 1)
	go func() {
		done <- room.Receive(context.Background(), oldConn, func(*Inbound) error { return nil })
	}()

	// Let the old session block in Read, then supersede it.
	time.Sleep(20 * time.Millisecond)
	replacement, err := room.CreateConnection(1, newFakeTransport(), true)
	if err != nil {
		t.Fatalf("supersede: %v", err)
	}
	if err := replacement.Open(context.Background()); err != nil {
		t.Fatalf("open replacement: %v", err)
	}

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected the superseded session to end with an error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("superseded receive loop did not unblock")
	}

	found, err := room.GetConnection(1, true)
	if err != nil || found != replacement {
		t.Fatalf("replacement was evicted by the old session's cleanup: %v, %v", found, err)
	}

	if count, _, _ := oldTransport.closes(); count != 1 {
		t.Fatalf("expected one close of the old transport, got %d", count)
	}
}

func TestRoomReceiveSupersededBeforeLoopLeavesReplacementAlone(t *testing.T) {
	room := NewRoom(10, *testLogger())
	oldConn, _ := openConnection(t, room, 1)

	// Rapid reconnect lands before the first session enters its relay loop.
	newConn, newTransport := func() (*Connection, *fakeTransport) {
		transport := newFakeTransport()
		conn, err := room.CreateConnection(1, transport, true)
		if err != nil {
			t.Fatalf("supersede: %v", err)
		}
		if err := conn.Open(context.Background()); err != nil {
			t.Fatalf("open replacement: %v", err)
		}
		return conn, transport
	}()

	newTransport.push(t, Inbound{Text: "meant for the new session"})

	err := room.Receive(context.Background(), oldConn, func(*Inbound) error {
		t.Fatal("stale session consumed a frame")
		return nil
	})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on the dead connection, got %v", err)
	}

	if newConn.State() != StateConnected {
		t.Fatalf("replacement was closed by the stale session's cleanup")
	}
	if room.Len() != 1 {
		t.Fatalf("replacement was evicted, room has %d connections", room.Len())
	}

	frame, err := newConn.Receive(context.Background())
	if err != nil || frame.Text != "meant for the new session" {
		t.Fatalf("replacement lost its frame: %v, %v", frame, err)
	}
}

func TestRoomConcurrentJoinsRegisterExactlyOne(t *testing.T) {
	room := NewRoom(10, *testLogger())

	const attempts = 32
	var wg sync.WaitGroup
	created := make(chan *Connection, attempts)

	for n := 0; n < attempts; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := room.CreateConnection(1, newFakeTransport(), true)
			if err == nil {
				created <- conn
			}
		}()
	}
	wg.Wait()
	close(created)

	if room.Len() != 1 {
		t.Fatalf("expected exactly one registered connection, got %d", room.Len())
	}

	winner, _ := room.GetConnection(1, true)
	live := 0
	for conn := range created {
		if conn == winner {
			live++
			continue
		}
		if conn.State() != StateDisconnected {
			t.Fatalf("loser connection still live: %+v", conn)
		}
	}
	if live != 1 {
		t.Fatalf("expected the registered connection among the created ones, found %d", live)
	}
}

func TestCloseStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want websocket.StatusCode
	}{
		{nil, websocket.StatusNormalClosure},
		{context.Canceled, websocket.StatusGoingAway},
		{fmt.Errorf("wrap: %w", ErrInvalidMessageType), websocket.StatusUnsupportedData},
		{fmt.Errorf("wrap: %w", ErrConnectionExists), websocket.StatusPolicyViolation},
		{errors.New("disk on fire"), websocket.StatusInternalError},
	}
	for _, tc := range cases {
		if got, _ := CloseStatus(tc.err); got != tc.want {
			t.Fatalf("CloseStatus(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
