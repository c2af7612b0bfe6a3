package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestConn(userID string) *WSConn {
	return &WSConn{
		userID: userID,
		send:   make(chan []byte, sendBufSize),
	}
}

func receive(t *testing.T, c *WSConn) WSEvent {
	t.Helper()
	select {
	case msg := <-c.send:
		var event WSEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		return event
	case <-time.After(time.Second):
		t.Fatalf("%s received nothing", c.userID)
	}
	return WSEvent{}
}

func expectNothing(t *testing.T, c *WSConn) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Errorf("%s should not have received %s", c.userID, msg)
	default:
	}
}

func TestHubSubscriptions(t *testing.T) {
	hub := NewHub()
	c := newTestConn("user-1")
	hub.Register(c)
	defer hub.Unregister(c)

	hub.Subscribe(c, "game-1")
	hub.Subscribe(c, "game-1")
	if n := hub.GameSubscriberCount("game-1"); n != 1 {
		t.Errorf("expected 1 subscriber, got %d", n)
	}
	hub.Unsubscribe(c, "game-1")
	hub.Unsubscribe(c, "game-2")
	if n := hub.GameSubscriberCount("game-1"); n != 0 {
		t.Errorf("expected 0 subscribers, got %d", n)
	}
}

func TestHubGameEvent(t *testing.T) {
	hub := NewHub()
	florence := newTestConn("user-1")
	milan := newTestConn("user-2")
	outsider := newTestConn("user-3")
	for _, c := range []*WSConn{florence, milan, outsider} {
		hub.Register(c)
		defer hub.Unregister(c)
	}
	hub.Subscribe(florence, "game-1")
	hub.Subscribe(milan, "game-1")
	hub.Subscribe(outsider, "game-2")

	hub.BroadcastGameEvent("game-1", EventNewPhase, map[string]any{"season": "summer", "year": 1454})

	for _, c := range []*WSConn{florence, milan} {
		event := receive(t, c)
		if event.Type != EventNewPhase || event.GameID != "game-1" {
			t.Errorf("unexpected event %+v", event)
		}
	}
	expectNothing(t, outsider)
}

func TestHubUserEvent(t *testing.T) {
	hub := NewHub()
	desktop := newTestConn("user-1")
	phone := newTestConn("user-1")
	other := newTestConn("user-2")
	for _, c := range []*WSConn{desktop, phone, other} {
		hub.Register(c)
		defer hub.Unregister(c)
	}

	hub.BroadcastUserEvent("user-1", "game-1", EventOrdersVoided, []string{"A Pisa - Rome"})

	for _, c := range []*WSConn{desktop, phone} {
		event := receive(t, c)
		if event.Type != EventOrdersVoided || event.GameID != "game-1" {
			t.Errorf("unexpected event %+v", event)
		}
	}
	expectNothing(t, other)
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub()
	c := &WSConn{userID: "user-1", send: make(chan []byte, 1)}
	hub.Register(c)
	defer hub.Unregister(c)
	hub.Subscribe(c, "game-1")

	hub.BroadcastGameEvent("game-1", EventPlayerDone, nil)
	hub.BroadcastGameEvent("game-1", EventPlayerDone, nil)

	if n := len(c.send); n != 1 {
		t.Errorf("expected 1 queued message, got %d", n)
	}
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub()
	c := newTestConn("user-1")
	hub.Register(c)
	hub.Subscribe(c, "game-1")
	hub.Subscribe(c, "game-2")

	hub.Unregister(c)
	hub.Unregister(c)

	if hub.ConnectionCount() != 0 {
		t.Errorf("expected 0 connections, got %d", hub.ConnectionCount())
	}
	for _, g := range []string{"game-1", "game-2"} {
		if n := hub.GameSubscriberCount(g); n != 0 {
			t.Errorf("expected 0 subscribers for %s, got %d", g, n)
		}
	}
	if _, open := <-c.send; open {
		t.Error("send queue should be closed")
	}
}

func TestHandleMessageChecksAccess(t *testing.T) {
	hub := NewHub()
	h := &WSHandler{hub: hub, watch: func(_ context.Context, gameID, userID string) error {
		if gameID == "private" && userID != "user-1" {
			return errors.New("you are not in this game")
		}
		return nil
	}}

	member := newTestConn("user-1")
	stranger := newTestConn("user-2")
	hub.Register(member)
	hub.Register(stranger)
	defer hub.Unregister(member)
	defer hub.Unregister(stranger)

	h.handleMessage(member, ClientMessage{Action: "subscribe", GameID: "private"})
	h.handleMessage(stranger, ClientMessage{Action: "subscribe", GameID: "private"})
	h.handleMessage(stranger, ClientMessage{Action: "subscribe", GameID: ""})

	if n := hub.GameSubscriberCount("private"); n != 1 {
		t.Fatalf("expected 1 subscriber, got %d", n)
	}
	if event := receive(t, stranger); event.Type != EventSubscribeDenied {
		t.Errorf("expected %s, got %s", EventSubscribeDenied, event.Type)
	}
	expectNothing(t, member)

	h.handleMessage(member, ClientMessage{Action: "unsubscribe", GameID: "private"})
	if n := hub.GameSubscriberCount("private"); n != 0 {
		t.Errorf("expected 0 subscribers, got %d", n)
	}

	h.handleMessage(member, ClientMessage{Action: "shout", GameID: "private"})
	if event := receive(t, member); event.Type != EventSubscribeDenied || event.GameID != "private" {
		t.Errorf("expected a refusal for an unknown action, got %+v", event)
	}
}

func TestHubConcurrentAccess(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c := newTestConn(fmt.Sprintf("user-%d", id))
			hub.Register(c)
			hub.Subscribe(c, "game-1")
			hub.BroadcastGameEvent("game-1", EventPlayerDone, map[string]int{"n": id})
			hub.BroadcastUserEvent(c.userID, "game-1", EventOrdersVoided, nil)
			hub.Unregister(c)
		}(i)
	}
	wg.Wait()

	if hub.ConnectionCount() != 0 {
		t.Errorf("expected 0 connections, got %d", hub.ConnectionCount())
	}
}
