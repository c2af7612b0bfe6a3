package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/freeeve/machiavelli/pkg/machiavelli"
)

const testNow = "2026-03-01T12:00:00Z"

func TestParsePlayers(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"florence=alice,milan=bob", 2, false},
		{" florence=alice , venice=carol ", 2, false},
		{"florence", 0, true},
		{"florence=", 0, true},
		{"florence=a,florence=b", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parsePlayers(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.want {
				t.Errorf("got %d players, want %d", len(got), tt.want)
			}
		})
	}
}

func newGame(t *testing.T) []byte {
	t.Helper()
	var out bytes.Buffer
	opts := options{players: "florence=alice,milan=bob", seed: 3, now: testNow, in: "-"}
	if err := run(opts, nil, &out); err != nil {
		t.Fatalf("new game: %v", err)
	}
	return out.Bytes()
}

func TestRunNewGame(t *testing.T) {
	var gs machiavelli.GameState
	if err := json.Unmarshal(newGame(t), &gs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if gs.Phase != machiavelli.PhaseOrders || gs.Season != machiavelli.Spring {
		t.Errorf("new game starts in %s %s", gs.Season, gs.Phase)
	}
	if p := gs.Player("milan"); p == nil || p.UserID != "bob" {
		t.Errorf("milan = %+v", p)
	}
}

func TestRunNotReady(t *testing.T) {
	var out bytes.Buffer
	opts := options{seed: 3, now: testNow, in: "-"}
	if err := run(opts, bytes.NewReader(newGame(t)), &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	var r report
	if err := json.Unmarshal(out.Bytes(), &r); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.Outcome != "not_ready" {
		t.Errorf("outcome = %s, want not_ready", r.Outcome)
	}
}

func TestRunForce(t *testing.T) {
	var out bytes.Buffer
	opts := options{seed: 3, now: testNow, in: "-", force: true}
	if err := run(opts, bytes.NewReader(newGame(t)), &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	var r report
	if err := json.Unmarshal(out.Bytes(), &r); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.Outcome != "processed" {
		t.Errorf("outcome = %s, want processed", r.Outcome)
	}
	if r.State.Season == machiavelli.Spring && r.State.Phase == machiavelli.PhaseOrders {
		t.Error("state did not advance")
	}
}

func TestRunBadInput(t *testing.T) {
	if err := run(options{in: "-", now: testNow}, strings.NewReader("{"), &bytes.Buffer{}); err == nil {
		t.Error("expected decode error")
	}
	if err := run(options{now: "yesterday"}, nil, &bytes.Buffer{}); err == nil {
		t.Error("expected time parse error")
	}
}
