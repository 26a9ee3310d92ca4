package main

import (
	"errors"
	"testing"

	"github.com/park285/checkers-relay/internal/checkers"
	"github.com/park285/checkers-relay/internal/protocol"
	"github.com/park285/checkers-relay/pkg/relaydto"
)

func TestParseLineChat(t *testing.T) {
	cmd, err := parseLine(&session{}, "hello there")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cmd.env == nil || cmd.env.Action != relaydto.ActionSendMessage || cmd.env.Data != "hello there" {
		t.Fatalf("cmd = %+v", cmd)
	}
}

func TestParseLineTracksState(t *testing.T) {
	s := &session{}
	if _, err := parseLine(s, "/name alice"); err != nil {
		t.Fatalf("name: %v", err)
	}
	if _, err := parseLine(s, "/join R"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := parseLine(s, "/color b"); err != nil {
		t.Fatalf("color: %v", err)
	}
	if s.name != "alice" || s.room != "R" || s.color != checkers.Black {
		t.Fatalf("session = %+v", s)
	}
}

func TestParseMoveCapture(t *testing.T) {
	s := &session{color: checkers.White}
	cmd, err := parseLine(s, "/move c3 e5")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	gd, err := protocol.DecodeGameData(cmd.env.Data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if gd.CapturedPiecePosition == nil || *gd.CapturedPiecePosition != (checkers.Position{Column: 4, Line: 4}) {
		t.Fatalf("captured = %v", gd.CapturedPiecePosition)
	}
	if gd.OpponentPieceColor != checkers.White {
		t.Fatalf("color = %s", gd.OpponentPieceColor)
	}
}

func TestParseMoveNumeric(t *testing.T) {
	gd, err := parseMove(checkers.Black, []string{"2", "6", "1", "5"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if gd.PiecePreviousPosition != (checkers.Position{Column: 2, Line: 6}) || gd.CapturedPiecePosition != nil {
		t.Fatalf("gd = %+v", gd)
	}
}

func TestParseErrors(t *testing.T) {
	s := &session{}
	if _, err := parseLine(s, "/join"); !errors.Is(err, errUsage) {
		t.Fatalf("err = %v", err)
	}
	if _, err := parseLine(s, "/move z9 a1"); err == nil {
		t.Fatal("expected bad square")
	}
	if _, err := parseLine(s, "/bogus"); err == nil {
		t.Fatal("expected unknown command")
	}
}

func TestToWebSocketURL(t *testing.T) {
	got, err := toWebSocketURL("https://relay.example/base/")
	if err != nil {
		t.Fatalf("url: %v", err)
	}
	if got != "wss://relay.example/base/ws" {
		t.Fatalf("got %q", got)
	}
}
