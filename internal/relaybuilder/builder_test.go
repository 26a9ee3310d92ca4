package relaybuilder

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/park285/checkers-relay/internal/config"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	return &config.AppConfig{
		Bind:              "127.0.0.1",
		Port:              freePort(t),
		DefaultRoom:       "Main",
		HeartbeatInterval: time.Second,
		ClientTimeout:     2 * time.Second,
		InviteTimeout:     time.Second,
		SendBuffer:        8,
		ChatLogURL:        "memory://",
		ChatLogLimit:      10,
		Arbiter:           true,
	}
}

func TestNewRejectsNilConfig(t *testing.T) {
	if _, err := New(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewWithRedisChatLog(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.ChatLogURL = "redis://" + mr.Addr() + "/0"

	d, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	if err := d.Chat.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestRunServesUntilCancelled(t *testing.T) {
	cfg := testConfig(t)
	d, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	url := "http://127.0.0.1:" + strconv.Itoa(cfg.Port) + "/healthz"
	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("healthz = %d", resp.StatusCode)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}
