package realtime

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mentalhealthai/mhai-backend/internal/pkg/logger"
)

func TestBroadcastReachesSubscribers(t *testing.T) {
	hub := NewSSEHub(logger.NewNop())

	alice := hub.NewSSEClient(uuid.New())
	bob := hub.NewSSEClient(uuid.New())
	hub.AddChannel(alice, UserChannel(alice.UserID.String()))
	hub.AddChannel(bob, UserChannel(bob.UserID.String()))

	hub.Broadcast(SSEMessage{
		Channel: UserChannel(alice.UserID.String()),
		Event:   SSEEventJobQueued,
		Data:    map[string]string{"job_id": "abc"},
	})

	select {
	case msg := <-alice.Outbound:
		if msg.Event != SSEEventJobQueued {
			t.Fatalf("event = %q", msg.Event)
		}
	default:
		t.Fatal("alice received nothing")
	}
	select {
	case msg := <-bob.Outbound:
		t.Fatalf("bob received %v", msg)
	default:
	}
}

func TestBroadcastIgnoresEmptyAndUnknownChannels(t *testing.T) {
	hub := NewSSEHub(logger.NewNop())
	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, "user:x")

	hub.Broadcast(SSEMessage{Channel: "", Event: SSEEventJobSucceeded})
	hub.Broadcast(SSEMessage{Channel: "user:y", Event: SSEEventJobProgress})

	select {
	case msg := <-client.Outbound:
		t.Fatalf("unexpected message %v", msg)
	default:
	}
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	hub := NewSSEHub(logger.NewNop())
	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, "user:full")

	for i := 0; i < cap(client.Outbound)+5; i++ {
		hub.Broadcast(SSEMessage{Channel: "user:full", Event: SSEEventJobProgress})
	}
	if got := len(client.Outbound); got != cap(client.Outbound) {
		t.Fatalf("buffered = %d, want %d", got, cap(client.Outbound))
	}
}

func TestRemoveChannel(t *testing.T) {
	hub := NewSSEHub(logger.NewNop())
	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, "user:a")
	hub.RemoveChannel(client, "user:a")

	hub.Broadcast(SSEMessage{Channel: "user:a", Event: SSEEventJobProgress})
	select {
	case msg := <-client.Outbound:
		t.Fatalf("unexpected message %v", msg)
	default:
	}
	if client.Channels["user:a"] {
		t.Fatal("channel still tracked on client")
	}
}

func TestServeHTTPWritesEvents(t *testing.T) {
	hub := NewSSEHub(logger.NewNop())
	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, "user:stream")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/events", nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.ServeHTTP(rec, req, client)
	}()

	hub.Broadcast(SSEMessage{Channel: "user:stream", Event: SSEEventTurnUpdated})
	time.Sleep(50 * time.Millisecond)
	hub.CloseClient(client)
	wg.Wait()

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: message") {
		t.Fatalf("missing event frame in %q", body)
	}
	if !strings.Contains(body, string(SSEEventTurnUpdated)) {
		t.Fatalf("missing event name in %q", body)
	}
}

func TestCloseClientUnsubscribes(t *testing.T) {
	hub := NewSSEHub(logger.NewNop())
	client := hub.NewSSEClient(uuid.New())
	hub.AddChannel(client, "user:bye")
	hub.CloseClient(client)

	// Broadcasting after close must not panic on the closed channel.
	hub.Broadcast(SSEMessage{Channel: "user:bye", Event: SSEEventJobProgress})
}
