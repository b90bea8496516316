package SSE

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestPublishTargetsUser(t *testing.T) {
	b := NewSSEBroadcaster()
	alice := b.Register(1)
	bob := b.Register(2)
	defer b.Unregister(alice)
	defer b.Unregister(bob)

	if n := b.Publish(1, "hello"); n != 1 {
		t.Fatalf("delivered to %d clients, want 1", n)
	}
	select {
	case msg := <-alice:
		if msg != "hello" {
			t.Errorf("got %q", msg)
		}
	default:
		t.Fatal("alice received nothing")
	}
	select {
	case msg := <-bob:
		t.Fatalf("bob received %q", msg)
	default:
	}

	if n := b.Broadcast("all"); n != 2 {
		t.Errorf("broadcast reached %d clients", n)
	}
}

func TestUnregisterTwiceIsSafe(t *testing.T) {
	b := NewSSEBroadcaster()
	client := b.Register(7)
	b.Unregister(client)
	b.Unregister(client)
	if b.Count(7) != 0 {
		t.Errorf("client still registered")
	}
}

func TestRequestSSEStreamsPublishedMessages(t *testing.T) {
	gin.SetMode(gin.TestMode)
	previous := Broadcaster
	Broadcaster = NewSSEBroadcaster()
	defer func() { Broadcaster = previous }()

	router := gin.New()
	router.GET("/sse", func(c *gin.Context) {
		c.Set("userID", uint(42))
		RequestSSE(c)
	})

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/sse", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		router.ServeHTTP(w, req)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for Broadcaster.Count(42) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}
	Broadcaster.Publish(42, `{"type":"new_ticket"}`)
	// Give the handler a moment to write before the stream is closed.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "data: connected") || !strings.Contains(body, `data: {"type":"new_ticket"}`) {
		t.Errorf("unexpected stream body %q", body)
	}
	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestRequestSSERequiresUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/sse", RequestSSE)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sse", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", w.Code)
	}
}
