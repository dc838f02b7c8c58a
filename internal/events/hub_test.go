package events

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Snapwave333/klashibot-sub001/internal/model"
)

func TestHub_PublishReachesAllSubscribers(t *testing.T) {
	h := NewHub(4, nil)

	ch1, cancel1 := h.Subscribe()
	ch2, cancel2 := h.Subscribe()
	defer cancel1()
	defer cancel2()

	h.Publish(model.CycleResult{MarketsScanned: 7})

	for i, ch := range []<-chan model.CycleResult{ch1, ch2} {
		select {
		case got := <-ch:
			if got.MarketsScanned != 7 {
				t.Errorf("subscriber %d got MarketsScanned = %d, want 7", i, got.MarketsScanned)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received the event", i)
		}
	}
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	h := NewHub(1, nil)

	_, cancel := h.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Far more events than the buffer holds; subscriber reads nothing.
		for i := 0; i < 100; i++ {
			h.Publish(model.CycleResult{MarketsScanned: i})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	if h.Dropped() != 99 {
		t.Errorf("Dropped() = %d, want 99", h.Dropped())
	}
}

func TestHub_CancelClosesChannel(t *testing.T) {
	h := NewHub(4, nil)

	ch, cancel := h.Subscribe()
	if h.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", h.SubscriberCount())
	}

	cancel()
	cancel() // Idempotent.

	if h.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", h.SubscriberCount())
	}
	if _, ok := <-ch; ok {
		t.Error("channel still open after cancel")
	}

	// Publishing after cancel must not panic.
	h.Publish(model.CycleResult{})
}

func TestHub_ServeWS(t *testing.T) {
	h := NewHub(4, nil)
	server := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	// Wait for the subscription to register before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for h.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket client never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	h.Publish(model.CycleResult{MarketsScanned: 42, BreakerState: "normal"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got model.CycleResult
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if got.MarketsScanned != 42 || got.BreakerState != "normal" {
		t.Errorf("got %+v, want MarketsScanned 42, breaker normal", got)
	}
}
