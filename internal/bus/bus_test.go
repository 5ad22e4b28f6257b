package bus

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"relaybot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishSubscribe(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	b.Publish(domain.InboundMessage{Channel: "telegram", SenderID: "1", Content: "hi"})

	select {
	case msg := <-b.Subscribe():
		if msg.Content != "hi" {
			t.Errorf("Content = %q, want hi", msg.Content)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestSendOutboundRoutesToHandler(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	got := make(chan domain.OutboundMessage, 1)
	b.OnOutbound("telegram", func(msg domain.OutboundMessage) { got <- msg })

	b.SendOutbound(domain.OutboundMessage{Channel: "telegram", ChatID: "1", Content: "pong"})

	select {
	case msg := <-got:
		if msg.Content != "pong" {
			t.Errorf("Content = %q, want pong", msg.Content)
		}
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestSendOutboundUnknownChannelIsDropped(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	// No handler registered; must not panic.
	b.SendOutbound(domain.OutboundMessage{Channel: "nowhere", Content: "lost"})
}

func TestPublishAfterClose(t *testing.T) {
	b := New(10, testLogger())
	b.Close()

	// Must not panic.
	b.Publish(domain.InboundMessage{Channel: "telegram", Content: "late"})
}

func TestCloseIsIdempotent(t *testing.T) {
	b := New(10, testLogger())
	b.Close()
	b.Close()
}

func TestCloseDrainsSubscriber(t *testing.T) {
	b := New(10, testLogger())
	b.Publish(domain.InboundMessage{Content: "one"})
	b.Close()

	ch := b.Subscribe()
	if msg, ok := <-ch; !ok || msg.Content != "one" {
		t.Fatalf("first receive = %v, %v", msg, ok)
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after drain")
	}
}
