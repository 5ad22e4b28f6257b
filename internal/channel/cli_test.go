package channel

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"relaybot/internal/domain"
)

type captureBus struct {
	published []domain.InboundMessage
	handlers  map[string]func(domain.OutboundMessage)
}

func newCaptureBus() *captureBus {
	return &captureBus{handlers: make(map[string]func(domain.OutboundMessage))}
}

func (b *captureBus) Publish(msg domain.InboundMessage) { b.published = append(b.published, msg) }

func (b *captureBus) Subscribe() <-chan domain.InboundMessage { return nil }

func (b *captureBus) SendOutbound(msg domain.OutboundMessage) {
	if h, ok := b.handlers[msg.Channel]; ok {
		h(msg)
	}
}

func (b *captureBus) OnOutbound(name string, h func(domain.OutboundMessage)) { b.handlers[name] = h }

func (b *captureBus) Close() {}

func TestCLIPublishesTextLines(t *testing.T) {
	in := strings.NewReader("hello bot\n/help\n/quit\n")
	var out bytes.Buffer
	cli := NewCLI(CLIConfig{Logger: testLogger(), In: in, Out: &out})
	bus := newCaptureBus()

	if err := cli.Start(context.Background(), bus); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if len(bus.published) != 2 {
		t.Fatalf("published = %d messages, want 2", len(bus.published))
	}
	if bus.published[0].Content != "hello bot" || bus.published[0].Kind != domain.KindText {
		t.Errorf("first message = %+v", bus.published[0])
	}
	if bus.published[1].Content != "/help" {
		t.Errorf("second message = %+v", bus.published[1])
	}
	if bus.published[0].Channel != "cli" || bus.published[0].ChatID != "direct" {
		t.Errorf("routing fields = %+v", bus.published[0])
	}
}

func TestCLISkipsBlankLines(t *testing.T) {
	in := strings.NewReader("\n   \nreal input\n")
	var out bytes.Buffer
	cli := NewCLI(CLIConfig{Logger: testLogger(), In: in, Out: &out})
	bus := newCaptureBus()

	if err := cli.Start(context.Background(), bus); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(bus.published) != 1 {
		t.Fatalf("published = %d, want 1", len(bus.published))
	}
}

func TestCLIPrintsOutbound(t *testing.T) {
	in := strings.NewReader("/quit\n")
	var out bytes.Buffer
	cli := NewCLI(CLIConfig{Logger: testLogger(), In: in, Out: &out})
	bus := newCaptureBus()

	if err := cli.Start(context.Background(), bus); err != nil {
		t.Fatalf("Start: %v", err)
	}
	bus.SendOutbound(domain.OutboundMessage{Channel: "cli", Content: "a reply"})

	if !strings.Contains(out.String(), "a reply") {
		t.Errorf("output missing reply: %q", out.String())
	}
}
