package gatehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestAuditDispatcherDeliversToSink(t *testing.T) {
	sink := NewChannelSink(16)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 16}, sink)
	defer d.Close()

	d.Emit(context.Background(), AuditEvent{EventType: auditLoginSuccess, UserID: "u1", Success: true})

	select {
	case event := <-sink.Events():
		if event.EventType != auditLoginSuccess || event.UserID != "u1" {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for audit event")
	}
}

func TestAuditDispatcherDrainsOnClose(t *testing.T) {
	sink := NewChannelSink(16)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: auditLogout})
	}
	d.Close()

	received := 0
	for {
		select {
		case <-sink.Events():
			received++
		default:
			if received != 5 {
				t.Fatalf("expected 5 drained events, got %d", received)
			}
			return
		}
	}
}

func TestAuditDispatcherDisabledIsNil(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, nil)
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	// Nil receivers are safe on every method.
	d.Emit(context.Background(), AuditEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("expected zero drops from nil dispatcher")
	}
}

func TestAuditEventsCarryInternalCause(t *testing.T) {
	cfg := testConfig()
	_, rdb := newTestRedis(t)
	store := newMemStore()
	sink := NewChannelSink(64)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(store).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	_, err = engine.Login(context.Background(), LoginRequest{Email: "ghost@example.com", Password: "whatever-pass"})
	if err == nil {
		t.Fatal("expected login failure")
	}

	select {
	case event := <-sink.Events():
		if event.EventType != auditLoginFailure {
			t.Fatalf("expected login failure event, got %s", event.EventType)
		}
		// The public error collapses the cause; the audit trail keeps it.
		if event.Error == "" {
			t.Fatal("expected internal cause on the audit event")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for audit event")
	}
}

func TestAuditEventsCarryTenant(t *testing.T) {
	cfg := testConfig()
	_, rdb := newTestRedis(t)
	store := newMemStore()
	sink := NewChannelSink(64)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(store).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()
	res, err := engine.Register(ctx, RegisterRequest{
		Email:    "alice@example.com",
		Password: "correct-horse",
		TenantID: "acme",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	user, err := store.FindByID(ctx, res.UserID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if user.TenantID != "acme" {
		t.Fatalf("expected tenant stored on the user, got %q", user.TenantID)
	}

	select {
	case event := <-sink.Events():
		if event.EventType != auditRegister {
			t.Fatalf("expected register event, got %s", event.EventType)
		}
		if event.TenantID != "acme" {
			t.Fatalf("expected tenant on the audit event, got %q", event.TenantID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for audit event")
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{EventType: auditRegister, UserID: "u1", Success: true})
	sink.Emit(context.Background(), AuditEvent{EventType: auditLogout, UserID: "u1", Success: true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var event AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &event); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if event.EventType != auditRegister {
		t.Fatalf("expected register event, got %s", event.EventType)
	}
}
