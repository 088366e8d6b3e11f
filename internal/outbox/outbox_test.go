package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/redis/go-redis/v9"
)

func newRedisOutbox(t *testing.T, config RedisConfig) (Outbox, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedis(client, config), mr
}

func checkFIFO(t *testing.T, box Outbox, texts []string) bool {
	ctx := context.Background()

	for _, s := range texts {
		if err := box.Push(ctx, 42, Text(s)); err != nil {
			t.Logf("FAIL: Push: %v", err)
			return false
		}
	}
	_ = box.Push(ctx, 7, Text("other user"))

	msgs, err := box.Drain(ctx, 42)
	if err != nil {
		t.Logf("FAIL: Drain: %v", err)
		return false
	}
	if len(msgs) != len(texts) {
		t.Logf("FAIL: expected %d messages, got %d", len(texts), len(msgs))
		return false
	}
	for i := range texts {
		if msgs[i].Text != texts[i] {
			return false
		}
	}

	again, _ := box.Drain(ctx, 42)
	if len(again) != 0 {
		t.Logf("FAIL: drain should empty the mailbox")
		return false
	}

	other, _ := box.Drain(ctx, 7)
	return len(other) == 1 && other[0].Text == "other user"
}

func TestProperty_MemoryOutboxIsFIFO(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("messages drain in push order, once", prop.ForAll(
		func(texts []string) bool {
			return checkFIFO(t, NewMemory(), texts)
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_RedisOutboxIsFIFO(t *testing.T) {
	box, mr := newRedisOutbox(t, RedisConfig{})
	properties := gopter.NewProperties(nil)

	properties.Property("messages drain in push order, once", prop.ForAll(
		func(texts []string) bool {
			mr.FlushAll()
			return checkFIFO(t, box, texts)
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRedisOutbox_KeysAndTTL(t *testing.T) {
	box, mr := newRedisOutbox(t, RedisConfig{KeyPrefix: "bot_outbox", TTL: time.Hour})
	ctx := context.Background()

	if err := box.Push(ctx, 5, Image("nft_assets/abc_nft.png")); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	if !mr.Exists("bot_outbox:5") {
		t.Fatal("expected list bot_outbox:5")
	}
	if ttl := mr.TTL("bot_outbox:5"); ttl != time.Hour {
		t.Errorf("expected 1h TTL, got %v", ttl)
	}

	msgs, err := box.Drain(ctx, 5)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ImagePath != "nft_assets/abc_nft.png" || msgs[0].Text != "" {
		t.Errorf("unexpected messages %+v", msgs)
	}
	if mr.Exists("bot_outbox:5") {
		t.Error("drain should delete the list")
	}
}

func TestRedisOutbox_UnavailableRedis(t *testing.T) {
	box, mr := newRedisOutbox(t, RedisConfig{})
	mr.Close()

	if err := box.Push(context.Background(), 1, Text("hi")); err == nil {
		t.Error("expected push error when redis is down")
	}
	if _, err := box.Drain(context.Background(), 1); err == nil {
		t.Error("expected drain error when redis is down")
	}
}

func TestMemoryOutbox_EmptyDrain(t *testing.T) {
	msgs, err := NewMemory().Drain(context.Background(), 1)
	if err != nil || msgs == nil || len(msgs) != 0 {
		t.Errorf("expected empty non-nil slice, got %v %v", msgs, err)
	}
}
