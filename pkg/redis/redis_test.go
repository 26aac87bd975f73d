package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/zoobzio/cellz"
)

type limits struct {
	Requests int `json:"requests"`
}

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("failed to get endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { client.Close() })

	if err := client.ConfigSet(ctx, "notify-keyspace-events", "KEA").Err(); err != nil {
		t.Fatalf("failed to enable keyspace notifications: %v", err)
	}
	return client
}

func receive(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case data := <-ch:
		return data
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for value")
		return nil
	}
}

func TestWatcher_EmitsInitialValue(t *testing.T) {
	client := setupRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	value := []byte(`{"requests": 10}`)
	if err := client.Set(ctx, "limits", value, 0).Err(); err != nil {
		t.Fatalf("failed to set initial value: %v", err)
	}

	ch, err := New(client, "limits").Watch(ctx)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if got := receive(t, ch); string(got) != string(value) {
		t.Errorf("expected %q, got %q", value, got)
	}
}

func TestWatcher_EmitsOnChange(t *testing.T) {
	client := setupRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ch, err := New(client, "limits").Watch(ctx)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	updated := []byte(`{"requests": 20}`)
	if err := client.Set(ctx, "limits", updated, 0).Err(); err != nil {
		t.Fatalf("failed to update value: %v", err)
	}

	if got := receive(t, ch); string(got) != string(updated) {
		t.Errorf("expected %q, got %q", updated, got)
	}
}

func TestWatcher_ClosesOnContextCancel(t *testing.T) {
	client := setupRedis(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := New(client, "limits").Watch(ctx)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for channel close")
	}
}

func TestWatcher_FeedsContainer(t *testing.T) {
	client := setupRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Set(ctx, "limits", `{"requests": 5}`, 0).Err(); err != nil {
		t.Fatalf("failed to set initial value: %v", err)
	}

	target := cellz.New(cellz.Value(limits{}))
	defer target.Dispose()

	feed := cellz.NewFeed(New(client, "limits"), target)
	if err := feed.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if target.Get().Requests != 5 {
		t.Fatalf("expected 5, got %d", target.Get().Requests)
	}

	if err := client.Set(ctx, "limits", `{"requests": 8}`, 0).Err(); err != nil {
		t.Fatalf("failed to update value: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for target.Get().Requests != 8 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 8, got %d", target.Get().Requests)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSaveLoad(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	h := cellz.Hydrate(nil)
	c := cellz.New(cellz.Value(limits{Requests: 3}), cellz.WithHydration[limits](h.Of("limits")))
	defer c.Dispose()

	if err := Save(ctx, client, "snapshot", h, cellz.JSONCodec{}, time.Minute); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	snap, err := Load(ctx, client, "snapshot", cellz.JSONCodec{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	restored := cellz.New(cellz.Value(limits{}), cellz.WithHydration[limits](cellz.Hydrate(snap).Of("limits")))
	defer restored.Dispose()
	if restored.Get().Requests != 3 {
		t.Errorf("expected 3, got %d", restored.Get().Requests)
	}
}

func TestLoad_Missing(t *testing.T) {
	client := setupRedis(t)

	snap, err := Load(context.Background(), client, "absent", cellz.JSONCodec{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(snap) != 0 {
		t.Errorf("expected empty snapshot, got %v", snap)
	}
}

func TestPersist(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	h := cellz.Hydrate(nil)
	c := cellz.New(cellz.Value(limits{Requests: 1}), cellz.WithHydration[limits](h.Of("limits")))
	defer c.Dispose()

	var saveErr error
	stop := Persist(ctx, client, "snapshot", h, cellz.JSONCodec{}, func(err error) { saveErr = err })
	defer stop()

	c.Set(cellz.Value(limits{Requests: 4}))
	if saveErr != nil {
		t.Fatalf("save failed: %v", saveErr)
	}

	snap, err := Load(ctx, client, "snapshot", cellz.JSONCodec{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	restored := cellz.New(cellz.Value(limits{}), cellz.WithHydration[limits](cellz.Hydrate(snap).Of("limits")))
	defer restored.Dispose()
	if restored.Get().Requests != 4 {
		t.Errorf("expected 4, got %d", restored.Get().Requests)
	}
}
