package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/platecost-backend/pkg/config"
	"github.com/redis/go-redis/v9"
)

func TestGuardLifecycle(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := client.ImportConfirmKey("org-1", "import-1")

	ok, err := client.AcquireGuard(ctx, key, "req-a", time.Minute)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected first acquire to succeed")
	}

	ok, err = client.AcquireGuard(ctx, key, "req-b", time.Minute)
	if err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}
	if ok {
		t.Fatalf("expected second acquire to be rejected")
	}

	if err := client.ReleaseGuard(ctx, key, "req-b"); err != nil {
		t.Fatalf("foreign release failed: %v", err)
	}
	if _, err := client.Get(ctx, key); err != nil {
		t.Fatalf("foreign owner must not release the guard: %v", err)
	}

	if err := client.ReleaseGuard(ctx, key, "req-a"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if _, err := client.Get(ctx, key); !IsNil(err) {
		t.Fatalf("expected redis.Nil after release, got %v", err)
	}
	if err := client.ReleaseGuard(ctx, key, "req-a"); err != nil {
		t.Fatalf("releasing a missing guard should be a no-op: %v", err)
	}
}

func TestReleaseGuardIsSingleCompareAndDelete(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := client.ImportConfirmKey("org-1", "import-1")

	// req-a's guard expired and req-b now holds it
	ok, err := client.AcquireGuard(ctx, key, "req-b", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire failed: ok=%v err=%v", ok, err)
	}
	if err := client.ReleaseGuard(ctx, key, "req-a"); err != nil {
		t.Fatalf("stale release failed: %v", err)
	}
	if got, err := client.Get(ctx, key); err != nil || got != "req-b" {
		t.Fatalf("stale owner removed the new guard: got=%q err=%v", got, err)
	}
	if mock.evals != 1 || mock.evalShas != 0 {
		t.Fatalf("expected EVAL fallback on first run, got evals=%d evalshas=%d", mock.evals, mock.evalShas)
	}

	if err := client.ReleaseGuard(ctx, key, "req-b"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if _, err := client.Get(ctx, key); !IsNil(err) {
		t.Fatalf("expected guard released, got %v", err)
	}
	if mock.evalShas != 1 {
		t.Fatalf("expected cached script to run via EVALSHA, got %d", mock.evalShas)
	}

	if err := (&Client{}).ReleaseGuard(ctx, key, "req-b"); err == nil {
		t.Fatalf("expected error from uninitialized client")
	}
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}
	key := client.LockedReportKey("org", "menu", "snap")

	if err := client.Set(ctx, key, `{"menu_cost_per_pax_minor":1245}`, time.Hour); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, err := client.Get(ctx, key)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != `{"menu_cost_per_pax_minor":1245}` {
		t.Fatalf("unexpected cached value %s", got)
	}
	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, key); !IsNil(err) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatalf("expected error from uninitialized client")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close without raw client should be a no-op: %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.LockedReportKey("org", "menu", "snap"); got != "pc:locked_report:org:menu:snap" {
		t.Fatalf("unexpected report key %s", got)
	}
	if got := client.IdempotencyKey("scope", "key-1"); got != "pc:idempotency:scope:key-1" {
		t.Fatalf("unexpected idempotency key %q", got)
	}
	if got := client.ImportConfirmKey("org", "imp"); got != "pc:import_confirm:org:imp" {
		t.Fatalf("unexpected confirm key %s", got)
	}
	if got := client.buildKey("a", "", " b "); got != "pc:a:b" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatalf("expected error without url or address")
	}

	opts, err := optionsFromConfig(config.RedisConfig{
		Address:  "localhost:6379",
		DB:       2,
		PoolSize: 7,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.DB != 2 || opts.PoolSize != 7 {
		t.Fatalf("unexpected options %+v", opts)
	}

	opts, err = optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6380/3", PoolSize: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "localhost:6380" || opts.DB != 3 || opts.PoolSize != 4 {
		t.Fatalf("unexpected url options %+v", opts)
	}
}

type mockCmdable struct {
	data         map[string]string
	scriptLoaded bool
	evals        int
	evalShas     int
}

type noScriptError struct{}

func (noScriptError) Error() string { return "NOSCRIPT No matching script. Please use EVAL." }
func (noScriptError) RedisError()   {}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string)}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

// compareAndDelete mirrors releaseGuardScript.
func (m *mockCmdable) compareAndDelete(keys []string, args []any) *redis.Cmd {
	if len(keys) != 1 || len(args) != 1 {
		return redis.NewCmdResult(nil, fmt.Errorf("unexpected script call keys=%v args=%v", keys, args))
	}
	if current, ok := m.data[keys[0]]; ok && current == fmt.Sprint(args[0]) {
		delete(m.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (m *mockCmdable) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	m.evals++
	m.scriptLoaded = true
	return m.compareAndDelete(keys, args)
}

func (m *mockCmdable) EvalSha(ctx context.Context, sha1 string, keys []string, args ...any) *redis.Cmd {
	if !m.scriptLoaded || sha1 != releaseGuardScript.Hash() {
		return redis.NewCmdResult(nil, noScriptError{})
	}
	m.evalShas++
	return m.compareAndDelete(keys, args)
}

func (m *mockCmdable) EvalRO(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return m.Eval(ctx, script, keys, args...)
}

func (m *mockCmdable) EvalShaRO(ctx context.Context, sha1 string, keys []string, args ...any) *redis.Cmd {
	return m.EvalSha(ctx, sha1, keys, args...)
}

func (m *mockCmdable) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
	out := make([]bool, len(hashes))
	for i := range hashes {
		out[i] = m.scriptLoaded
	}
	return redis.NewBoolSliceResult(out, nil)
}

func (m *mockCmdable) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
	m.scriptLoaded = true
	return redis.NewStringResult(releaseGuardScript.Hash(), nil)
}
