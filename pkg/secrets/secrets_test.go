package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEnvProvider_GetSecret(t *testing.T) {
	t.Setenv("ERASURE_SECRET_ELITE2_TOKEN", "abc123")

	p := NewEnvProvider("")
	if got := p.EnvVar("elite2-token"); got != "ERASURE_SECRET_ELITE2_TOKEN" {
		t.Errorf("EnvVar() = %s", got)
	}

	value, err := p.GetSecret(context.Background(), "elite2-token")
	if err != nil {
		t.Fatalf("GetSecret() error = %v", err)
	}
	if value != "abc123" {
		t.Errorf("GetSecret() = %q, want abc123", value)
	}

	if _, err := p.GetSecret(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSecret(missing) error = %v, want ErrNotFound", err)
	}
}

func writeSecret(t *testing.T, dir, name, value string, mode os.FileMode) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(value), mode); err != nil {
		t.Fatal(err)
	}
}

func TestFileProvider_GetSecret(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "elite2-token", "token-value\n", 0600)
	writeSecret(t, dir, "insecure", "value", 0644)

	p, err := NewFileProvider(dir, false)
	if err != nil {
		t.Fatalf("NewFileProvider() error = %v", err)
	}
	defer p.Close()

	tests := []struct {
		name     string
		secret   string
		want     string
		wantErr  bool
		notFound bool
	}{
		{name: "trims whitespace", secret: "elite2-token", want: "token-value"},
		{name: "missing file", secret: "nope", wantErr: true, notFound: true},
		{name: "insecure permissions", secret: "insecure", wantErr: true},
		{name: "directory traversal", secret: "../etc/passwd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.GetSecret(context.Background(), tt.secret)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetSecret() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.notFound && !errors.Is(err, ErrNotFound) {
				t.Errorf("GetSecret() error = %v, want ErrNotFound", err)
			}
			if got != tt.want {
				t.Errorf("GetSecret() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewFileProvider_NotDirectory(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "file", "x", 0600)

	if _, err := NewFileProvider(filepath.Join(dir, "file"), false); err == nil {
		t.Error("expected error for non-directory path")
	}
	if _, err := NewFileProvider(filepath.Join(dir, "missing"), false); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestFileProvider_WatchRotation(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "elite2-token", "old", 0600)

	p, err := NewFileProvider(dir, true)
	if err != nil {
		t.Fatalf("NewFileProvider() error = %v", err)
	}
	defer p.Close()

	m := NewManager([]Provider{p}, CacheConfig{Enabled: true, TTL: time.Hour})
	ctx := context.Background()

	if v, _ := m.GetSecret(ctx, "elite2-token"); v != "old" {
		t.Fatalf("GetSecret() = %q, want old", v)
	}

	writeSecret(t, dir, "elite2-token", "new", 0600)

	deadline := time.Now().Add(2 * time.Second)
	for {
		v, err := m.GetSecret(ctx, "elite2-token")
		if err == nil && v == "new" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("rotated secret not picked up, got %q (err %v)", v, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

type stubProvider struct {
	name   string
	values map[string]string
	calls  int
}

func (s *stubProvider) GetSecret(ctx context.Context, name string) (string, error) {
	s.calls++
	if v, ok := s.values[name]; ok {
		return v, nil
	}
	return "", ErrNotFound
}

func (s *stubProvider) Name() string { return s.name }

func TestManager_GetSecret(t *testing.T) {
	first := &stubProvider{name: "first", values: map[string]string{"a": "from-first"}}
	second := &stubProvider{name: "second", values: map[string]string{"a": "from-second", "b": "only-second"}}
	m := NewManager([]Provider{first, second}, CacheConfig{Enabled: true, TTL: time.Minute})
	ctx := context.Background()

	if v, _ := m.GetSecret(ctx, "a"); v != "from-first" {
		t.Errorf("GetSecret(a) = %q, want from-first", v)
	}
	if v, _ := m.GetSecret(ctx, "b"); v != "only-second" {
		t.Errorf("GetSecret(b) = %q, want only-second", v)
	}

	calls := first.calls
	if _, err := m.GetSecret(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if first.calls != calls {
		t.Error("cached secret fetched from provider again")
	}

	if _, err := m.GetSecret(ctx, "c"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSecret(c) error = %v, want ErrNotFound", err)
	}

	if err := m.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if _, err := m.GetSecret(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if first.calls != calls+2 {
		t.Errorf("provider calls = %d, want %d after refresh", first.calls, calls+2)
	}
}

func TestManager_TokenSource(t *testing.T) {
	m := NewManager([]Provider{&stubProvider{name: "s", values: map[string]string{"tok": "v"}}}, CacheConfig{})
	token, err := m.TokenSource("tok")(context.Background())
	if err != nil || token != "v" {
		t.Errorf("TokenSource() = (%q, %v), want v", token, err)
	}
}

func TestCache_Expiry(t *testing.T) {
	now := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache(CacheConfig{Enabled: true, TTL: time.Minute})
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Errorf("Get() = (%q, %v), want v", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Error("expired entry returned")
	}

	disabled := NewCache(CacheConfig{})
	disabled.Set("k", "v")
	if _, ok := disabled.Get("k"); ok {
		t.Error("disabled cache returned a value")
	}
}
