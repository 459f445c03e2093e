package credential

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/keynotify/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := b.Get(ctx, "authToken"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}
	if err := b.Set(ctx, "authToken", "abc"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	v, ok, err := b.Get(ctx, "authToken")
	if err != nil || !ok || v != "abc" {
		t.Fatalf("expected abc, got %q ok=%v err=%v", v, ok, err)
	}
	if err := b.Set(ctx, "authToken", "def"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	if v, _, _ := b.Get(ctx, "authToken"); v != "def" {
		t.Fatalf("expected def after overwrite, got %q", v)
	}
	if err := b.Delete(ctx, "authToken"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := b.Delete(ctx, "authToken"); err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
	if _, ok, _ := b.Get(ctx, "authToken"); ok {
		t.Fatal("expected key removed")
	}
}

func TestMemoryBackend(t *testing.T) {
	exerciseBackend(t, NewMemoryBackend())
}

func TestFileBackendPlain(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "kn")
	b, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("NewFileBackend failed: %v", err)
	}
	exerciseBackend(t, b)
}

func TestFileBackendPermissions(t *testing.T) {
	dir := t.TempDir()
	b, _ := NewFileBackend(dir)
	if err := b.Set(context.Background(), "authToken", "abc"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, ".authToken"))
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600, got %o", perm)
	}
}

func TestFileBackendSealed(t *testing.T) {
	dir := t.TempDir()
	b, _ := NewFileBackend(dir, WithPassphrase("correct horse"))
	exerciseBackend(t, b)

	ctx := context.Background()
	if err := b.Set(ctx, "authToken", "secret-token"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, ".authToken"))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if strings.Contains(string(raw), "secret-token") {
		t.Fatal("sealed file must not contain the plaintext token")
	}

	wrong, _ := NewFileBackend(dir, WithPassphrase("battery staple"))
	if _, _, err := wrong.Get(ctx, "authToken"); !errors.Is(err, ErrSealedTokenInvalid) {
		t.Fatalf("expected ErrSealedTokenInvalid, got %v", err)
	}

	none, _ := NewFileBackend(dir)
	if _, _, err := none.Get(ctx, "authToken"); !errors.Is(err, ErrSealedTokenInvalid) {
		t.Fatalf("expected ErrSealedTokenInvalid without passphrase, got %v", err)
	}
}

func TestFileBackendResealsWeakParameters(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	weak := password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	tokenFile := filepath.Join(dir, ".authToken")

	old, err := NewFileBackend(dir, WithPassphrase("correct horse"), WithKDFConfig(weak))
	if err != nil {
		t.Fatalf("NewFileBackend failed: %v", err)
	}
	if err := old.Set(ctx, "authToken", "tok"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	before, _ := os.ReadFile(tokenFile)

	current, _ := NewFileBackend(dir, WithPassphrase("correct horse"))
	v, ok, err := current.Get(ctx, "authToken")
	if err != nil || !ok || v != "tok" {
		t.Fatalf("expected tok, got %q ok=%v err=%v", v, ok, err)
	}
	if after, _ := os.ReadFile(tokenFile); !bytes.Equal(before, after) {
		t.Fatal("Get must not rewrite the token file")
	}

	done, err := current.Reseal(ctx, "authToken")
	if err != nil || !done {
		t.Fatalf("expected reseal, got %v %v", done, err)
	}
	raw, err := os.ReadFile(tokenFile)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.Contains(string(raw), "m=65536") {
		t.Fatal("expected the value to be sealed again with current parameters")
	}
	if v, _, err := current.Get(ctx, "authToken"); err != nil || v != "tok" {
		t.Fatalf("expected resealed value readable, got %q %v", v, err)
	}
	if done, err := current.Reseal(ctx, "authToken"); err != nil || done {
		t.Fatalf("expected current parameters to be left alone, got %v %v", done, err)
	}
}

func TestFileBackendResealWithoutPassphraseIsNoop(t *testing.T) {
	b, _ := NewFileBackend(t.TempDir())
	ctx := context.Background()
	_ = b.Set(ctx, "authToken", "tok")
	if done, err := b.Reseal(ctx, "authToken"); err != nil || done {
		t.Fatalf("expected no reseal without a passphrase, got %v %v", done, err)
	}
}

func TestFileBackendRejectsOversizedHeader(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	b, _ := NewFileBackend(dir, WithPassphrase("correct horse"))

	header := "$argon2id$v=19$m=4294967295,t=1,p=1,l=32$AAAAAAAAAAAAAAAAAAAAAA"
	data := append([]byte("kn2"), byte(len(header)>>8), byte(len(header)))
	data = append(data, header...)
	data = append(data, make([]byte, 24+32)...)
	if err := os.WriteFile(filepath.Join(dir, ".authToken"), data, 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if _, _, err := b.Get(ctx, "authToken"); !errors.Is(err, ErrSealedTokenInvalid) {
		t.Fatalf("expected ErrSealedTokenInvalid, got %v", err)
	}
}

func TestNewFileBackendRejectsWeakKDF(t *testing.T) {
	if _, err := NewFileBackend(t.TempDir(), WithKDFConfig(password.Config{Memory: 1})); err == nil {
		t.Fatal("expected invalid kdf config to be rejected")
	}
}

func TestNewFileBackendRequiresCipherKeyLength(t *testing.T) {
	cfg := password.DefaultConfig()
	cfg.KeyLength = 16
	if _, err := NewFileBackend(t.TempDir(), WithKDFConfig(cfg)); err == nil {
		t.Fatal("expected a 16 byte key length to be rejected")
	}
}

func TestFileBackendRejectsPathKeys(t *testing.T) {
	b, _ := NewFileBackend(t.TempDir())
	for _, key := range []string{"", "../x", "a/b", ".."} {
		if err := b.Set(context.Background(), key, "v"); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}

func TestNewFileBackendRequiresDir(t *testing.T) {
	if _, err := NewFileBackend("  "); err == nil {
		t.Fatal("expected error for blank dir")
	}
}

func TestRedisBackend(t *testing.T) {
	_, rdb := newTestRedis(t)
	exerciseBackend(t, NewRedisBackend(rdb, "test", 0))
}

func TestRedisBackendTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	b := NewRedisBackend(rdb, "", time.Minute)
	ctx := context.Background()

	if err := b.Set(ctx, "authToken", "abc"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !mr.Exists("kn:cred:authToken") {
		t.Fatal("expected default prefix key")
	}
	mr.FastForward(2 * time.Minute)
	if _, ok, _ := b.Get(ctx, "authToken"); ok {
		t.Fatal("expected key to expire")
	}
}

func TestRedisBackendUnavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	b := NewRedisBackend(rdb, "test", 0)
	mr.Close()

	if _, _, err := b.Get(context.Background(), "authToken"); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestSlotOverRedisAndMemory(t *testing.T) {
	_, rdb := newTestRedis(t)
	durable := NewRedisBackend(rdb, "test", 0)
	slot := NewSlot(durable, NewMemoryBackend())
	ctx := context.Background()

	if err := slot.Write(ctx, TierDurable, "abc"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	token, tier, err := slot.Read(ctx)
	if err != nil || token != "abc" || tier != TierDurable {
		t.Fatalf("unexpected read: %q %s %v", token, tier, err)
	}
}
