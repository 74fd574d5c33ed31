package tokenstore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/florianilch/socialauth/internal/tokenstore"
)

// newStores returns one instance of every backend, keyed by name.
func newStores(t *testing.T) map[string]tokenstore.TokenStore {
	t.Helper()

	keyring.MockInit()

	fileStore, err := tokenstore.NewFileStore(filepath.Join(t.TempDir(), "nested", "tokens.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	keyringStore, err := tokenstore.NewKeyringStore("socialauth-test", t.Name())
	if err != nil {
		t.Fatalf("NewKeyringStore: %v", err)
	}

	return map[string]tokenstore.TokenStore{
		"file":    fileStore,
		"keyring": keyringStore,
		"memory":  tokenstore.NewMemoryStore(),
	}
}

func TestStoreReadWriteDelete(t *testing.T) {
	ctx := context.Background()

	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Read(ctx, tokenstore.AccessToken); !errors.Is(err, tokenstore.ErrNotFound) {
				t.Fatalf("Read on empty store: got %v, want ErrNotFound", err)
			}

			if err := store.Write(ctx, tokenstore.AccessToken, "a1"); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if err := store.Write(ctx, tokenstore.RefreshToken, "r1"); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if err := store.Write(ctx, tokenstore.AccessToken, "a2"); err != nil {
				t.Fatalf("Write overwrite: %v", err)
			}

			got, err := store.Read(ctx, tokenstore.AccessToken)
			if err != nil || got != "a2" {
				t.Fatalf("Read access token = %q, %v; want a2", got, err)
			}
			got, err = store.Read(ctx, tokenstore.RefreshToken)
			if err != nil || got != "r1" {
				t.Fatalf("Read refresh token = %q, %v; want r1", got, err)
			}

			if err := store.Delete(ctx, tokenstore.AccessToken); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := store.Delete(ctx, tokenstore.AccessToken); err != nil {
				t.Fatalf("Delete of missing key: %v", err)
			}
			if _, err := store.Read(ctx, tokenstore.AccessToken); !errors.Is(err, tokenstore.ErrNotFound) {
				t.Fatalf("Read after Delete: got %v, want ErrNotFound", err)
			}
			if got, _ := store.Read(ctx, tokenstore.RefreshToken); got != "r1" {
				t.Fatalf("Delete removed unrelated key, refresh token = %q", got)
			}
		})
	}
}

func TestPairHelpers(t *testing.T) {
	ctx := context.Background()

	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			want := tokenstore.Pair{AccessToken: "a2", RefreshToken: "r2"}
			if err := tokenstore.WritePair(ctx, store, want); err != nil {
				t.Fatalf("WritePair: %v", err)
			}

			got, err := tokenstore.ReadPair(ctx, store)
			if err != nil {
				t.Fatalf("ReadPair: %v", err)
			}
			if got != want {
				t.Fatalf("ReadPair = %+v, want %+v", got, want)
			}

			if err := tokenstore.Clear(ctx, store); err != nil {
				t.Fatalf("Clear: %v", err)
			}
			got, err = tokenstore.ReadPair(ctx, store)
			if err != nil {
				t.Fatalf("ReadPair after Clear: %v", err)
			}
			if got != (tokenstore.Pair{}) {
				t.Fatalf("ReadPair after Clear = %+v, want empty", got)
			}
		})
	}
}

func TestWritePairRejectsPartialPair(t *testing.T) {
	store := tokenstore.NewMemoryStore()
	err := tokenstore.WritePair(context.Background(), store, tokenstore.Pair{AccessToken: "a1"})
	if err == nil {
		t.Fatal("expected error for pair without refresh token")
	}
	if _, err := store.Read(context.Background(), tokenstore.AccessToken); !errors.Is(err, tokenstore.ErrNotFound) {
		t.Fatalf("partial pair was written: %v", err)
	}
}

func TestFileStorePermissions(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")

	store, err := tokenstore.NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := store.Write(ctx, tokenstore.AccessToken, "a1"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Fatalf("file mode = %04o, want 0600", perm)
	}

	if err := os.Chmod(path, 0644); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	if _, err := store.Read(ctx, tokenstore.AccessToken); err == nil {
		t.Fatal("expected error for insecure permissions")
	}
}

func TestFileStoreRemovesEmptyDocument(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")

	store, err := tokenstore.NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := tokenstore.WritePair(ctx, store, tokenstore.Pair{AccessToken: "a1", RefreshToken: "r1"}); err != nil {
		t.Fatalf("WritePair: %v", err)
	}
	if err := tokenstore.Clear(ctx, store); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("token file still present after Clear: %v", err)
	}
}

func TestStoreHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Write(ctx, tokenstore.AccessToken, "a1"); !errors.Is(err, context.Canceled) {
				t.Fatalf("Write with canceled context: got %v", err)
			}
		})
	}
}
