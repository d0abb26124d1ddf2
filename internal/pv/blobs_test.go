package pv_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"pagevault/internal/blob"
	"pagevault/internal/pv"
)

func TestBlobs_StoreIsIdempotent(t *testing.T) {
	backend := blob.NewMemoryStore()
	b := pv.NewBlobs(backend, pv.NewNopLogger())
	ctx := context.Background()

	h1, err := b.Store(ctx, []byte("hello"))
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	h2, err := b.Store(ctx, []byte("hello"))
	if err != nil {
		t.Fatalf("second Store() error = %v", err)
	}

	if h1 != h2 {
		t.Errorf("hashes differ: %s vs %s", h1, h2)
	}
	if backend.Len() != 1 {
		t.Errorf("backend holds %d blobs, want 1", backend.Len())
	}
	// SHA-256("hello")
	if want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"; h1 != want {
		t.Errorf("Store() = %s, want %s", h1, want)
	}
}

func TestBlobs_RoundTrip(t *testing.T) {
	b := pv.NewBlobs(blob.NewMemoryStore(), pv.NewNopLogger())
	ctx := context.Background()

	inputs := [][]byte{
		{},
		[]byte("plain text"),
		[]byte("héllo wörld"),
		{0x00, 0xff, 0x10, 0x00},
		bytes.Repeat([]byte("x"), 1<<16),
	}
	for _, in := range inputs {
		h, err := b.Store(ctx, in)
		if err != nil {
			t.Fatalf("Store() error = %v", err)
		}
		out, err := b.Load(ctx, h)
		if err != nil {
			t.Fatalf("Load(%s) error = %v", h, err)
		}
		if !bytes.Equal(out, in) {
			t.Errorf("Load(Store(x)) != x for %d bytes", len(in))
		}
	}
}

func TestBlobs_LoadMissing(t *testing.T) {
	b := pv.NewBlobs(blob.NewMemoryStore(), pv.NewNopLogger())

	tests := []struct {
		name string
		hash string
	}{
		{name: "well-formed but absent", hash: pv.Hash([]byte("never stored"))},
		{name: "too short", hash: "abc"},
		{name: "uppercase hex", hash: strings.ToUpper(pv.Hash([]byte("x")))},
		{name: "path traversal", hash: "../../etc/passwd"},
		{name: "empty", hash: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Load(context.Background(), tt.hash)
			if !errors.Is(err, pv.ErrNotFound) {
				t.Errorf("Load(%q) error = %v, want ErrNotFound", tt.hash, err)
			}
		})
	}
}

func TestValidHash(t *testing.T) {
	if !pv.ValidHash(pv.Hash([]byte("x"))) {
		t.Error("ValidHash(Hash(x)) = false")
	}
	for _, h := range []string{"", "zz", strings.Repeat("g", 64), strings.Repeat("a", 63)} {
		if pv.ValidHash(h) {
			t.Errorf("ValidHash(%q) = true, want false", h)
		}
	}
}
