package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"pagevault/internal/pv"
)

// UnlockFunc returns the decryption context for a session. It is called at
// most once, on the first read.
type UnlockFunc func() (pv.DecryptionContext, error)

// EncryptedStore encrypts blobs before handing them to an inner store and
// decrypts them on the way out. Checksums always refer to the plaintext, so
// deduplication is unaffected by encryption.
type EncryptedStore struct {
	inner     pv.BlobStore
	encryptor pv.Encryptor
	unlock    UnlockFunc

	mu  sync.Mutex
	dec pv.DecryptionContext
}

// NewEncryptedStore wraps inner. Writing needs only the public key; unlock
// is deferred until content is read.
func NewEncryptedStore(inner pv.BlobStore, encryptor pv.Encryptor, unlock UnlockFunc) *EncryptedStore {
	return &EncryptedStore{inner: inner, encryptor: encryptor, unlock: unlock}
}

func (s *EncryptedStore) Put(ctx context.Context, checksum string, r io.Reader, size int64) error {
	var plain bytes.Buffer
	n, err := io.Copy(&plain, r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	if n != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, n)
	}

	var sealed bytes.Buffer
	if err := s.encryptor.Encrypt(&plain, &sealed); err != nil {
		return fmt.Errorf("encrypting blob: %w", err)
	}
	return s.inner.Put(ctx, checksum, &sealed, int64(sealed.Len()))
}

func (s *EncryptedStore) Get(ctx context.Context, checksum string, w io.Writer) error {
	var sealed bytes.Buffer
	if err := s.inner.Get(ctx, checksum, &sealed); err != nil {
		return err
	}

	dec, err := s.decryptor()
	if err != nil {
		return err
	}
	if err := dec.Decrypt(&sealed, w); err != nil {
		return pv.NewStorageError("decrypting blob", err)
	}
	return nil
}

func (s *EncryptedStore) Has(ctx context.Context, checksum string) (bool, error) {
	return s.inner.Has(ctx, checksum)
}

func (s *EncryptedStore) ValidateSetup(ctx context.Context) error {
	if !s.encryptor.IsConfigured() {
		return fmt.Errorf("encryption keys are not configured")
	}
	return s.inner.ValidateSetup(ctx)
}

func (s *EncryptedStore) decryptor() (pv.DecryptionContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dec != nil {
		return s.dec, nil
	}
	if s.unlock == nil {
		return nil, fmt.Errorf("no unlock function configured for encrypted blobs")
	}
	dec, err := s.unlock()
	if err != nil {
		return nil, fmt.Errorf("unlocking private key: %w", err)
	}
	s.dec = dec
	return dec, nil
}

var _ pv.BlobStore = (*EncryptedStore)(nil)
