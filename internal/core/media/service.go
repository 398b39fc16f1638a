package media

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

type mediaService struct {
	store  ObjectStore
	logger *slog.Logger
	ttl    time.Duration
}

// NewService creates a media ingest service backed by the given object store.
// A zero ttl falls back to DefaultResolveTTL.
func NewService(store ObjectStore, ttl time.Duration, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultResolveTTL
	}
	return &mediaService{
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// Store uploads a payload under a freshly generated key.
// Flow:
// 1. Reject payloads of 5 MiB or more
// 2. Normalize the MIME type
// 3. Generate a 32-byte random key
// 4. Put to object storage
func (s *mediaService) Store(ctx context.Context, payload []byte, mimeType string) (*Object, error) {
	if err := ValidatePayload(payload); err != nil {
		return nil, err
	}

	mimeType = normalizeMimeType(mimeType)

	key, err := NewKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate media key: %w", err)
	}

	if err := s.store.Put(ctx, key, mimeType, payload); err != nil {
		s.logger.Error("media upload failed",
			"error", err,
			"mime_type", mimeType,
			"size", len(payload))
		return nil, &StorageError{Op: "put", Key: key, Err: err}
	}

	s.logger.Debug("media stored",
		"key", key,
		"mime_type", mimeType,
		"size", len(payload))

	return &Object{
		Key:       key,
		MimeType:  mimeType,
		SizeBytes: uint64(len(payload)),
	}, nil
}

// Resolve presigns a GET for the object, valid for the configured TTL
func (s *mediaService) Resolve(ctx context.Context, key string) (*Reference, error) {
	if !IsValidKey(key) {
		return nil, ErrInvalidKey
	}

	expiresAt := time.Now().Add(s.ttl)
	u, err := s.store.PresignGet(ctx, key, s.ttl)
	if err != nil {
		return nil, &StorageError{Op: "presign", Key: key, Err: err}
	}

	return &Reference{
		URL:       u.String(),
		ExpiresAt: expiresAt,
	}, nil
}

// Remove deletes the object; the backend contract makes this idempotent
func (s *mediaService) Remove(ctx context.Context, key string) error {
	if !IsValidKey(key) {
		return ErrInvalidKey
	}

	if err := s.store.Remove(ctx, key); err != nil {
		return &StorageError{Op: "remove", Key: key, Err: err}
	}

	s.logger.Debug("media removed", "key", key)
	return nil
}

// ValidatePayload applies the size gate without touching storage.
// The bound is exclusive: a payload of exactly MaxPayloadBytes is rejected.
func ValidatePayload(payload []byte) error {
	if len(payload) >= MaxPayloadBytes {
		return ErrPayloadTooLarge
	}
	return nil
}

// NewKey returns a hex-encoded key carrying KeyEntropyBytes of randomness
func NewKey() (string, error) {
	buf := make([]byte, KeyEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// IsValidKey reports whether key has the shape of a generated key
func IsValidKey(key string) bool {
	if len(key) != KeyEntropyBytes*2 {
		return false
	}
	_, err := hex.DecodeString(key)
	return err == nil
}

// normalizeMimeType converts non-standard MIME types to their standard equivalents
// Common case: many clients report image/jpg instead of image/jpeg
func normalizeMimeType(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	switch mimeType {
	case "":
		return defaultMimeType
	case "image/jpg":
		return "image/jpeg"
	default:
		return mimeType
	}
}
