// Package memstore is an in-process object store for development and tests.
// Retrieval URLs are signed with an HS256 token carrying the object key and expiry,
// so they behave like presigned S3 URLs: time-bounded and useless for other keys.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSignature is returned when a retrieval token fails verification
var ErrInvalidSignature = errors.New("invalid or expired retrieval token")

type object struct {
	contentType string
	data        []byte
}

// Store keeps objects in memory and serves them through signed URLs
type Store struct {
	objects map[string]object
	baseURL string
	secret  []byte
	mu      sync.RWMutex
}

// New creates a store whose signed URLs point at baseURL (where Handler is mounted)
func New(baseURL string, secret []byte) *Store {
	return &Store{
		objects: make(map[string]object),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		secret:  secret,
	}
}

// Put stores a copy of data under key
func (s *Store) Put(ctx context.Context, key, contentType string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{contentType: contentType, data: buf}
	return nil
}

// PresignGet returns a URL that serves the object until ttl elapses
func (s *Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (*url.URL, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   key,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign retrieval token: %w", err)
	}

	return url.Parse(s.baseURL + "/" + url.PathEscape(key) + "?token=" + url.QueryEscape(token))
}

// Remove deletes key; missing keys are ignored
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// Get returns the stored bytes and content type for key
func (s *Store) Get(key string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, "", false
	}
	return obj.data, obj.contentType, true
}

// Len returns the number of stored objects
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Verify checks that token grants access to key
func (s *Store) Verify(key, token string) error {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return ErrInvalidSignature
	}
	if claims.Subject != key {
		return ErrInvalidSignature
	}
	return nil
}

// Handler serves GET /{key}?token=...
func (s *Store) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/{key}", s.handleGet)
	return r
}

func (s *Store) handleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	if err := s.Verify(key, r.URL.Query().Get("token")); err != nil {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	data, contentType, ok := s.Get(key)
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=60")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Printf("Failed to write media response: %v", err)
	}
}
