// Package firestore provides a Firestore implementation of the
// gomonetize.Storage interface.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mihaimyh/gomonetize/pkg/gomonetize"
)

// Storage implements gomonetize.Storage using Google Cloud Firestore with one
// document per key.
type Storage struct {
	client     *firestore.Client
	collection string
}

// Config holds Firestore storage configuration.
type Config struct {
	// Collection is the Firestore collection holding the key-value documents.
	// Default: "monetize_kv".
	Collection string
}

// New creates a new Firestore storage adapter.
func New(client *firestore.Client, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client is required")
	}
	if config.Collection == "" {
		config.Collection = "monetize_kv"
	}

	return &Storage{client: client, collection: config.Collection}, nil
}

// Get implements gomonetize.Storage.
func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	snap, err := s.client.Collection(s.collection).Doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", gomonetize.ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to get key: %w", err)
	}
	if !snap.Exists() {
		return "", gomonetize.ErrKeyNotFound
	}

	value, ok := snap.Data()["value"].(string)
	if !ok {
		return "", gomonetize.ErrKeyNotFound
	}
	return value, nil
}

// Set implements gomonetize.Storage.
func (s *Storage) Set(ctx context.Context, key, value string) error {
	_, err := s.client.Collection(s.collection).Doc(key).Set(ctx, map[string]interface{}{
		"value":     value,
		"updatedAt": time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

// Delete implements gomonetize.Storage. Deleting an absent key is not an
// error: Firestore deletes are idempotent.
func (s *Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.Collection(s.collection).Doc(key).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}
