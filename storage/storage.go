// Package storage persists scrape results: channels, their contact details
// and scrape state in a JSON or SQLite store, and harvested links as one
// JSON file per channel.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common storage conditions.
var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("storage: not found")
	// ErrAlreadyExists indicates the entity already exists in storage.
	ErrAlreadyExists = errors.New("storage: already exists")
	// ErrInvalidInput indicates invalid or malformed input was provided.
	ErrInvalidInput = errors.New("storage: invalid input")
	// ErrStorageCorrupt indicates data corruption was detected.
	ErrStorageCorrupt = errors.New("storage: data corruption detected")
	// ErrLockTimeout indicates a timeout acquiring a file lock.
	ErrLockTimeout = errors.New("storage: lock acquisition timeout")
)

// StorageError wraps storage errors with operation and entity context.
//
//	var serr *storage.StorageError
//	if errors.As(err, &serr) {
//		fmt.Printf("failed to %s %s %s: %v\n", serr.Op, serr.Entity, serr.ID, serr.Err)
//	}
type StorageError struct {
	// Op is the operation that failed ("create", "read", "update", "write", ...).
	Op string
	// Entity is the entity type ("channel", "details", "links", ...).
	Entity string
	// ID is the entity ID if applicable.
	ID  string
	Err error
}

func (e *StorageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("storage: %s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Store persists everything except harvested links.
// Implementations must be safe for concurrent use.
type Store interface {
	ChannelStore
	DetailsStore
	SyncStateStore

	// Close releases any resources held by the store.
	Close() error
}

// ChannelStore handles channel records.
type ChannelStore interface {
	// CreateChannel saves a new channel, assigning an ID when empty.
	CreateChannel(ctx context.Context, channel *Channel) error
	GetChannel(ctx context.Context, id string) (*Channel, error)
	// GetChannelByKey looks a channel up by its canonical key.
	GetChannelByKey(ctx context.Context, key string) (*Channel, error)
	UpdateChannel(ctx context.Context, channel *Channel) error
	DeleteChannel(ctx context.Context, id string) error
	ListChannels(ctx context.Context) ([]*Channel, error)
}

// DetailsStore holds the latest contact details per channel.
type DetailsStore interface {
	// SaveDetails replaces the stored details for details.ChannelID.
	SaveDetails(ctx context.Context, details *ContactDetails) error
	GetDetails(ctx context.Context, channelID string) (*ContactDetails, error)
}

// SyncStateStore tracks scrape progress per channel.
type SyncStateStore interface {
	// GetSyncState returns the state for a channel, or a fresh idle state
	// when none was recorded.
	GetSyncState(ctx context.Context, channelID string) (*SyncState, error)
	UpdateSyncState(ctx context.Context, state *SyncState) error
}

// LinkWriter persists a channel's harvested links.
type LinkWriter interface {
	// WriteLinks replaces the links stored under key and returns where they went.
	WriteLinks(key string, links []string) (string, error)
}

// GetOrCreateChannel returns the channel stored under c.Key, creating it
// from c when absent.
func GetOrCreateChannel(ctx context.Context, s ChannelStore, c *Channel) (*Channel, error) {
	existing, err := s.GetChannelByKey(ctx, c.Key)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err := s.CreateChannel(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}
