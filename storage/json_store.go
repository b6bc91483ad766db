package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	schemaVersion = "1.0"
	lockTimeout   = 5 * time.Second
)

// JSONStore implements Store using a single JSON file held in memory and
// rewritten atomically on every change.
type JSONStore struct {
	path string
	lock *FileLock
	data *storeData
	mu   sync.RWMutex
}

var _ Store = (*JSONStore)(nil)

type storeData struct {
	Version    string                     `json:"version"`
	UpdatedAt  time.Time                  `json:"updated_at"`
	Channels   map[string]*Channel        `json:"channels"`
	Details    map[string]*ContactDetails `json:"details"`
	SyncStates map[string]*SyncState      `json:"sync_states"`
	// ByKey maps channel key to internal ID.
	ByKey map[string]string `json:"by_key"`
}

// NewJSONStore opens the store at path, creating it when missing. The file
// stays locked against other processes until Close.
func NewJSONStore(path string) (*JSONStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, &StorageError{Op: "open", Entity: "store", ID: path, Err: err}
		}
	}
	s := &JSONStore{
		path: path,
		lock: NewFileLock(path),
	}

	if err := s.lock.Lock(lockTimeout); err != nil {
		return nil, err
	}
	if err := s.load(); err != nil {
		s.lock.Unlock()
		return nil, err
	}
	return s, nil
}

func (s *JSONStore) load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.data = newStoreData()
			// Save immediately to catch permission errors early
			return s.save()
		}
		return &StorageError{Op: "read", Entity: "store", Err: err}
	}

	d := newStoreData()
	if err := json.Unmarshal(raw, d); err != nil {
		return &StorageError{Op: "read", Entity: "store", Err: ErrStorageCorrupt}
	}
	if d.Channels == nil {
		d.Channels = make(map[string]*Channel)
	}
	if d.Details == nil {
		d.Details = make(map[string]*ContactDetails)
	}
	if d.SyncStates == nil {
		d.SyncStates = make(map[string]*SyncState)
	}
	if d.ByKey == nil {
		d.ByKey = make(map[string]string)
		for id, ch := range d.Channels {
			d.ByKey[ch.Key] = id
		}
	}
	s.data = d
	return nil
}

func (s *JSONStore) save() error {
	s.data.UpdatedAt = time.Now()
	if err := writeJSONAtomic(s.path, s.data); err != nil {
		return &StorageError{Op: "write", Entity: "store", Err: err}
	}
	return nil
}

// Close releases the file lock.
func (s *JSONStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lock.Unlock()
}

func newStoreData() *storeData {
	return &storeData{
		Version:    schemaVersion,
		UpdatedAt:  time.Now(),
		Channels:   make(map[string]*Channel),
		Details:    make(map[string]*ContactDetails),
		SyncStates: make(map[string]*SyncState),
		ByKey:      make(map[string]string),
	}
}

// --- ChannelStore implementation ---

func (s *JSONStore) CreateChannel(ctx context.Context, channel *Channel) error {
	if channel.Key == "" {
		return &StorageError{Op: "create", Entity: "channel", Err: ErrInvalidInput}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if channel.ID == "" {
		channel.ID = uuid.NewString()
	}
	if _, exists := s.data.Channels[channel.ID]; exists {
		return &StorageError{Op: "create", Entity: "channel", ID: channel.ID, Err: ErrAlreadyExists}
	}
	if _, exists := s.data.ByKey[channel.Key]; exists {
		return &StorageError{Op: "create", Entity: "channel", ID: channel.Key, Err: ErrAlreadyExists}
	}

	now := time.Now()
	channel.CreatedAt = now
	channel.UpdatedAt = now

	c := *channel
	s.data.Channels[c.ID] = &c
	s.data.ByKey[c.Key] = c.ID
	return s.save()
}

func (s *JSONStore) GetChannel(ctx context.Context, id string) (*Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, exists := s.data.Channels[id]
	if !exists {
		return nil, &StorageError{Op: "read", Entity: "channel", ID: id, Err: ErrNotFound}
	}
	c := *ch
	return &c, nil
}

func (s *JSONStore) GetChannelByKey(ctx context.Context, key string) (*Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.data.ByKey[key]
	if !exists {
		return nil, &StorageError{Op: "read", Entity: "channel", ID: key, Err: ErrNotFound}
	}
	ch, exists := s.data.Channels[id]
	if !exists {
		return nil, &StorageError{Op: "read", Entity: "channel", ID: id, Err: ErrStorageCorrupt}
	}
	c := *ch
	return &c, nil
}

func (s *JSONStore) UpdateChannel(ctx context.Context, channel *Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.data.Channels[channel.ID]
	if !exists {
		return &StorageError{Op: "update", Entity: "channel", ID: channel.ID, Err: ErrNotFound}
	}
	if existing.Key != channel.Key {
		if _, taken := s.data.ByKey[channel.Key]; taken {
			return &StorageError{Op: "update", Entity: "channel", ID: channel.Key, Err: ErrAlreadyExists}
		}
		delete(s.data.ByKey, existing.Key)
		s.data.ByKey[channel.Key] = channel.ID
	}

	channel.CreatedAt = existing.CreatedAt
	channel.UpdatedAt = time.Now()
	c := *channel
	s.data.Channels[c.ID] = &c
	return s.save()
}

func (s *JSONStore) DeleteChannel(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, exists := s.data.Channels[id]
	if !exists {
		return &StorageError{Op: "delete", Entity: "channel", ID: id, Err: ErrNotFound}
	}
	delete(s.data.Channels, id)
	delete(s.data.ByKey, ch.Key)
	delete(s.data.Details, id)
	delete(s.data.SyncStates, id)
	return s.save()
}

// ListChannels returns channels ordered by key.
func (s *JSONStore) ListChannels(ctx context.Context) ([]*Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	channels := make([]*Channel, 0, len(s.data.Channels))
	for _, ch := range s.data.Channels {
		c := *ch
		channels = append(channels, &c)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].Key < channels[j].Key })
	return channels, nil
}

// --- DetailsStore implementation ---

func (s *JSONStore) SaveDetails(ctx context.Context, details *ContactDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data.Channels[details.ChannelID]; !exists {
		return &StorageError{Op: "save", Entity: "details", ID: details.ChannelID, Err: ErrNotFound}
	}
	if details.ScrapedAt.IsZero() {
		details.ScrapedAt = time.Now()
	}
	d := *details
	d.Warnings = append([]string(nil), details.Warnings...)
	s.data.Details[d.ChannelID] = &d
	return s.save()
}

func (s *JSONStore) GetDetails(ctx context.Context, channelID string) (*ContactDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, exists := s.data.Details[channelID]
	if !exists {
		return nil, &StorageError{Op: "read", Entity: "details", ID: channelID, Err: ErrNotFound}
	}
	out := *d
	out.Warnings = append([]string(nil), d.Warnings...)
	return &out, nil
}

// --- SyncStateStore implementation ---

func (s *JSONStore) GetSyncState(ctx context.Context, channelID string) (*SyncState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, exists := s.data.SyncStates[channelID]
	if !exists {
		return &SyncState{ChannelID: channelID, Status: SyncStatusIdle}, nil
	}
	out := *st
	return &out, nil
}

func (s *JSONStore) UpdateSyncState(ctx context.Context, state *SyncState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data.Channels[state.ChannelID]; !exists {
		return &StorageError{Op: "update", Entity: "sync_state", ID: state.ChannelID, Err: ErrNotFound}
	}
	st := *state
	s.data.SyncStates[st.ChannelID] = &st
	return s.save()
}
