package storage

import "time"

// Channel is a YouTube channel that has been scraped at least once.
type Channel struct {
	// ID is the internal unique identifier (UUID).
	ID string `json:"id"`
	// Key is the canonical, filesystem-safe channel key (handle or channel ID).
	Key string `json:"key"`
	// URL is the canonical channel URL.
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContactDetails is what the channel's About panel disclosed.
type ContactDetails struct {
	ChannelID string `json:"channel_id"`
	// Email is empty unless the address was revealed.
	Email    string `json:"email,omitempty"`
	Location string `json:"location,omitempty"`
	// EmailRevealed records whether the captcha-gated reveal succeeded.
	EmailRevealed bool      `json:"email_revealed"`
	Warnings      []string  `json:"warnings,omitempty"`
	ScrapedAt     time.Time `json:"scraped_at"`
}

// Sync status constants for the SyncState.Status field.
const (
	// SyncStatusIdle indicates the channel is not currently being scraped.
	SyncStatusIdle = "idle"
	// SyncStatusSyncing indicates a scrape is in progress.
	SyncStatusSyncing = "syncing"
	// SyncStatusError indicates the last scrape failed.
	SyncStatusError = "error"
)

// SyncState tracks scrape progress for a channel.
type SyncState struct {
	ChannelID string `json:"channel_id"`
	// Status is one of the SyncStatus constants.
	Status string `json:"status"`
	// LastSyncAt is when the last successful scrape finished.
	LastSyncAt time.Time `json:"last_sync_at"`
	// SyncStartedAt is when the current or last scrape began.
	SyncStartedAt time.Time `json:"sync_started_at,omitempty"`
	LastError     string    `json:"last_error,omitempty"`

	// LinksFound is the number of distinct videos in the last harvest.
	LinksFound int `json:"links_found"`
	// PagesScrolled is the number of scroll cycles in the last harvest.
	PagesScrolled int `json:"pages_scrolled"`
	// Incomplete is set when the last harvest stopped at a ceiling.
	Incomplete bool `json:"incomplete,omitempty"`
	// LinksPath is where the last harvest's links were written.
	LinksPath string `json:"links_path,omitempty"`
}

// StartSync marks the scrape as in progress and clears the previous error.
func (s *SyncState) StartSync() {
	if s == nil {
		return
	}
	s.Status = SyncStatusSyncing
	s.SyncStartedAt = time.Now()
	s.LastError = ""
}

// RecordHarvest stores the figures of a finished harvest.
func (s *SyncState) RecordHarvest(links, pages int, incomplete bool, path string) {
	if s == nil {
		return
	}
	s.LinksFound = links
	s.PagesScrolled = pages
	s.Incomplete = incomplete
	s.LinksPath = path
}

// CompleteSync marks the scrape as successfully completed.
func (s *SyncState) CompleteSync() {
	if s == nil {
		return
	}
	s.Status = SyncStatusIdle
	s.LastSyncAt = time.Now()
}

// FailSync marks the scrape as failed. Harvest figures are kept.
func (s *SyncState) FailSync(errMsg string) {
	if s == nil {
		return
	}
	s.Status = SyncStatusError
	s.LastError = errMsg
}

// IsSyncing reports whether a scrape is marked in progress.
func (s *SyncState) IsSyncing() bool {
	return s != nil && s.Status == SyncStatusSyncing
}
