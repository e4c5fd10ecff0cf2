// Package storage defines persistence contracts for gathering state.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
)

// Gathering stores one scheduled course gathering.
type Gathering struct {
	ID        string
	Title     string
	HTML      string
	StartTime time.Time
	EndTime   time.Time
	IsDraft   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewsItem records that a gathering became newly visible to students.
type NewsItem struct {
	ResourceKey string
	URL         string
	CreatedAt   time.Time
}

// GatheringStore persists gathering records.
type GatheringStore interface {
	CreateGathering(ctx context.Context, gathering Gathering) error
	GetGathering(ctx context.Context, id string) (Gathering, error)
	UpdateGathering(ctx context.Context, gathering Gathering) error
	DeleteGathering(ctx context.Context, id string) error
	// ListGatherings returns all gatherings ordered by start time, newest
	// first.
	ListGatherings(ctx context.Context) ([]Gathering, error)
	SetGatheringDraftStatus(ctx context.Context, id string, isDraft bool) error
}

// NewsStore persists news items for newly published gatherings.
type NewsStore interface {
	AddNewsItem(ctx context.Context, item NewsItem) error
	RemoveNewsItem(ctx context.Context, resourceKey string) error
	ListNewsItems(ctx context.Context, limit int) ([]NewsItem, error)
}
