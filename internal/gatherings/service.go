package gatherings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mtanaka/courseforge/internal/gatherings/storage"
	"github.com/mtanaka/courseforge/internal/platform/id"
)

// defaultDuration is the scheduled window for a freshly created gathering.
const defaultDuration = 30 * time.Minute

// Service coordinates gathering writes, the list cache, and news items.
//
// The full gathering list is cached in process and invalidated on every
// write, so the hot student listing rarely touches storage.
type Service struct {
	store storage.GatheringStore
	news  storage.NewsStore
	newID func() (string, error)
	now   func() time.Time

	mu     sync.Mutex
	cache  []storage.Gathering
	cached bool
}

// NewService builds a gathering service over the given stores.
func NewService(store storage.GatheringStore, news storage.NewsStore) (*Service, error) {
	if store == nil {
		return nil, errors.New("gathering store is required")
	}
	if news == nil {
		return nil, errors.New("news store is required")
	}
	return &Service{
		store: store,
		news:  news,
		newID: id.NewID,
		now:   time.Now,
	}, nil
}

// Create inserts a draft gathering with default title and a 30-minute
// window starting now, and returns it.
func (s *Service) Create(ctx context.Context) (storage.Gathering, error) {
	if s == nil {
		return storage.Gathering{}, errors.New("service is not configured")
	}
	gatheringID, err := s.newID()
	if err != nil {
		return storage.Gathering{}, fmt.Errorf("generate gathering id: %w", err)
	}
	now := s.now().UTC()
	gathering := storage.Gathering{
		ID:        gatheringID,
		Title:     DefaultTitle,
		StartTime: now,
		EndTime:   now.Add(defaultDuration),
		IsDraft:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateGathering(ctx, gathering); err != nil {
		return storage.Gathering{}, err
	}
	s.purgeCache()
	return gathering, nil
}

// Get returns one gathering by ID.
func (s *Service) Get(ctx context.Context, gatheringID string) (storage.Gathering, error) {
	if s == nil {
		return storage.Gathering{}, errors.New("service is not configured")
	}
	return s.store.GetGathering(ctx, gatheringID)
}

// Update replaces the mutable fields of one gathering. A draft that the
// update publishes produces a news item.
func (s *Service) Update(ctx context.Context, gathering storage.Gathering) error {
	if s == nil {
		return errors.New("service is not configured")
	}
	previous, err := s.store.GetGathering(ctx, gathering.ID)
	if err != nil {
		return err
	}
	if err := s.store.UpdateGathering(ctx, gathering); err != nil {
		return err
	}
	s.purgeCache()
	if previous.IsDraft && !gathering.IsDraft {
		return s.recordPublished(ctx, gathering.ID)
	}
	return nil
}

// SetDraftStatus toggles the draft flag. The first transition from draft to
// published produces a news item.
func (s *Service) SetDraftStatus(ctx context.Context, gatheringID string, isDraft bool) error {
	if s == nil {
		return errors.New("service is not configured")
	}
	previous, err := s.store.GetGathering(ctx, gatheringID)
	if err != nil {
		return err
	}
	if err := s.store.SetGatheringDraftStatus(ctx, gatheringID, isDraft); err != nil {
		return err
	}
	s.purgeCache()
	if previous.IsDraft && !isDraft {
		return s.recordPublished(ctx, gatheringID)
	}
	return nil
}

// Delete removes one gathering along with its news item.
func (s *Service) Delete(ctx context.Context, gatheringID string) error {
	if s == nil {
		return errors.New("service is not configured")
	}
	if err := s.news.RemoveNewsItem(ctx, ResourceKey(gatheringID)); err != nil {
		return err
	}
	if err := s.store.DeleteGathering(ctx, gatheringID); err != nil {
		return err
	}
	s.purgeCache()
	return nil
}

// List returns all gatherings ordered by start time, newest first, serving
// repeated reads from the in-process cache.
func (s *Service) List(ctx context.Context) ([]storage.Gathering, error) {
	if s == nil {
		return nil, errors.New("service is not configured")
	}

	s.mu.Lock()
	if s.cached {
		items := append([]storage.Gathering(nil), s.cache...)
		s.mu.Unlock()
		return items, nil
	}
	s.mu.Unlock()

	items, err := s.store.ListGatherings(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache = append([]storage.Gathering(nil), items...)
	s.cached = true
	s.mu.Unlock()

	return items, nil
}

// ListVisible returns the gatherings the requester may see, applying the
// rights filter over the cached list.
func (s *Service) ListVisible(ctx context.Context) ([]storage.Gathering, error) {
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return ApplyRights(ctx, items), nil
}

// News returns the most recent news items, newest first.
func (s *Service) News(ctx context.Context, limit int) ([]storage.NewsItem, error) {
	if s == nil {
		return nil, errors.New("service is not configured")
	}
	return s.news.ListNewsItems(ctx, limit)
}

func (s *Service) recordPublished(ctx context.Context, gatheringID string) error {
	return s.news.AddNewsItem(ctx, storage.NewsItem{
		ResourceKey: ResourceKey(gatheringID),
		URL:         StudentURL,
		CreatedAt:   s.now().UTC(),
	})
}

func (s *Service) purgeCache() {
	s.mu.Lock()
	s.cache = nil
	s.cached = false
	s.mu.Unlock()
}
