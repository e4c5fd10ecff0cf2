package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mtanaka/courseforge/internal/gatherings/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "gatherings.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testGathering(id string, start time.Time) storage.Gathering {
	return storage.Gathering{
		ID:        id,
		Title:     "Title " + id,
		HTML:      "<p>Body " + id + "</p>",
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
		IsDraft:   true,
		CreatedAt: start,
		UpdatedAt: start,
	}
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestCreateGetGatheringRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.August, 20, 18, 0, 0, 0, time.UTC)
	input := testGathering("gath-1", now)
	if err := store.CreateGathering(context.Background(), input); err != nil {
		t.Fatalf("create gathering: %v", err)
	}

	got, err := store.GetGathering(context.Background(), "gath-1")
	if err != nil {
		t.Fatalf("get gathering: %v", err)
	}
	if got.Title != input.Title {
		t.Fatalf("title = %q, want %q", got.Title, input.Title)
	}
	if got.HTML != input.HTML {
		t.Fatalf("html = %q, want %q", got.HTML, input.HTML)
	}
	if !got.StartTime.Equal(input.StartTime) {
		t.Fatalf("start = %v, want %v", got.StartTime, input.StartTime)
	}
	if !got.IsDraft {
		t.Fatal("expected draft gathering")
	}
}

func TestCreateGatheringReturnsAlreadyExistsOnDuplicate(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.August, 20, 18, 0, 0, 0, time.UTC)
	input := testGathering("gath-dup", now)
	if err := store.CreateGathering(context.Background(), input); err != nil {
		t.Fatalf("create initial gathering: %v", err)
	}
	err := store.CreateGathering(context.Background(), input)
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate create error = %v, want %v", err, storage.ErrAlreadyExists)
	}
}

func TestGetGatheringNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	_, err := store.GetGathering(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestUpdateGathering(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.August, 20, 18, 0, 0, 0, time.UTC)
	input := testGathering("gath-upd", now)
	if err := store.CreateGathering(context.Background(), input); err != nil {
		t.Fatalf("create gathering: %v", err)
	}

	input.Title = "Office Hours"
	input.IsDraft = false
	if err := store.UpdateGathering(context.Background(), input); err != nil {
		t.Fatalf("update gathering: %v", err)
	}

	got, err := store.GetGathering(context.Background(), "gath-upd")
	if err != nil {
		t.Fatalf("get gathering: %v", err)
	}
	if got.Title != "Office Hours" {
		t.Fatalf("title = %q, want %q", got.Title, "Office Hours")
	}
	if got.IsDraft {
		t.Fatal("expected published gathering")
	}
}

func TestUpdateGatheringNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.August, 20, 18, 0, 0, 0, time.UTC)
	err := store.UpdateGathering(context.Background(), testGathering("missing", now))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestDeleteGathering(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.August, 20, 18, 0, 0, 0, time.UTC)
	if err := store.CreateGathering(context.Background(), testGathering("gath-del", now)); err != nil {
		t.Fatalf("create gathering: %v", err)
	}
	if err := store.DeleteGathering(context.Background(), "gath-del"); err != nil {
		t.Fatalf("delete gathering: %v", err)
	}
	if _, err := store.GetGathering(context.Background(), "gath-del"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want %v", err, storage.ErrNotFound)
	}
	if err := store.DeleteGathering(context.Background(), "gath-del"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second delete err = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestListGatheringsOrdersByStartTimeDescending(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	base := time.Date(2026, time.August, 20, 18, 0, 0, 0, time.UTC)
	for i, id := range []string{"gath-a", "gath-b", "gath-c"} {
		g := testGathering(id, base.Add(time.Duration(i)*time.Hour))
		if err := store.CreateGathering(context.Background(), g); err != nil {
			t.Fatalf("create gathering %s: %v", id, err)
		}
	}

	gatherings, err := store.ListGatherings(context.Background())
	if err != nil {
		t.Fatalf("list gatherings: %v", err)
	}
	if len(gatherings) != 3 {
		t.Fatalf("len = %d, want 3", len(gatherings))
	}
	if gatherings[0].ID != "gath-c" || gatherings[2].ID != "gath-a" {
		t.Fatalf("order = %s,%s,%s, want gath-c first", gatherings[0].ID, gatherings[1].ID, gatherings[2].ID)
	}
}

func TestSetGatheringDraftStatus(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.August, 20, 18, 0, 0, 0, time.UTC)
	if err := store.CreateGathering(context.Background(), testGathering("gath-pub", now)); err != nil {
		t.Fatalf("create gathering: %v", err)
	}
	if err := store.SetGatheringDraftStatus(context.Background(), "gath-pub", false); err != nil {
		t.Fatalf("set draft status: %v", err)
	}
	got, err := store.GetGathering(context.Background(), "gath-pub")
	if err != nil {
		t.Fatalf("get gathering: %v", err)
	}
	if got.IsDraft {
		t.Fatal("expected published gathering")
	}
	if err := store.SetGatheringDraftStatus(context.Background(), "missing", false); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestNewsItemsRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.August, 20, 18, 0, 0, 0, time.UTC)
	items := []storage.NewsItem{
		{ResourceKey: "gathering:a", URL: "/gatherings", CreatedAt: now},
		{ResourceKey: "gathering:b", URL: "/gatherings", CreatedAt: now.Add(time.Minute)},
	}
	for _, item := range items {
		if err := store.AddNewsItem(context.Background(), item); err != nil {
			t.Fatalf("add news item: %v", err)
		}
	}

	got, err := store.ListNewsItems(context.Background(), 10)
	if err != nil {
		t.Fatalf("list news items: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ResourceKey != "gathering:b" {
		t.Fatalf("first item = %q, want newest", got[0].ResourceKey)
	}

	if err := store.RemoveNewsItem(context.Background(), "gathering:b"); err != nil {
		t.Fatalf("remove news item: %v", err)
	}
	got, err = store.ListNewsItems(context.Background(), 10)
	if err != nil {
		t.Fatalf("list news items after remove: %v", err)
	}
	if len(got) != 1 || got[0].ResourceKey != "gathering:a" {
		t.Fatalf("items after remove = %+v", got)
	}
}

func TestAddNewsItemReplacesExistingResource(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.August, 20, 18, 0, 0, 0, time.UTC)
	item := storage.NewsItem{ResourceKey: "gathering:a", URL: "/gatherings", CreatedAt: now}
	if err := store.AddNewsItem(context.Background(), item); err != nil {
		t.Fatalf("add news item: %v", err)
	}
	item.CreatedAt = now.Add(time.Hour)
	if err := store.AddNewsItem(context.Background(), item); err != nil {
		t.Fatalf("re-add news item: %v", err)
	}

	got, err := store.ListNewsItems(context.Background(), 10)
	if err != nil {
		t.Fatalf("list news items: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if !got[0].CreatedAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("created_at = %v, want replaced timestamp", got[0].CreatedAt)
	}
}
