package ticket

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/SpaceTimerAPI-Admin/christmastech/pkg/protocol"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.DB().Close() })
	return s
}

func testReport(tech string) protocol.Report {
	return protocol.Report{
		TechName:    tech,
		Location:    "North Gate Arch",
		Description: "Half the arch is dark",
		Coordinate:  &protocol.Coordinate{Lat: 40.0001, Lon: -75.0001},
		PhotoURL:    "https://example.test/photos/ticket-1734000000000-aa.jpg",
		SubmittedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, testReport("casey"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == 0 {
		t.Error("expected store-assigned ID")
	}
	if created.Status != protocol.StatusOpen {
		t.Errorf("status = %q, want open", created.Status)
	}

	got, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TechName != "casey" || got.Location != "North Gate Arch" {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Coordinate == nil || got.Coordinate.Lat != 40.0001 {
		t.Errorf("coordinate = %+v", got.Coordinate)
	}
}

func TestCreate_WithoutCoordinate(t *testing.T) {
	s := newTestStore(t)
	report := testReport("casey")
	report.Coordinate = nil

	created, err := s.Create(context.Background(), report)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Coordinate != nil {
		t.Errorf("coordinate = %+v, want nil", created.Coordinate)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), 999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestList_FilterAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		r := testReport("casey")
		r.SubmittedAt = base.Add(time.Duration(i) * time.Minute)
		if _, err := s.Create(ctx, r); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if err := s.UpdateStatus(ctx, 1, protocol.StatusFixed); err != nil {
		t.Fatalf("update status: %v", err)
	}

	all, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d tickets, want 3", len(all))
	}
	if all[0].ID != 3 {
		t.Errorf("newest first: got ID %d", all[0].ID)
	}

	open := protocol.StatusOpen
	filtered, _ := s.List(ctx, Filter{Status: &open})
	if len(filtered) != 2 {
		t.Errorf("got %d open tickets, want 2", len(filtered))
	}

	limited, _ := s.List(ctx, Filter{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("got %d tickets with limit 1", len(limited))
	}
}

func TestListOpenSince(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	old := testReport("casey")
	old.SubmittedAt = base.Add(-96 * time.Hour)
	recent := testReport("casey")
	recent.SubmittedAt = base.Add(-time.Hour)
	fixedRecent := testReport("casey")
	fixedRecent.SubmittedAt = base.Add(-2 * time.Hour)

	s.Create(ctx, old)
	s.Create(ctx, recent)
	fixed, _ := s.Create(ctx, fixedRecent)
	s.UpdateStatus(ctx, fixed.ID, protocol.StatusFixed)

	got, err := s.ListOpenSince(ctx, base.Add(-72*time.Hour))
	if err != nil {
		t.Fatalf("list open since: %v", err)
	}
	if len(got) != 1 || !got[0].CreatedAt.Equal(recent.SubmittedAt) {
		t.Errorf("got %+v, want only the recent open ticket", got)
	}
}

func TestListMissingPhoto(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	withPhoto := testReport("casey")
	without := testReport("casey")
	without.PhotoURL = ""

	s.Create(ctx, withPhoto)
	orphan, _ := s.Create(ctx, without)

	got, err := s.ListMissingPhoto(ctx)
	if err != nil {
		t.Fatalf("list missing photo: %v", err)
	}
	if len(got) != 1 || got[0].ID != orphan.ID {
		t.Errorf("got %+v, want only ticket %d", got, orphan.ID)
	}
}

func TestAttachPhoto(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := testReport("casey")
	r.PhotoURL = ""
	created, _ := s.Create(ctx, r)

	url := "https://example.test/photos/ticket-1734000099000-bb.jpg"
	if err := s.AttachPhoto(ctx, created.ID, url); err != nil {
		t.Fatalf("attach photo: %v", err)
	}

	got, _ := s.Get(ctx, created.ID)
	if got.PhotoURL != url {
		t.Errorf("photo_url = %q, want %q", got.PhotoURL, url)
	}
	photos, _ := s.ListPhotos(ctx, created.ID)
	if len(photos) != 1 || photos[0].URL != url {
		t.Errorf("photo rows = %+v", photos)
	}

	if err := s.AttachPhoto(ctx, 999, url); !errors.Is(err, ErrNotFound) {
		t.Errorf("attach to missing ticket: err = %v, want ErrNotFound", err)
	}
}

func TestComments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, _ := s.Create(ctx, testReport("casey"))
	b, _ := s.Create(ctx, testReport("jordan"))

	c, err := s.AddComment(ctx, a.ID, "casey", "replaced the fuse, still dark")
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}
	if c.ID == 0 || c.TicketID != a.ID {
		t.Errorf("comment = %+v", c)
	}

	if _, err := s.AddComment(ctx, 999, "x", "y"); !errors.Is(err, ErrNotFound) {
		t.Errorf("comment on missing ticket: err = %v, want ErrNotFound", err)
	}

	comments, _ := s.ListComments(ctx, a.ID)
	if len(comments) != 1 || comments[0].Body != "replaced the fuse, still dark" {
		t.Errorf("comments = %+v", comments)
	}

	commented, err := s.CommentedTicketIDs(ctx, []int64{a.ID, b.ID})
	if err != nil {
		t.Fatalf("commented ids: %v", err)
	}
	if !commented[a.ID] || commented[b.ID] {
		t.Errorf("commented = %v", commented)
	}
}

func TestAppendDescription(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, _ := s.Create(ctx, testReport("casey"))
	if err := s.AppendDescription(ctx, created.ID, "jordan update: swapped the controller"); err != nil {
		t.Fatalf("append description: %v", err)
	}

	got, _ := s.Get(ctx, created.ID)
	want := "Half the arch is dark\n\njordan update: swapped the controller"
	if got.Description != want {
		t.Errorf("description = %q, want %q", got.Description, want)
	}
}

func TestSetCoordinate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := testReport("casey")
	r.Coordinate = nil
	created, _ := s.Create(ctx, r)

	if err := s.SetCoordinate(ctx, created.ID, &protocol.Coordinate{Lat: 40.5, Lon: -75.5}); err != nil {
		t.Fatalf("set coordinate: %v", err)
	}
	got, _ := s.Get(ctx, created.ID)
	if got.Coordinate == nil || got.Coordinate.Lat != 40.5 {
		t.Errorf("coordinate = %+v", got.Coordinate)
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateStatus(context.Background(), 999, protocol.StatusFixed)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
