package objstore

import (
	"context"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *FSStore {
	t.Helper()
	s, err := NewFSStore(t.TempDir(), "https://swoems.com/")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestPutListGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	url, err := s.Put(ctx, "ticket-1734000000000-abc.jpg", []byte("jpeg bytes"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if url != "https://swoems.com/photos/ticket-1734000000000-abc.jpg" {
		t.Errorf("url = %q", url)
	}

	objects, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(objects) != 1 || objects[0].Name != "ticket-1734000000000-abc.jpg" {
		t.Errorf("objects = %+v", objects)
	}
	if objects[0].Size != int64(len("jpeg bytes")) {
		t.Errorf("size = %d", objects[0].Size)
	}

	data, err := s.Get(ctx, "ticket-1734000000000-abc.jpg")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "jpeg bytes" {
		t.Errorf("data = %q", data)
	}
}

func TestPut_RejectsDuplicateAndTraversal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Put(ctx, "ticket-1734000000000-abc.jpg", []byte("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := s.Put(ctx, "ticket-1734000000000-abc.jpg", []byte("y")); err == nil {
		t.Error("expected duplicate name rejected")
	}
	if _, err := s.Put(ctx, "../escape.jpg", []byte("x")); err == nil {
		t.Error("expected path traversal rejected")
	}
	if _, err := s.Get(ctx, "../../etc/passwd"); err == nil {
		t.Error("expected traversal on get rejected")
	}
}

func TestNewObjectName(t *testing.T) {
	now := time.UnixMilli(1734000000000).UTC()

	jpg := NewObjectName(now, "image/jpeg")
	if !strings.HasPrefix(jpg, "ticket-1734000000000-") || !strings.HasSuffix(jpg, ".jpg") {
		t.Errorf("jpg name = %q", jpg)
	}

	png := NewObjectName(now, "image/png")
	if !strings.HasSuffix(png, ".png") {
		t.Errorf("png name = %q", png)
	}

	if NewObjectName(now, "image/jpeg") == NewObjectName(now, "image/jpeg") {
		t.Error("names for the same instant should not collide")
	}
}
