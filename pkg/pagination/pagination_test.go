package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	if got := NormalizeLimit(0); got != DefaultLimit {
		t.Fatalf("NormalizeLimit(0) = %d, want %d", got, DefaultLimit)
	}
	if got := NormalizeLimit(500); got != MaxLimit {
		t.Fatalf("NormalizeLimit(500) = %d, want %d", got, MaxLimit)
	}
	if got := NormalizeLimit(10); got != 10 {
		t.Fatalf("NormalizeLimit(10) = %d, want 10", got)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	cursor := Cursor{CreatedAt: time.Now().UTC().Truncate(time.Microsecond), ID: uuid.New()}

	parsed, err := ParseCursor(EncodeCursor(cursor))
	if err != nil {
		t.Fatalf("ParseCursor returned error: %v", err)
	}
	if parsed == nil {
		t.Fatal("expected cursor, got nil")
	}
	if !parsed.CreatedAt.Equal(cursor.CreatedAt) || parsed.ID != cursor.ID {
		t.Fatalf("round trip mismatch: %+v vs %+v", parsed, cursor)
	}
}

func TestParseCursor_Empty(t *testing.T) {
	parsed, err := ParseCursor("  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != nil {
		t.Fatalf("expected nil cursor, got %+v", parsed)
	}
}

func TestParseCursor_Invalid(t *testing.T) {
	if _, err := ParseCursor("not-base64!!"); err == nil {
		t.Fatal("expected decode error")
	}
}

type pageRow struct {
	createdAt time.Time
	id        uuid.UUID
}

func TestBuildPage(t *testing.T) {
	rows := make([]pageRow, 4)
	for i := range rows {
		rows[i] = pageRow{createdAt: time.Now().UTC().Add(-time.Duration(i) * time.Minute), id: uuid.New()}
	}

	page := BuildPage(rows, 3, func(r pageRow) Cursor {
		return Cursor{CreatedAt: r.createdAt, ID: r.id}
	})
	if len(page.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(page.Items))
	}
	if page.NextCursor == "" {
		t.Fatal("expected next cursor")
	}

	parsed, err := ParseCursor(page.NextCursor)
	if err != nil {
		t.Fatalf("parse next cursor: %v", err)
	}
	if parsed.ID != rows[2].id {
		t.Fatal("next cursor should point at last retained row")
	}

	short := BuildPage(rows[:2], 3, func(r pageRow) Cursor {
		return Cursor{CreatedAt: r.createdAt, ID: r.id}
	})
	if short.NextCursor != "" {
		t.Fatal("expected no next cursor for short page")
	}
}
