package clock

import (
	"testing"
	"time"
)

func TestFakeAdvance(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f := NewFake(start)
	if got := f.Now(); !got.Equal(start) {
		t.Fatalf("Now() = %v, want %v", got, start)
	}
	f.Advance(90 * time.Minute)
	if got, want := f.Now(), start.Add(90*time.Minute); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestRealTruncatesToMilliseconds(t *testing.T) {
	now := Real().Now()
	if now.Nanosecond()%int(time.Millisecond) != 0 {
		t.Fatalf("Real().Now() = %v has sub-millisecond precision", now)
	}
	if now.Location() != time.UTC {
		t.Fatalf("Real().Now() location = %v, want UTC", now.Location())
	}
}
