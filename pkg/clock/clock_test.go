package clock

import (
	"testing"
	"time"
)

func TestSystemNowIsUTC(t *testing.T) {
	now := System{}.Now()
	if now.Location() != time.UTC {
		t.Errorf("expected UTC location, got %v", now.Location())
	}
}

func TestFixed(t *testing.T) {
	instant := time.Date(2025, 1, 15, 13, 30, 0, 0, time.UTC)

	t.Run("returns pinned instant", func(t *testing.T) {
		c := NewFixed(instant)
		if !c.Now().Equal(instant) {
			t.Errorf("expected %v, got %v", instant, c.Now())
		}
	})

	t.Run("normalizes to UTC", func(t *testing.T) {
		paris, err := time.LoadLocation("Europe/Paris")
		if err != nil {
			t.Skipf("tzdata unavailable: %v", err)
		}
		c := NewFixed(instant.In(paris))
		if c.Now().Location() != time.UTC {
			t.Errorf("expected UTC location, got %v", c.Now().Location())
		}
		if !c.Now().Equal(instant) {
			t.Errorf("expected same instant after normalization")
		}
	})

	t.Run("advance moves forward", func(t *testing.T) {
		c := NewFixed(instant)
		c.Advance(90 * time.Minute)
		want := instant.Add(90 * time.Minute)
		if !c.Now().Equal(want) {
			t.Errorf("expected %v, got %v", want, c.Now())
		}
	})
}
