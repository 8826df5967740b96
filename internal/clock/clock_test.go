package clock

import (
	"testing"
	"time"
)

func TestFixed(t *testing.T) {
	at := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	c := Fixed{T: at}
	if !c.Now().Equal(at) || !c.Now().Equal(at) {
		t.Error("fixed clock moved")
	}
}

func TestTicker(t *testing.T) {
	start := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	c := NewTicker(start, time.Second)

	for i := 0; i < 3; i++ {
		want := start.Add(time.Duration(i) * time.Second)
		if got := c.Now(); !got.Equal(want) {
			t.Errorf("tick %d: got %v, want %v", i, got, want)
		}
	}
}

func TestFunc(t *testing.T) {
	calls := 0
	c := Func(func() time.Time {
		calls++
		return time.Unix(int64(calls), 0)
	})
	c.Now()
	if c.Now().Unix() != 2 {
		t.Error("func clock not invoked per call")
	}
}

func TestRealIsUTC(t *testing.T) {
	if (Real{}).Now().Location() != time.UTC {
		t.Error("real clock should report UTC")
	}
}
