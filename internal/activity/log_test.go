package activity

import (
	"fmt"
	"testing"
	"time"
)

func TestEvictsOldestFirst(t *testing.T) {
	l := NewLog(DefaultCapacity)
	for i := 0; i < 45; i++ {
		l.Append(fmt.Sprintf("msg-%d", i))
		if l.Len() > DefaultCapacity {
			t.Fatalf("log exceeded capacity: %d", l.Len())
		}
	}
	got := l.Recent()
	if len(got) != DefaultCapacity {
		t.Fatalf("expected %d entries, got %d", DefaultCapacity, len(got))
	}
	if got[0].Message != "msg-25" || got[len(got)-1].Message != "msg-44" {
		t.Fatalf("unexpected window %q .. %q", got[0].Message, got[len(got)-1].Message)
	}
	latest := l.Latest()
	if latest[0].Message != "msg-44" {
		t.Fatalf("expected newest first, got %q", latest[0].Message)
	}
}

func TestClear(t *testing.T) {
	l := NewLog(3)
	for i := 0; i < 5; i++ {
		l.Append("x")
	}
	l.Clear()
	if l.Len() != 0 || len(l.Recent()) != 0 {
		t.Fatal("expected empty log")
	}
	l.Append("after")
	if got := l.Recent(); len(got) != 1 || got[0].Message != "after" {
		t.Fatalf("unexpected entries after clear: %+v", got)
	}
}

func TestEntryString(t *testing.T) {
	l := NewLog(1)
	l.clock = func() time.Time { return time.Date(2025, 3, 4, 9, 5, 7, 0, time.UTC) }
	e := l.Append("Listening started")
	if e.String() != "[09:05:07] Listening started" {
		t.Fatalf("unexpected rendering %q", e.String())
	}
}
