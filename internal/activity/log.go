package activity

import "time"

// DefaultCapacity is the number of entries retained.
const DefaultCapacity = 20

// Entry is a timestamped activity message.
type Entry struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// String renders the entry as "[HH:MM:SS] message".
func (e Entry) String() string {
	return "[" + e.At.Format(time.TimeOnly) + "] " + e.Message
}

// Log is a bounded ring of activity entries; the oldest entry is evicted
// once capacity is reached. Not safe for concurrent use.
type Log struct {
	entries  []Entry
	start    int
	capacity int
	clock    func() time.Time
}

func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		entries:  make([]Entry, 0, capacity),
		capacity: capacity,
		clock:    time.Now,
	}
}

func (l *Log) Append(msg string) Entry {
	e := Entry{At: l.clock(), Message: msg}
	if len(l.entries) < l.capacity {
		l.entries = append(l.entries, e)
		return e
	}
	l.entries[l.start] = e
	l.start = (l.start + 1) % l.capacity
	return e
}

// Recent returns entries oldest first.
func (l *Log) Recent() []Entry {
	out := make([]Entry, 0, len(l.entries))
	out = append(out, l.entries[l.start:]...)
	out = append(out, l.entries[:l.start]...)
	return out
}

// Latest returns entries newest first, for display.
func (l *Log) Latest() []Entry {
	out := l.Recent()
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (l *Log) Len() int {
	return len(l.entries)
}

func (l *Log) Capacity() int {
	return l.capacity
}

func (l *Log) Clear() {
	l.entries = l.entries[:0]
	l.start = 0
}
