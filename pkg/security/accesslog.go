package security

import (
	"sync"
	"time"
)

// DefaultAccessLogCapacity bounds the in-memory access log
const DefaultAccessLogCapacity = 1000

// AccessRecord is one recorded security decision
type AccessRecord struct {
	Time    time.Time `json:"time"`
	Op      Operation `json:"op"`
	Path    string    `json:"path"`
	Allowed bool      `json:"allowed"`
	Denial  string    `json:"denial,omitempty"`
}

// Stats summarizes recorded decisions for security reporting
type Stats struct {
	Total     int            `json:"total"`
	Blocked   int            `json:"blocked"`
	BlockRate float64        `json:"block_rate"`
	Denials   map[string]int `json:"denials"`
	TopDenial string         `json:"top_denial,omitempty"`
}

// AccessLog is a fixed-capacity ring buffer of security decisions. Counters
// cover the full history; Recent only returns what the ring still holds.
type AccessLog struct {
	mu       sync.Mutex
	records  []AccessRecord
	capacity int
	next     int
	full     bool

	total   int
	blocked int
	denials map[string]int
}

// NewAccessLog creates an access log with the given capacity
func NewAccessLog(capacity int) *AccessLog {
	if capacity <= 0 {
		capacity = DefaultAccessLogCapacity
	}
	return &AccessLog{
		records:  make([]AccessRecord, capacity),
		capacity: capacity,
		denials:  make(map[string]int),
	}
}

// Record appends a decision, evicting the oldest entry when full
func (al *AccessLog) Record(op Operation, path string, result Result) {
	al.mu.Lock()
	defer al.mu.Unlock()

	al.records[al.next] = AccessRecord{
		Time:    time.Now(),
		Op:      op,
		Path:    path,
		Allowed: result.Allowed,
		Denial:  result.Denial,
	}
	al.next = (al.next + 1) % al.capacity
	if al.next == 0 {
		al.full = true
	}

	al.total++
	if !result.Allowed {
		al.blocked++
		al.denials[result.Denial]++
	}
}

// Recent returns up to n most recent records, newest first
func (al *AccessLog) Recent(n int) []AccessRecord {
	al.mu.Lock()
	defer al.mu.Unlock()

	size := al.next
	if al.full {
		size = al.capacity
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]AccessRecord, 0, n)
	for i := 0; i < n; i++ {
		idx := (al.next - 1 - i + al.capacity) % al.capacity
		out = append(out, al.records[idx])
	}
	return out
}

// Stats returns aggregate counters over everything ever recorded
func (al *AccessLog) Stats() Stats {
	al.mu.Lock()
	defer al.mu.Unlock()

	s := Stats{
		Total:   al.total,
		Blocked: al.blocked,
		Denials: make(map[string]int, len(al.denials)),
	}
	if al.total > 0 {
		s.BlockRate = float64(al.blocked) / float64(al.total)
	}

	top := 0
	for denial, count := range al.denials {
		s.Denials[denial] = count
		if count > top {
			top = count
			s.TopDenial = denial
		}
	}
	return s
}
