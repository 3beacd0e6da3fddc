package feed

// DefaultDedupSize bounds the signature ring when the config leaves it unset.
const DefaultDedupSize = 10000

// DedupRing remembers the last N signatures seen on the feed. It only
// suppresses wasteful downstream work; the event store's unique index is the
// durable guarantor. A signature older than N admissions may reappear.
//
// The ring keeps an auxiliary hash index so Contains and Add are O(1)
// regardless of size.
type DedupRing struct {
	seen map[string]int
	ring []string
	next int
}

func NewDedupRing(size int) *DedupRing {
	if size <= 0 {
		size = DefaultDedupSize
	}
	return &DedupRing{
		seen: make(map[string]int, size),
		ring: make([]string, size),
	}
}

// Contains reports whether the signature is still inside the window.
func (r *DedupRing) Contains(signature string) bool {
	_, ok := r.seen[signature]
	return ok
}

// Add admits a signature, evicting the oldest entry once the ring is full.
func (r *DedupRing) Add(signature string) {
	if r.Contains(signature) {
		return
	}
	if old := r.ring[r.next]; old != "" {
		// Only drop the index entry if this slot is still its home; a
		// re-added signature may have moved on.
		if idx, ok := r.seen[old]; ok && idx == r.next {
			delete(r.seen, old)
		}
	}
	r.ring[r.next] = signature
	r.seen[signature] = r.next
	r.next = (r.next + 1) % len(r.ring)
}

// Len returns the number of signatures currently tracked.
func (r *DedupRing) Len() int {
	return len(r.seen)
}
