package gateway

import "sync"

// RecentID is the process-wide watermark of the newest post id a client
// has retrieved. Logins read it to bound the timeline fetch; the first
// RETR of a session writes it. Updates are last-writer-wins; a lost
// update only enlarges the next fetch.
type RecentID struct {
	mu sync.Mutex
	id string
}

// Advance records the newest retrieved post id.
func (r *RecentID) Advance(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.id = id
}

// Since returns the current watermark, empty before any retrieval.
func (r *RecentID) Since() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id
}
