package chat

import "sync"

// Cadence decides after each completed turn whether fact extraction runs.
type Cadence interface {
	Tick(userID int64) bool
}

type everyN struct {
	n      int
	mu     sync.Mutex
	counts map[int64]int
}

// EveryN fires on every nth completed turn of each user. Counts live in
// memory and restart with the process. n <= 0 never fires.
func EveryN(n int) Cadence {
	return &everyN{n: n, counts: make(map[int64]int)}
}

func (c *everyN) Tick(userID int64) bool {
	if c.n <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[userID]++
	if c.counts[userID] >= c.n {
		c.counts[userID] = 0
		return true
	}
	return false
}
