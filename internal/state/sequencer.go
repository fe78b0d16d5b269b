package state

import "sync/atomic"

// Sequencer orders overlapping requests for the same view. Each request
// takes an ID from Begin; when its response arrives, Accept tells whether a
// newer request has been started since, in which case the response is stale
// and must be dropped.
type Sequencer struct {
	latest atomic.Uint64
}

func (s *Sequencer) Begin() uint64 {
	return s.latest.Add(1)
}

func (s *Sequencer) Accept(id uint64) bool {
	return id != 0 && s.latest.Load() == id
}

func (s *Sequencer) Latest() uint64 {
	return s.latest.Load()
}
