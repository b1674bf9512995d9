package scheduler

import (
	"time"

	"github.com/example/courtsniper/internal/history"
)

type Status struct {
	Venue     string         `json:"venue"`
	Date      string         `json:"date"`
	Accounts  int            `json:"accounts"`
	Polls     int            `json:"polls"`
	NextCheck time.Time      `json:"next_check"`
	Booked    bool           `json:"booked"`
	Last      *history.Cycle `json:"last,omitempty"`
}

// Status is safe to call while Run is in progress.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	if st.Last != nil {
		c := *st.Last
		st.Last = &c
	}
	return st
}

func (s *Scheduler) setNext(t time.Time) {
	s.mu.Lock()
	s.status.NextCheck = t
	s.mu.Unlock()
}
