package monitor

import (
	"context"
	"sync"
)

// StaticScanner is an in-memory Scanner for tests and development. Real
// deployments adapt an external scanner's API behind the Scanner interface.
type StaticScanner struct {
	mu      sync.RWMutex
	reports []Report
	err     error
}

func NewStaticScanner() *StaticScanner {
	return &StaticScanner{}
}

// SetReports replaces the reported findings.
func (s *StaticScanner) SetReports(reports ...Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = reports
}

// Fail makes subsequent Reports calls return err. Pass nil to recover.
func (s *StaticScanner) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *StaticScanner) Reports(context.Context) ([]Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]Report{}, s.reports...), nil
}
