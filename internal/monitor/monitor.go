package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/emberwatch/firecommand/internal/session"
)

// StatusSource is the session being monitored.
type StatusSource interface {
	Snapshot() session.Snapshot
	InboxLen() int
}

// StatusWriter exports a status sample.
type StatusWriter interface {
	WriteStatus(s session.Snapshot, inbox int) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Session  StatusSource
	Writer   StatusWriter
	Logger   *slog.Logger
	Interval time.Duration
}

// Status is one sample of the session's health.
type Status struct {
	Time         time.Time `json:"time"`
	Gate         string    `json:"gate"`
	Epoch        uint64    `json:"epoch"`
	RequestState string    `json:"requestState"`
	InFlight     int       `json:"inFlight"`
	Queued       bool      `json:"queued"`
	Frames       int       `json:"frames"`
	FrameIndex   int       `json:"frameIndex"`
	Landmarks    int       `json:"landmarks"`
	Risks        int       `json:"risks"`
	InboxLen     int       `json:"inboxLen"`
	Goroutines   int       `json:"goroutines"`
	GISError     string    `json:"gisError,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
	last      Status
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = 10 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus samples the session.
func (s *Service) GetProgramStatus() Status {
	snap := s.deps.Session.Snapshot()
	return Status{
		Time:         time.Now(),
		Gate:         string(snap.Gate),
		Epoch:        snap.Epoch,
		RequestState: string(snap.Request.State),
		InFlight:     snap.Request.InFlight,
		Queued:       snap.Queue.Pending,
		Frames:       snap.Frames,
		FrameIndex:   snap.Playback.FrameIndex,
		Landmarks:    snap.Landmarks,
		Risks:        len(snap.Risks),
		InboxLen:     s.deps.Session.InboxLen(),
		Goroutines:   runtime.NumGoroutine(),
		GISError:     snap.GISError,
	}
}

// Last returns the most recent sample taken by the monitor loop.
func (s *Service) Last() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// String renders a status sample as indented JSON.
func (st Status) String() string {
	out, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": "%s"}`, err)
	}
	return string(out)
}

// Sample takes one status sample, logs it and exports it.
func (s *Service) Sample() Status {
	st := s.GetProgramStatus()
	s.mu.Lock()
	s.last = st
	s.mu.Unlock()

	s.deps.Logger.Debug("session status",
		"gate", st.Gate,
		"request", st.RequestState,
		"inFlight", st.InFlight,
		"queued", st.Queued,
		"frames", st.Frames,
		"risks", st.Risks,
		"inbox", st.InboxLen)

	if s.deps.Writer != nil {
		if err := s.deps.Writer.WriteStatus(s.deps.Session.Snapshot(), st.InboxLen); err != nil {
			s.deps.Logger.Error("Error writing status point", "error", err)
		}
	}
	return st
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)

		s.deps.Logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.Sample()
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for the loop to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
