package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/wonny/stockread/internal/contracts"
	"github.com/wonny/stockread/pkg/logger"
)

// Shutdown outcomes
const (
	ShutdownClean   = "clean"
	ShutdownTimeout = "timeout"
)

// ServiceStatus is the liveness record of one service
type ServiceStatus struct {
	Initialized    bool       `json:"initialized"`
	Running        bool       `json:"running"`
	Error          string     `json:"error,omitempty"`
	ShutdownStatus string     `json:"shutdown_status,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	StoppedAt      *time.Time `json:"stopped_at,omitempty"`
}

type entry struct {
	name    string
	service contracts.Service
	done    chan struct{}
}

// Supervisor runs every registered service under one cancellable context
// ⭐ SSOT: 서비스 생명주기는 Supervisor에서만
type Supervisor struct {
	timeout time.Duration
	logger  *logger.Logger

	mu       sync.RWMutex
	entries  []*entry
	status   map[string]*ServiceStatus
	cancel   context.CancelFunc
	started  bool
	stopOnce sync.Once
}

// New creates a Supervisor. timeout bounds the wait for each service on Stop.
func New(timeout time.Duration, log *logger.Logger) *Supervisor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Supervisor{
		timeout: timeout,
		logger:  log.WithComponent("supervisor"),
		status:  make(map[string]*ServiceStatus),
	}
}

// Register adds a service. Must be called before Start.
func (s *Supervisor) Register(name string, svc contracts.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("register %s: supervisor already started", name)
	}
	if _, exists := s.status[name]; exists {
		return fmt.Errorf("service %s already registered", name)
	}
	s.entries = append(s.entries, &entry{name: name, service: svc, done: make(chan struct{})})
	s.status[name] = &ServiceStatus{}
	return nil
}

// Start initializes and launches every service in its own goroutine.
// A service whose Init fails is recorded and not started.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	entries := append([]*entry(nil), s.entries...)
	s.mu.Unlock()

	for _, e := range entries {
		if err := s.initService(runCtx, e); err != nil {
			s.update(e.name, func(st *ServiceStatus) { st.Error = err.Error() })
			s.logger.WithError(err).WithField("service", e.name).Error("Service init failed, not starting")
			close(e.done)
			continue
		}

		now := time.Now()
		s.update(e.name, func(st *ServiceStatus) {
			st.Initialized = true
			st.Running = true
			st.StartedAt = &now
		})
		go s.run(runCtx, e)
		s.logger.WithField("service", e.name).Info("Service started")
	}
}

func (s *Supervisor) initService(ctx context.Context, e *entry) (err error) {
	initer, ok := e.service.(contracts.Initializer)
	if !ok {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("init panic: %v", r)
		}
	}()
	return initer.Init(ctx)
}

func (s *Supervisor) run(ctx context.Context, e *entry) {
	defer close(e.done)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				s.logger.WithFields(map[string]interface{}{
					"service": e.name,
					"stack":   string(debug.Stack()),
				}).Error("Service panicked")
			}
		}()
		return e.service.Run(ctx)
	}()

	now := time.Now()
	s.update(e.name, func(st *ServiceStatus) {
		st.Running = false
		st.StoppedAt = &now
		if err != nil && !errors.Is(err, context.Canceled) {
			st.Error = err.Error()
		}
	})

	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.WithError(err).WithField("service", e.name).Error("Service exited with error")
		return
	}
	s.logger.WithField("service", e.name).Info("Service exited")
}

func (s *Supervisor) update(name string, fn func(*ServiceStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.status[name]; ok {
		fn(st)
	}
}

// Stop cancels every service and waits up to the timeout for each.
// Timeouts are recorded, never fatal.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		s.mu.RLock()
		cancel := s.cancel
		entries := append([]*entry(nil), s.entries...)
		s.mu.RUnlock()

		if cancel == nil {
			return
		}
		s.logger.Info("Stopping services")
		cancel()

		var wg sync.WaitGroup
		for _, e := range entries {
			wg.Add(1)
			go func(e *entry) {
				defer wg.Done()
				timer := time.NewTimer(s.timeout)
				defer timer.Stop()

				select {
				case <-e.done:
					s.update(e.name, func(st *ServiceStatus) { st.ShutdownStatus = ShutdownClean })
				case <-timer.C:
					s.update(e.name, func(st *ServiceStatus) { st.ShutdownStatus = ShutdownTimeout })
					s.logger.WithFields(map[string]interface{}{
						"service": e.name,
						"timeout": s.timeout.String(),
					}).Warn("Service did not stop in time")
				}
			}(e)
		}
		wg.Wait()
		s.logger.Info("All services stopped")
	})
}

// Wait blocks until every service goroutine has returned or ctx is done
func (s *Supervisor) Wait(ctx context.Context) {
	s.mu.RLock()
	entries := append([]*entry(nil), s.entries...)
	s.mu.RUnlock()

	for _, e := range entries {
		select {
		case <-e.done:
		case <-ctx.Done():
			return
		}
	}
}

// Status returns a copy of every service status
func (s *Supervisor) Status() map[string]ServiceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]ServiceStatus, len(s.status))
	for name, st := range s.status {
		out[name] = *st
	}
	return out
}

// Names returns registered service names, sorted
func (s *Supervisor) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.status))
	for name := range s.status {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Summary counts running and failed services
type Summary struct {
	Total   int `json:"total"`
	Running int `json:"running"`
	Failed  int `json:"failed"`
}

// Summarize counts statuses
func Summarize(status map[string]ServiceStatus) Summary {
	sum := Summary{Total: len(status)}
	for _, st := range status {
		if st.Running {
			sum.Running++
		}
		if st.Error != "" {
			sum.Failed++
		}
	}
	return sum
}

// Func adapts a function to contracts.Service
type Func func(ctx context.Context) error

// Run calls f
func (f Func) Run(ctx context.Context) error {
	return f(ctx)
}
