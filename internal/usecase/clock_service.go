package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/riskibarqy/predictor-league/internal/domain/match"
	"github.com/riskibarqy/predictor-league/internal/platform/heap"
	"github.com/riskibarqy/predictor-league/internal/platform/logging"
	"github.com/sourcegraph/conc"
)

// Openness is the three-valued result of a Match Clock admission check.
type Openness string

const (
	OpennessOpen    Openness = "open"
	OpennessClosed  Openness = "closed"
	OpennessUnknown Openness = "unknown"
)

// Closure is one entry popped off the Deadline Gate's schedule: the match
// whose betting window closed, and when the gate observed it.
type Closure struct {
	MatchID  string
	ClosedAt time.Time
}

// CloseSubscriber receives at-least-once notification of betting-window
// closures. Implementations must be idempotent: the same MatchID may arrive
// more than once, most often after a process restart replays the startup
// catch-up scan.
type CloseSubscriber func(ctx context.Context, c Closure)

// ClockService is the single authoritative source for "is betting open for
// match M at instant T", and the scheduler that fires OnClose notifications
// as each match's window elapses (spec.md §4.1).
type ClockService struct {
	matchRepo match.Repository
	logger    *logging.Logger
	now       func() time.Time

	mu          sync.Mutex
	heap        *heap.TimeHeap[string]
	subscribers []CloseSubscriber
	wake        chan struct{}
	started     bool
}

func NewClockService(matchRepo match.Repository, logger *logging.Logger) *ClockService {
	if logger == nil {
		logger = logging.Default()
	}
	return &ClockService{
		matchRepo: matchRepo,
		logger:    logger,
		now:       time.Now,
		heap:      heap.NewTimeHeap[string](),
		wake:      make(chan struct{}, 1),
	}
}

// IsOpen implements the admission predicate: open iff the match is still
// scheduled and at is strictly before its betting window close.
func (s *ClockService) IsOpen(ctx context.Context, matchID string, at time.Time) (Openness, error) {
	m, found, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return OpennessUnknown, err
	}
	if !found {
		return OpennessUnknown, nil
	}
	if match.NormalizeStatus(m.Status) == match.StatusScheduled && at.Before(m.BettingClosesAt) {
		return OpennessOpen, nil
	}
	return OpennessClosed, nil
}

// Subscribe registers a CloseSubscriber. Subscriptions made after Run has
// started still receive every closure from that point forward; they never
// receive closures already dispatched.
func (s *ClockService) Subscribe(fn CloseSubscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Schedule pushes a heap entry for the match at bettingClosesAt. Callers
// invoke this on match creation and whenever RescheduleWindow moves a
// deadline. Older entries for the same match stay in the heap: when any
// entry is popped, fireDue reloads the match and re-inserts it if its
// persisted deadline is still in the future, and dispatches otherwise, so a
// match whose deadline moved earlier can be dispatched more than once.
func (s *ClockService) Schedule(matchID string, bettingClosesAt time.Time) {
	s.mu.Lock()
	s.heap.Push(matchID, bettingClosesAt.UnixNano())
	s.mu.Unlock()
	s.nudge()
}

func (s *ClockService) nudge() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run starts the scheduler goroutine and performs the startup catch-up scan
// for matches whose betting window already elapsed while no process was
// running (spec.md §4.1 Failure semantics). It blocks until ctx is
// cancelled. The scheduler loop runs under a sourcegraph/conc WaitGroup, so
// a panic in it is re-raised from Run instead of silently killing the loop.
func (s *ClockService) Run(ctx context.Context) error {
	if err := s.catchUp(ctx); err != nil {
		return err
	}

	var wg conc.WaitGroup
	wg.Go(func() { s.scheduleLoop(ctx) })
	wg.Wait()
	return nil
}

func (s *ClockService) catchUp(ctx context.Context) error {
	scheduled, err := s.matchRepo.ListScheduled(ctx)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	for _, m := range scheduled {
		if !m.BettingClosesAt.After(now) {
			s.dispatch(ctx, Closure{MatchID: m.ID, ClosedAt: now})
			continue
		}
		s.Schedule(m.ID, m.BettingClosesAt)
	}
	return nil
}

func (s *ClockService) scheduleLoop(ctx context.Context) {
	for {
		wait, ok := s.nextWait()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
				continue
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
			continue
		case <-timer.C:
			s.fireDue(ctx)
		}
	}
}

// nextWait returns how long to sleep until the heap's earliest deadline,
// or ok=false if the heap is empty.
func (s *ClockService) nextWait() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	top, ok := s.heap.Peek()
	if !ok {
		return 0, false
	}
	wait := time.Unix(0, top.Priority).Sub(s.now())
	if wait < 0 {
		wait = 0
	}
	return wait, true
}

// fireDue pops every heap entry whose deadline has elapsed, re-checks the
// persisted deadline (clock-skew / concurrent reschedule guard), and
// dispatches OnClose for matches that truly closed.
func (s *ClockService) fireDue(ctx context.Context) {
	now := s.now().UTC()
	for {
		s.mu.Lock()
		top, ok := s.heap.Peek()
		if !ok || top.Priority > now.UnixNano() {
			s.mu.Unlock()
			return
		}
		s.heap.Pop()
		s.mu.Unlock()

		m, found, err := s.matchRepo.GetByID(ctx, top.Value)
		if err != nil {
			s.logger.WarnContext(ctx, "deadline gate: reload match failed", "match_id", top.Value, "error", err)
			continue
		}
		if !found || match.NormalizeStatus(m.Status) != match.StatusScheduled {
			continue
		}
		if m.BettingClosesAt.After(now) {
			// Deadline moved forward since this entry was queued; re-insert
			// at the new time instead of firing early.
			s.Schedule(m.ID, m.BettingClosesAt)
			continue
		}
		s.dispatch(ctx, Closure{MatchID: m.ID, ClosedAt: now})
	}
}

func (s *ClockService) dispatch(ctx context.Context, c Closure) {
	s.mu.Lock()
	subs := make([]CloseSubscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	for _, sub := range subs {
		sub(ctx, c)
	}
}
