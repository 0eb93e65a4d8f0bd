package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/nrfconnect/auto-pts/internal/model"
	"github.com/nrfconnect/auto-pts/internal/ptscontrol"
	"github.com/nrfconnect/auto-pts/internal/testcase"
)

// ErrNotFound is returned when a run ID is unknown.
var ErrNotFound = errors.New("run not found")

// Facade is the part of ptscontrol.Control the runner drives.
type Facade interface {
	RunTestCaseObject(ctx context.Context, tc ptscontrol.TestCase) error
}

// Options configures how runs answer implicit sends.
type Options struct {
	// Answers is consulted when Forward is nil.
	Answers *testcase.Answers

	// Forward, when set, receives every notification of every run.
	Forward ptscontrol.Receiver
}

// Stats holds aggregate run statistics.
type Stats struct {
	Total          int            `json:"total"`
	CountByStatus  map[string]int `json:"count_by_status"`
	CountByVerdict map[string]int `json:"count_by_verdict"`
	AvgDurationMS  float64        `json:"avg_duration_ms"`
}

type runState struct {
	run  model.Run
	logs []model.LogLine
	done chan struct{}
}

// Runner orchestrates asynchronous test case runs, one at a time.
type Runner struct {
	control Facade
	logger  *slog.Logger
	opts    Options
	broker  *LogBroker
	wg      sync.WaitGroup

	mu     sync.Mutex
	runs   map[string]*runState
	active string
}

// New creates a runner over control.
func New(control Facade, logger *slog.Logger, opts Options) *Runner {
	return &Runner{
		control: control,
		logger:  logger,
		opts:    opts,
		broker:  NewLogBroker(),
		runs:    make(map[string]*runState),
	}
}

// Broker returns the runner's log broker for SSE subscription.
func (r *Runner) Broker() *LogBroker {
	return r.broker
}

// Submit records a pending run and starts it on a goroutine. It fails with
// ptscontrol.ErrAlreadyRunning while another run is active.
func (r *Runner) Submit(_ context.Context, project, testCase string) (*model.Run, error) {
	if project == "" || testCase == "" {
		return nil, fmt.Errorf("project and test case are required")
	}

	r.mu.Lock()
	if r.active != "" {
		r.mu.Unlock()
		return nil, ptscontrol.ErrAlreadyRunning
	}
	created := time.Now().UTC()
	st := &runState{
		run: model.Run{
			ID:        model.NewRunID(created),
			Project:   project,
			TestCase:  testCase,
			Status:    model.StatusPending,
			CreatedAt: created,
		},
		done: make(chan struct{}),
	}
	r.runs[st.run.ID] = st
	r.active = st.run.ID
	snapshot := st.run
	r.mu.Unlock()

	r.wg.Go(func() {
		r.execute(st.run.ID, project, testCase)
	})

	return &snapshot, nil
}

// Wait blocks until all in-flight runs complete.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// WaitRun blocks until the run finishes or ctx is done, and returns its
// final record.
func (r *Runner) WaitRun(ctx context.Context, id string) (*model.Run, error) {
	r.mu.Lock()
	st, ok := r.runs[id]
	r.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	select {
	case <-st.done:
		return r.Get(id)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get returns a copy of the run record.
func (r *Runner) Get(id string) (*model.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	run := st.run
	return &run, nil
}

// List returns runs ordered by creation time, newest first, along with the
// total number of runs.
func (r *Runner) List(limit, offset int) ([]*model.Run, int) {
	r.mu.Lock()
	all := make([]*model.Run, 0, len(r.runs))
	for _, st := range r.runs {
		run := st.run
		all = append(all, &run)
	}
	r.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return []*model.Run{}, total
	}
	end := min(offset+limit, total)
	return all[offset:end], total
}

// Logs returns the log lines recorded for a run so far.
func (r *Runner) Logs(id string) ([]model.LogLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]model.LogLine, len(st.logs))
	copy(out, st.logs)
	return out, nil
}

// Stats aggregates all recorded runs.
func (r *Runner) Stats() *Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &Stats{
		CountByStatus:  make(map[string]int),
		CountByVerdict: make(map[string]int),
	}
	var durTotal, durCount int
	for _, st := range r.runs {
		s.Total++
		s.CountByStatus[st.run.Status]++
		if st.run.Verdict != "" {
			s.CountByVerdict[st.run.Verdict]++
		}
		if st.run.DurationMS != nil {
			durTotal += *st.run.DurationMS
			durCount++
		}
	}
	if durCount > 0 {
		s.AvgDurationMS = float64(durTotal) / float64(durCount)
	}
	return s
}

// execute runs the lifecycle pending→running→completed/failed.
func (r *Runner) execute(id, project, name string) {
	defer r.broker.Close(id)

	activeRuns.Inc()
	defer activeRuns.Dec()

	start := time.Now().UTC()
	if err := r.transition(id, model.StatusRunning, func(run *model.Run) {
		run.StartedAt = &start
	}); err != nil {
		r.logger.Error("failed to transition to running", "run_id", id, "error", err)
		_ = r.transition(id, model.StatusFailed, func(run *model.Run) {
			run.Error = fmt.Sprintf("failed to start: %v", err)
		})
		return
	}

	tc := testcase.New(project, name, testcase.Options{
		Answers: r.opts.Answers,
		Forward: r.opts.Forward,
		Sink:    func(ev testcase.Event) { r.record(id, ev) },
	})

	r.logger.Info("run started", "run_id", id, "project", project, "test_case", name)
	runErr := r.control.RunTestCaseObject(context.Background(), tc)

	finished := time.Now().UTC()
	dur := int(finished.Sub(start).Milliseconds())
	status := model.StatusCompleted
	if runErr != nil {
		status = model.StatusFailed
	}
	verdict := tc.Status()

	err := r.transition(id, status, func(run *model.Run) {
		run.Verdict = verdict
		run.DurationMS = &dur
		run.FinishedAt = &finished
		if runErr != nil {
			run.Error = runErr.Error()
		}
	})
	if err != nil {
		r.logger.Error("failed to finish run", "run_id", id, "error", err)
	}

	runsTotal.WithLabelValues(status, verdict).Inc()
	runDuration.Observe(finished.Sub(start).Seconds())
	r.logger.Info("run finished", "run_id", id, "status", status, "verdict", verdict, "duration_ms", dur, "error", runErr)
}

// transition moves run id to status, applying update under the lock. The
// final transition also releases the active slot and the run's waiters.
func (r *Runner) transition(id, status string, update func(*model.Run)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.runs[id]
	if !ok {
		return ErrNotFound
	}
	if !model.ValidTransition(st.run.Status, status) {
		return fmt.Errorf("invalid run transition %s -> %s", st.run.Status, status)
	}
	st.run.Status = status
	if update != nil {
		update(&st.run)
	}
	if model.Terminal(status) {
		if r.active == id {
			r.active = ""
		}
		close(st.done)
	}
	return nil
}

// record stores one log event and publishes it to live subscribers.
func (r *Runner) record(id string, ev testcase.Event) {
	r.mu.Lock()
	st, ok := r.runs[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	line := model.LogLine{
		RunID:   id,
		Seq:     len(st.logs),
		Type:    int(ev.Type),
		Label:   ev.Label,
		Time:    ev.Time,
		Message: ev.Message,
	}
	st.logs = append(st.logs, line)
	r.mu.Unlock()

	r.broker.Publish(id, line)
}
