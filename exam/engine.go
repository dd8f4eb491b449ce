package exam

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"certprep-server/metrics"
	"certprep-server/models"
	"certprep-server/tracing"
)

// Mode selects practice or mock-exam behavior.
type Mode string

const (
	ModePractice Mode = "practice"
	ModeMock     Mode = "mock"
)

// ParseMode validates a mode name from a request path.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePractice, ModeMock:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Phase is the coarse session state.
type Phase string

const (
	PhaseSetup     Phase = "setup"
	PhaseActive    Phase = "active"
	PhaseSubmitted Phase = "submitted"
)

// Direction is a navigation step.
type Direction int

const (
	Previous Direction = iota
	Next
)

var (
	// ErrNoContent is returned by Start when the filtered pool yields no questions.
	ErrNoContent = errors.New("no questions available for the selected filters")
	// ErrNotActive is returned by operations that need an active session.
	ErrNotActive = errors.New("session is not active")
	// ErrInvalidOption is returned by Select for an option the question does not have.
	ErrInvalidOption = errors.New("option index out of range")
	// ErrInvalidPosition is returned by GoTo for a position outside the session.
	ErrInvalidPosition = errors.New("position out of range")
	// ErrUnknownMode is returned by ParseMode for anything but practice or mock.
	ErrUnknownMode = errors.New("unknown session mode")
)

const (
	triggerUser  = "user"
	triggerTimer = "timer"

	// remaining seconds are written every few ticks; every other mutation is written at once
	persistEveryTicks = 5

	defaultSubmitTimeout = 10 * time.Second
)

// ResultSubmitter receives mock-exam results once per submission.
type ResultSubmitter interface {
	SubmitResult(ctx context.Context, sub models.ExamSubmission) error
}

// Options configures an Engine. Store is required; everything else has a default.
type Options struct {
	UserID     string
	Mode       Mode
	Store      ProgressStore
	Submitter  ResultSubmitter
	Clock      clockwork.Clock
	Rand       *rand.Rand
	Logger     *zap.Logger
	Categories []string      // canonical categories balanced in mock mode
	TargetSize int           // mock-mode question count
	Duration   time.Duration // mock-mode countdown; zero disables it

	SubmitTimeout time.Duration
}

// Engine is the session state machine for one user in one mode. All
// operations and timer callbacks are serialized by mu.
type Engine struct {
	mu sync.Mutex

	userID     string
	mode       Mode
	key        string
	store      ProgressStore
	submitter  ResultSubmitter
	clock      clockwork.Clock
	rng        *rand.Rand
	log        *zap.Logger
	categories []string
	targetSize int
	duration   time.Duration
	submitTO   time.Duration
	timer      *Countdown
	pending    sync.WaitGroup

	filters   Filters
	sessionID string
	questions []models.Question
	ledger    Ledger
	position  int
	phase     Phase
	remaining int
	startedAt time.Time
	elapsed   time.Duration
	result    *Result
}

// NewEngine returns an engine in the setup phase.
func NewEngine(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(opts.Clock.Now().UnixNano()))
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = defaultSubmitTimeout
	}
	e := &Engine{
		userID:     opts.UserID,
		mode:       opts.Mode,
		key:        ProgressKey(opts.UserID, opts.Mode),
		store:      opts.Store,
		submitter:  opts.Submitter,
		clock:      opts.Clock,
		rng:        opts.Rand,
		log:        opts.Logger.With(zap.String("user_id", opts.UserID), zap.String("mode", string(opts.Mode))),
		categories: opts.Categories,
		targetSize: opts.TargetSize,
		duration:   opts.Duration,
		submitTO:   opts.SubmitTimeout,
		phase:      PhaseSetup,
	}
	e.timer = NewCountdown(e.clock, &e.mu)
	return e
}

// Open restores the session from the progress store against a freshly built
// question list. A missing, malformed or mismatched record leaves the engine
// in setup. It reports whether a record was applied.
func (e *Engine) Open(ctx context.Context, pool []models.Question) bool {
	ctx, span := tracing.Tracer.Start(ctx, "exam.Open")
	defer span.End()
	span.SetAttributes(attribute.String("exam.mode", string(e.mode)), attribute.Int("exam.pool_size", len(pool)))

	e.mu.Lock()
	defer e.mu.Unlock()

	e.timer.Stop()
	rec, ok := e.loadLocked(ctx)
	if !ok {
		metrics.SessionsHydrated.WithLabelValues(string(e.mode), "absent").Inc()
		e.clearLocked()
		return false
	}

	built := Build(pool, e.buildSpec(rec.Filters), e.rng)
	questions, fits := rec.resolve(built, pool)
	if !fits {
		e.log.Info("discarding progress record that does not match the question set",
			zap.Int("record_len", len(rec.Answers)), zap.Int("built_len", len(built)))
		metrics.SessionsHydrated.WithLabelValues(string(e.mode), "mismatch").Inc()
		e.clearLocked()
		return false
	}

	e.filters = rec.Filters
	e.sessionID = rec.SessionID
	e.questions = questions
	e.ledger = rec.Answers.Clone()
	e.position = rec.Current
	if e.position < 0 || e.position >= len(questions) {
		e.position = 0
	}
	e.phase = rec.Phase
	e.startedAt = rec.StartedAt
	e.elapsed = time.Duration(rec.ElapsedSeconds) * time.Second
	e.result = nil
	e.remaining = int(e.duration / time.Second)
	if rec.RemainingSeconds != nil {
		e.remaining = *rec.RemainingSeconds
	}
	metrics.SessionsHydrated.WithLabelValues(string(e.mode), "applied").Inc()

	switch {
	case e.phase == PhaseSubmitted:
		res := Score(e.questions, e.ledger, e.elapsed)
		e.result = &res
	case e.timed() && e.remaining <= 0:
		e.log.Info("countdown ran out while the session was closed")
		e.submitLocked(ctx, triggerTimer)
	case e.timed():
		e.timer.Start(e.remaining, e.onTickLocked, e.onExpireLocked)
	}
	return true
}

// Start builds a new session from pool and makes it active, replacing any
// stored progress. An empty build returns ErrNoContent and leaves the current
// session untouched.
func (e *Engine) Start(ctx context.Context, pool []models.Question, filters Filters) error {
	ctx, span := tracing.Tracer.Start(ctx, "exam.Start")
	defer span.End()
	span.SetAttributes(attribute.String("exam.mode", string(e.mode)))

	e.mu.Lock()
	defer e.mu.Unlock()

	questions := Build(pool, e.buildSpec(filters), e.rng)
	if len(questions) == 0 {
		// the current session, its countdown and its record stay as they are
		return ErrNoContent
	}
	e.timer.Stop()

	e.filters = filters
	e.sessionID = uuid.NewString()
	e.questions = questions
	e.ledger = NewLedger(len(questions))
	e.position = 0
	e.phase = PhaseActive
	e.startedAt = e.clock.Now()
	e.elapsed = 0
	e.result = nil
	e.remaining = 0
	if e.timed() {
		e.remaining = int(e.duration / time.Second)
		e.timer.Start(e.remaining, e.onTickLocked, e.onExpireLocked)
	}
	metrics.SessionsStarted.WithLabelValues(string(e.mode)).Inc()
	span.SetAttributes(attribute.String("exam.session_id", e.sessionID), attribute.Int("exam.questions", len(questions)))
	e.log.Info("session started", zap.String("session_id", e.sessionID), zap.Int("questions", len(questions)))
	e.persistLocked(ctx)
	return nil
}

// Select records option as the answer to the current question.
func (e *Engine) Select(ctx context.Context, option int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseActive {
		return ErrNotActive
	}
	q := e.questions[e.position]
	if !q.HasOption(option) {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrInvalidOption, option, len(q.Options))
	}
	if cur, ok := e.ledger.At(e.position); ok && cur == option {
		return nil
	}
	e.ledger.set(e.position, option)
	e.persistLocked(ctx)
	return nil
}

// Advance moves one question back or forward, clamped at the ends. Next on the
// last question submits the session.
func (e *Engine) Advance(ctx context.Context, dir Direction) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseActive {
		return ErrNotActive
	}
	switch dir {
	case Previous:
		if e.position == 0 {
			return nil
		}
		e.position--
	case Next:
		if e.position == len(e.questions)-1 {
			e.submitLocked(ctx, triggerUser)
			return nil
		}
		e.position++
	default:
		return fmt.Errorf("unknown direction %d", dir)
	}
	e.persistLocked(ctx)
	return nil
}

// GoTo jumps to position.
func (e *Engine) GoTo(ctx context.Context, position int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseActive {
		return ErrNotActive
	}
	if position < 0 || position >= len(e.questions) {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrInvalidPosition, position, len(e.questions))
	}
	if position != e.position {
		e.position = position
		e.persistLocked(ctx)
	}
	return nil
}

// NextUnanswered moves to the next unanswered question after the current one,
// wrapping around. It reports false when every question is answered.
func (e *Engine) NextUnanswered(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseActive {
		return false, ErrNotActive
	}
	next, ok := e.ledger.NextUnanswered(e.position)
	if !ok {
		return false, nil
	}
	if next != e.position {
		e.position = next
		e.persistLocked(ctx)
	}
	return true, nil
}

// Submit ends the active session and returns its result.
func (e *Engine) Submit(ctx context.Context) (Result, error) {
	ctx, span := tracing.Tracer.Start(ctx, "exam.Submit")
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseActive {
		return Result{}, ErrNotActive
	}
	e.submitLocked(ctx, triggerUser)
	return *e.result, nil
}

// Reset drops the session and its stored progress, returning to setup.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.timer.Stop()
	e.clearLocked()
	if err := e.store.Remove(ctx, e.key); err != nil {
		e.log.Warn("failed to clear progress record", zap.Error(err))
		return fmt.Errorf("clear progress for %s: %w", e.key, err)
	}
	e.log.Info("session reset")
	return nil
}

// Close stops the countdown and waits for in-flight result submissions.
func (e *Engine) Close() {
	e.mu.Lock()
	e.timer.Stop()
	e.mu.Unlock()
	e.pending.Wait()
}

// Snapshot is a copy of the engine state safe to read without the lock.
type Snapshot struct {
	SessionID string
	Mode      Mode
	Phase     Phase
	Filters   Filters
	Position  int
	Questions []models.Question
	Ledger    Ledger
	// Remaining is nil unless the session has a countdown.
	Remaining *int
	Result    *Result
}

// Current returns the question at the current position.
func (s Snapshot) Current() (models.Question, bool) {
	if s.Position < 0 || s.Position >= len(s.Questions) {
		return models.Question{}, false
	}
	return s.Questions[s.Position], true
}

// Snapshot copies the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		SessionID: e.sessionID,
		Mode:      e.mode,
		Phase:     e.phase,
		Filters:   e.filters,
		Position:  e.position,
		Questions: append([]models.Question(nil), e.questions...),
		Ledger:    e.ledger.Clone(),
	}
	if e.timed() && e.phase != PhaseSetup {
		r := e.remaining
		s.Remaining = &r
	}
	if e.result != nil {
		res := *e.result
		s.Result = &res
	}
	return s
}

func (e *Engine) timed() bool {
	return e.mode == ModeMock && e.duration >= time.Second
}

func (e *Engine) buildSpec(filters Filters) BuildSpec {
	spec := BuildSpec{Filters: filters}
	if e.mode == ModeMock {
		spec.TargetSize = e.targetSize
		spec.Categories = e.categories
	}
	return spec
}

func (e *Engine) onTickLocked(remaining int) {
	e.remaining = remaining
	if remaining > 0 && remaining%persistEveryTicks == 0 {
		e.persistLocked(context.Background())
	}
}

func (e *Engine) onExpireLocked() {
	if e.phase != PhaseActive {
		return
	}
	e.log.Info("countdown expired, submitting", zap.Int("answered", e.ledger.Answered()))
	e.submitLocked(context.Background(), triggerTimer)
}

// submitLocked moves an active session to submitted. The phase check in the
// callers makes this the single transition out of active.
func (e *Engine) submitLocked(ctx context.Context, trigger string) {
	e.timer.Stop()
	e.phase = PhaseSubmitted
	e.elapsed = e.elapsedLocked()
	res := Score(e.questions, e.ledger, e.elapsed)
	e.result = &res
	metrics.SessionsSubmitted.WithLabelValues(string(e.mode), trigger).Inc()
	e.log.Info("session submitted",
		zap.String("session_id", e.sessionID),
		zap.String("trigger", trigger),
		zap.Int("correct", res.Correct),
		zap.Int("total", res.Total))
	e.persistLocked(ctx)

	if e.mode == ModeMock && e.submitter != nil {
		e.sendResult(res.Submission(e.sessionID, e.userID))
	}
}

// sendResult hands the submission to the result store without blocking the
// session. Failures are logged only.
func (e *Engine) sendResult(sub models.ExamSubmission) {
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.submitTO)
		defer cancel()
		if err := e.submitter.SubmitResult(ctx, sub); err != nil {
			metrics.ResultSubmissions.WithLabelValues("failed").Inc()
			e.log.Error("failed to save exam result", zap.String("session_id", sub.SessionID), zap.Error(err))
			return
		}
		metrics.ResultSubmissions.WithLabelValues("ok").Inc()
	}()
}

func (e *Engine) elapsedLocked() time.Duration {
	if e.timed() {
		used := int(e.duration/time.Second) - e.remaining
		if used < 0 {
			used = 0
		}
		return time.Duration(used) * time.Second
	}
	if e.startedAt.IsZero() {
		return 0
	}
	return e.clock.Since(e.startedAt)
}

func (e *Engine) clearLocked() {
	e.sessionID = ""
	e.questions = nil
	e.ledger = nil
	e.position = 0
	e.phase = PhaseSetup
	e.remaining = 0
	e.startedAt = time.Time{}
	e.elapsed = 0
	e.result = nil
}

func (e *Engine) loadLocked(ctx context.Context) (progressRecord, bool) {
	raw, found, err := e.store.Get(ctx, e.key)
	if err != nil {
		e.log.Warn("failed to read progress record", zap.Error(err))
		return progressRecord{}, false
	}
	if !found {
		return progressRecord{}, false
	}
	rec, err := decodeProgress(raw)
	if err != nil {
		e.log.Warn("ignoring malformed progress record", zap.Error(err))
		return progressRecord{}, false
	}
	return rec, true
}

func (e *Engine) persistLocked(ctx context.Context) {
	if e.phase == PhaseSetup {
		return
	}
	rec := progressRecord{
		SessionID:   e.sessionID,
		Answers:     e.ledger,
		Current:     e.position,
		Phase:       e.phase,
		Filters:     e.filters,
		QuestionIDs: questionIDs(e.questions),
		StartedAt:   e.startedAt,
	}
	if e.timed() {
		r := e.remaining
		rec.RemainingSeconds = &r
	}
	if e.phase == PhaseSubmitted {
		rec.ElapsedSeconds = int(e.elapsed / time.Second)
	}
	raw, err := rec.encode()
	if err != nil {
		e.log.Error("failed to encode progress record", zap.Error(err))
		return
	}
	if err := e.store.Set(ctx, e.key, raw); err != nil {
		e.log.Warn("failed to write progress record", zap.Error(err))
	}
}
