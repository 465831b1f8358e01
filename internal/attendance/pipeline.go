package attendance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
)

// Stage names a step of scan processing.
type Stage string

const (
	StageReceived           Stage = "received"
	StageValidatingIdentity Stage = "validating-identity"
	StageValidatingSchedule Stage = "validating-schedule"
	StageCheckingDuplicate  Stage = "checking-duplicate"
	StageCommitting         Stage = "committing"
)

// Observer receives one call per processed scan.
type Observer interface {
	ObserveScan(stage Stage, out Outcome, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveScan(Stage, Outcome, time.Duration) {}

// Pipeline turns scan events into attendance records.
type Pipeline struct {
	resolver *Resolver
	matcher  *ScheduleMatcher
	ledger   *Ledger
	validate *validator.Validate
	loc      *time.Location
	now      func() time.Time
	observer Observer
	logger   *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLocation sets the zone used to derive today's weekday and calendar day.
func WithLocation(loc *time.Location) PipelineOption {
	return func(p *Pipeline) {
		if loc != nil {
			p.loc = loc
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithObserver attaches an outcome observer such as a metrics recorder.
func WithObserver(o Observer) PipelineOption {
	return func(p *Pipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPipeline wires the resolver, matcher and ledger into one pipeline.
func NewPipeline(resolver *Resolver, matcher *ScheduleMatcher, ledger *Ledger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		resolver: resolver,
		matcher:  matcher,
		ledger:   ledger,
		validate: validator.New(),
		loc:      time.Local,
		now:      time.Now,
		observer: nopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// scan carries values resolved by earlier steps to later ones.
type scan struct {
	event   ScanEvent
	now     time.Time
	student Student
	room    Room
	session Session
}

// step runs one stage. done reports a terminal outcome; err aborts with a
// server error.
type step struct {
	stage Stage
	run   func(ctx context.Context, s *scan) (out Outcome, done bool, err error)
}

// Process runs every step in order and stops at the first terminal outcome.
// It never returns an error: store failures become a rejected server error.
func (p *Pipeline) Process(ctx context.Context, evt ScanEvent) Outcome {
	start := time.Now()
	s := &scan{event: evt, now: p.now().In(p.loc)}

	steps := []step{
		{StageReceived, p.checkComplete},
		{StageValidatingIdentity, p.resolveIdentity},
		{StageValidatingSchedule, p.matchSchedule},
		{StageCheckingDuplicate, p.checkDuplicate},
		{StageCommitting, p.commit},
	}

	stage := StageReceived
	out := rejected(ReasonServerError)
	for _, st := range steps {
		stage = st.stage
		res, done, err := st.run(ctx, s)
		if err != nil {
			p.logger.ErrorContext(ctx, "scan processing failed",
				slog.String("scan_id", evt.ID),
				slog.String("tag", evt.Tag),
				slog.String("device_id", evt.DeviceID),
				slog.String("stage", string(stage)),
				slog.Any("error", err),
			)
			out = rejected(ReasonServerError)
			break
		}
		if done {
			out = res
			break
		}
	}

	if out.Status == StatusRejected && out.Reason != ReasonServerError {
		p.logger.InfoContext(ctx, "scan rejected",
			slog.String("scan_id", evt.ID),
			slog.String("stage", string(stage)),
			slog.String("reason", out.Reason),
		)
	}
	p.observer.ObserveScan(stage, out, time.Since(start))
	return out
}

func (p *Pipeline) checkComplete(_ context.Context, s *scan) (Outcome, bool, error) {
	if err := p.validate.Struct(s.event); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			return rejected(ReasonIncomplete), true, nil
		}
		return Outcome{}, false, err
	}
	return Outcome{}, false, nil
}

func (p *Pipeline) resolveIdentity(ctx context.Context, s *scan) (Outcome, bool, error) {
	st, err := p.resolver.ResolveStudent(ctx, s.event.Tag)
	switch {
	case errors.Is(err, ErrIncompleteScan):
		return rejected(ReasonIncomplete), true, nil
	case errors.Is(err, ErrTagNotRegistered):
		return rejected(ReasonTagNotRegistered), true, nil
	case err != nil:
		return Outcome{}, false, err
	}
	room, err := p.resolver.ResolveRoom(ctx, s.event.DeviceID)
	switch {
	case errors.Is(err, ErrIncompleteScan):
		return rejected(ReasonIncomplete), true, nil
	case errors.Is(err, ErrDeviceNotRecognized):
		return rejected(ReasonDeviceUnknown), true, nil
	case err != nil:
		return Outcome{}, false, err
	}
	s.student, s.room = st, room
	return Outcome{}, false, nil
}

func (p *Pipeline) matchSchedule(ctx context.Context, s *scan) (Outcome, bool, error) {
	session, err := p.matcher.FindActiveSession(ctx, s.student, s.room, s.now)
	if errors.Is(err, ErrNoActiveSession) {
		return rejected(ReasonNoSchedule), true, nil
	}
	if err != nil {
		return Outcome{}, false, err
	}
	s.session = session
	return Outcome{}, false, nil
}

func (p *Pipeline) checkDuplicate(ctx context.Context, s *scan) (Outcome, bool, error) {
	exists, err := p.ledger.Exists(ctx, KeyFor(s.student.ID, s.session.ID, s.now))
	if err != nil {
		return Outcome{}, false, err
	}
	if exists {
		return processed(ReasonAlreadyRecorded), true, nil
	}
	return Outcome{}, false, nil
}

func (p *Pipeline) commit(ctx context.Context, s *scan) (Outcome, bool, error) {
	res, err := p.ledger.Commit(ctx, s.student.ID, s.session, s.room, s.now, s.event)
	if err != nil {
		return Outcome{}, false, err
	}
	p.logger.DebugContext(ctx, "ledger commit", slog.String("scan_id", s.event.ID), slog.String("result", res.String()))
	if res == AlreadyExists {
		return processed(ReasonAlreadyRecorded), true, nil
	}
	return processed(ReasonSaved), true, nil
}
