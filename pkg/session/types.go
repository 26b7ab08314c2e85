package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/recallhq/engine/pkg/clock"
	"github.com/recallhq/engine/pkg/config"
	"github.com/recallhq/engine/pkg/events"
	"github.com/recallhq/engine/pkg/evaluator"
	"github.com/recallhq/engine/pkg/fsrs"
	"github.com/recallhq/engine/pkg/idgen"
	"github.com/recallhq/engine/pkg/llm"
	"github.com/recallhq/engine/pkg/models"
	"github.com/recallhq/engine/pkg/rabbithole"
	"github.com/recallhq/engine/pkg/repository"
	"github.com/recallhq/engine/pkg/transcription"
)

// EventSink delivers a server frame to whatever transport owns a given
// key (in this engine, the recall set's ID doubles as the transport
// key: a connection is registered once per set and spans that set's
// resumed/paused/new sessions). Implemented by pkg/api over
// pkg/events.ConnectionManager.
type EventSink interface {
	Emit(key string, msg events.ServerMessage)
}

// NopSink discards every event; useful for tests that only care about
// persisted state.
type NopSink struct{}

// Emit implements EventSink by doing nothing.
func (NopSink) Emit(string, events.ServerMessage) {}

// Deps bundles the Engine's external collaborators.
type Deps struct {
	Repos               repository.Repositories
	Clock               clock.Clock
	IDs                 idgen.Generator
	Scheduler           *fsrs.Scheduler
	TutorClient         llm.Client
	EvaluatorClient     llm.Client
	RabbitholeClient    llm.Client
	TranscriptionClient llm.Client
	Sink                EventSink
	Logger              *slog.Logger
}

// Engine runs every session's state machine. One Engine serves every
// recall set in the process; each set's study session runs as its own
// task, serialized behind that session's mutex, so sessions across
// different sets make progress independently.
type Engine struct {
	repos     repository.Repositories
	clock     clock.Clock
	ids       idgen.Generator
	scheduler *fsrs.Scheduler

	tutorClient         llm.Client
	evaluatorClient     llm.Client
	rabbitholeClient    llm.Client
	transcriptionClient llm.Client

	engineCfg config.EngineConfig
	llmCfg    config.LLMProviderConfig

	sink   EventSink
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*runningSession
}

// NewEngine builds an Engine. engineCfg/llmCfg should already have
// defaults merged in by pkg/config.
func NewEngine(deps Deps, engineCfg config.EngineConfig, llmCfg config.LLMProviderConfig) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := deps.Sink
	if sink == nil {
		sink = NopSink{}
	}
	return &Engine{
		repos:               deps.Repos,
		clock:               deps.Clock,
		ids:                 deps.IDs,
		scheduler:           deps.Scheduler,
		tutorClient:         deps.TutorClient,
		evaluatorClient:     deps.EvaluatorClient,
		rabbitholeClient:    deps.RabbitholeClient,
		transcriptionClient: deps.TranscriptionClient,
		engineCfg:           engineCfg,
		llmCfg:              llmCfg,
		sink:                sink,
		logger:              logger,
		sessions:            make(map[string]*runningSession),
	}
}

// runningSession is the in-memory runtime state for one recall set's
// live study session: the persisted Session plus everything the turn
// loop needs that isn't worth round-tripping through a repository on
// every step. A field mutex guards the bookkeeping fields mutated
// outside the turn's own goroutine (busy, cancelTurn), mirroring the
// thread-safe-mutator shape used for per-session cancellation
// elsewhere in this package.
type runningSession struct {
	mu sync.Mutex

	key       string // recall set ID; doubles as the transport key
	recallSet *models.RecallSet
	session   *models.Session

	points  map[string]*models.RecallPoint // all target points, by ID
	checked map[string]bool                // recall point ID -> checked this run

	rabbitholes      *rabbithole.Stack
	rabbitholeEvents []*models.RabbitholeEvent // parallel to rabbitholes, one open event per frame
	pendingTicks     []events.ServerMessage    // point_recalled ticks buffered while a rabbithole is active

	transcriber *transcription.Pipeline

	busy          bool
	lastTurnEnd   time.Time
	activeTimeMs  int64
	turnElapsedMs int64 // wall-clock gap since the previous turn ended; threaded into this turn's RecallOutcome/RecallHistoryEntry

	cancelTurn context.CancelFunc // best-effort cancel for `abandon`
}

func (rs *runningSession) uncheckedPoints() []evaluator.ChecklistPoint {
	out := make([]evaluator.ChecklistPoint, 0, len(rs.points)-len(rs.checked))
	for id, p := range rs.points {
		if rs.checked[id] {
			continue
		}
		out = append(out, evaluator.ChecklistPoint{ID: id, Content: p.Content, Context: p.Context})
	}
	return out
}

func (rs *runningSession) recalledCount() int {
	return len(rs.checked)
}

func (rs *runningSession) totalCount() int {
	return len(rs.points)
}

func (rs *runningSession) allRecalled() bool {
	return rs.recalledCount() >= rs.totalCount()
}
