package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/engine/pkg/clock"
	"github.com/recallhq/engine/pkg/config"
	"github.com/recallhq/engine/pkg/events"
	"github.com/recallhq/engine/pkg/fsrs"
	"github.com/recallhq/engine/pkg/idgen"
	"github.com/recallhq/engine/pkg/llm/llmtest"
	"github.com/recallhq/engine/pkg/models"
	"github.com/recallhq/engine/pkg/repository"
	"github.com/recallhq/engine/pkg/session"
)

func testEngineCfg() config.EngineConfig {
	return config.EngineConfig{
		MaxTargetPointsPerSession:    10,
		EvaluatorConfidenceThreshold: 0.5,
		RabbitholeEnterThreshold:     0.7,
		RabbitholeReturnThreshold:    0.6,
		LLMTimeoutSeconds:            60,
		EvaluatorRecentMessageWindow: 6,
		StallThresholdMs:             30000,
	}
}

func testLLMCfg() config.LLMProviderConfig {
	return config.LLMProviderConfig{
		TutorModel:         "tutor-model",
		EvaluatorModel:     "evaluator-model",
		TranscriptionModel: "transcription-model",
		RabbitholeModel:    "rabbithole-model",
	}
}

// wsFixture wires a real Server behind an httptest.Server, with a fully
// scripted engine underneath, so the WebSocket round trip exercises the
// actual accept/read/dispatch loop in handler_ws.go rather than calling
// the engine directly (as pkg/session's own tests do).
type wsFixture struct {
	server *httptest.Server
	tutor  *llmtest.Client
	evalc  *llmtest.Client
	rabbit *llmtest.Client
	transc *llmtest.Client
}

func newWSFixture(t *testing.T, now time.Time) *wsFixture {
	t.Helper()
	repos := repository.NewMemoryRepositories()

	recallSet := &models.RecallSet{
		ID:                     "rs_1",
		Name:                   "Spanish Verbs",
		Description:            "Conjugation of common Spanish verbs.",
		Status:                 models.RecallSetStatusActive,
		DiscussionSystemPrompt: "You are a patient tutor.",
	}
	require.NoError(t, repos.RecallSets.Create(context.Background(), recallSet))

	point := &models.RecallPoint{
		ID:          "rp_1",
		RecallSetID: "rs_1",
		Content:     "The verb 'hablar' means 'to speak'.",
		Context:     "Regular -ar verb conjugation practice.",
		FSRSState:   models.FSRSState{Due: now.Add(-time.Hour), State: models.FSRSStateNew},
	}
	require.NoError(t, repos.RecallPoints.Create(context.Background(), point))

	tutor := llmtest.New()
	evalc := llmtest.New()
	rabbit := llmtest.New()
	transc := llmtest.New()

	// StartSession: terminology extraction, then the opening reply.
	transc.AddSequential(llmtest.ScriptEntry{CompleteText: `{"terms":["hablar"]}`})
	// Opening Complete and the first turn's Generate share index 0 on
	// this client (separate counters over the same entries slice), so
	// both fields live on a single entry.
	tutor.AddSequential(llmtest.ScriptEntry{
		CompleteText: "Welcome! Let's begin: what does 'hablar' mean?",
		Text:         "Great answer, 'hablar' does mean 'to speak'.",
	})

	// HandleUserMessage: transcription cleanup, rabbithole-enter check,
	// then the evaluator call after the tutor's streamed reply.
	transc.AddSequential(llmtest.ScriptEntry{CompleteText: `{"text":"It means to speak.","corrections":[]}`})
	rabbit.AddSequential(llmtest.ScriptEntry{CompleteText: `{"enter":false,"topic":"","confidence":0.0}`})
	evalc.AddSequential(llmtest.ScriptEntry{CompleteText: `{"demonstrated":[],"overall_feedback":"On track."}`})

	connManager := events.NewConnectionManager(2 * time.Second)
	sink := NewConnManagerSink(connManager, nil)

	engine := session.NewEngine(session.Deps{
		Repos:               repos.AsRepositories(),
		Clock:               clock.NewMock(now),
		IDs:                 idgen.NewSequential(),
		Scheduler:           fsrs.New(fsrs.DefaultWeights, 0.9),
		TutorClient:         tutor,
		EvaluatorClient:     evalc,
		RabbitholeClient:    rabbit,
		TranscriptionClient: transc,
		Sink:                sink,
	}, testEngineCfg(), testLLMCfg())

	srv := NewServer(config.ServerConfig{ListenAddr: ":0"}, engine, connManager, nil)
	httpServer := httptest.NewServer(srv.echo)
	t.Cleanup(httpServer.Close)

	return &wsFixture{server: httpServer, tutor: tutor, evalc: evalc, rabbit: rabbit, transc: transc}
}

func (f *wsFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + f.server.URL[len("http"):] + "/api/v1/ws"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) events.ServerMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg events.ServerMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func sendFrame(t *testing.T, conn *websocket.Conn, msg events.ClientMessage) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func TestWSHandler_HelloThenUserMessage_FullRoundTrip(t *testing.T) {
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	f := newWSFixture(t, now)
	conn := f.dial(t)

	sendFrame(t, conn, events.ClientMessage{Type: events.ClientMessageHello, SessionID: "rs_1"})

	started := readFrame(t, conn)
	require.Equal(t, events.ServerMessageSessionStarted, started.Type)
	require.Equal(t, 1, started.TotalPoints)
	require.Equal(t, 0, started.RecalledCount)

	sendFrame(t, conn, events.ClientMessage{Type: events.ClientMessageUserMessage, Text: "It means to speak.", SourceKind: events.SourceKindTyped})

	accepted := readFrame(t, conn)
	require.Equal(t, events.ServerMessageUserMessageAccepted, accepted.Type)
	require.Equal(t, "It means to speak.", accepted.DisplayText)

	token := readFrame(t, conn)
	require.Equal(t, events.ServerMessageAssistantToken, token.Type)
	require.NotEmpty(t, token.Delta)

	complete := readFrame(t, conn)
	require.Equal(t, events.ServerMessageAssistantComplete, complete.Type)
}

func TestWSHandler_FirstFrameNotHello_ClosesConnection(t *testing.T) {
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	f := newWSFixture(t, now)
	conn := f.dial(t)

	sendFrame(t, conn, events.ClientMessage{Type: events.ClientMessageUserMessage, Text: "too early"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	require.Error(t, err)
}

func TestWSHandler_HealthEndpoint(t *testing.T) {
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	f := newWSFixture(t, now)

	resp, err := f.server.Client().Get(f.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var body HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "healthy", body.Status)
}
