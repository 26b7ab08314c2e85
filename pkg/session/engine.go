package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/recallhq/engine/pkg/events"
	"github.com/recallhq/engine/pkg/evaluator"
	"github.com/recallhq/engine/pkg/idgen"
	"github.com/recallhq/engine/pkg/llm"
	"github.com/recallhq/engine/pkg/models"
	"github.com/recallhq/engine/pkg/rabbithole"
	"github.com/recallhq/engine/pkg/transcription"
)

const (
	defaultMaxTargetPoints     = 10
	defaultLLMTimeoutSeconds   = 60
	defaultRecentMessageWindow = 6
	defaultStallThresholdMs    = 30000
)

func (e *Engine) maxTargetPoints() int {
	if e.engineCfg.MaxTargetPointsPerSession > 0 {
		return e.engineCfg.MaxTargetPointsPerSession
	}
	return defaultMaxTargetPoints
}

func (e *Engine) llmTimeout() time.Duration {
	seconds := e.engineCfg.LLMTimeoutSeconds
	if seconds <= 0 {
		seconds = defaultLLMTimeoutSeconds
	}
	return time.Duration(seconds) * time.Second
}

func (e *Engine) recentMessageWindow() int {
	if e.engineCfg.EvaluatorRecentMessageWindow > 0 {
		return e.engineCfg.EvaluatorRecentMessageWindow
	}
	return defaultRecentMessageWindow
}

func (e *Engine) stallThreshold() time.Duration {
	ms := e.engineCfg.StallThresholdMs
	if ms <= 0 {
		ms = defaultStallThresholdMs
	}
	return time.Duration(ms) * time.Millisecond
}

func (e *Engine) evaluatorFor() *evaluator.Evaluator {
	opts := []evaluator.Option{}
	if e.engineCfg.EvaluatorConfidenceThreshold > 0 {
		opts = append(opts, evaluator.WithConfidenceThreshold(e.engineCfg.EvaluatorConfidenceThreshold))
	}
	return evaluator.New(e.evaluatorClient, e.llmCfg.EvaluatorModel, opts...)
}

func (e *Engine) detectorFor() *rabbithole.Detector {
	opts := []rabbithole.DetectorOption{}
	if e.engineCfg.RabbitholeEnterThreshold > 0 {
		opts = append(opts, rabbithole.WithEnterThreshold(e.engineCfg.RabbitholeEnterThreshold))
	}
	if e.engineCfg.RabbitholeReturnThreshold > 0 {
		opts = append(opts, rabbithole.WithReturnThreshold(e.engineCfg.RabbitholeReturnThreshold))
	}
	return rabbithole.NewDetector(e.rabbitholeClient, e.llmCfg.RabbitholeModel, opts...)
}

// StartSession loads and validates the recall set, selects the due
// checklist, resumes or creates the session, requests the opening
// message, and replays any missed history on reconnect.
func (e *Engine) StartSession(ctx context.Context, recallSetID string, resumeFromIndex *int) error {
	e.mu.Lock()
	if _, ok := e.sessions[recallSetID]; ok {
		e.mu.Unlock()
		return newEngineError(ErrKindConflict, "a session for this recall set is already running in this process")
	}
	e.mu.Unlock()

	recallSet, err := e.repos.RecallSets.FindByID(ctx, recallSetID)
	if err != nil {
		return newEngineError(ErrKindNotFound, "recall set not found")
	}
	if !recallSet.IsActive() {
		return newEngineError(ErrKindConflict, "recall set is not active")
	}

	now := e.clock.Now()
	allPoints, err := e.repos.RecallPoints.FindByRecallSetID(ctx, recallSetID)
	if err != nil {
		return newEngineError(ErrKindServerError, "failed to load recall points")
	}

	existing, err := e.repos.Sessions.FindInProgressByRecallSetID(ctx, recallSetID)
	resumed := err == nil && existing != nil

	var sess *models.Session
	pointsByID := make(map[string]*models.RecallPoint)

	if resumed {
		sess = existing
		sess.Status = models.SessionStatusInProgress
		if err := e.repos.Sessions.Update(ctx, sess); err != nil {
			return newEngineError(ErrKindServerError, "failed to resume session")
		}
		for _, id := range sess.TargetRecallPointIDs {
			p, ferr := e.repos.RecallPoints.FindByID(ctx, id)
			if ferr == nil {
				pointsByID[id] = p
			}
		}
	} else {
		due := make([]*models.RecallPoint, 0, len(allPoints))
		for _, p := range allPoints {
			if p.IsDue(now) {
				due = append(due, p)
			}
		}
		sort.Slice(due, func(i, j int) bool { return due[i].FSRSState.Due.Before(due[j].FSRSState.Due) })
		if len(due) > e.maxTargetPoints() {
			due = due[:e.maxTargetPoints()]
		}
		if len(due) == 0 {
			return newEngineError(ErrKindNoDuePoints, "no recall points are due for this set")
		}

		targetIDs := make([]string, 0, len(due))
		for _, p := range due {
			targetIDs = append(targetIDs, p.ID)
			pointsByID[p.ID] = p
		}

		sess = &models.Session{
			ID:                   e.ids.NewID(idgen.PrefixSession),
			RecallSetID:          recallSetID,
			Status:               models.SessionStatusInProgress,
			TargetRecallPointIDs: targetIDs,
			StartedAt:            now,
			LastActivityAt:       now,
		}
		if err := e.repos.Sessions.Create(ctx, sess); err != nil {
			return newEngineError(ErrKindServerError, "failed to create session")
		}
	}

	checked := make(map[string]bool)
	if resumed {
		outcomes, _ := e.repos.Outcomes.FindBySessionID(ctx, sess.ID)
		for _, o := range outcomes {
			checked[o.RecallPointID] = true
		}
	}

	rs := &runningSession{
		key:         recallSetID,
		recallSet:   recallSet,
		session:     sess,
		points:      pointsByID,
		checked:     checked,
		rabbitholes: rabbithole.NewStack(),
		lastTurnEnd: now,
	}

	pointTexts := make([]transcription.PointText, 0, len(pointsByID))
	for _, p := range pointsByID {
		pointTexts = append(pointTexts, transcription.PointText{Content: p.Content, Context: p.Context})
	}
	terminology := transcription.ExtractTerminology(ctx, e.transcriptionClient, e.llmCfg.TranscriptionModel, pointTexts)
	rs.transcriber = transcription.New(e.transcriptionClient, e.llmCfg.TranscriptionModel, terminology, true)

	openingIndex := 0
	if !resumed {
		opening, err := e.requestOpening(ctx, rs)
		if err != nil {
			e.logger.Warn("opening message request failed", "recall_set_id", recallSetID, "error", err)
		} else {
			msg := models.SessionMessage{
				ID:        e.ids.NewID(idgen.PrefixMessage),
				SessionID: sess.ID,
				Role:      models.RoleTutor,
				Content:   opening,
				Timestamp: e.clock.Now(),
			}
			sess.AppendMessage(msg)
			_ = e.repos.Messages.Create(ctx, &msg)
			_ = e.repos.Sessions.Update(ctx, sess)
		}
	} else if len(sess.Messages) > 0 {
		openingIndex = 0
	}

	e.mu.Lock()
	e.sessions[recallSetID] = rs
	e.mu.Unlock()

	e.sink.Emit(recallSetID, events.ServerMessage{
		Type:                events.ServerMessageSessionStarted,
		TotalPoints:         rs.totalCount(),
		RecalledCount:       rs.recalledCount(),
		OpeningMessageIndex: openingIndex,
	})

	if resumeFromIndex != nil {
		e.replay(recallSetID, sess, *resumeFromIndex)
	}
	return nil
}

// replay re-emits persisted messages at or after fromIndex as
// user_message_accepted/assistant_complete frames for a reconnecting
// client. Token-by-token replay is not attempted: only the final text
// of each turn is available once persisted.
func (e *Engine) replay(key string, sess *models.Session, fromIndex int) {
	for _, msg := range sess.Messages {
		if msg.MessageIndex < fromIndex {
			continue
		}
		switch msg.Role {
		case models.RoleStudent:
			e.sink.Emit(key, events.ServerMessage{
				Type:         events.ServerMessageUserMessageAccepted,
				MessageIndex: msg.MessageIndex,
				DisplayText:  msg.Content,
			})
		case models.RoleTutor:
			e.sink.Emit(key, events.ServerMessage{
				Type:         events.ServerMessageAssistantComplete,
				MessageIndex: msg.MessageIndex,
			})
		}
	}
}

func (e *Engine) requestOpening(ctx context.Context, rs *runningSession) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, e.llmTimeout())
	defer cancel()

	messages := []llm.ConversationMessage{
		{Role: llm.RoleSystem, Content: e.tutorSystemPrompt(rs)},
		{Role: llm.RoleUser, Content: "Begin the session: greet the student and ask the first question from the checklist."},
	}
	resp, err := e.tutorClient.Complete(timeoutCtx, llm.CompleteInput{Model: e.llmCfg.TutorModel, Messages: messages})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

func (e *Engine) tutorSystemPrompt(rs *runningSession) string {
	var checklist strings.Builder
	for _, p := range rs.uncheckedPoints() {
		fmt.Fprintf(&checklist, "- %s (context: %s)\n", p.Content, p.Context)
	}
	return fmt.Sprintf(
		"%s\n\nChecklist of recall points not yet demonstrated:\n%s",
		rs.recallSet.DiscussionSystemPrompt, checklist.String(),
	)
}

// HandleUserMessage runs one iteration of the main turn loop: transcribe
// the incoming text, route it into an open rabbithole or check whether
// this turn opens a new one, and otherwise persist it and run the
// tutor/evaluator turn.
func (e *Engine) HandleUserMessage(ctx context.Context, key string, text string, sourceKind string) error {
	e.mu.Lock()
	rs, ok := e.sessions[key]
	e.mu.Unlock()
	if !ok {
		return newEngineError(ErrKindNotFound, "no active session for this recall set")
	}

	rs.mu.Lock()
	if rs.busy {
		rs.mu.Unlock()
		e.sink.Emit(key, events.ServerMessage{Type: events.ServerMessageBusy})
		return nil
	}
	rs.busy = true
	now := e.clock.Now()
	if !rs.lastTurnEnd.IsZero() {
		gap := now.Sub(rs.lastTurnEnd)
		rs.turnElapsedMs = gap.Milliseconds()
		if gap < e.stallThreshold() {
			rs.activeTimeMs += gap.Milliseconds()
		}
	}
	rs.mu.Unlock()

	defer func() {
		rs.mu.Lock()
		rs.busy = false
		rs.lastTurnEnd = e.clock.Now()
		rs.mu.Unlock()
	}()

	skipTerminology := sourceKind == events.SourceKindTyped
	result := rs.transcriber.Process(ctx, text, skipTerminology)

	wireCorrections := make([]events.Correction, 0, len(result.Corrections))
	for _, c := range result.Corrections {
		wireCorrections = append(wireCorrections, events.Correction{Original: c.Original, Corrected: c.Corrected})
	}
	e.sink.Emit(key, events.ServerMessage{
		Type:         events.ServerMessageUserMessageAccepted,
		MessageIndex: len(rs.session.Messages),
		DisplayText:  result.DisplayText,
		Corrections:  wireCorrections,
	})

	if active := rs.rabbitholes.Active(); active != nil {
		return e.continueRabbithole(ctx, key, rs, active, result.LLMText)
	}

	if e.maybeEnterRabbithole(ctx, key, rs, result.LLMText) {
		return nil
	}

	studentMsg := models.SessionMessage{
		ID:        e.ids.NewID(idgen.PrefixMessage),
		SessionID: rs.session.ID,
		Role:      models.RoleStudent,
		Content:   result.LLMText,
		Timestamp: e.clock.Now(),
	}
	rs.session.AppendMessage(studentMsg)
	if err := e.repos.Messages.Create(ctx, &studentMsg); err != nil {
		e.logger.Error("failed to persist student message", "error", err)
	}

	return e.runMainTurn(ctx, key, rs)
}

func (e *Engine) conversationTail(rs *runningSession) string {
	n := e.recentMessageWindow()
	msgs := rs.session.Messages
	start := len(msgs) - n
	if start < 0 {
		start = 0
	}
	var b strings.Builder
	for _, m := range msgs[start:] {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}

// maybeEnterRabbithole checks whether the latest turn wandered off the
// recall checklist and, if so, opens a rabbithole for it. It is only
// called when no rabbithole is currently active; continueRabbithole
// handles the nested case.
func (e *Engine) maybeEnterRabbithole(ctx context.Context, key string, rs *runningSession, lastUserTurn string) bool {
	dec := e.detectorFor().DetectEnter(ctx, e.conversationTail(rs), lastUserTurn)
	if !dec.Enter {
		return false
	}
	return e.openRabbithole(ctx, key, rs, dec, lastUserTurn)
}

// openRabbithole spins up a rabbithole agent for dec, pushes it onto the
// session's nesting stack, and records a single rabbithole_entered
// marker in the session's message stream. The triggering turn and
// everything exchanged with the agent from here on live only in the
// RabbitholeEvent's own conversation history, never as SessionMessage
// rows.
func (e *Engine) openRabbithole(ctx context.Context, key string, rs *runningSession, dec rabbithole.EnterDecision, lastUserTurn string) bool {
	agent := rabbithole.NewAgent(e.rabbitholeClient, e.llmCfg.RabbitholeModel, rabbithole.Persona{
		Topic:                dec.Topic,
		RecallSetName:        rs.recallSet.Name,
		RecallSetDescription: rs.recallSet.Description,
	})
	reply, err := agent.Open(ctx, lastUserTurn)
	if err != nil {
		e.logger.Warn("rabbithole agent open failed", "error", err)
		return false
	}
	rs.rabbitholes.Push(agent)

	marker := models.SessionMessage{
		ID:        e.ids.NewID(idgen.PrefixMessage),
		SessionID: rs.session.ID,
		Role:      models.RoleSystem,
		Content:   fmt.Sprintf("rabbithole entered: %s", dec.Topic),
		Timestamp: e.clock.Now(),
	}
	rs.session.AppendMessage(marker)
	if err := e.repos.Messages.Create(ctx, &marker); err != nil {
		e.logger.Error("failed to persist rabbithole entered marker", "error", err)
	}
	if err := e.repos.Sessions.Update(ctx, rs.session); err != nil {
		e.logger.Error("failed to persist session", "error", err)
	}

	event := &models.RabbitholeEvent{
		ID:                  e.ids.NewID(idgen.PrefixRabbithole),
		SessionID:           rs.session.ID,
		Type:                models.RabbitholeEntered,
		Topic:               dec.Topic,
		Depth:               rs.rabbitholes.Depth(),
		TriggerMessageIndex: marker.MessageIndex,
		StartedAt:           e.clock.Now(),
	}
	if err := e.repos.Rabbitholes.Create(ctx, event); err != nil {
		e.logger.Error("failed to persist rabbithole event", "error", err)
	}
	rs.rabbitholeEvents = append(rs.rabbitholeEvents, event)

	e.sink.Emit(key, events.ServerMessage{
		Type:                events.ServerMessageRabbitholeEntered,
		Topic:               event.Topic,
		Depth:               event.Depth,
		TriggerMessageIndex: event.TriggerMessageIndex,
	})

	e.emitRabbitholeReply(key, reply)
	return true
}

// continueRabbithole drives one turn of an already-open rabbithole: it
// checks for a return to the main flow first, then — mirroring
// maybeEnterRabbithole — checks whether the student has wandered into a
// second, more deeply nested tangent before treating the turn as an
// ordinary continuation of the current one.
func (e *Engine) continueRabbithole(ctx context.Context, key string, rs *runningSession, active *rabbithole.Agent, lastUserTurn string) error {
	detector := e.detectorFor()
	history := e.agentHistoryText(active)
	returnDec := detector.DetectReturn(ctx, history, lastUserTurn)

	if returnDec.ReturnToMain {
		e.closeRabbithole(ctx, key, rs, lastUserTurn)
		e.flushPendingTicks(key, rs)

		if next := rs.rabbitholes.Active(); next != nil {
			reply, err := next.Respond(ctx, lastUserTurn)
			if err != nil {
				e.logger.Warn("nested rabbithole agent respond failed", "error", err)
				return nil
			}
			e.emitRabbitholeReply(key, reply)
			return nil
		}

		return e.runMainTurn(ctx, key, rs)
	}

	if enterDec := detector.DetectEnter(ctx, e.conversationTail(rs), lastUserTurn); enterDec.Enter {
		e.openRabbithole(ctx, key, rs, enterDec, lastUserTurn)
		return nil
	}

	reply, err := active.Respond(ctx, lastUserTurn)
	if err != nil {
		e.logger.Warn("rabbithole agent respond failed", "error", err)
		e.sink.Emit(key, events.ServerMessage{Type: events.ServerMessageError, Code: string(ErrKindServerError), Message: "rabbithole agent failed"})
		return nil
	}
	e.emitRabbitholeReply(key, reply)
	return nil
}

// closeRabbithole pops the active agent, folds its isolated history
// (plus the student's return-triggering turn, which the agent never
// saw) into the closing RabbitholeEvent, and records a single
// rabbithole_returned marker in the session's message stream.
func (e *Engine) closeRabbithole(ctx context.Context, key string, rs *runningSession, returnTrigger string) {
	popped := rs.rabbitholes.Pop()
	n := len(rs.rabbitholeEvents)
	if n == 0 {
		return
	}
	ev := rs.rabbitholeEvents[n-1]
	rs.rabbitholeEvents = rs.rabbitholeEvents[:n-1]

	var conv []models.RabbitholeMessage
	if popped != nil {
		turns := popped.History()
		conv = make([]models.RabbitholeMessage, 0, len(turns)+1)
		for _, m := range turns {
			conv = append(conv, models.RabbitholeMessage{Role: m.Role, Content: m.Content})
		}
	}
	conv = append(conv, models.RabbitholeMessage{Role: llm.RoleUser, Content: returnTrigger})

	now := e.clock.Now()
	marker := models.SessionMessage{
		ID:        e.ids.NewID(idgen.PrefixMessage),
		SessionID: rs.session.ID,
		Role:      models.RoleSystem,
		Content:   fmt.Sprintf("rabbithole returned: %s", ev.Topic),
		Timestamp: now,
	}
	rs.session.AppendMessage(marker)
	if err := e.repos.Messages.Create(ctx, &marker); err != nil {
		e.logger.Error("failed to persist rabbithole returned marker", "error", err)
	}
	if err := e.repos.Sessions.Update(ctx, rs.session); err != nil {
		e.logger.Error("failed to persist session", "error", err)
	}

	returnIndex := marker.MessageIndex
	ev.Type = models.RabbitholeReturned
	ev.EndedAt = &now
	ev.ReturnMessageIndex = &returnIndex
	ev.ConversationHistory = conv
	if err := e.repos.Rabbitholes.Update(ctx, ev); err != nil {
		e.logger.Error("failed to close rabbithole event", "error", err)
	}

	e.sink.Emit(key, events.ServerMessage{
		Type:               events.ServerMessageRabbitholeReturned,
		Topic:              ev.Topic,
		ReturnMessageIndex: returnIndex,
	})
}

func (e *Engine) agentHistoryText(agent *rabbithole.Agent) string {
	var b strings.Builder
	for _, m := range agent.History() {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}

// emitRabbitholeReply streams a rabbithole agent's reply to the client.
// It never touches SessionMessage storage: rabbithole turns are not
// part of the session's own transcript.
func (e *Engine) emitRabbitholeReply(key string, reply string) {
	e.sink.Emit(key, events.ServerMessage{Type: events.ServerMessageAssistantToken, Delta: reply})
	e.sink.Emit(key, events.ServerMessage{Type: events.ServerMessageAssistantComplete})
}

func (e *Engine) flushPendingTicks(key string, rs *runningSession) {
	for _, tick := range rs.pendingTicks {
		e.sink.Emit(key, tick)
	}
	rs.pendingTicks = nil
}

// runMainTurn drives the tutor's streaming reply, persists it, and runs
// the evaluator over the resulting turn.
func (e *Engine) runMainTurn(ctx context.Context, key string, rs *runningSession) error {
	messages := make([]llm.ConversationMessage, 0, len(rs.session.Messages)+1)
	messages = append(messages, llm.ConversationMessage{Role: llm.RoleSystem, Content: e.tutorSystemPrompt(rs)})
	for _, m := range rs.session.Messages {
		role := llm.RoleUser
		if m.Role == models.RoleTutor {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.ConversationMessage{Role: role, Content: m.Content})
	}

	reply, err := e.streamTutorReply(ctx, key, rs, messages)
	if err != nil {
		kind := classifyLLMErr(err)
		e.logger.Warn("tutor stream failed", "kind", kind, "error", err)
		e.sink.Emit(key, events.ServerMessage{Type: events.ServerMessageError, Code: string(kind), Message: err.Error()})
		return nil
	}

	assistantMsg := models.SessionMessage{
		ID:        e.ids.NewID(idgen.PrefixMessage),
		SessionID: rs.session.ID,
		Role:      models.RoleTutor,
		Content:   reply,
		Timestamp: e.clock.Now(),
	}
	rs.session.AppendMessage(assistantMsg)
	if err := e.repos.Messages.Create(ctx, &assistantMsg); err != nil {
		e.logger.Error("failed to persist assistant message", "error", err)
	}
	if err := e.repos.Sessions.Update(ctx, rs.session); err != nil {
		e.logger.Error("failed to persist session", "error", err)
	}
	e.sink.Emit(key, events.ServerMessage{Type: events.ServerMessageAssistantComplete, MessageIndex: assistantMsg.MessageIndex})

	e.runEvaluator(ctx, key, rs)

	if rs.allRecalled() {
		e.sink.Emit(key, events.ServerMessage{
			Type:          events.ServerMessageAllPointsRecalled,
			RecalledCount: rs.recalledCount(),
			TotalPoints:   rs.totalCount(),
		})
	}
	return nil
}

// streamTutorReply retries once on a rate_limit/server_error failure —
// the only site where the engine itself retries an LLM call, since this
// one is load-bearing and directly user-visible.
func (e *Engine) streamTutorReply(ctx context.Context, key string, rs *runningSession, messages []llm.ConversationMessage) (string, error) {
	reply, err := e.attemptTutorStream(ctx, key, rs, messages)
	if err == nil {
		return reply, nil
	}
	if !classifyLLMErr(err).retryableForTutor() {
		return "", err
	}
	return e.attemptTutorStream(ctx, key, rs, messages)
}

func (e *Engine) attemptTutorStream(ctx context.Context, key string, rs *runningSession, messages []llm.ConversationMessage) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, e.llmTimeout())
	rs.mu.Lock()
	rs.cancelTurn = cancel
	rs.mu.Unlock()
	defer func() {
		rs.mu.Lock()
		rs.cancelTurn = nil
		rs.mu.Unlock()
		cancel()
	}()

	stream, err := e.tutorClient.Generate(timeoutCtx, llm.GenerateInput{Model: e.llmCfg.TutorModel, Messages: messages})
	if err != nil {
		return "", err
	}

	collected, err := collectStream(stream, func(delta string) {
		e.sink.Emit(key, events.ServerMessage{Type: events.ServerMessageAssistantToken, Delta: delta})
	})
	if err != nil {
		return "", err
	}
	return collected.Text, nil
}

func (e *Engine) runEvaluator(ctx context.Context, key string, rs *runningSession) {
	unchecked := rs.uncheckedPoints()
	if len(unchecked) == 0 {
		return
	}

	recent := make([]evaluator.RecentMessage, 0, e.recentMessageWindow())
	msgs := rs.session.Messages
	start := len(msgs) - e.recentMessageWindow()
	if start < 0 {
		start = 0
	}
	for _, m := range msgs[start:] {
		recent = append(recent, evaluator.RecentMessage{Role: m.Role, Content: m.Content})
	}

	eval := e.evaluatorFor().Evaluate(ctx, evaluator.Input{
		RecentMessages:   recent,
		UncheckedPoints:  unchecked,
		RecallSetContext: rs.recallSet.Description,
	})

	now := e.clock.Now()
	for _, d := range eval.Demonstrated {
		point, ok := rs.points[d.PointID]
		if !ok {
			continue
		}
		success := d.Rating != models.RatingAgain
		point.FSRSState = e.scheduler.Update(point.FSRSState, d.Rating, now)
		point.AppendHistory(now, success, rs.turnElapsedMs)
		if err := e.repos.RecallPoints.Update(ctx, point); err != nil {
			e.logger.Error("failed to persist updated recall point", "error", err)
		}

		outcome := &models.RecallOutcome{
			ID:                e.ids.NewID(idgen.PrefixOutcome),
			SessionID:         rs.session.ID,
			RecallPointID:     d.PointID,
			Success:           success,
			Rating:            d.Rating,
			Confidence:        d.Confidence,
			Reasoning:         d.Reasoning,
			MessageIndexStart: start + d.MessageIndexStart,
			MessageIndexEnd:   start + d.MessageIndexEnd,
			TimeSpentMs:       rs.turnElapsedMs,
			EvaluatedAt:       now,
		}
		if err := e.repos.Outcomes.Create(ctx, outcome); err != nil {
			e.logger.Error("failed to persist recall outcome", "error", err)
		}

		rs.checked[d.PointID] = true

		tick := events.ServerMessage{
			Type:          events.ServerMessagePointRecalled,
			PointID:       d.PointID,
			RecalledCount: rs.recalledCount(),
			TotalPoints:   rs.totalCount(),
		}
		if rs.rabbitholes.Active() != nil {
			rs.pendingTicks = append(rs.pendingTicks, tick)
		} else {
			e.sink.Emit(key, tick)
		}
	}
}

// HandleLeave transitions a session to Paused: leave_session does not
// end the session, only the live transport.
func (e *Engine) HandleLeave(ctx context.Context, key string) error {
	rs := e.detach(key)
	if rs == nil {
		return newEngineError(ErrKindNotFound, "no active session for this recall set")
	}
	rs.session.Status = models.SessionStatusPaused
	if err := e.repos.Sessions.Update(ctx, rs.session); err != nil {
		return newEngineError(ErrKindServerError, "failed to persist pause")
	}
	e.sink.Emit(key, events.ServerMessage{Type: events.ServerMessageSessionPaused})
	return nil
}

// HandleAbandon marks a session abandoned, best-effort cancelling any
// in-flight LLM call, and finalizes its metrics.
func (e *Engine) HandleAbandon(ctx context.Context, key string) error {
	rs := e.detach(key)
	if rs == nil {
		return newEngineError(ErrKindNotFound, "no active session for this recall set")
	}
	rs.mu.Lock()
	if rs.cancelTurn != nil {
		rs.cancelTurn()
	}
	rs.mu.Unlock()

	now := e.clock.Now()
	rs.session.Status = models.SessionStatusAbandoned
	rs.session.EndedAt = &now
	if err := e.repos.Sessions.Update(ctx, rs.session); err != nil {
		return newEngineError(ErrKindServerError, "failed to persist abandonment")
	}
	e.sink.Emit(key, events.ServerMessage{Type: events.ServerMessageSessionAbandoned})
	return nil
}

// HandleComplete marks a session completed. It is only accepted once
// every target point has been recalled.
func (e *Engine) HandleComplete(ctx context.Context, key string) error {
	e.mu.Lock()
	rs, ok := e.sessions[key]
	e.mu.Unlock()
	if !ok {
		return newEngineError(ErrKindNotFound, "no active session for this recall set")
	}
	if !rs.allRecalled() {
		return newEngineError(ErrKindConflict, "not all points have been recalled yet")
	}

	e.detach(key)
	now := e.clock.Now()
	rs.session.Status = models.SessionStatusCompleted
	rs.session.EndedAt = &now
	if err := e.repos.Sessions.Update(ctx, rs.session); err != nil {
		return newEngineError(ErrKindServerError, "failed to persist completion")
	}

	outcomes, _ := e.repos.Outcomes.FindBySessionID(ctx, rs.session.ID)
	rhEvents, _ := e.repos.Rabbitholes.FindBySessionID(ctx, rs.session.ID)
	owned := make([]models.RecallOutcome, len(outcomes))
	for i, o := range outcomes {
		owned[i] = *o
	}
	ownedEvents := make([]models.RabbitholeEvent, len(rhEvents))
	for i, ev := range rhEvents {
		ownedEvents[i] = *ev
	}
	metrics := models.SummarizeMetrics(rs.session, owned, ownedEvents, now, rs.activeTimeMs, rs.totalCount())

	e.sink.Emit(key, events.ServerMessage{Type: events.ServerMessageSessionCompleted, MetricsSummary: metrics})
	return nil
}

func (e *Engine) detach(key string) *runningSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	rs, ok := e.sessions[key]
	if !ok {
		return nil
	}
	delete(e.sessions, key)
	return rs
}

// HandleClientMessage dispatches one transport frame to the matching
// Engine operation.
func (e *Engine) HandleClientMessage(ctx context.Context, key string, msg events.ClientMessage) error {
	switch msg.Type {
	case events.ClientMessageHello:
		return e.StartSession(ctx, key, msg.ResumeFromIndex)
	case events.ClientMessageUserMessage:
		return e.HandleUserMessage(ctx, key, msg.Text, msg.SourceKind)
	case events.ClientMessageLeaveSession:
		return e.HandleLeave(ctx, key)
	case events.ClientMessageAbandon:
		return e.HandleAbandon(ctx, key)
	case events.ClientMessageComplete:
		return e.HandleComplete(ctx, key)
	default:
		return newEngineError(ErrKindInvalidRequest, fmt.Sprintf("unrecognized frame type %q", msg.Type))
	}
}
