package interview

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/candorlabs/vox/pkg/core"
	"github.com/candorlabs/vox/pkg/core/analysis"
	"github.com/candorlabs/vox/pkg/core/decision"
	"github.com/candorlabs/vox/pkg/core/learning"
	"github.com/candorlabs/vox/pkg/core/quality"
	"github.com/candorlabs/vox/pkg/core/session"
	"github.com/candorlabs/vox/pkg/core/voice/stt"
	"github.com/candorlabs/vox/pkg/core/voice/tts"
	"github.com/candorlabs/vox/pkg/notify"
)

// Config carries the orchestrator's tunables.
type Config struct {
	// STTTimeout bounds each speech capture.
	STTTimeout time.Duration
	// RetryBackoff is the constant delay between provider retries.
	RetryBackoff time.Duration
	// AnalysisRetries is how many times a failed analysis call is retried
	// before degrading to an empty analysis.
	AnalysisRetries uint64
	Voice           tts.VoiceConfig
}

func (c Config) withDefaults() Config {
	if c.STTTimeout <= 0 {
		c.STTTimeout = 10 * time.Second
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	if c.AnalysisRetries == 0 {
		c.AnalysisRetries = 2
	}
	return c
}

// Deps are the orchestrator's collaborators. STT, TTS, Analyzer, Engine
// and Learning are required; the rest degrade to no-ops when nil.
type Deps struct {
	STT       stt.Provider
	TTS       tts.Provider
	Analyzer  analysis.Analyzer
	Engine    *decision.Engine
	Learning  *learning.Store
	Monitor   *quality.Monitor
	Alerts    *quality.AlertManager
	Metrics   *quality.Metrics
	Notifier  notify.Notifier
	Persister Persister
	Logger    *slog.Logger
}

// Orchestrator drives one interview at a time through consent, the
// question loop, and terminal handling. A single instance may run many
// interviews concurrently; per-interview state lives in session.State.
type Orchestrator struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewOrchestrator wires an orchestrator.
func NewOrchestrator(deps Deps, cfg Config) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		deps:   deps,
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
}

// Run executes one interview to a terminal state. The returned error is
// non-nil only for setup failures; interview-level failures are recorded
// on the state and the interview record instead.
func (o *Orchestrator) Run(ctx context.Context, iv *Interview, st *session.State) error {
	started := o.now()
	if err := st.Begin(started); err != nil {
		return err
	}
	iv.StartedAt = started
	iv.Status = st.Status()
	if o.deps.Metrics != nil {
		o.deps.Metrics.RecordInterviewStart()
	}
	o.publish(ctx, notify.InterviewStarted, iv.ID, nil)
	o.logger.Info("interview started", "interview_id", iv.ID, "guide", st.Guide.Name)

	run := &runState{started: started}

	verdict, err := o.consentPhase(ctx, st)
	if err != nil {
		return o.fail(ctx, iv, st, run, failureReasonFor(err))
	}
	if verdict != consentGranted {
		return o.fail(ctx, iv, st, run, "consent_declined")
	}
	if err := st.GrantConsent(); err != nil {
		return err
	}
	iv.Status = st.Status()

	return o.questionLoop(ctx, iv, st, run)
}

// runState accumulates per-run data the session state does not carry.
type runState struct {
	started  time.Time
	outcomes []learning.Outcome
	lastAck  string
}

func (o *Orchestrator) questionLoop(ctx context.Context, iv *Interview, st *session.State, run *runState) error {
	for {
		if ctx.Err() != nil {
			return o.fail(ctx, iv, st, run, "canceled")
		}

		qText, qID, followUp, isFollowUp := o.nextQuestion(st)
		if qText == "" {
			return o.complete(ctx, iv, st, run)
		}

		turnStart := o.now()
		prompt := qText
		if run.lastAck != "" {
			prompt = run.lastAck + " " + qText
			run.lastAck = ""
		}
		if err := o.speak(ctx, prompt); err != nil {
			return o.fail(ctx, iv, st, run, "voice_failure")
		}

		captured, err := o.capture(ctx, st.InterviewID)
		if err != nil {
			return o.fail(ctx, iv, st, run, failureReasonFor(err))
		}

		resp := analysis.Response{
			QuestionID:    qID,
			Question:      qText,
			Text:          captured.Text,
			IsFollowUp:    isFollowUp,
			STTConfidence: captured.Confidence,
			AskedAt:       turnStart,
			AnsweredAt:    o.now(),
		}
		if isFollowUp {
			resp.ParentQuestionID = followUp.ParentQuestionID
		}

		if captured.Unintelligible {
			resp.Unintelligible = true
			resp.Analysis = analysis.Empty()
			st.Record(resp)
			o.recordError("stt", string(core.ErrProviderTimeout))
			o.reportSamples(st, resp, captured)
			if reason, esc := o.shouldEscalate(st); esc {
				return o.escalate(ctx, iv, st, run, reason)
			}
			if done := o.advance(st, turnElapsed(o.now(), turnStart, captured)); done {
				return o.complete(ctx, iv, st, run)
			}
			continue
		}

		resp.Analysis = o.analyze(ctx, captured.Text, st, qText, qID)
		st.Record(resp)
		if o.deps.Metrics != nil {
			o.deps.Metrics.RecordResponse(resp.Analysis.Density, resp.Analysis.Quality())
			o.deps.Metrics.RecordSTTLatency(captured.Duration)
		}

		if isFollowUp {
			run.outcomes = append(run.outcomes, o.correlate(st, followUp, resp))
		}

		o.reportSamples(st, resp, captured)
		if reason, esc := o.shouldEscalate(st); esc {
			return o.escalate(ctx, iv, st, run, reason)
		}

		run.lastAck = acknowledgment(resp.Analysis)

		elapsed := turnElapsed(o.now(), turnStart, captured)

		q, ok := st.CurrentQuestion()
		if ok {
			if cand, probe := o.deps.Engine.Decide(ctx, resp, st, q); probe {
				err := st.PushFollowUp(session.PendingFollowUp{
					Question:         cand.Question,
					Trigger:          string(cand.Trigger),
					Source:           string(cand.Source),
					ParentQuestionID: q.ID,
				})
				if err == nil {
					if o.deps.Metrics != nil {
						o.deps.Metrics.RecordFollowUp(string(cand.Trigger), string(cand.Source))
					}
					if tickDone := o.tick(st, elapsed); tickDone {
						return o.complete(ctx, iv, st, run)
					}
					continue
				}
				o.logger.Debug("follow-up rejected", "interview_id", iv.ID, "err", err)
			}
		}

		if done := o.advance(st, elapsed); done {
			return o.complete(ctx, iv, st, run)
		}
	}
}

// nextQuestion pops a pending follow-up or reads the current scripted
// question. Empty text means the guide is exhausted.
func (o *Orchestrator) nextQuestion(st *session.State) (text, id string, fu session.PendingFollowUp, isFollowUp bool) {
	if f, ok := st.PopFollowUp(); ok {
		return f.Question, "fu-" + uuid.NewString(), f, true
	}
	q, ok := st.CurrentQuestion()
	if !ok {
		return "", "", session.PendingFollowUp{}, false
	}
	return q.Text, q.ID, session.PendingFollowUp{}, false
}

// consentPhase speaks the introduction and consent statement, then
// classifies the reply. An unclear reply is re-asked once.
func (o *Orchestrator) consentPhase(ctx context.Context, st *session.State) (consentVerdict, error) {
	intro := st.Guide.IntroductionScript
	statement := st.Guide.ConsentStatement
	if statement == "" {
		// Guides without a consent statement opt out of the consent gate.
		return consentGranted, nil
	}
	if intro != "" {
		statement = intro + " " + statement
	}
	for attempt := 0; attempt < 2; attempt++ {
		if err := o.speak(ctx, statement); err != nil {
			return consentUnclear, err
		}
		captured, err := o.capture(ctx, st.InterviewID)
		if err != nil {
			return consentUnclear, err
		}
		if captured.Unintelligible {
			statement = "Sorry, I didn't catch that. " + st.Guide.ConsentStatement
			continue
		}
		switch v := evaluateConsent(captured.Text); v {
		case consentGranted, consentDeclined:
			return v, nil
		default:
			statement = "Just to confirm: " + st.Guide.ConsentStatement
		}
	}
	return consentDeclined, nil
}

// speak synthesizes one utterance, retrying once on failure.
func (o *Orchestrator) speak(ctx context.Context, text string) error {
	b := retry.WithMaxRetries(1, retry.NewConstant(o.cfg.RetryBackoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		if _, err := o.deps.TTS.Synthesize(ctx, text, o.cfg.Voice); err != nil {
			o.recordError("tts", errorType(err))
			return retry.RetryableError(err)
		}
		return nil
	})
}

// capture listens for one answer. A failed capture is retried once; a
// second failure degrades to an unintelligible capture so the interview
// moves on instead of stalling. Context cancellation is not retried.
func (o *Orchestrator) capture(ctx context.Context, sessionID string) (stt.Capture, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		captured, err := o.deps.STT.Capture(ctx, sessionID, o.cfg.STTTimeout)
		if err == nil {
			return captured, nil
		}
		if ctx.Err() != nil {
			return stt.Capture{}, err
		}
		lastErr = err
		o.recordError("stt", errorType(err))
		select {
		case <-time.After(o.cfg.RetryBackoff):
		case <-ctx.Done():
			return stt.Capture{}, ctx.Err()
		}
	}
	o.logger.Warn("speech capture failed twice, marking unintelligible", "err", lastErr)
	return stt.Capture{Unintelligible: true}, nil
}

// analyze runs the analyzer with bounded retries and degrades to an
// empty analysis when it keeps failing. A dropped analysis must never
// abort the interview.
func (o *Orchestrator) analyze(ctx context.Context, text string, st *session.State, question, questionID string) analysis.Analysis {
	actx := analysis.Context{
		ResearchObjective: st.Guide.ResearchObjective,
		Question:          question,
		QuestionID:        questionID,
		History:           st.History(),
		TimeRemaining:     st.Scheduler().Remaining(),
	}
	var out analysis.Analysis
	b := retry.WithMaxRetries(o.cfg.AnalysisRetries, retry.NewConstant(o.cfg.RetryBackoff))
	started := o.now()
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		a, err := o.deps.Analyzer.Analyze(ctx, text, actx)
		if err != nil {
			o.recordError("analyzer", errorType(err))
			return retry.RetryableError(err)
		}
		out = a
		return nil
	})
	if o.deps.Metrics != nil {
		o.deps.Metrics.RecordLLMLatency(o.deps.Analyzer.Name(), "analyze", o.now().Sub(started))
	}
	if err != nil {
		o.logger.Warn("analysis degraded after retries", "interview_id", st.InterviewID, "err", err)
		return analysis.Empty()
	}
	return out
}

// correlate turns one answered follow-up into a learning outcome: the
// quality delta between the probed answer and the answer that triggered
// the probe.
func (o *Orchestrator) correlate(st *session.State, fu session.PendingFollowUp, resp analysis.Response) learning.Outcome {
	var parentQuality float64
	history := st.History()
	for i := len(history) - 1; i >= 0; i-- {
		r := history[i]
		if r.QuestionID == fu.ParentQuestionID && !r.IsFollowUp {
			parentQuality = r.Analysis.Quality()
			break
		}
	}
	section := st.Guide.Sections[st.Section()].Name
	return learning.Outcome{
		Signature:    learning.NewSignature(fu.Trigger, section),
		Question:     fu.Question,
		QualityDelta: resp.Analysis.Quality() - parentQuality,
		At:           o.now(),
	}
}

// reportSamples feeds the quality monitor after each turn.
func (o *Orchestrator) reportSamples(st *session.State, resp analysis.Response, captured stt.Capture) {
	if o.deps.Monitor == nil {
		return
	}
	id := st.InterviewID
	if !resp.Unintelligible {
		o.deps.Monitor.Record(id, quality.MetricResponseQuality, resp.Analysis.Quality())
		o.deps.Monitor.Record(id, quality.MetricEngagement, engagementSample(resp))
		o.deps.Monitor.Record(id, quality.MetricSTTAccuracy, captured.Confidence)
	}
	if captured.Duration > 0 {
		o.deps.Monitor.Record(id, quality.MetricResponseLatency, captured.Duration.Seconds())
	}
	if ratio, ok := progressRatio(st); ok {
		o.deps.Monitor.Record(id, quality.MetricCompletionRate, ratio)
	}
	// Data quality needs a few answers before the mean says anything.
	if history := st.History(); len(history) >= 3 {
		o.deps.Monitor.Record(id, quality.MetricDataQuality, dataQuality(history))
	}
}

func (o *Orchestrator) shouldEscalate(st *session.State) (string, bool) {
	if o.deps.Monitor == nil || o.deps.Alerts == nil {
		return "", false
	}
	return quality.ShouldEscalate(o.deps.Monitor, o.deps.Alerts, st.InterviewID)
}

// tick advances the section clock. True means the interview hit its hard
// time ceiling and must wrap up as completed.
func (o *Orchestrator) tick(st *session.State, elapsed time.Duration) bool {
	err := st.Tick(elapsed)
	return errors.Is(err, core.ErrBudgetExhausted)
}

// advance moves to the next scripted question after ticking the clock.
// True means the interview is over, either guide exhausted or ceiling.
func (o *Orchestrator) advance(st *session.State, elapsed time.Duration) bool {
	if o.tick(st, elapsed) {
		return true
	}
	if err := st.AdvanceQuestion(); err != nil {
		return errors.Is(err, core.ErrGuideExhausted)
	}
	return false
}

// turnElapsed measures one turn. Fake providers return instantly but
// report a capture duration, so the larger of the two drives the clock.
func turnElapsed(now, turnStart time.Time, captured stt.Capture) time.Duration {
	elapsed := now.Sub(turnStart)
	if captured.Duration > elapsed {
		return captured.Duration
	}
	return elapsed
}

func (o *Orchestrator) complete(ctx context.Context, iv *Interview, st *session.State, run *runState) error {
	if st.Guide.ClosingScript != "" {
		if err := o.speak(ctx, st.Guide.ClosingScript); err != nil {
			o.logger.Warn("closing script failed", "interview_id", iv.ID, "err", err)
		}
	}
	if err := st.Complete(o.now()); err != nil {
		return err
	}
	if len(run.outcomes) > 0 && o.deps.Learning != nil {
		o.deps.Learning.RecordOutcomes(run.outcomes)
	}
	o.finalize(ctx, iv, st, run, "")
	o.publish(ctx, notify.InterviewCompleted, iv.ID, map[string]any{
		"responses":  iv.Engagement.Responses,
		"follow_ups": iv.Engagement.FollowUps,
	})
	o.publishInsights(ctx, iv, st)
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, iv *Interview, st *session.State, run *runState, reason string) error {
	if err := st.Fail(reason, o.now()); err != nil {
		return err
	}
	o.finalize(ctx, iv, st, run, reason)
	o.publish(ctx, notify.InterviewFailed, iv.ID, map[string]any{"reason": reason})
	return nil
}

func (o *Orchestrator) escalate(ctx context.Context, iv *Interview, st *session.State, run *runState, reason string) error {
	if err := st.Escalate(reason, o.now()); err != nil {
		return err
	}
	if o.deps.Metrics != nil {
		o.deps.Metrics.RecordEscalation(reason)
	}
	o.finalize(ctx, iv, st, run, reason)
	o.publish(ctx, notify.InterviewEscalated, iv.ID, map[string]any{"reason": reason})
	return nil
}

// finalize is the shared terminal path: engagement metrics, persistence,
// monitor cleanup, Prometheus bookkeeping.
func (o *Orchestrator) finalize(ctx context.Context, iv *Interview, st *session.State, run *runState, reason string) {
	now := o.now()
	iv.Status = st.Status()
	iv.CompletedAt = now
	iv.FailureReason = reason
	iv.Engagement = computeEngagement(st.History())

	if o.deps.Metrics != nil {
		o.deps.Metrics.RecordInterviewEnd(string(st.Status()), now.Sub(run.started))
	}
	if o.deps.Monitor != nil {
		o.deps.Monitor.Forget(st.InterviewID)
	}
	if o.deps.Alerts != nil {
		o.deps.Alerts.ResolveSession(st.InterviewID)
	}
	// The run context may already be canceled; persistence still has to
	// happen.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if o.deps.Persister != nil {
		if err := o.deps.Persister.UpdateInterview(ctx, *iv); err != nil {
			o.logger.Error("persist interview failed", "interview_id", iv.ID, "err", err)
			o.recordError("store", errorType(err))
		}
		if err := o.deps.Persister.SaveResponses(ctx, iv.ID, st.History()); err != nil {
			o.logger.Error("persist responses failed", "interview_id", iv.ID, "err", err)
			o.recordError("store", errorType(err))
		}
	}
	o.logger.Info("interview finished",
		"interview_id", iv.ID, "status", st.Status(),
		"responses", iv.Engagement.Responses, "reason", reason)
}

func (o *Orchestrator) publishInsights(ctx context.Context, iv *Interview, st *session.State) {
	themes := map[string]int{}
	for _, r := range st.History() {
		for _, th := range r.Analysis.Themes {
			themes[th]++
		}
	}
	if len(themes) == 0 {
		return
	}
	o.publish(ctx, notify.InsightsExtracted, iv.ID, map[string]any{"themes": themes})
}

func (o *Orchestrator) publish(ctx context.Context, t notify.EventType, id string, data map[string]any) {
	if o.deps.Notifier == nil {
		return
	}
	ev := notify.Event{Type: t, InterviewID: id, At: o.now(), Data: data}
	if err := o.deps.Notifier.Publish(ctx, ev); err != nil {
		o.logger.Warn("event publish failed", "type", t, "err", err)
	}
}

func (o *Orchestrator) recordError(component, errType string) {
	if o.deps.Metrics != nil {
		o.deps.Metrics.RecordError(component, errType)
	}
}

// computeEngagement folds the history into the final engagement metrics.
func computeEngagement(history []analysis.Response) EngagementMetrics {
	m := EngagementMetrics{Responses: len(history)}
	if len(history) == 0 {
		return m
	}
	var words int
	var latency time.Duration
	var sentiment float64
	for _, r := range history {
		if r.IsFollowUp {
			m.FollowUps++
		}
		if r.Unintelligible {
			m.Unintelligible++
			continue
		}
		words += len(strings.Fields(r.Text))
		latency += r.AnsweredAt.Sub(r.AskedAt)
		sentiment += (r.Analysis.Sentiment + 1) / 2
	}
	intelligible := len(history) - m.Unintelligible
	if intelligible > 0 {
		m.AvgResponseWords = float64(words) / float64(intelligible)
		m.AvgResponseLatency = latency / time.Duration(intelligible)
		lengthScore := m.AvgResponseWords / 40
		if lengthScore > 1 {
			lengthScore = 1
		}
		clarity := float64(intelligible) / float64(len(history))
		m.Score = 0.5*lengthScore + 0.3*(sentiment/float64(intelligible)) + 0.2*clarity
	}
	return m
}

// engagementSample is the per-turn engagement estimate fed to the
// quality monitor.
func engagementSample(resp analysis.Response) float64 {
	lengthScore := float64(len(strings.Fields(resp.Text))) / 40
	if lengthScore > 1 {
		lengthScore = 1
	}
	return 0.6*lengthScore + 0.4*(resp.Analysis.Sentiment+1)/2
}

// progressRatio compares answered scripted questions against the share
// of the time budget consumed. Below ten percent of the budget there is
// not enough signal to judge.
func progressRatio(st *session.State) (float64, bool) {
	total := st.Guide.TotalBudget()
	if total <= 0 {
		return 0, false
	}
	expected := float64(st.Scheduler().TotalElapsed()) / float64(total)
	if expected < 0.1 {
		return 0, false
	}
	var answered int
	for _, r := range st.History() {
		if !r.IsFollowUp && !r.Unintelligible {
			answered++
		}
	}
	actual := float64(answered) / float64(st.Guide.TotalQuestions())
	ratio := actual / expected
	if ratio > 1 {
		ratio = 1
	}
	return ratio, true
}

// dataQuality is the running mean response quality over the session,
// with unintelligible answers counting as zero.
func dataQuality(history []analysis.Response) float64 {
	if len(history) == 0 {
		return 1
	}
	var sum float64
	for _, r := range history {
		if !r.Unintelligible {
			sum += r.Analysis.Quality()
		}
	}
	return sum / float64(len(history))
}

// failureReasonFor maps an error to the recorded failure reason.
func failureReasonFor(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case core.IsType(err, core.ErrProviderTimeout):
		return "provider_timeout"
	default:
		return "voice_failure"
	}
}

// errorType extracts the *core.Error type label for metrics.
func errorType(err error) string {
	var ce *core.Error
	if errors.As(err, &ce) {
		return string(ce.Type)
	}
	return "unknown"
}
