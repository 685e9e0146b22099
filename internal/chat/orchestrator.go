package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ravelchat/ravel/internal/artifact"
	"github.com/ravelchat/ravel/internal/classify"
	"github.com/ravelchat/ravel/internal/files"
	"github.com/ravelchat/ravel/internal/generate"
	"github.com/ravelchat/ravel/internal/ident"
	"github.com/ravelchat/ravel/internal/session"
)

// continuationInstruction is the synthetic user message appended when a
// truncated assistant turn is resumed.
const continuationInstruction = "Continue your previous response exactly where it stopped. " +
	"Do not repeat anything you have already written and do not add any preamble."

// Error codes carried by error events.
const (
	codeGenerationFailed = "generation_failed"
	codePersistFailed    = "persist_failed"
)

// Config contains all required parameters for the Orchestrator.
type Config struct {
	Sessions  *session.Store
	Artifacts *artifact.Store
	Generator generate.Generator
	Logger    *slog.Logger

	// Options are the sampling options passed on every generation.
	Options generate.Options

	// Context bounds history sent to the generator.
	Context ContextBuilder

	// Classifier holds the truncation-detection thresholds.
	Classifier classify.Config

	// Relay controls content pacing.
	Relay RelayConfig
}

// validate checks that all required parameters are present.
func (cfg Config) validate() error {
	if cfg.Sessions == nil {
		return errors.New("session store is required")
	}
	if cfg.Artifacts == nil {
		return errors.New("artifact store is required")
	}
	if cfg.Generator == nil {
		return errors.New("generator is required")
	}
	return nil
}

// Orchestrator is the per-turn state machine. Each turn runs on one logical
// worker: generation, classification, extraction and persistence are
// sequential stages, because extraction and persistence need the complete
// generated text.
//
// Orchestrator is stateless between turns and safe for concurrent use; two
// concurrent turns contend only on the store's counter increments.
type Orchestrator struct {
	sessions   *session.Store
	artifacts  *artifact.Store
	generator  generate.Generator
	logger     *slog.Logger
	options    generate.Options
	contextB   ContextBuilder
	classifier classify.Config
	relayCfg   RelayConfig
	tracer     trace.Tracer
}

// New creates a new Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid orchestrator config: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		sessions:   cfg.Sessions,
		artifacts:  cfg.Artifacts,
		generator:  cfg.Generator,
		logger:     logger,
		options:    cfg.Options,
		contextB:   cfg.Context,
		classifier: cfg.Classifier,
		relayCfg:   cfg.Relay,
		tracer:     otel.Tracer("ravel/chat"),
	}, nil
}

// TurnResult summarizes a completed turn.
type TurnResult struct {
	SessionID          ident.SessionID
	UserMessageID      ident.MessageID
	AssistantMessageID ident.MessageID
	ArtifactIDs        []ident.ArtifactID
	Verdict            classify.Verdict
}

// StartTurn runs one full conversation turn.
//
// If sid is empty a new session is created. The user message is persisted
// before generation begins, so history survives a failed generation. On
// success the assistant message and its artifacts are persisted before the
// done event; on generator failure the stream ends with an error event and
// no assistant record is written.
func (o *Orchestrator) StartTurn(ctx context.Context, sid ident.SessionID, userText string, attachments []*files.File, sink EventSink) (*TurnResult, error) {
	ctx, span := o.tracer.Start(ctx, "chat.StartTurn")
	defer span.End()

	sess, err := o.ensureSession(ctx, sid)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("session.id", string(sess.ID)))

	userMsg, err := o.persistUserMessage(ctx, sess.ID, userText, attachments)
	if err != nil {
		return nil, err
	}

	relay := NewRelay(sink, o.relayCfg)
	if err := relay.SessionID(ctx, sess.ID, userMsg.ID); err != nil {
		return nil, err
	}

	history, err := o.sessions.Messages(ctx, sess.ID)
	if err != nil {
		return nil, o.failTurn(ctx, relay, codePersistFailed, "could not load conversation history", err)
	}
	genCtx := o.contextB.Build(history, attachments, "")

	resp, verdict, err := o.generateAndRelay(ctx, span, relay, genCtx)
	if err != nil {
		return nil, err
	}

	asstMsg, artifactIDs, err := o.persistAssistantTurn(ctx, span, sess.ID, resp.Text())
	if err != nil {
		return nil, o.failTurn(ctx, relay, codePersistFailed, "could not save the response", err)
	}

	if verdict.Continuable() {
		if err := relay.ContinuationAvailable(ctx, sess.ID, asstMsg.ID); err != nil {
			return nil, err
		}
	}
	if err := relay.Done(ctx, DonePayload{
		SessionID:          sess.ID,
		AssistantMessageID: asstMsg.ID,
		ArtifactIDs:        artifactIDs,
	}); err != nil {
		return nil, err
	}

	o.logger.Info("turn completed",
		"session", sess.ID, "assistant_message", asstMsg.ID,
		"artifacts", len(artifactIDs), "verdict", verdict.Label)

	return &TurnResult{
		SessionID:          sess.ID,
		UserMessageID:      userMsg.ID,
		AssistantMessageID: asstMsg.ID,
		ArtifactIDs:        artifactIDs,
		Verdict:            verdict,
	}, nil
}

// ContinueTurn extends the session's most recent assistant message.
//
// The continuation context is the full history minus the incomplete
// assistant turn, plus a synthetic instruction to resume without repeating.
// On success the new text is concatenated to priorText, artifacts are
// re-extracted over the combined document, and the existing assistant record
// is overwritten in place; no new message id is created.
//
// Returns session.ErrNoAssistantTurn if the session has no assistant message,
// before any event is emitted.
func (o *Orchestrator) ContinueTurn(ctx context.Context, sid ident.SessionID, priorText string, sink EventSink) (*TurnResult, error) {
	ctx, span := o.tracer.Start(ctx, "chat.ContinueTurn")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", string(sid)))

	sess, err := o.sessions.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	target, err := o.sessions.LatestAssistant(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("message.id", string(target.ID)))

	// The client supplies the partial text it actually received; the stored
	// record is the fallback when it sends none.
	if priorText == "" {
		priorText = target.Content
	}

	relay := NewRelay(sink, o.relayCfg)
	if err := relay.SessionID(ctx, sess.ID, ""); err != nil {
		return nil, err
	}

	history, err := o.sessions.Messages(ctx, sess.ID)
	if err != nil {
		return nil, o.failTurn(ctx, relay, codePersistFailed, "could not load conversation history", err)
	}
	trimmed := make([]*session.Message, 0, len(history))
	for _, msg := range history {
		if msg.ID == target.ID {
			continue
		}
		trimmed = append(trimmed, msg)
	}
	genCtx := o.contextB.Build(trimmed, nil, continuationInstruction)

	resp, verdict, err := o.generateAndRelay(ctx, span, relay, genCtx)
	if err != nil {
		return nil, err
	}

	combined := priorText + resp.Text()
	artifactIDs, err := o.replaceAssistantTurn(ctx, span, target, combined)
	if err != nil {
		return nil, o.failTurn(ctx, relay, codePersistFailed, "could not save the response", err)
	}

	if verdict.Continuable() {
		if err := relay.ContinuationAvailable(ctx, sess.ID, target.ID); err != nil {
			return nil, err
		}
	}
	if err := relay.Done(ctx, DonePayload{
		SessionID:          sess.ID,
		AssistantMessageID: target.ID,
		ArtifactIDs:        artifactIDs,
	}); err != nil {
		return nil, err
	}

	o.logger.Info("continuation completed",
		"session", sess.ID, "assistant_message", target.ID,
		"artifacts", len(artifactIDs), "verdict", verdict.Label)

	return &TurnResult{
		SessionID:          sess.ID,
		AssistantMessageID: target.ID,
		ArtifactIDs:        artifactIDs,
		Verdict:            verdict,
	}, nil
}

// ensureSession resolves or creates the turn's session.
func (o *Orchestrator) ensureSession(ctx context.Context, sid ident.SessionID) (*session.Session, error) {
	if sid == "" {
		return o.sessions.Create(ctx)
	}
	return o.sessions.Get(ctx, sid)
}

// persistUserMessage stores the user's turn with file descriptors only.
func (o *Orchestrator) persistUserMessage(ctx context.Context, sid ident.SessionID, text string, attachments []*files.File) (*session.Message, error) {
	mid, err := o.sessions.NextMessageID(ctx, sid, ident.RoleUser)
	if err != nil {
		return nil, err
	}

	refs := make([]session.FileRef, 0, len(attachments))
	for _, f := range attachments {
		refs = append(refs, session.FileRef{
			Name:   f.Name,
			Type:   f.Type,
			Size:   f.Size(),
			Format: string(files.Sniff(f)),
		})
	}

	msg := &session.Message{
		ID:        mid,
		SessionID: sid,
		Role:      ident.RoleUser,
		Content:   text,
		Files:     refs,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.sessions.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// generateAndRelay runs the generator, replays its chunks through the relay
// and emits the completion-status event. A generator failure emits a single
// error event and returns; the stream then closes without a done sentinel.
func (o *Orchestrator) generateAndRelay(ctx context.Context, span trace.Span, relay *Relay, genCtx []generate.Message) (*generate.Response, classify.Verdict, error) {
	span.AddEvent("generating")
	resp, err := o.generator.Generate(ctx, genCtx, o.options)
	if err != nil {
		return nil, classify.Verdict{}, o.failTurn(ctx, relay, codeGenerationFailed, presentableError(err), err)
	}

	for _, chunk := range resp.Chunks {
		if err := relay.Content(ctx, chunk); err != nil {
			return nil, classify.Verdict{}, err
		}
	}

	span.AddEvent("classifying")
	verdict := classify.Classify(resp.Text(), resp.Done, resp.DoneReason, o.classifier)
	if err := relay.CompletionStatus(ctx, verdict); err != nil {
		return nil, classify.Verdict{}, err
	}

	return resp, verdict, nil
}

// persistAssistantTurn allocates the assistant id, extracts artifacts and
// writes the message with its artifact list in one logical unit.
func (o *Orchestrator) persistAssistantTurn(ctx context.Context, span trace.Span, sid ident.SessionID, text string) (*session.Message, []ident.ArtifactID, error) {
	span.AddEvent("persisting")

	mid, err := o.sessions.NextMessageID(ctx, sid, ident.RoleAssistant)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	extracted := artifact.Extract(sid, mid, text, now)
	if err := o.artifacts.SaveAll(ctx, sid, mid, extracted); err != nil {
		return nil, nil, err
	}

	ids := artifactIDsOf(extracted)
	msg := &session.Message{
		ID:          mid,
		SessionID:   sid,
		Role:        ident.RoleAssistant,
		Content:     text,
		ArtifactIDs: ids,
		CreatedAt:   now,
	}
	if err := o.sessions.AppendMessage(ctx, msg); err != nil {
		return nil, nil, err
	}
	return msg, ids, nil
}

// replaceAssistantTurn re-extracts over the combined document and overwrites
// the existing assistant record in place. Deterministic artifact ids make
// this an overwrite for blocks before the truncation point and a replacement
// beyond it.
func (o *Orchestrator) replaceAssistantTurn(ctx context.Context, span trace.Span, target *session.Message, combined string) ([]ident.ArtifactID, error) {
	span.AddEvent("persisting")

	now := time.Now().UTC()
	extracted := artifact.Extract(target.SessionID, target.ID, combined, now)
	if err := o.artifacts.SaveAll(ctx, target.SessionID, target.ID, extracted); err != nil {
		return nil, err
	}

	ids := artifactIDsOf(extracted)
	updated := *target
	updated.Content = combined
	updated.ArtifactIDs = ids
	if err := o.sessions.UpdateAssistantMessage(ctx, &updated); err != nil {
		return nil, err
	}
	return ids, nil
}

// failTurn emits the error event and returns the underlying failure. When the
// client is already gone the send error is logged and the original failure
// still wins.
func (o *Orchestrator) failTurn(ctx context.Context, relay *Relay, code, message string, cause error) error {
	if sendErr := relay.Error(ctx, code, message); sendErr != nil {
		o.logger.Warn("failed to deliver error event", "code", code, "error", sendErr)
	}
	return cause
}

func artifactIDsOf(artifacts []*artifact.Artifact) []ident.ArtifactID {
	if len(artifacts) == 0 {
		return nil
	}
	ids := make([]ident.ArtifactID, len(artifacts))
	for i, a := range artifacts {
		ids[i] = a.ID
	}
	return ids
}

// presentableError maps a generator failure to a client-safe message.
func presentableError(err error) string {
	var genErr *generate.GenerationError
	if errors.As(err, &genErr) {
		return genErr.Message
	}
	if errors.Is(err, context.Canceled) {
		return "the request was cancelled"
	}
	return "generation failed"
}
