// Package pipeline runs one voice turn end to end: audio intake, transcoding,
// session resolution, the three provider calls, persistence and cleanup.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"github.com/ethanbaker/voicechat/internal/audio"
	"github.com/ethanbaker/voicechat/internal/conversation"
	"github.com/ethanbaker/voicechat/internal/providers"
	"github.com/ethanbaker/voicechat/pkg/apperr"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout is the overall deadline of a turn
const DefaultTimeout = 110 * time.Second

// CodeNoSpeech rejects audio in which nothing was recognized
const CodeNoSpeech = "no_speech_detected"

// ReplyContentType is the media type of Result.Audio
const ReplyContentType = "audio/mpeg"

/** Collaborators **/

type validator interface {
	Limits() audio.Limits
	CheckSize(size int64) (audio.Result, bool)
	Validate(ctx context.Context, path, declaredType string) (audio.Result, error)
}

type preparer interface {
	Prepare(ctx context.Context, scope *audio.Scope, path string) (string, bool)
}

type transcriber interface {
	Transcribe(ctx context.Context, path, filename string) (string, error)
}

type resolver interface {
	Resolve(ctx context.Context, ownerID, requested string) (conversation.Resolution, error)
}

type contextLoader interface {
	Load(ctx context.Context, sessionID uuid.UUID, ownerID string, limit int) ([]conversation.Entry, error)
}

type generator interface {
	Generate(ctx context.Context, history []providers.ChatMessage, utterance string) (string, error)
}

type synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type recorder interface {
	Record(ctx context.Context, sessionID uuid.UUID, userText, assistantText string) error
}

// Dependencies are the single-purpose components sequenced by the orchestrator
type Dependencies struct {
	Validator   validator
	Transcoder  preparer
	Transcriber transcriber
	Resolver    resolver
	Loader      contextLoader
	Generator   generator
	Synthesizer synthesizer
	Recorder    recorder
}

// Config holds the orchestrator settings
type Config struct {
	Timeout      time.Duration
	TempDir      string
	ContextLimit int
}

// Request is one uploaded utterance
type Request struct {
	OwnerID     string
	SessionID   string
	Audio       io.Reader
	ContentType string
}

// Result is a completed turn. When Persisted is false the audio is still
// valid; PersistErr holds the storage failure.
type Result struct {
	RequestID      string
	SessionID      uuid.UUID
	SessionCreated bool
	Transcript     string
	Reply          string
	Audio          []byte
	ContentType    string
	Persisted      bool
	PersistErr     error
	Transcoded     bool
	Trace          []State
}

// Orchestrator is the only component that knows the full turn sequence
type Orchestrator struct {
	deps   Dependencies
	config Config
}

// New creates an orchestrator
func New(deps Dependencies, cfg Config) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Orchestrator{deps: deps, config: cfg}
}

// turn tracks the state of one invocation
type turn struct {
	id    string
	state State
	trace []State
}

func (t *turn) enter(s State) {
	t.state = s
	t.trace = append(t.trace, s)
	log.Printf("[PIPELINE]: %s -> %s", t.id, s)
}

// Run executes one turn. Every artifact created for the turn is deleted before
// Run returns, whatever the outcome. Errors are *StageError values wrapping an
// apperr classification.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	t := &turn{id: uuid.NewString()}

	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	scope := audio.NewScope(o.config.TempDir)
	defer scope.Close()

	result, err := o.execute(ctx, t, scope, req)
	failedAt := t.state

	t.enter(StateCleaning)
	if cerr := scope.Close(); cerr != nil {
		log.Printf("[PIPELINE]: %s cleanup error: %v", t.id, cerr)
	}

	if err != nil {
		err = classify(ctx, err)
		t.enter(StateFailed)
		log.Printf("[PIPELINE]: %s failed while %s: %v", t.id, failedAt, err)
		return nil, &StageError{RequestID: t.id, State: failedAt, Err: err}
	}

	t.enter(StateDone)
	result.Trace = t.trace
	return result, nil
}

func (o *Orchestrator) execute(ctx context.Context, t *turn, scope *audio.Scope, req Request) (*Result, error) {
	result := &Result{RequestID: t.id, ContentType: ReplyContentType}

	// Validating
	t.enter(StateValidating)
	if req.Audio == nil {
		return nil, apperr.Validation(audio.CodeEmptyAudio, "an audio file is required")
	}

	limits := o.deps.Validator.Limits()
	path, written, exceeded, err := scope.WriteFrom(req.Audio, audio.ExtensionFor(req.ContentType), limits.MaxBytes)
	if err != nil {
		return nil, apperr.Internal("failed to store the uploaded audio", err)
	}
	if exceeded || written == 0 {
		rejected, _ := o.deps.Validator.CheckSize(written)
		return nil, apperr.ValidationStatus(rejected.Status, rejected.Code, rejected.Reason)
	}

	validated, err := o.deps.Validator.Validate(ctx, path, req.ContentType)
	if err != nil {
		return nil, err
	}
	if !validated.Valid {
		return nil, apperr.ValidationStatus(validated.Status, validated.Code, validated.Reason)
	}

	// Transcoding
	t.enter(StateTranscoding)
	path, result.Transcoded = o.deps.Transcoder.Prepare(ctx, scope, path)
	filename := "audio" + audio.ExtensionFor(validated.MediaType)
	if result.Transcoded {
		filename = "audio.wav"
	}

	// Resolving
	t.enter(StateResolving)
	resolution, history, err := o.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	result.SessionID = resolution.SessionID
	result.SessionCreated = resolution.Created

	// Transcribing
	t.enter(StateTranscribing)
	transcript, err := o.deps.Transcriber.Transcribe(ctx, path, filename)
	if err != nil {
		return nil, err
	}
	if transcript == "" {
		return nil, apperr.Validation(CodeNoSpeech, "no speech was detected in the audio")
	}
	result.Transcript = transcript

	// The audio is no longer needed once it has been transcribed
	if err := scope.Release(path); err != nil {
		log.Printf("[PIPELINE]: %s %v", t.id, err)
	}

	// Generating
	t.enter(StateGenerating)
	reply, err := o.deps.Generator.Generate(ctx, toChatMessages(history), transcript)
	if err != nil {
		return nil, err
	}
	result.Reply = reply

	// Synthesizing
	t.enter(StateSynthesizing)
	speech, err := o.deps.Synthesizer.Synthesize(ctx, reply)
	if err != nil {
		return nil, err
	}
	result.Audio = speech

	// Persisting
	t.enter(StatePersisting)
	if err := o.deps.Recorder.Record(ctx, resolution.SessionID, transcript, reply); err != nil {
		result.PersistErr = classify(ctx, err)
		log.Printf("[PIPELINE]: %s WARNING turn not persisted, returning audio anyway: %v", t.id, err)
		return result, nil
	}
	result.Persisted = true

	return result, nil
}

// resolve runs session resolution and context loading concurrently. Context is
// loaded for the requested id and discarded when the resolver had to create a
// different session.
func (o *Orchestrator) resolve(ctx context.Context, req Request) (conversation.Resolution, []conversation.Entry, error) {
	var (
		resolution conversation.Resolution
		loaded     []conversation.Entry
		loadedFor  uuid.UUID
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		resolution, err = o.deps.Resolver.Resolve(gctx, req.OwnerID, req.SessionID)
		return err
	})

	g.Go(func() error {
		id, err := uuid.Parse(req.SessionID)
		if req.SessionID == "" || err != nil {
			return nil
		}

		entries, err := o.deps.Loader.Load(gctx, id, req.OwnerID, o.config.ContextLimit)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				return nil
			}
			return err
		}

		loaded, loadedFor = entries, id
		return nil
	})

	if err := g.Wait(); err != nil {
		return conversation.Resolution{}, nil, err
	}

	if resolution.Created || loadedFor != resolution.SessionID {
		loaded = nil
	}

	return resolution, loaded, nil
}

// classify maps deadline and cancellation of the turn itself onto
// Timeout/Canceled, whatever error the interrupted step reported
func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &apperr.Error{Kind: apperr.KindTimeout, Message: "the request took too long to complete", Err: err}
	case errors.Is(ctx.Err(), context.Canceled):
		return &apperr.Error{Kind: apperr.KindCanceled, Message: "the request was canceled", Err: err}
	default:
		return apperr.Normalize(err)
	}
}

func toChatMessages(entries []conversation.Entry) []providers.ChatMessage {
	messages := make([]providers.ChatMessage, 0, len(entries))
	for _, e := range entries {
		messages = append(messages, providers.ChatMessage{Role: string(e.Role), Content: e.Content})
	}
	return messages
}
