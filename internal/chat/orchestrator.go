package chat

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/stupiduntilnot/helpdesk/internal/identity"
	"github.com/stupiduntilnot/helpdesk/internal/llm"
	"github.com/stupiduntilnot/helpdesk/internal/retry"
	"github.com/stupiduntilnot/helpdesk/internal/store"
)

// TokenVerifier authenticates a caller-supplied identity token.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (identity.Subject, error)
}

// HistoryStore is the slice of the document store the turn pipeline touches.
type HistoryStore interface {
	RecentMessages(ctx context.Context, uid, conversationID string, limit int) ([]store.Message, error)
	AppendAssistantTurn(ctx context.Context, uid, conversationID, reply string) error
}

// TurnRequest is one inbound turn: a credential and the conversation it
// targets.
type TurnRequest struct {
	IDToken        string
	ConversationID string
}

// Orchestrator sequences one request/response cycle: verify the token, load
// the bounded context window, call the completion provider, persist the
// reply. The first component failure is terminal; writes happen only after
// the provider call succeeds.
type Orchestrator struct {
	verifier  TokenVerifier
	store     HistoryStore
	completer llm.Completer

	window          int
	providerTimeout time.Duration
	retryPolicy     retry.Policy

	locks *keyedMutex
	log   zerolog.Logger
}

// NewOrchestrator wires the turn pipeline.
func NewOrchestrator(
	verifier TokenVerifier,
	hs HistoryStore,
	completer llm.Completer,
	window int,
	providerTimeout time.Duration,
	retryPolicy retry.Policy,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		verifier:        verifier,
		store:           hs,
		completer:       completer,
		window:          window,
		providerTimeout: providerTimeout,
		retryPolicy:     retryPolicy,
		locks:           newKeyedMutex(),
		log:             log.With().Str("component", "orchestrator").Logger(),
	}
}

// Run executes one turn. Turns on the same conversation are serialized so
// the history read reflects a consistent snapshot relative to concurrent
// persists.
func (o *Orchestrator) Run(ctx context.Context, req TurnRequest) error {
	startedAt := time.Now()

	subject, err := o.verifier.VerifyToken(ctx, req.IDToken)
	if err != nil {
		return err
	}
	uid := string(subject)

	unlock := o.locks.lock(uid + "/" + req.ConversationID)
	defer unlock()

	history, err := o.store.RecentMessages(ctx, uid, req.ConversationID, o.window)
	if err != nil {
		return err
	}

	messages := make([]llm.Message, 0, len(history))
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}

	var reply string
	callCtx, cancel := context.WithTimeout(ctx, o.providerTimeout)
	defer cancel()
	err = retry.Do(callCtx, o.retryPolicy, func() error {
		var callErr error
		reply, callErr = o.completer.Complete(callCtx, messages)
		return callErr
	})
	if err != nil {
		return err
	}

	// An empty reply is still persisted so the turn is not silently dropped.
	if err := o.store.AppendAssistantTurn(ctx, uid, req.ConversationID, reply); err != nil {
		return err
	}

	o.log.Info().
		Str("uid", uid).
		Str("conversation_id", req.ConversationID).
		Int("history_len", len(history)).
		Dur("latency", time.Since(startedAt)).
		Msg("turn completed")
	return nil
}
