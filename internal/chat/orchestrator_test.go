package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupiduntilnot/helpdesk/internal/identity"
	"github.com/stupiduntilnot/helpdesk/internal/llm"
	"github.com/stupiduntilnot/helpdesk/internal/retry"
	"github.com/stupiduntilnot/helpdesk/internal/store"
)

type fakeVerifier struct {
	subject identity.Subject
	err     error
	calls   int
}

func (f *fakeVerifier) VerifyToken(ctx context.Context, token string) (identity.Subject, error) {
	f.calls++
	return f.subject, f.err
}

type fakeStore struct {
	history   []store.Message
	loadErr   error
	appendErr error

	gotUID   string
	gotConv  string
	gotLimit int
	appended []string
}

func (f *fakeStore) RecentMessages(ctx context.Context, uid, conversationID string, limit int) ([]store.Message, error) {
	f.gotUID, f.gotConv, f.gotLimit = uid, conversationID, limit
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.history, nil
}

func (f *fakeStore) AppendAssistantTurn(ctx context.Context, uid, conversationID, reply string) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, reply)
	return nil
}

type fakeCompleter struct {
	reply string
	err   error

	calls      int
	gotHistory []llm.Message
}

func (f *fakeCompleter) Complete(ctx context.Context, history []llm.Message) (string, error) {
	f.calls++
	f.gotHistory = history
	return f.reply, f.err
}

func newTestOrchestrator(v *fakeVerifier, s *fakeStore, c *fakeCompleter) *Orchestrator {
	return NewOrchestrator(v, s, c, 50, 120*time.Second, retry.Policy{MaxRetries: 0}, zerolog.Nop())
}

func TestRun_HappyPath(t *testing.T) {
	verifier := &fakeVerifier{subject: "user-1"}
	st := &fakeStore{history: []store.Message{
		{Role: store.RoleUser, Content: "wifi is down"},
		{Role: store.RoleAssistant, Content: "Have you rebooted?"},
		{Role: store.RoleUser, Content: "yes, still down"},
	}}
	completer := &fakeCompleter{reply: "Try restarting your router."}

	orch := newTestOrchestrator(verifier, st, completer)
	err := orch.Run(context.Background(), TurnRequest{IDToken: "tok", ConversationID: "c1"})
	require.NoError(t, err)

	assert.Equal(t, "user-1", st.gotUID)
	assert.Equal(t, "c1", st.gotConv)
	assert.Equal(t, 50, st.gotLimit)

	require.Len(t, completer.gotHistory, 3)
	assert.Equal(t, llm.RoleUser, completer.gotHistory[2].Role)
	assert.Equal(t, "yes, still down", completer.gotHistory[2].Content)

	require.Equal(t, []string{"Try restarting your router."}, st.appended)
}

func TestRun_AuthFailure(t *testing.T) {
	verifier := &fakeVerifier{err: &identity.AuthError{Reason: identity.ReasonInvalid}}
	st := &fakeStore{}
	completer := &fakeCompleter{}

	orch := newTestOrchestrator(verifier, st, completer)
	err := orch.Run(context.Background(), TurnRequest{IDToken: "bad", ConversationID: "c1"})

	var authErr *identity.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Zero(t, completer.calls, "provider must not be called after auth failure")
	assert.Empty(t, st.appended)
}

func TestRun_LoadFailure(t *testing.T) {
	verifier := &fakeVerifier{subject: "user-1"}
	st := &fakeStore{loadErr: &store.StoreError{Op: "read messages", Err: errors.New("io")}}
	completer := &fakeCompleter{}

	orch := newTestOrchestrator(verifier, st, completer)
	err := orch.Run(context.Background(), TurnRequest{IDToken: "tok", ConversationID: "c1"})

	var storeErr *store.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Zero(t, completer.calls)
	assert.Empty(t, st.appended)
}

func TestRun_ProviderFailureWritesNothing(t *testing.T) {
	verifier := &fakeVerifier{subject: "user-1"}
	st := &fakeStore{}
	completer := &fakeCompleter{err: &llm.ProviderError{Status: 401, Message: "bad key"}}

	orch := newTestOrchestrator(verifier, st, completer)
	err := orch.Run(context.Background(), TurnRequest{IDToken: "tok", ConversationID: "c1"})

	var provErr *llm.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Empty(t, st.appended, "writes must happen only after provider success")
}

func TestRun_EmptyReplyStillPersisted(t *testing.T) {
	verifier := &fakeVerifier{subject: "user-1"}
	st := &fakeStore{}
	completer := &fakeCompleter{reply: ""}

	orch := newTestOrchestrator(verifier, st, completer)
	err := orch.Run(context.Background(), TurnRequest{IDToken: "tok", ConversationID: "c1"})
	require.NoError(t, err)
	require.Equal(t, []string{""}, st.appended)
}

func TestRun_PersistFailure(t *testing.T) {
	verifier := &fakeVerifier{subject: "user-1"}
	st := &fakeStore{appendErr: &store.StoreError{Op: "update conversation", NotFound: true, Err: store.ErrConversationNotFound}}
	completer := &fakeCompleter{reply: "ok"}

	orch := newTestOrchestrator(verifier, st, completer)
	err := orch.Run(context.Background(), TurnRequest{IDToken: "tok", ConversationID: "c1"})

	var storeErr *store.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.True(t, storeErr.NotFound)
}

func TestRun_EmptyHistoryIsNotAnError(t *testing.T) {
	verifier := &fakeVerifier{subject: "user-1"}
	st := &fakeStore{}
	completer := &fakeCompleter{reply: "Hello! How can I help?"}

	orch := newTestOrchestrator(verifier, st, completer)
	err := orch.Run(context.Background(), TurnRequest{IDToken: "tok", ConversationID: "fresh"})
	require.NoError(t, err)
	assert.Empty(t, completer.gotHistory)
	require.Equal(t, []string{"Hello! How can I help?"}, st.appended)
}
