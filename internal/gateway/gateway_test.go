package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/perfwizard/internal/agent"
	"github.com/rahul/perfwizard/internal/plan"
	"github.com/rahul/perfwizard/internal/sources"
	"github.com/rahul/perfwizard/internal/store"
	"github.com/rahul/perfwizard/internal/wizard"
)

func newDispatcher(t *testing.T) *wizard.Dispatcher {
	d, _, _ := newWizard(t)
	return d
}

func newWizard(t *testing.T) (*wizard.Dispatcher, *agent.Debug, *store.MemoryStore) {
	t.Helper()
	debug := agent.NewDebug()
	reg := agent.NewRegistry()
	reg.Register(debug)
	mem := store.NewMemoryStore()
	srcs := []sources.Source{sources.NewStatic("Lighthouse", "Gathering Lighthouse data", `{"mobile":{}}`)}
	d, err := wizard.NewDispatcher(func() (*plan.Plan, error) {
		return plan.Build(srcs, plan.Template{})
	}, mem, reg, nil, nil)
	require.NoError(t, err)
	return d, debug, mem
}

func post(t *testing.T, srv *httptest.Server, token string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/command", bytes.NewReader(data))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHTTPGateway_CommandFlow(t *testing.T) {
	g := NewHTTPGateway(newDispatcher(t), "", "secret", "example.com", nil)
	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	resp := post(t, srv, "secret", map[string]any{"command": "_get_next_action_", "step": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view wizard.StepView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, "Lighthouse", view.Title)
	assert.Equal(t, plan.ActionRunAction, view.Action)
	assert.True(t, view.Enabled)

	resp = post(t, srv, "secret", map[string]any{"command": "run_action", "step": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var lines []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&lines))
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], wizard.QuestionPrefix))

	resp = post(t, srv, "secret", map[string]any{"command": "get_next_action", "step": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = post(t, srv, "secret", map[string]any{"command": "run_action", "step": 1})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = post(t, srv, "secret", map[string]any{"command": "start"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var empty string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&empty))
	assert.Equal(t, "", empty)
}

func TestHTTPGateway_Errors(t *testing.T) {
	g := NewHTTPGateway(newDispatcher(t), "", "secret", "example.com", nil)
	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	resp := post(t, srv, "", map[string]any{"command": "start"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = post(t, srv, "wrong", map[string]any{"command": "start"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = post(t, srv, "secret", map[string]any{"command": "get_next_action", "step": 4})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, srv, "secret", map[string]any{"command": "fly"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, srv, "secret", map[string]any{"command": "run_action", "step": 1, "agent": "claude"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/command", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer secret")
	r, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer r.Body.Close()
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)
}

func TestHTTPGateway_Health(t *testing.T) {
	g := NewHTTPGateway(newDispatcher(t), "", "secret", "example.com", nil)
	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	agents, ok := body["agents"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, agents["debug"], "placeholder")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusFor(nil))
	assert.Equal(t, http.StatusBadRequest, StatusFor(plan.ErrOutOfRange))
	assert.Equal(t, http.StatusBadRequest, StatusFor(wizard.ErrBadRequest))
	assert.Equal(t, http.StatusConflict, StatusFor(wizard.ErrSessionComplete))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(wizard.ErrConfiguration))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("boom")))
}

func TestConversation(t *testing.T) {
	conv := &Conversation{Dispatcher: newDispatcher(t), Session: "example.com"}
	ctx := context.Background()

	var replies []string
	reply := func(s string) error {
		replies = append(replies, s)
		return nil
	}

	require.NoError(t, conv.Handle(ctx, "/analyze@perfwizard_bot", reply))
	require.GreaterOrEqual(t, len(replies), 6)
	assert.Equal(t, "Running analysis...", replies[0])
	assert.Contains(t, replies[2], "Lighthouse: Gathering Lighthouse data")
	assert.Contains(t, replies[2], "AGENT\n{debug}")
	assert.Equal(t, "Analysis complete...", replies[len(replies)-1])

	replies = nil
	require.NoError(t, conv.Handle(ctx, "What slows the homepage?", reply))
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "USER\nWhat slows the homepage?")

	replies = nil
	require.NoError(t, conv.Handle(ctx, "/compare", reply))
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "unchanged")

	replies = nil
	require.NoError(t, conv.Handle(ctx, "/help", reply))
	assert.Contains(t, replies[0], "/analyze")
}

func TestConversation_FollowUpKeepsSummary(t *testing.T) {
	d, debug, mem := newWizard(t)
	conv := &Conversation{Dispatcher: d, Session: "example.com"}
	ctx := context.Background()
	reply := func(string) error { return nil }

	require.NoError(t, conv.Handle(ctx, "/analyze", reply))
	summarize, ok := d.Plan().Lookup(plan.TitleSummarize)
	require.True(t, ok)

	h, err := mem.History("example.com")
	require.NoError(t, err)
	require.Contains(t, h, summarize)
	summary := h[summarize]

	for _, q := range []string{"first follow-up", "second follow-up"} {
		require.NoError(t, conv.Handle(ctx, q, reply))

		calls := debug.Calls()
		last := calls[len(calls)-1]
		assert.Equal(t, d.Plan().Len()-1, last.Step)
		assert.Equal(t, []string{q}, last.Fragments)
		require.Contains(t, last.History, summarize)
		assert.Equal(t, summary, last.History[summarize])
	}

	h, err = mem.History("example.com")
	require.NoError(t, err)
	assert.Equal(t, summary, h[summarize])
	assert.Equal(t, "second follow-up", h[d.Plan().Len()-1].Prompt)
}

func TestSender(t *testing.T) {
	assert.Equal(t, "", sender(&tgbotapi.Message{Text: "channel post"}))
	assert.Equal(t, "alice", sender(&tgbotapi.Message{From: &tgbotapi.User{UserName: "alice"}}))
}

func TestChunk(t *testing.T) {
	assert.Equal(t, []string{"short"}, Chunk("short", 10))

	parts := Chunk("line one\nline two\nline three", 12)
	assert.Equal(t, []string{"line one", "line two", "line three"}, parts)

	parts = Chunk(strings.Repeat("é", 10), 5)
	for _, p := range parts {
		assert.LessOrEqual(t, len(p), 5)
		assert.True(t, strings.HasPrefix(p, "é"))
	}
	assert.Equal(t, strings.Repeat("é", 10), strings.Join(parts, ""))
}
