package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rahul/perfwizard/internal/observability"
	"github.com/rahul/perfwizard/internal/wizard"
)

const maxBodyBytes = 1 << 20

// commandRequest is a protocol command with an optional session override.
type commandRequest struct {
	wizard.Command
	Session string `json:"session,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HTTPGateway serves the command protocol over JSON.
type HTTPGateway struct {
	Dispatcher *wizard.Dispatcher
	// Token, when set, is required as a bearer token on /command.
	Token   string
	Addr    string
	Session string
	Logger  *observability.Logger

	server *http.Server
}

func NewHTTPGateway(d *wizard.Dispatcher, addr, token, session string, logger *observability.Logger) *HTTPGateway {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	if addr == "" {
		addr = "127.0.0.1:8080"
	}
	return &HTTPGateway{Dispatcher: d, Token: token, Addr: addr, Session: session, Logger: logger}
}

// Handler returns the routes of the gateway.
func (g *HTTPGateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /command", g.authorized(g.handleCommand))
	mux.HandleFunc("GET /healthz", g.handleHealth)
	return mux
}

// Start serves until ctx is done, then shuts the server down.
func (g *HTTPGateway) Start(ctx context.Context) error {
	g.server = &http.Server{
		Addr:              g.Addr,
		Handler:           g.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		g.Logger.Z.Info("http gateway listening", zap.String("addr", g.Addr))
		errCh <- g.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return g.Stop()
	}
}

func (g *HTTPGateway) Stop() error {
	if g.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.server.Shutdown(ctx)
}

func (g *HTTPGateway) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.Token != "" {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(g.Token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
				return
			}
		}
		next(w, r)
	}
}

func (g *HTTPGateway) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid command body: %v", err)})
		return
	}

	session := req.Session
	if session == "" {
		session = g.Session
	}

	res, err := g.Dispatcher.Handle(r.Context(), session, req.Command)
	if err != nil {
		status := StatusFor(err)
		if status >= http.StatusInternalServerError {
			g.Logger.Z.Error("command failed", zap.String("command", req.Name()), zap.Error(err))
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res.Payload())
}

func (g *HTTPGateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := observability.GetStatus()
	agents := make(map[string]string)
	for _, name := range g.Dispatcher.Agents.Names() {
		if a, err := g.Dispatcher.Agents.Get(name); err == nil {
			agents[name] = a.Description()
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"role":   st.Role,
		"step":   st.Step,
		"total":  st.Total,
		"agents": agents,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
