package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/rahul/perfwizard/internal/plan"
	"github.com/rahul/perfwizard/internal/wizard"
)

// Messenger defines the interface for chat gateways (Telegram, Discord, etc.)
type Messenger interface {
	// Start begins the message listening loop and blocks until ctx is done.
	Start(ctx context.Context) error
	// Send sends a message to a specific chat
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway
	Stop() error
}

// StatusFor maps a dispatcher error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, plan.ErrOutOfRange),
		errors.Is(err, wizard.ErrUnknownStep),
		errors.Is(err, wizard.ErrUnknownCommand),
		errors.Is(err, wizard.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, wizard.ErrSessionComplete):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

const helpText = `Performance Wizard commands:
/analyze - run the full analysis of the site
/compare - re-run Lighthouse and compare with the previous results
/reset - forget the current analysis
Any other message is a follow-up question about the analysis.`

// Conversation turns chat messages into dispatcher commands for one session.
type Conversation struct {
	Dispatcher *wizard.Dispatcher
	Session    string
	Agent      string
	Enabled    []string
}

// Handle answers one chat message, calling reply for every message to post back.
func (c *Conversation) Handle(ctx context.Context, text string, reply func(string) error) error {
	text = strings.TrimSpace(text)
	cmd, _, _ := strings.Cut(text, " ")
	// Telegram appends the bot name in groups: /analyze@perfwizard_bot
	cmd, _, _ = strings.Cut(cmd, "@")

	switch strings.ToLower(cmd) {
	case "":
		return nil
	case "/start", "/help":
		return reply(helpText)
	case "/analyze":
		if err := reply("Running analysis..."); err != nil {
			return err
		}
		r := &wizard.Runner{
			Dispatcher:          c.Dispatcher,
			Session:             c.Session,
			Agent:               c.Agent,
			Enabled:             c.Enabled,
			AdditionalQuestions: true,
		}
		err := r.Run(ctx, wizard.SinkFunc(func(ctx context.Context, u wizard.Update) error {
			return reply(FormatUpdate(u))
		}))
		if err != nil {
			return reply(fmt.Sprintf("The analysis stopped: %v", err))
		}
		return reply("Analysis complete...")
	case "/reset":
		if _, err := c.Dispatcher.Handle(ctx, c.Session, wizard.Command{Command: wizard.CommandStart}); err != nil {
			return reply(fmt.Sprintf("Could not reset the analysis: %v", err))
		}
		return reply("The analysis was reset.")
	case "/compare":
		text = wizard.CompareCommand
	}

	res, err := c.Dispatcher.Handle(ctx, c.Session, wizard.Command{
		Command:             wizard.CommandPrompt,
		Step:                c.followUpStep(),
		Prompt:              text,
		Agent:               c.Agent,
		AdditionalQuestions: true,
	})
	if err != nil {
		return reply(fmt.Sprintf("I could not answer that: %v", err))
	}
	return reply(FormatLines(res.Lines))
}

// followUpStep is the wrap-up step, so follow-ups replay the summary without overwriting it.
func (c *Conversation) followUpStep() int {
	return c.Dispatcher.Plan().Len() - 1
}

// FormatUpdate renders a runner update as plain chat text.
func FormatUpdate(u wizard.Update) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", u.Title, u.Prompt)
	if len(u.Lines) > 0 {
		b.WriteString("\n\n")
		b.WriteString(FormatLines(u.Lines))
	}
	return b.String()
}

// FormatLines replaces the transcript prefixes with speaker labels.
func FormatLines(lines []string) string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		switch {
		case strings.HasPrefix(l, wizard.QuestionPrefix):
			out = append(out, "USER\n"+strings.TrimPrefix(l, wizard.QuestionPrefix))
		case strings.HasPrefix(l, wizard.AnswerPrefix):
			out = append(out, "AGENT\n"+strings.TrimPrefix(l, wizard.AnswerPrefix))
		default:
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n\n")
}

// Chunk splits text into pieces of at most limit bytes, preferring line breaks.
func Chunk(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}
	var out []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
			for cut > 1 && !utf8.RuneStart(text[cut]) {
				cut--
			}
		}
		out = append(out, text[:cut])
		text = strings.TrimPrefix(text[cut:], "\n")
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}
