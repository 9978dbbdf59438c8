package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/rahul/perfwizard/internal/wizard"
)

var (
	runAgent   string
	runEnabled []string
	runPlain   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full analysis and print the transcript",
	RunE:  runAnalysis,
}

func init() {
	runCmd.Flags().StringVar(&runAgent, "agent", "", "agent to use (gemini, chatgpt, claude, debug)")
	runCmd.Flags().StringSliceVar(&runEnabled, "enabled", nil, "data sources to run, by title")
	runCmd.Flags().BoolVar(&runPlain, "plain", false, "print raw transcript lines without styling")
}

func runAnalysis(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	r := &wizard.Runner{
		Dispatcher:          a.dispatcher,
		Session:             a.cfg.App.SessionID,
		Agent:               runAgent,
		Enabled:             runEnabled,
		AdditionalQuestions: a.cfg.Agent.AdditionalQuestions,
	}

	p := newPrinter(runPlain)
	p.heading("Welcome to the Performance Wizard")
	p.status("Running analysis...")
	if err := r.Run(ctx, wizard.SinkFunc(p.publish)); err != nil {
		return err
	}
	p.status("Analysis complete...")
	return nil
}

// printer renders runner updates to the terminal.
type printer struct {
	plain    bool
	renderer *glamour.TermRenderer

	title   lipgloss.Style
	user    lipgloss.Style
	agent   lipgloss.Style
	prompt  lipgloss.Style
	success lipgloss.Style
}

func newPrinter(plain bool) *printer {
	p := &printer{
		plain:   plain,
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#7D56F4")).Padding(0, 1),
		user:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1A1A1A")).Background(lipgloss.Color("#F5C542")).Padding(0, 1),
		agent:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#2E7D32")).Padding(0, 1),
		prompt:  lipgloss.NewStyle().Foreground(lipgloss.Color("#F5C542")),
		success: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#43BF6D")),
	}
	if !plain {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err == nil {
			p.renderer = r
		}
	}
	return p
}

func (p *printer) heading(s string) {
	if p.plain {
		fmt.Println("## " + s)
		return
	}
	fmt.Println(p.title.Render(s))
}

func (p *printer) status(s string) {
	if p.plain {
		fmt.Println(s)
		return
	}
	fmt.Println(p.success.Render(s))
}

func (p *printer) publish(ctx context.Context, u wizard.Update) error {
	if p.plain {
		fmt.Printf("%s: %s\n", u.Title, u.Prompt)
		for _, l := range u.Lines {
			fmt.Println(l)
		}
		return nil
	}

	fmt.Println()
	fmt.Println(p.prompt.Render(u.Title + ": " + u.Prompt))
	for _, l := range u.Lines {
		fmt.Println()
		switch {
		case strings.HasPrefix(l, wizard.QuestionPrefix):
			fmt.Println(p.user.Render("USER"))
			fmt.Println(p.prompt.Render(strings.TrimPrefix(l, wizard.QuestionPrefix)))
		case strings.HasPrefix(l, wizard.AnswerPrefix):
			fmt.Println(p.agent.Render("AGENT"))
			fmt.Print(p.markdown(strings.TrimPrefix(l, wizard.AnswerPrefix)))
		default:
			fmt.Println(l)
		}
	}
	return nil
}

func (p *printer) markdown(s string) string {
	if p.renderer == nil {
		return s + "\n"
	}
	out, err := p.renderer.Render(s)
	if err != nil {
		return s + "\n"
	}
	return out
}
