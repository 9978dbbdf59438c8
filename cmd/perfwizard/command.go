package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rahul/perfwizard/internal/wizard"
)

var (
	cmdStep                int
	cmdPrompt              string
	cmdAgent               string
	cmdEnabled             []string
	cmdAdditionalQuestions bool
)

var commandCmd = &cobra.Command{
	Use:   "command <get_next_action|run_action|prompt|start>",
	Short: "Send one protocol command and print the JSON result",
	Args:  cobra.ExactArgs(1),
	RunE:  runCommand,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the stored analysis of the configured site",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close()
		if _, err := a.dispatcher.Handle(cmd.Context(), a.cfg.App.SessionID, wizard.Command{Command: wizard.CommandStart}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reset analysis for %s\n", a.cfg.App.SessionID)
		return nil
	},
}

func init() {
	commandCmd.Flags().IntVar(&cmdStep, "step", 0, "step index")
	commandCmd.Flags().StringVar(&cmdPrompt, "prompt", "", "prompt text for the prompt command")
	commandCmd.Flags().StringVar(&cmdAgent, "agent", "", "agent to use")
	commandCmd.Flags().StringSliceVar(&cmdEnabled, "enabled", nil, "enabled data sources, by title")
	commandCmd.Flags().BoolVar(&cmdAdditionalQuestions, "additional-questions", false, "ask for follow-up question suggestions")
}

func runCommand(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.dispatcher.Handle(cmd.Context(), a.cfg.App.SessionID, wizard.Command{
		Command:             args[0],
		Step:                cmdStep,
		Prompt:              cmdPrompt,
		Agent:               cmdAgent,
		Enabled:             cmdEnabled,
		AdditionalQuestions: cmdAdditionalQuestions,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res.Payload())
}
