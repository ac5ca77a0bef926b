package main

import (
	"fmt"
	"os"

	"github.com/aretw0/fsmtask"
	"github.com/aretw0/fsmtask/internal/presentation/graph"
	"github.com/aretw0/fsmtask/internal/presentation/tui"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <source>",
		Short: "Check a machine schema for consistency",
		Long: `Validates the schema (states, transitions, final states) and resolves every guard and action
against the hooks file. Unreachable states are reported as warnings.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			machineName, _ := cmd.Flags().GetString("machine")

			engine, err := fsmtask.New(args[0],
				fsmtask.WithMachineName(machineName),
				fsmtask.WithHooksFile(cfg.HooksPath),
			)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, s := range engine.Definition().Unreachable() {
				fmt.Fprintf(out, "warning: state %q is unreachable from %q\n", s, engine.Definition().InitialState())
			}
			fmt.Fprintf(out, "Machine %q is valid ✅\n", engine.Name())
			return nil
		},
	}
}

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph <source>",
		Short: "Export the machine as a Mermaid state diagram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			machineName, _ := cmd.Flags().GetString("machine")
			current, _ := cmd.Flags().GetString("current")

			def, _, err := fsmtask.LoadDefinition(cmd.Context(), args[0], machineName)
			if err != nil {
				return err
			}

			var overlay *graph.GraphOverlay
			if current != "" {
				overlay = &graph.GraphOverlay{CurrentState: current}
			}
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(def, overlay))
			return nil
		},
	}
	cmd.Flags().String("current", "", "State to highlight")
	return cmd
}

func newDescribeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe <source>",
		Short: "Render the machine states and transitions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			machineName, _ := cmd.Flags().GetString("machine")
			raw, _ := cmd.Flags().GetBool("raw")

			def, description, err := fsmtask.LoadDefinition(cmd.Context(), args[0], machineName)
			if err != nil {
				return err
			}
			markdown := tui.DescribeDefinition(def, description)

			render := tui.NewPlainRenderer()
			if !raw && cmd.OutOrStdout() == os.Stdout && tui.IsTerminal(os.Stdout) {
				render = tui.NewRenderer()
			}
			out, err := render(markdown)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().Bool("raw", false, "Print Markdown without terminal styling")
	return cmd
}
