package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/fsmtask/internal/config"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fsmtask",
		Short: "fsmtask drives stored tasks through a declarative state machine",
		Long: `fsmtask validates state machine schemas and applies their events to tasks kept in a store
(memory, file, redis, mongo or postgres). A schema is a YAML/JSON file or a Loam directory of
Markdown documents.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags override the FSMTASK_* environment.
	flags := rootCmd.PersistentFlags()
	flags.String("store", "", "Task store: memory, file, redis, mongo or postgres (env FSMTASK_STORE)")
	flags.String("dir", "", "Directory of the file store (env FSMTASK_DIR)")
	flags.String("log-level", "", "Log level: debug, info, warn or error (env FSMTASK_LOG_LEVEL)")
	flags.String("hooks", "", "Hooks file declaring external guards and actions (env FSMTASK_HOOKS)")
	flags.StringP("machine", "m", "", "Machine name when the source directory holds several")
	flags.String("env-file", "", "Dotenv file to load before reading the environment (default .env)")

	rootCmd.AddCommand(
		newValidateCmd(),
		newGraphCmd(),
		newDescribeCmd(),
		newStartCmd(),
		newSendCmd(),
		newListCmd(),
		newTransitionsCmd(),
		newServeCmd(),
		newMCPCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies the persistent flags the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var files []string
	if envFile, _ := cmd.Flags().GetString("env-file"); envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return config.Config{}, err
	}

	override := func(name string, dst *string) {
		if cmd.Flags().Changed(name) {
			*dst, _ = cmd.Flags().GetString(name)
		}
	}
	override("store", &cfg.StoreKind)
	override("dir", &cfg.Dir)
	override("log-level", &cfg.LogLevel)
	override("hooks", &cfg.HooksPath)

	return cfg, cfg.Validate()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
