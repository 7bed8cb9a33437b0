package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/config"
)

type cliState struct {
	configPath string
	cfg        *config.Config
	logger     zerolog.Logger
}

var (
	osExit                 = os.Exit
	stderrWriter io.Writer = os.Stderr
)

func main() {
	// Provider keys may live in a local .env; absence is fine.
	_ = godotenv.Load()

	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, errTestsFailed) || errors.Is(err, errRegression) {
			osExit(1)
			return
		}
		fmt.Fprintln(stderrWriter, err)
		osExit(1)
	}
}

func newRootCmd() *cobra.Command {
	st := &cliState{
		logger: zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger(),
	}

	root := &cobra.Command{
		Use:           "prompttracker",
		Short:         "Evaluate prompt versions and assistants against datasets",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&st.configPath, "config", "", "path to config file (default "+config.DefaultPath+")")

	root.AddCommand(newRunCmd(st))
	root.AddCommand(newTryCmd(st))
	root.AddCommand(newListCmd(st))
	root.AddCommand(newHistoryCmd(st))
	root.AddCommand(newCompareCmd(st))
	root.AddCommand(newServeCmd(st))
	return root
}
