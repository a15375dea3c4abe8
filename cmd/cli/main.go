package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/himanishpuri/PerfectPitch/pkg/logger"
	"github.com/himanishpuri/PerfectPitch/pkg/perfectpitch"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Global flags
var (
	dbPath     string
	tempDir    string
	logLevel   string
	sampleRate int
	hopLength  int
)

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// pipelineConfig builds the shared constants from the global flags.
func pipelineConfig() (perfectpitch.Config, error) {
	return perfectpitch.New(
		perfectpitch.WithSampleRate(sampleRate),
		perfectpitch.WithHopLength(hopLength),
	)
}

// signalContext is cancelled on Ctrl-C so long ingests stop between pairs.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newRootCmd() *cobra.Command {
	defaults := perfectpitch.Default()

	root := &cobra.Command{
		Use:           "perfectpitch",
		Short:         "Piano transcription data pipeline",
		Long:          "Builds and inspects the training example store for piano transcription: audio + MIDI in, spectrograms and piano-rolls out.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetLevel(logger.ParseLevel(logLevel))
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&dbPath, "db", getEnvOrDefault("PERFECTPITCH_DB_PATH", "perfectpitch.sqlite3"), "Path to the SQLite example store")
	flags.StringVar(&tempDir, "temp", getEnvOrDefault("PERFECTPITCH_TEMP_DIR", os.TempDir()), "Directory for temporary audio conversion files")
	flags.StringVar(&logLevel, "log-level", getEnvOrDefault("LOG_LEVEL", "INFO"), "DEBUG, INFO, WARN or ERROR")
	flags.IntVar(&sampleRate, "rate", getEnvInt("PERFECTPITCH_SAMPLE_RATE", defaults.SampleRate), "Pipeline sample rate in Hz")
	flags.IntVar(&hopLength, "hop", getEnvInt("PERFECTPITCH_HOP_LENGTH", defaults.HopLength), "Frame hop in samples")

	root.AddCommand(
		newIngestCmd(),
		newIngestPairCmd(),
		newKeysCmd(),
		newDeleteCmd(),
		newInspectCmd(),
		newParseCmd(),
		newRenderCmd(),
	)
	return root
}

func main() {
	// .env never overrides variables already set.
	if err := godotenv.Load(); err == nil {
		logger.Debugf("Loaded .env")
	}

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		logger.GetLogger().Sync()
		os.Exit(1)
	}
	logger.GetLogger().Sync()
}
