package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/himanishpuri/PerfectPitch/internal/ingest"
	"github.com/himanishpuri/PerfectPitch/internal/storage"
	"github.com/himanishpuri/PerfectPitch/pkg/logger"
	"github.com/spf13/cobra"
)

func newIngester() (*ingest.Ingester, *storage.DBClient, error) {
	cfg, err := pipelineConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, nil, err
	}
	in, err := ingest.New(db, cfg, ingest.WithTempDir(tempDir))
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return in, db, nil
}

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <dir>",
		Short: "Add every recording/score pair under a directory",
		Long:  "Pairs <name>.{wav,flac,mp3} with <name>.{mid,midi} anywhere under dir and stores each pair under its relative name.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, db, err := newIngester()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := signalContext()
			defer cancel()

			fmt.Println("🎵 Ingesting", args[0])
			report, err := in.AddDirectory(ctx, args[0])
			if report != nil {
				printReport(report)
			}
			return err
		},
	}
}

func printReport(r *ingest.Report) {
	fmt.Printf("\n✅ Added %d example(s)\n", len(r.Added))
	if len(r.Failed) > 0 {
		keys := make([]string, 0, len(r.Failed))
		for k := range r.Failed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Printf("❌ %d failed:\n", len(keys))
		for _, k := range keys {
			fmt.Printf("   %s: %v\n", k, r.Failed[k])
		}
	}
	if len(r.Unpaired) > 0 {
		fmt.Printf("⚠️  %d file(s) without a partner:\n   %s\n", len(r.Unpaired), strings.Join(r.Unpaired, "\n   "))
	}
}

func newIngestPairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest-pair <key> <audio> <midi>",
		Short: "Add one recording and its score",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, db, err := newIngester()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := signalContext()
			defer cancel()

			if err := in.AddPair(ctx, args[0], args[1], args[2]); err != nil {
				return err
			}
			fmt.Printf("✅ Stored %s\n", args[0])
			return nil
		},
	}
}

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List stored examples in index order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := storage.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			rate, _, err := db.SampleRate()
			if err != nil {
				return err
			}
			keys, err := db.ListKeys()
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				fmt.Println("📭 No examples in store")
				return nil
			}

			fmt.Printf("📚 %d example(s) at %d Hz:\n\n", len(keys), rate)
			for i, key := range keys {
				info, err := db.ExampleInfo(key)
				if err != nil {
					logger.Warnf("Failed to read %s: %v", key, err)
					continue
				}
				seconds := 0.0
				if rate > 0 {
					seconds = float64(info.NumSamples) / float64(rate)
				}
				fmt.Printf("%4d. %s  (%.1fs, %d notes, velocity %d-%d)\n",
					i, key, seconds, info.NumNotes, info.VelocityMin, info.VelocityMax)
			}
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove one example",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := storage.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.DeleteExample(args[0]); err != nil {
				return err
			}
			fmt.Printf("✅ Deleted %s\n", args[0])
			logger.Infof("Deleted example %s", args[0])
			return nil
		},
	}
}
