package main

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/himanishpuri/PerfectPitch/internal/dataset"
	"github.com/himanishpuri/PerfectPitch/internal/model"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var (
		viewNames  []string
		augment    bool
		seed       uint64
		keepLength bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <index>",
		Short: "Materialise the views of one example and summarise them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q: %w", args[0], err)
			}

			views, unknown := dataset.ParseViews(viewNames)
			if len(unknown) > 0 {
				return fmt.Errorf("unknown view(s) %s, choose from %s",
					strings.Join(unknown, ", "), strings.Join(dataset.ViewNames, ", "))
			}
			views.KeepPianorollLength = keepLength

			cfg, err := pipelineConfig()
			if err != nil {
				return err
			}
			var opts []dataset.Option
			if augment {
				opts = append(opts, dataset.WithAugmentation(rand.New(rand.NewPCG(seed, seed))))
			}

			store, err := dataset.Open(dbPath, cfg, opts...)
			if err != nil {
				return err
			}
			defer store.Close()

			key, err := store.Key(index)
			if err != nil {
				return err
			}
			item, err := store.Get(index, views)
			if err != nil {
				return err
			}

			fmt.Printf("🔍 Example %d: %s\n\n", index, key)
			printItem(item)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&viewNames, "views", dataset.ViewNames, "Views to materialise")
	cmd.Flags().BoolVar(&augment, "augment", false, "Randomly transpose and stretch the piano-roll")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Seed for --augment")
	cmd.Flags().BoolVar(&keepLength, "keep-length", false, "Do not pad or truncate the piano-roll to spec_length")
	return cmd
}

func shape(m *model.Matrix) string {
	return fmt.Sprintf("(%d, %d)", m.Rows, m.Cols)
}

func printItem(item dataset.Item) {
	for _, name := range dataset.ViewNames {
		if _, ok := item[name]; !ok {
			continue
		}
		switch name {
		case dataset.ViewAudio:
			a, _ := item.Audio()
			fmt.Printf("   %-13s %d samples\n", name, len(a))
		case dataset.ViewVelocityMin:
			v, _ := item.VelocityMin()
			fmt.Printf("   %-13s %d\n", name, v)
		case dataset.ViewVelocityMax:
			v, _ := item.VelocityMax()
			fmt.Printf("   %-13s %d\n", name, v)
		case dataset.ViewNoteSequence:
			ns, _ := item.NoteSequence()
			fmt.Printf("   %-13s %d notes\n", name, len(ns.Pitches))
		case dataset.ViewSpec:
			s, _ := item.Spec()
			fmt.Printf("   %-13s %s\n", name, shape(s))
		case dataset.ViewSpecLength:
			n, _ := item.SpecLength()
			fmt.Printf("   %-13s %d\n", name, n)
		case dataset.ViewPianoroll:
			p, _ := item.Pianoroll()
			fmt.Printf("   %-13s %s onsets=%.0f offsets=%.0f active cells=%.0f\n",
				name, shape(p.Onsets), p.Onsets.Sum(), p.Offsets.Sum(), p.Actives.Sum())
		}
	}
}
