package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/himanishpuri/PerfectPitch/internal/audio"
	"github.com/himanishpuri/PerfectPitch/internal/model"
	"github.com/himanishpuri/PerfectPitch/internal/score"
	"github.com/himanishpuri/PerfectPitch/internal/spectrogram"
	"github.com/spf13/cobra"
)

func newParseCmd() *cobra.Command {
	var (
		noSustain bool
		writePath string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "parse <midi>",
		Short: "Print the notes of a MIDI file after sustain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			s, err := score.Decode(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			notes := s.Notes
			if !noSustain {
				notes = score.ApplySustain(s.Notes, s.Pedals, s.EndTime)
			}
			sort.SliceStable(notes, func(i, j int) bool {
				if notes[i].StartTime != notes[j].StartTime {
					return notes[i].StartTime < notes[j].StartTime
				}
				return notes[i].Pitch < notes[j].Pitch
			})

			t := model.NewTranscription(notes)
			vmin, vmax := t.VelocityRange()
			fmt.Printf("🎹 %d notes, %d pedal events, %.2fs, velocity %d-%d\n\n",
				len(notes), len(s.Pedals), s.EndTime, vmin, vmax)

			for i, n := range notes {
				if limit > 0 && i >= limit {
					fmt.Printf("   ... and %d more\n", len(notes)-limit)
					break
				}
				fmt.Printf("   pitch %3d  %8.3f - %8.3f  vel %3d  ch %d\n",
					n.Pitch, n.StartTime, n.EndTime, n.Velocity, n.Channel)
			}

			if writePath != "" {
				if err := os.WriteFile(writePath, score.Encode(notes, nil), 0o644); err != nil {
					return err
				}
				fmt.Printf("\n✅ Wrote pedal-free score to %s\n", writePath)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noSustain, "no-sustain", false, "Print raw note-on/off times")
	cmd.Flags().StringVar(&writePath, "write", "", "Write the resulting notes as a MIDI file without pedal events")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum notes to print (0 for all)")
	return cmd
}

func newRenderCmd() *cobra.Command {
	opts := spectrogram.DefaultRenderOptions()

	cmd := &cobra.Command{
		Use:   "render <wav> <png>",
		Short: "Draw a spectrogram image of a WAV file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			samples, rate, err := audio.ReadWav(args[0])
			if err != nil {
				return err
			}
			data := make([]float64, len(samples))
			for i, s := range samples {
				data[i] = float64(s)
			}
			if err := spectrogram.Render(data, rate, args[1], opts); err != nil {
				return err
			}
			fmt.Printf("✅ Saved spectrogram of %d samples at %d Hz to %s\n", len(samples), rate, args[1])
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.Width, "width", opts.Width, "Image width in pixels")
	cmd.Flags().IntVar(&opts.Height, "height", opts.Height, "Image height in pixels (frequency bins)")
	cmd.Flags().BoolVar(&opts.Log10, "log10", opts.Log10, "Log-scale magnitudes")
	return cmd
}
