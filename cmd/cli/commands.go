package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/SonicMatch/pkg/models"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/audio"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/dsp"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/fingerprint"
	"github.com/himanishpuri/SonicMatch/pkg/sonicmatch/similarity"
)

func addCommand() *cobra.Command {
	var in models.TrackInput
	var youtubeURL string

	cmd := &cobra.Command{
		Use:   "add [audio_file]",
		Short: "Add a reference track from a file or a YouTube URL",
		Example: `  sonicmatch add song.mp3 --title "Song" --artist "Artist"
  sonicmatch add --youtube-url "https://youtu.be/dQw4w9WgXcQ"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (youtubeURL == "") {
				return fmt.Errorf("give exactly one of an audio file or --youtube-url")
			}

			svc, err := createService()
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			var track *models.Track
			if youtubeURL != "" {
				fmt.Println("📥 Downloading audio from YouTube...")
				track, err = svc.AddYouTubeTrack(ctx, youtubeURL, in)
			} else {
				fmt.Println("🎵 Processing audio file...")
				track, err = svc.AddTrack(ctx, args[0], in)
			}
			if err != nil {
				return fmt.Errorf("failed to add track: %w", err)
			}

			fmt.Println("\n✅ Successfully added track to database!")
			printTrack(track)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Title, "title", "", "Track title (default from tags or file name)")
	cmd.Flags().StringVar(&in.Artist, "artist", "", "Artist name (default from tags or file name)")
	cmd.Flags().StringVar(&in.Genre, "genre", "", "Genre label (default guessed from file name)")
	cmd.Flags().StringVar(&in.Mood, "mood", "", "Mood label (default guessed from file name)")
	cmd.Flags().StringVar(&in.YouTubeID, "youtube", "", "YouTube video id to store with the track")
	cmd.Flags().StringVar(&youtubeURL, "youtube-url", "", "YouTube URL to download and add")
	cmd.Flags().BoolVar(&in.IsReference, "reference", true, "Use the track for recognition")
	return cmd
}

func recognizeCommand() *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "recognize <audio_file>",
		Short: "Recognize an audio file against the reference library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := createService()
			if err != nil {
				return err
			}
			defer svc.Close()

			fmt.Println("🔍 Analyzing audio file...")
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			res, err := svc.RecognizeFile(ctx, args[0])
			if err != nil {
				return fmt.Errorf("recognition failed: %w", err)
			}
			printResult(res, top)
			return nil
		},
	}
	cmd.Flags().IntVarP(&top, "top", "n", 5, "Number of ranked candidates to show")
	return cmd
}

func compareCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <track_id|file> <track_id|file>",
		Short: "Show the similarity breakdown of two tracks or two files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var bd *similarity.Breakdown
			if isFile(args[0]) && isFile(args[1]) {
				a, err := sonicmatch.ExtractFeatures(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				b, err := sonicmatch.ExtractFeatures(cmd.Context(), args[1])
				if err != nil {
					return err
				}
				scorer, err := similarity.New(settings.Weights)
				if err != nil {
					return err
				}
				d := scorer.Explain(a, b)
				bd = &d
			} else {
				svc, err := createService()
				if err != nil {
					return err
				}
				defer svc.Close()
				if bd, err = svc.CompareTracks(args[0], args[1]); err != nil {
					return err
				}
			}

			fmt.Printf("\n📊 Similarity: %.4f\n\n", bd.Total)
			fmt.Printf("   MFCC:     %.4f\n", bd.MFCC)
			fmt.Printf("   Chroma:   %.4f\n", bd.Chroma)
			fmt.Printf("   Contrast: %.4f\n", bd.Contrast)
			fmt.Printf("   Tempo:    %.4f\n", bd.Tempo)
			fmt.Printf("   Spectral: %.4f\n", bd.Spectral)
			return nil
		},
	}
}

func similarCommand() *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "similar <track_id>",
		Short: "List the reference tracks most similar to a stored track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := createService()
			if err != nil {
				return err
			}
			defer svc.Close()

			cands, err := svc.SimilarTracks(args[0], top)
			if err != nil {
				return err
			}
			if len(cands) == 0 {
				fmt.Println("\n📭 No other reference tracks")
				return nil
			}
			fmt.Printf("\n🎵 %d most similar track(s):\n\n", len(cands))
			printCandidates(cands)
			return nil
		},
	}
	cmd.Flags().IntVarP(&top, "top", "n", 5, "Number of tracks to show")
	return cmd
}

func listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all tracks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := createService()
			if err != nil {
				return err
			}
			defer svc.Close()

			tracks, err := svc.ListTracks()
			if err != nil {
				return fmt.Errorf("failed to list tracks: %w", err)
			}
			if len(tracks) == 0 {
				fmt.Println("\n📭 No tracks in database")
				return nil
			}

			fmt.Printf("\n📚 Found %d track(s):\n\n", len(tracks))
			for i := range tracks {
				fmt.Printf("%d. ", i+1)
				printTrack(&tracks[i])
				fmt.Println()
			}
			return nil
		},
	}
}

func deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <track_id>",
		Short: "Delete a track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := createService()
			if err != nil {
				return err
			}
			defer svc.Close()

			track, err := svc.GetTrack(args[0])
			if err != nil {
				return err
			}
			if err := svc.DeleteTrack(track.ID); err != nil {
				return fmt.Errorf("failed to delete track: %w", err)
			}

			fmt.Printf("\n✅ Successfully deleted track:\n")
			printTrack(track)
			return nil
		},
	}
}

func historyCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent recognition requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := createService()
			if err != nil {
				return err
			}
			defer svc.Close()

			recs, err := svc.ListRecognitions(limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Println("\n📭 No recognitions logged")
				return nil
			}
			for _, r := range recs {
				fmt.Printf("%s  %-18s %-24s confidence %.4f  %.2fs",
					r.CreatedAt.Format(time.DateTime), r.Status, r.Source, r.Confidence, r.ProcessingTime)
				if r.MatchedTrackID != "" {
					fmt.Printf("  -> %s", r.MatchedTrackID)
				}
				if r.Error != "" {
					fmt.Printf("  (%s)", r.Error)
				}
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries (0 = all)")
	return cmd
}

func extractCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <audio_file>",
		Short: "Print the feature bundle of a file as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := sonicmatch.ExtractFeatures(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(b)
		},
	}
}

func fingerprintCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint <audio_file>",
		Short: "Print the feature fingerprint and file digest of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := sonicmatch.ExtractFeatures(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fp, err := sonicmatch.BuildFingerprint(b)
			if err != nil {
				return err
			}
			digest, err := fingerprint.FileDigest(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Fingerprint: %s\n", fp.Hash)
			fmt.Printf("File digest: %s\n", digest)
			fmt.Printf("Tempo:       %.2f BPM\n", b.Tempo)
			fmt.Printf("Duration:    %.2fs\n", b.Duration)
			return nil
		},
	}
}

func spectrogramCommand() *cobra.Command {
	opts := dsp.DefaultRenderOptions()
	var output string

	cmd := &cobra.Command{
		Use:   "spectrogram <audio_file>",
		Short: "Render a spectrogram PNG of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := &audio.Loader{TempDir: settings.TempDir}
			sig, err := loader.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := sig.ToAnalysisRate(); err != nil {
				return err
			}
			if output == "" {
				output = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0])) + ".png"
			}
			if err := dsp.SaveSpectrogramPNG(output, sig.Samples, sig.SampleRate, opts); err != nil {
				return fmt.Errorf("failed to render spectrogram: %w", err)
			}
			fmt.Printf("✅ Spectrogram written to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output PNG (default <name>.png)")
	cmd.Flags().IntVar(&opts.Width, "width", opts.Width, "Image width")
	cmd.Flags().IntVar(&opts.Height, "height", opts.Height, "Image height")
	cmd.Flags().StringVar(&opts.Background, "background", opts.Background, "Background colour as hex RGB")
	cmd.Flags().BoolVar(&opts.Log10, "log", false, "Log magnitude scale")
	return cmd
}

func cleanupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Clear caches, drop orphaned recognitions and reload references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := createService()
			if err != nil {
				return err
			}
			defer svc.Close()

			report, err := svc.Cleanup()
			if err != nil {
				return err
			}
			fmt.Println("\n🧹 Cleanup complete")
			fmt.Printf("   Orphaned recognitions removed: %d\n", report.OrphanedRecognitions)
			fmt.Printf("   Stuck tracks reset:            %d\n", report.StuckTracksReset)
			fmt.Printf("   Reference tracks loaded:       %d\n", report.References)
			return nil
		},
	}
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

func printTrack(t *models.Track) {
	fmt.Printf("\"%s\" by %s (ID: %s)\n", t.Title, t.Artist, t.ID)
	fmt.Printf("   Status:   %s", t.FingerprintStatus)
	if t.FingerprintError != "" {
		fmt.Printf(" (%s)", t.FingerprintError)
	}
	fmt.Println()
	if t.Genre != "" || t.Mood != "" {
		fmt.Printf("   Labels:   %s / %s\n", t.Genre, t.Mood)
	}
	if t.DurationMs > 0 {
		d := t.DurationMs / 1000
		fmt.Printf("   Duration: %d:%02d\n", d/60, d%60)
	}
	if t.Tempo > 0 {
		fmt.Printf("   Tempo:    %.1f BPM\n", t.Tempo)
	}
	if t.YouTubeID != "" {
		fmt.Printf("   YouTube:  https://youtube.com/watch?v=%s\n", t.YouTubeID)
	}
}

func printCandidates(cands []models.Candidate) {
	for i, c := range cands {
		fmt.Printf("%d. \"%s\" by %s\n", i+1, c.Title, c.Artist)
		fmt.Printf("   Similarity: %.4f | ID: %s\n", c.Similarity, c.ID)
	}
}

func printResult(res *models.RecognitionResult, top int) {
	switch res.Outcome {
	case models.OutcomeRecognized:
		best, _ := res.Best()
		fmt.Printf("\n✅ Recognized: \"%s\" by %s (confidence %.4f)\n", best.Title, best.Artist, res.Confidence)
	case models.OutcomeNoReferenceData:
		fmt.Printf("\n📭 %s\n", res.Reason)
		return
	default:
		fmt.Printf("\n❌ Not recognized: %s (best %.4f, threshold %.2f)\n", res.Reason, res.Confidence, res.Threshold)
	}
	if res.Skipped > 0 {
		fmt.Printf("   %d reference(s) skipped as malformed\n", res.Skipped)
	}

	if top > len(res.Candidates) || top <= 0 {
		top = len(res.Candidates)
	}
	if top > 0 {
		fmt.Println("\n🎵 Top candidates:")
		printCandidates(res.Candidates[:top])
	}
}
