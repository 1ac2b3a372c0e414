package main

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/SonicMatch/pkg/models"
	"github.com/himanishpuri/SonicMatch/pkg/utils"
)

func batchCommand() *cobra.Command {
	var recursive, retry bool

	cmd := &cobra.Command{
		Use:   "batch [directory]",
		Short: "Add every audio file of a directory, or retry failed tracks",
		Example: `  sonicmatch batch ./library --recursive
  sonicmatch batch --retry`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if retry {
				return retryTracks(cmd.Context())
			}
			if len(args) == 0 {
				return fmt.Errorf("a directory is required unless --retry is set")
			}
			return addDirectory(cmd.Context(), args[0], recursive)
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Descend into subdirectories")
	cmd.Flags().BoolVar(&retry, "retry", false, "Fingerprint again every pending or failed track")
	return cmd
}

func newBar(p *mpb.Progress, total int, name string) *mpb.Bar {
	return p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(name),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.EwmaETA(decor.ET_STYLE_GO, 60),
		),
	)
}

func addDirectory(ctx context.Context, dir string, recursive bool) error {
	files, err := utils.ListAudioFiles(dir, recursive)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no audio files under %s", dir)
	}

	svc, err := createService()
	if err != nil {
		return err
	}
	defer svc.Close()

	workers := settings.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	p := mpb.New(mpb.WithWidth(64))
	bar := newBar(p, len(files), "Adding: ")

	var failed atomic.Int64
	failures := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range files {
		g.Go(func() error {
			defer bar.Increment()
			if _, err := svc.AddTrack(gctx, path, models.TrackInput{IsReference: true}); err != nil {
				failed.Add(1)
				failures[i] = fmt.Sprintf("%s: %v", filepath.Base(path), err)
			}
			return nil
		})
	}
	_ = g.Wait()
	p.Wait()

	fmt.Printf("\n✅ Added %d of %d file(s)\n", len(files)-int(failed.Load()), len(files))
	for _, f := range failures {
		if f != "" {
			fmt.Printf("   ❌ %s\n", f)
		}
	}
	return ctx.Err()
}

func retryTracks(ctx context.Context) error {
	svc, err := createService()
	if err != nil {
		return err
	}
	defer svc.Close()

	tracks, err := svc.ListTracks()
	if err != nil {
		return err
	}
	var ids []string
	for _, t := range tracks {
		if t.FingerprintStatus == models.StatusPending || t.FingerprintStatus == models.StatusError {
			ids = append(ids, t.ID)
		}
	}
	if len(ids) == 0 {
		fmt.Println("\n📭 Nothing to retry")
		return nil
	}

	fmt.Printf("🎵 Fingerprinting %d track(s)...\n", len(ids))
	res, err := svc.BatchFingerprint(ctx, ids)
	if res != nil {
		fmt.Printf("\n✅ %d succeeded, %d failed\n", len(res.Succeeded), len(res.Failed))
		for _, f := range res.Failed {
			fmt.Printf("   ❌ %s: %s\n", f.TrackID, f.Error)
		}
	}
	return err
}
