package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"salsatempo/pkg/announcer"
	"salsatempo/pkg/audio"
	"salsatempo/pkg/beat"
	"salsatempo/pkg/config"
	"salsatempo/pkg/engine"
	"salsatempo/pkg/model"
	"salsatempo/pkg/playback"
	"salsatempo/pkg/probe"
)

func newPlayCmd() *cobra.Command {
	var cacheKey string
	cmd := &cobra.Command{
		Use:   "play <file>",
		Short: "Play a track with beat counting and announced figures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.play(ctx, cmd.OutOrStdout(), args[0], cacheKey)
		},
	}
	cmd.Flags().StringVar(&cacheKey, "cache-key", "", "cache key for the analysis (default: derived from the file name)")
	return cmd
}

func (a *app) play(ctx context.Context, w io.Writer, path, cacheKey string) error {
	probes := []probe.Probe{probe.SourceFile(path)}
	if a.dbConn != nil {
		probes = append(probes, probe.Database(a.dbConn))
	}
	if a.cfg.Announcer.Enabled {
		probes = append(probes, probe.ClipDir(a.cfg.Announcer.ClipDir), probe.TTSEngine(&a.cfg.TTS))
	}
	if err := probe.Summarize(probe.Run(ctx, probes)); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	device := audio.NewDevice()
	defer device.Close()

	var ann engine.Announcer
	if a.cfg.Announcer.Enabled {
		an, err := a.newAnnouncer(device)
		if err != nil {
			slog.Warn("Announcements disabled", "error", err)
		} else {
			defer an.Close()
			ann = an
		}
	}

	ctrl := playback.NewController(a.analyzer, device, a.catalog, ann, a.cfg.Engine)
	h, err := ctrl.Start(ctx, path, beat.CacheKey(path, cacheKey))
	if err != nil {
		return err
	}
	// Whatever is playing when the command ends gets stopped
	defer func() { ctrl.Stop(ctrl.Active()) }()
	defer a.tracker.LogSummary()

	fmt.Fprintf(w, "Playing %s at %.1f BPM (%d beats, %s)\n",
		h.Source(), h.Tempo(), h.BeatCount(), time.Duration(h.Duration()*float64(time.Second)).Round(time.Second))

	m := newMetronome(w)
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(w)
			return nil
		case r, ok := <-h.Ticks():
			if !ok {
				return nil
			}
			m.tick(r)
		}
	}
}

func (a *app) newAnnouncer(out announcer.Output) (*announcer.Announcer, error) {
	primary, err := announcer.NewTTSProvider(&a.cfg.TTS, a.cfg.Announcer.Language, a.tracker)
	if err != nil {
		return nil, err
	}
	fallback := announcer.NewFallbackProvider(&a.cfg.TTS, a.tracker)
	return announcer.New(a.cfg.Announcer, primary, fallback, out, a.tracker), nil
}

func newAnalyzeCmd() *cobra.Command {
	var (
		force    bool
		cacheKey string
	)
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Detect tempo and beats and store them in the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			key := beat.CacheKey(args[0], cacheKey)
			var track *model.Track
			if force {
				track, err = a.analyzer.Reanalyze(cmd.Context(), args[0], key)
			} else {
				track, err = a.analyzer.Analyze(cmd.Context(), args[0], key)
			}
			if err != nil {
				return err
			}
			printTrack(cmd.OutOrStdout(), key, track)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "recompute even when a cached analysis exists")
	cmd.Flags().StringVar(&cacheKey, "cache-key", "", "cache key for the analysis (default: derived from the file name)")
	return cmd
}

func printTrack(w io.Writer, key string, t *model.Track) {
	bm := t.BeatMap
	fmt.Fprintf(w, "%s\n", key)
	fmt.Fprintf(w, "  tempo:       %.2f BPM\n", bm.Tempo)
	fmt.Fprintf(w, "  sample rate: %d Hz\n", t.Waveform.SampleRate)
	fmt.Fprintf(w, "  duration:    %.2fs\n", t.Waveform.Duration())
	fmt.Fprintf(w, "  beats:       %d\n", len(bm.BeatTimes))
	if len(bm.BeatTimes) > 0 {
		fmt.Fprintf(w, "  first beat:  %.3fs\n", bm.BeatTimes[0])
		fmt.Fprintf(w, "  last beat:   %.3fs\n", bm.BeatTimes[len(bm.BeatTimes)-1])
	}
}

func newFiguresCmd() *cobra.Command {
	var prewarm bool
	cmd := &cobra.Command{
		Use:   "figures",
		Short: "List the figure catalog, optionally synthesizing every announcement",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			w := cmd.OutOrStdout()
			for _, g := range a.catalog.Groups() {
				fmt.Fprintf(w, "%s\n", g)
				for _, f := range a.catalog.Figures(g) {
					fmt.Fprintf(w, "  %-28s %2d beats  weight %d\n", f.Name, f.Count, f.EffectiveWeight())
				}
			}
			if !prewarm {
				return nil
			}

			an, err := a.newAnnouncer(audio.NewDevice())
			if err != nil {
				return err
			}
			defer an.Close()

			err = an.Prewarm(cmd.Context(), a.catalog.Names())
			fmt.Fprintf(w, "Clips in %s\n", an.Cache().Dir())
			a.tracker.LogSummary()
			return err
		},
	}
	cmd.Flags().BoolVar(&prewarm, "prewarm", false, "synthesize announcement clips for every figure")
	return cmd
}

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect, remove or prune cached analyses",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List cached analysis keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setupWithCache()
			if err != nil {
				return err
			}
			defer a.close()

			keys, err := a.analyzer.CachedKeys(cmd.Context())
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			st, err := a.store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d entries, %.1f MiB\n", st.Entries, float64(st.Bytes)/(1<<20))
			return nil
		},
	}

	var olderThan string
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete cached analyses older than a given age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			age, err := config.ParseDuration(olderThan)
			if err != nil {
				return fmt.Errorf("invalid --older-than: %w", err)
			}
			a, err := setupWithCache()
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.dbConn.PruneCache(cmd.Context(), age)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d entries\n", n)
			return nil
		},
	}
	prune.Flags().StringVar(&olderThan, "older-than", "30d", "minimum age of entries to delete (e.g. 12h, 30d, 2w)")

	var rmKey string
	rm := &cobra.Command{
		Use:   "rm <file>",
		Short: "Forget the cached analysis of a file so the next play recomputes it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setupWithCache()
			if err != nil {
				return err
			}
			defer a.close()

			ok, err := a.analyzer.Forget(cmd.Context(), args[0], rmKey)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no cached analysis for %s", beat.CacheKey(args[0], rmKey))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", beat.CacheKey(args[0], rmKey))
			return nil
		},
	}
	rm.Flags().StringVar(&rmKey, "cache-key", "", "cache key used when the file was analyzed")

	cmd.AddCommand(list, prune, rm)
	return cmd
}

// setupWithCache is setup for commands that are pointless without the database.
func setupWithCache() (*app, error) {
	a, err := setup()
	if err != nil {
		return nil, err
	}
	if a.dbConn == nil {
		a.close()
		return nil, errors.New("cache database unavailable")
	}
	return a, nil
}
