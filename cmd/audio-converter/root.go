package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/jaki95/audio-converter/config"
	"github.com/jaki95/audio-converter/internal/audio"
	"github.com/jaki95/audio-converter/internal/processor"
	"github.com/jaki95/audio-converter/internal/progress"
	"github.com/jaki95/audio-converter/internal/storage"
)

type rootOptions struct {
	configPath string
	split      bool
	recursive  bool
	root       string
	encoder    string
	quality    float64
	workers    int
	noProgress bool
}

func newRootCommand() *cobra.Command {
	var opts rootOptions

	rootCmd := &cobra.Command{
		Use:   "audio-converter [flags] FILE... | -r PATTERN",
		Short: "Convert lossless audio files to ogg or mp3",
		Long: `Convert flac, ape, wavpack, m4a and wav files to ogg or mp3 using external
tools, optionally splitting whole-album files into tracks with their cue sheet.
Outputs are written next to their sources and never overwrite existing files.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, args, &opts)
		},
	}
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", processor.ErrUsage, err)
	})

	flags := rootCmd.Flags()
	flags.BoolVarP(&opts.split, "split", "s", false, "Split sources into tracks using their cue sheet")
	flags.BoolVarP(&opts.recursive, "recursive", "r", false, "Search --root recursively for files matching PATTERN (*.ext)")
	flags.StringVar(&opts.root, "root", ".", "Directory a recursive search starts from")
	flags.StringVarP(&opts.encoder, "encoder", "e", "", "Output encoder: ogg or mp3 (default from config, else ogg)")
	flags.Float64VarP(&opts.quality, "quality", "q", 0, "Encoder quality: ogg -1..10, mp3 bitrate 8..320 kbit/s")
	flags.IntVarP(&opts.workers, "workers", "j", 0, "Number of parallel jobs (default: number of CPUs)")
	flags.BoolVar(&opts.noProgress, "no-progress", false, "Disable the progress bar")
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Configuration file path (YAML, or TOML with a .toml extension)")

	rootCmd.AddCommand(newDepsCommand(&opts.configPath))

	return rootCmd
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", processor.ErrUsage, err)
	}
	return cfg, nil
}

func runConvert(cmd *cobra.Command, args []string, opts *rootOptions) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.encoder != "" {
		cfg.Encoder = opts.encoder
	}
	if opts.workers != 0 {
		cfg.Workers = opts.workers
	}

	logger := newLogger(cfg, cmd.ErrOrStderr()).With("run_id", uuid.NewString())
	slog.SetDefault(logger)

	encoder, err := audio.NewEncoder(cfg.Encoder, cfg.Tools)
	if err != nil {
		return fmt.Errorf("%w: %w", processor.ErrUsage, err)
	}
	quality := cfg.QualityFor(encoder)
	if cmd.Flags().Changed("quality") {
		quality = opts.quality
	}
	if err := encoder.ValidateQuality(quality); err != nil {
		return fmt.Errorf("%w: %w", processor.ErrUsage, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, unix.SIGTERM)
	defer stop()

	baseDir := "."
	if opts.recursive {
		baseDir = opts.root
	}
	store, err := storage.New(ctx, cfg.Storage, baseDir)
	if err != nil {
		return fmt.Errorf("%w: %w", processor.ErrUsage, err)
	}
	defer store.Close()

	tracker := progress.NewProgressTracker()
	if !opts.noProgress && isTerminal(cmd.ErrOrStderr()) {
		bar := newProgressListener()
		tracker.AddListener(bar.handle)
		defer bar.finish()
	}

	p := processor.New(processor.Config{
		Registry: audio.NewRegistry(cfg.Tools),
		Tools:    cfg.Tools,
		Encoder:  encoder,
		Quality:  quality,
		Workers:  cfg.Workers,
		Storage:  store,
		Tracker:  tracker,
	})

	logger.Info("Starting conversion", "encoder", encoder.Name, "quality", quality, "split", opts.split)

	summary, err := p.Process(ctx, processor.Options{
		Files:     args,
		Recursive: opts.recursive,
		Root:      opts.root,
		Split:     opts.split,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary))

	if summary.Cancelled {
		return fmt.Errorf("interrupted with %d jobs not started: %w", summary.NotRun, context.Canceled)
	}
	return summary.Err()
}
