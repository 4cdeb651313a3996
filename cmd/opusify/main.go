package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/sonroyaalmerol/opusify/internal/batch"
	"github.com/sonroyaalmerol/opusify/internal/cache"
	"github.com/sonroyaalmerol/opusify/internal/config"
	"github.com/sonroyaalmerol/opusify/internal/logging"
	"github.com/sonroyaalmerol/opusify/internal/metrics"
	"github.com/sonroyaalmerol/opusify/internal/repository"
	"github.com/sonroyaalmerol/opusify/internal/transcode"
)

const usage = `usage:
  opusify transcode [-workers N] INPUT OUTPUT [INPUT OUTPUT ...]
  opusify history [-limit N]
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 1
	}
	logger := logging.Setup(stderr, cfg.LogLevel)

	switch args[0] {
	case "transcode":
		err = runTranscode(ctx, cfg, args[1:], stdout)
	case "history":
		err = runHistory(ctx, cfg, args[1:], stdout)
	default:
		fmt.Fprint(stderr, usage)
		return 2
	}
	if err != nil {
		var uerr usageError
		if errors.As(err, &uerr) {
			fmt.Fprintln(stderr, err)
			fmt.Fprint(stderr, usage)
			return 2
		}
		logger.Error(args[0], "err", err)
		return 1
	}
	return 0
}

type usageError string

func (e usageError) Error() string { return string(e) }

func openRepo(cfg *config.Config) (*sql.DB, *repository.Repo, error) {
	db, err := repository.OpenDB(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open history: %w", err)
	}
	return db, repository.NewRepo(db), nil
}

func runTranscode(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("transcode", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	workers := fs.Int("workers", cfg.Workers, "number of concurrent jobs")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	rest := fs.Args()
	if len(rest) == 0 || len(rest)%2 != 0 {
		return usageError("transcode takes INPUT OUTPUT pairs")
	}
	if *workers <= 0 {
		return usageError("-workers must be a positive number")
	}

	target, err := transcode.TargetFromConfig(cfg.Output)
	if err != nil {
		return err
	}

	var (
		repo *repository.Repo
		fc   *cache.FileCache
	)
	if cfg.EnableHistory || cfg.EnableCache {
		db, r, err := openRepo(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		if cfg.EnableHistory {
			repo = r
		}
		if cfg.EnableCache {
			fc = cache.NewFileCache(cfg, r)
		}
	}

	pairs := make([]batch.Pair, 0, len(rest)/2)
	for i := 0; i < len(rest); i += 2 {
		pairs = append(pairs, batch.Pair{Input: rest[i], Output: rest[i+1]})
	}

	runner := batch.NewRunner(transcode.New(target, nil), repo, fc, *workers, nil)
	outcomes := runner.Run(ctx, pairs)

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			fmt.Fprintf(stdout, "%s\t%s -> %s\t%v\n", o.Status, o.Input, o.Output, o.Err)
			continue
		}
		line := fmt.Sprintf("%s\t%s -> %s\t%s", o.Status, o.Input, o.Output, o.Elapsed.Round(time.Millisecond))
		if o.Result != nil {
			line += fmt.Sprintf("\t%s audio, %d packets", o.Result.Duration.Round(time.Millisecond), o.Result.Packets)
		}
		fmt.Fprintln(stdout, line)
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(outcomes))
	}
	return nil
}

func runHistory(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	limit := fs.Int("limit", 20, "number of jobs to list")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if fs.NArg() != 0 {
		return usageError("history takes no arguments")
	}
	if !cfg.EnableHistory {
		return errors.New("job history is disabled (ENABLE_HISTORY=false)")
	}

	db, repo, err := openRepo(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	jobs, err := repo.ListJobs(ctx, *limit)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSTATUS\tINPUT\tOUTPUT\tAUDIO\tERROR")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			j.StartedAt.Format(time.DateTime), j.Status, j.InputPath, j.OutputPath,
			j.Duration.Round(time.Millisecond), j.Error)
	}
	return tw.Flush()
}
