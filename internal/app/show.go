package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/soomorita/macro-micro-linkage/internal/storage"
)

// ShowOptions configure the runs listing.
type ShowOptions struct {
	StatsDataID string
	Limit       int
}

// ShowRuns prints recent archived forecast runs for a series.
func (a *App) ShowRuns(ctx context.Context, opts ShowOptions) error {
	if opts.StatsDataID == "" {
		return errors.New("--stats-id is required")
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot list runs")
	}
	defer closeStore()

	return renderRuns(ctx, os.Stdout, store, opts)
}

func renderRuns(ctx context.Context, out io.Writer, store storage.ForecastRunStore, opts ShowOptions) error {
	runs, err := store.ListRecentRuns(ctx, opts.StatsDataID, opts.Limit)
	if err != nil {
		return err
	}
	total, err := store.CountRuns(ctx)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "no archived runs found for %s (%d runs archived in total)\n", opts.StatsDataID, total)
		return nil
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Created (UTC)\tSeries End\tObs\tModel\tAIC\tVerdict\tp-value")

	for _, run := range runs {
		pValue := ""
		if run.LjungBoxPValue != nil {
			pValue = strconv.FormatFloat(*run.LjungBoxPValue, 'f', 4, 64)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%d\t%s\t%.2f\t%s\t%s\n",
			run.CreatedAt.UTC().Format(time.RFC3339),
			run.SeriesEnd.Format("2006-01"),
			run.Observations,
			run.ModelSpec,
			run.AIC,
			run.Verdict,
			pValue,
		)
	}

	writer.Flush()
	fmt.Fprintf(out, "showing %d of %d archived runs\n", len(runs), total)
	return nil
}

// PruneRuns deletes archived runs older than the retention window.
func (a *App) PruneRuns(ctx context.Context, retention time.Duration) error {
	if retention <= 0 {
		return errors.New("--prune requires a positive retention window")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot prune runs")
	}
	defer closeStore()

	return pruneRuns(ctx, os.Stdout, store, time.Now().Add(-retention))
}

func pruneRuns(ctx context.Context, out io.Writer, store storage.ForecastRunStore, cutoff time.Time) error {
	deleted, err := store.DeleteRunsBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	remaining, err := store.CountRuns(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "deleted %d runs created before %s; %d remain\n",
		deleted, cutoff.UTC().Format(time.RFC3339), remaining)
	return nil
}
