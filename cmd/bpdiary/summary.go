package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"bpdiary/internal/app"

	"github.com/spf13/cobra"
)

// catchUpIdle is how long the feed must stay quiet before the backlog is
// considered read.
const catchUpIdle = 500 * time.Millisecond

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show which slots of a day have a measurement",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

func init() {
	summaryCmd.Flags().String("day", "", "calendar day as YYYY-MM-DD (default today)")
}

func runSummary(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	now := time.Now()
	day := now
	if v, _ := cmd.Flags().GetString("day"); v != "" {
		if day, err = time.ParseInLocation("2006-01-02", v, time.Local); err != nil {
			return fmt.Errorf("invalid --day %q: %w", v, err)
		}
	}

	// A short block keeps the Redis reader responsive to the idle timeout.
	if cfg.Redis.Block <= 0 || cfg.Redis.Block > catchUpIdle {
		cfg.Redis.Block = catchUpIdle / 2
	}
	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	days := cfg.Reconcile.WindowDays
	if span := int(app.StartOfDay(now).Sub(app.StartOfDay(day)).Hours()/24) + 1; span > days {
		days = span
	}
	index := app.NewReadingIndex()
	if _, err := index.CatchUp(ctx, b.health, app.WindowQuery(now, days), catchUpIdle); err != nil {
		return fmt.Errorf("read health feed: %w", err)
	}

	summaries, err := app.NewSummaryService(b.slots, index, cfg.Reconcile.Tolerance).Day(ctx, day)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\n", day.Format("Monday 2006-01-02"))
	fmt.Fprintln(tw, "SLOT\tTIME\tTAKEN\tMEASURED\tREADING")
	for _, s := range summaries {
		measured, reading := "-", "-"
		if s.Taken {
			measured = s.MeasuredAt.In(time.Local).Format("15:04")
			reading = formatPartial(s)
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", s.Slot.Name, s.Slot.ReferenceTime, s.Taken, measured, reading)
	}
	return tw.Flush()
}

func formatPartial(s app.SlotSummary) string {
	p := s.Reading
	switch {
	case p.BloodPressure != nil && p.HeartRate != nil:
		return fmt.Sprintf("%.0f/%.0f mmHg, %.0f bpm", p.BloodPressure.Systolic, p.BloodPressure.Diastolic, *p.HeartRate)
	case p.BloodPressure != nil:
		return fmt.Sprintf("%.0f/%.0f mmHg", p.BloodPressure.Systolic, p.BloodPressure.Diastolic)
	default:
		return fmt.Sprintf("%.0f bpm", *p.HeartRate)
	}
}
