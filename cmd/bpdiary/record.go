package main

import (
	"fmt"
	"time"

	"bpdiary/internal/app"
	"bpdiary/internal/domain"

	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Save a blood-pressure reading to the health store",
	Args:  cobra.NoArgs,
	RunE:  runRecord,
}

func init() {
	f := recordCmd.Flags()
	f.Int("sys", 0, "systolic pressure in mmHg")
	f.Int("dia", 0, "diastolic pressure in mmHg")
	f.Int("hr", 0, "heart rate in beats per minute")
	f.String("at", "", "time taken as RFC 3339 or HH:MM today (default now)")
	_ = recordCmd.MarkFlagRequired("sys")
	_ = recordCmd.MarkFlagRequired("dia")
	_ = recordCmd.MarkFlagRequired("hr")
}

func runRecord(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	m := domain.Measurement{}
	m.Systolic, _ = f.GetInt("sys")
	m.Diastolic, _ = f.GetInt("dia")
	m.HeartRate, _ = f.GetInt("hr")
	if v, _ := f.GetString("at"); v != "" {
		t, err := parseTakenAt(v, time.Now())
		if err != nil {
			return err
		}
		m.TakenAt = t
	}

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	if err := app.NewReadingService(b.health, nil, log).RecordReading(ctx, m); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "recorded %d/%d mmHg, %d bpm\n", m.Systolic, m.Diastolic, m.HeartRate)
	return nil
}

func parseTakenAt(v string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	tod, err := domain.ParseTimeOfDay(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: want RFC 3339 or HH:MM", v)
	}
	return tod.On(now.In(time.Local)), nil
}
