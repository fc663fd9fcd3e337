package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"bpdiary/internal/adapter/notify"
	"bpdiary/internal/app"

	"github.com/spf13/cobra"
)

var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "List the configured time slots",
	Args:  cobra.NoArgs,
	RunE:  runSlots,
}

func runSlots(cmd *cobra.Command, args []string) error {
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

	svc := app.NewSlotService(b.slots, notify.NewScheduler(notify.NewLogPublisher(log), log), log)
	if _, err := svc.SeedDefaultsIfFirstLaunch(ctx); err != nil {
		return err
	}
	slots, err := svc.List(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTIME\tTRACKED\tMESSAGE")
	for _, s := range slots {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\n", s.ID, s.Name, s.ReferenceTime, s.TrackingEnabled, s.ReminderMessage)
	}
	return tw.Flush()
}
