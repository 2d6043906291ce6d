package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/veilscan/veilscan/internal/reporting"
	"github.com/veilscan/veilscan/pkg/models"
)

func NewReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [profile-id]",
		Short: "Generate an exposure report from stored records",
		Long: `Render the stored exposure records and latest risk snapshot of a profile
into a report file. No providers are queried; run a scan first.`,
		Args: cobra.ExactArgs(1),
		RunE: runReport,
	}

	cmd.Flags().StringP("format", "f", "", "Report format (json, yaml, text); defaults to the configured format")
	return cmd
}

func runReport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	if format == "" {
		format = a.config.Reporting.DefaultFormat
	}
	return writeReport(a, args[0], format)
}

// writeReport assembles a report from storage and renders it. Shared with
// the scan command's --format flag.
func writeReport(a *app, profileID, format string) error {
	records, err := a.repository.ListByProfile(profileID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no stored exposures for profile %s; run 'veilscan scan -p %s' first", profileID, profileID)
	}

	var snapshot models.ProfileRiskSnapshot
	if err := a.store.LoadDocument("snapshots", profileID, &snapshot); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("load snapshot: %w", err)
		}
		// No scan-time snapshot; summarize from the stored records.
		snapshot = snapshotFromRecords(profileID, records)
	}

	path, err := a.generator.Generate(&reporting.Report{
		GeneratedAt: time.Now().UTC(),
		Snapshot:    snapshot,
		Records:     records,
	}, format)
	if err != nil {
		return err
	}

	fmt.Printf("Report written to %s\n", path)
	return nil
}

func snapshotFromRecords(profileID string, records []*models.ExposureRecord) models.ProfileRiskSnapshot {
	snap := models.ProfileRiskSnapshot{
		ProfileID:     profileID,
		ExposureCount: len(records),
		ComputedAt:    time.Now().UTC(),
	}
	var maxScore int
	for _, r := range records {
		if r.RiskScore > maxScore {
			maxScore = r.RiskScore
		}
		if r.IsImpersonation() {
			snap.Impersonations++
		}
		switch r.SourceType {
		case models.SourceBreachDatabase, models.SourcePaste:
			snap.Breaches++
		case models.SourceDataBroker, models.SourcePeopleFinder:
			snap.Brokers++
		case models.SourceSocialMedia:
			snap.Social++
		case models.SourceCourtRecord:
			snap.Court++
		default:
			snap.OSINT++
		}
	}
	snap.OverallRiskScore = maxScore
	return snap
}
