package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/veilscan/veilscan/pkg/models"
)

func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [profile-id] [record-id] [status]",
		Short: "Update the remediation status of a stored exposure",
		Long: `Mark a stored exposure record as acknowledged, removal_requested, or
resolved. A resolved record that resurfaces in a later scan is automatically
reactivated. Record IDs are listed in JSON and YAML reports.

Valid statuses: active, acknowledged, removal_requested, resolved.`,
		Args: cobra.ExactArgs(3),
		RunE: runStatus,
	}
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	profileID, recordID, status := args[0], args[1], strings.ToLower(args[2])

	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.repository.SetStatus(profileID, recordID, status); err != nil {
		return err
	}

	fmt.Printf("Record %s of profile %s is now %s\n", recordID, profileID, status)
	if status == models.ExposureStatusResolved {
		fmt.Println("Note: the record reactivates if the source resurfaces in a future scan.")
	}
	return nil
}

func NewAuditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Run an integrity sweep over stored exposure records",
		Long: `Sweep every stored profile document and remove records that are filed
under the wrong profile or no longer pass validation. Useful after restoring
the data directory from a backup or editing documents by hand.`,
		Args: cobra.NoArgs,
		RunE: runAudit,
	}
	return cmd
}

func runAudit(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	report, err := a.repository.Audit()
	if err != nil {
		return err
	}

	fmt.Printf("Audited %d record(s) across %d profile(s)\n", report.Records, report.Profiles)
	for _, id := range report.OrphansRemoved {
		fmt.Printf("  removed orphaned record %s\n", id)
	}
	for _, id := range report.InvalidRemoved {
		fmt.Printf("  removed invalid record %s\n", id)
	}
	if len(report.OrphansRemoved)+len(report.InvalidRemoved) == 0 {
		fmt.Println("No problems found")
	}
	return nil
}
