package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stored exposure statistics",
		Long:  `Summarize what the local store holds: profiles with exposures, record counts, and per-profile snapshots.`,
		RunE:  runStats,
	}
	cmd.Flags().Bool("json", false, "Emit stats as JSON")
	return cmd
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	profiles, err := a.repository.Profiles()
	if err != nil {
		return err
	}

	type profileStats struct {
		ProfileID string `json:"profile_id"`
		Records   int    `json:"records"`
	}
	stats := struct {
		Profiles     []profileStats `json:"profiles"`
		TotalRecords int            `json:"total_records"`
		DataDir      string         `json:"data_dir"`
	}{
		DataDir: a.config.Storage.BaseDir,
	}

	for _, id := range profiles {
		count, err := a.repository.Count(id)
		if err != nil {
			return err
		}
		stats.Profiles = append(stats.Profiles, profileStats{ProfileID: id, Records: count})
		stats.TotalRecords += count
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Printf("Data directory: %s\n", stats.DataDir)
	fmt.Printf("Profiles with exposures: %d\n", len(stats.Profiles))
	fmt.Printf("Total exposure records: %d\n\n", stats.TotalRecords)
	for _, p := range stats.Profiles {
		fmt.Printf("  %-24s %d record(s)\n", p.ProfileID, p.Records)
	}
	return nil
}
