package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func NewRescoreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rescore [profile-id]",
		Short: "Recompute risk scores for stored exposures",
		Long: `Recompute the risk score of every stored exposure record for a profile
without querying providers. Scores drift as findings age and as the
correlation between exposures changes.`,
		Args: cobra.ExactArgs(1),
		RunE: runRescore,
	}
	return cmd
}

func runRescore(cmd *cobra.Command, args []string) error {
	profileID := args[0]

	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.buildScanner(); err != nil {
		return fmt.Errorf("initialize scanner: %w", err)
	}

	updated, err := a.scanner.Rescore(context.Background(), profileID)
	if err != nil {
		return fmt.Errorf("rescore profile %s: %w", profileID, err)
	}

	fmt.Printf("Rescored profile %s: %d record(s) changed\n", profileID, updated)
	return nil
}
