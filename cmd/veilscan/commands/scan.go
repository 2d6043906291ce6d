package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/veilscan/veilscan/internal/orchestration"
	"github.com/veilscan/veilscan/pkg/models"
)

func NewScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan for personal data exposures",
		Long: `Scan external sources for exposures of a vault profile's personal data.
Candidate findings are validated, scored, deduplicated against earlier scans,
and persisted as exposure records.`,
		RunE: runScan,
	}

	cmd.Flags().StringP("profile", "p", "", "Profile ID to scan")
	cmd.Flags().Bool("all", false, "Scan every profile in the vault")
	cmd.Flags().String("passphrase", "", "Vault passphrase (defaults to $VEILSCAN_VAULT_PASSPHRASE or prompt)")
	cmd.Flags().StringP("format", "f", "", "Also write a report in this format (json, yaml, text)")
	cmd.Flags().Bool("metrics", false, "Serve /metrics while the scan runs")

	_ = viper.BindPFlag("scan.profile", cmd.Flags().Lookup("profile"))
	_ = viper.BindPFlag("scan.all", cmd.Flags().Lookup("all"))
	_ = viper.BindPFlag("scan.format", cmd.Flags().Lookup("format"))
	_ = viper.BindPFlag("scan.metrics", cmd.Flags().Lookup("metrics"))

	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	profileID := viper.GetString("scan.profile")
	scanAll := viper.GetBool("scan.all")
	if profileID == "" && !scanAll {
		return fmt.Errorf("either --profile or --all is required")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.buildScanner(); err != nil {
		return fmt.Errorf("initialize scanner: %w", err)
	}

	passphrase, _ := cmd.Flags().GetString("passphrase")
	if err := a.unlockVault(passphrase); err != nil {
		return fmt.Errorf("unlock vault: %w", err)
	}
	defer a.vault.Lock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("Received interrupt signal, shutting down gracefully...")
		cancel()
	}()

	if viper.GetBool("scan.metrics") && a.config.Global.MetricsAddr != "" {
		go func() {
			if err := a.metrics.StartServer(ctx, a.config.Global.MetricsAddr); err != nil {
				logrus.Warnf("Metrics server stopped: %v", err)
			}
		}()
	}

	var profiles []*models.Profile
	if scanAll {
		profiles, err = a.vault.ListProfiles()
		if err != nil {
			return err
		}
		if len(profiles) == 0 {
			return fmt.Errorf("vault has no profiles; add one with 'veilscan vault add'")
		}
	} else {
		p, err := a.vault.GetProfile(profileID)
		if err != nil {
			return err
		}
		profiles = []*models.Profile{p}
	}

	batch := orchestration.NewScheduler(a.scanner, a.logger).ScanAll(ctx, profiles)

	for _, summary := range batch.Summaries {
		printScanSummary(summary)
		if format := viper.GetString("scan.format"); format != "" {
			if err := writeReport(a, summary.ProfileID, format); err != nil {
				logrus.Warnf("Failed to write report for %s: %v", summary.ProfileID, err)
			}
		}
	}
	for id, msg := range batch.Failures {
		fmt.Fprintf(os.Stderr, "Scan failed for profile %s: %s\n", id, msg)
	}
	if len(batch.Failures) > 0 {
		return fmt.Errorf("%d of %d scans failed", len(batch.Failures), len(profiles))
	}
	return nil
}

func printScanSummary(s *orchestration.ScanSummary) {
	snap := s.Snapshot
	fmt.Printf(`
Scan Summary
════════════════════════════════════════════════
Profile:         %s
Overall risk:    %d/100
Exposures:       %d (upserted %d record(s))
Impersonations:  %d
Breaches:        %d  Brokers: %d  Social: %d
Rejected:        %d of %d candidates
Dead sources:    %d dropped
Duration:        %s
════════════════════════════════════════════════
`,
		s.ProfileID,
		snap.OverallRiskScore,
		snap.ExposureCount, s.RecordsUpserted,
		snap.Impersonations,
		snap.Breaches, snap.Brokers, snap.Social,
		s.Result.Stats.TotalRejected, s.Result.Stats.TotalCandidates,
		s.SourcesDropped,
		s.Duration.Round(time.Millisecond),
	)
	if s.Notified {
		fmt.Println("An alert notification was delivered.")
	}
}
