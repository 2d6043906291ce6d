package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/veilscan/veilscan/internal/engine"
	"github.com/veilscan/veilscan/internal/intelligence"
	"github.com/veilscan/veilscan/internal/orchestration"
	"github.com/veilscan/veilscan/internal/reporting"
	"github.com/veilscan/veilscan/internal/storage"
	"github.com/veilscan/veilscan/internal/vault"
	"github.com/veilscan/veilscan/pkg/models"
	"github.com/veilscan/veilscan/pkg/utils"
)

// app bundles the wired subsystems a command needs. Commands build only the
// parts they use; buildScanner wires everything.
type app struct {
	config     *models.Config
	logger     *logrus.Logger
	metrics    *utils.MetricsCollector
	store      *storage.LocalStorage
	repository *storage.ExposureRepository
	vault      *vault.Vault
	engine     *engine.Engine
	scanner    *orchestration.Scanner
	generator  *reporting.Generator
}

func loadAppConfig() (*models.Config, error) {
	if path := viper.ConfigFileUsed(); path != "" {
		return models.LoadConfig(path)
	}
	cfg := models.DefaultConfig()
	if dir := viper.GetString("data_directory"); dir != "" {
		cfg.Global.DataDir = dir
		cfg.Storage.BaseDir = dir
	}
	if dir := viper.GetString("output_directory"); dir != "" {
		cfg.Reporting.OutputDir = dir
	}
	return cfg, nil
}

// newApp wires storage, vault, engine, and reporting. Intelligence and the
// scanner are added by buildScanner since only the scan path needs them.
func newApp() (*app, error) {
	cfg, err := loadAppConfig()
	if err != nil {
		return nil, err
	}

	logger := logrus.StandardLogger()
	store, err := storage.NewLocalStorage(cfg.Storage.BaseDir, cfg.Storage.Compression, cfg.Storage.Retention, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}

	v, err := vault.New(cfg.Storage.BaseDir, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize vault: %w", err)
	}

	generator, err := reporting.NewGenerator(cfg.Reporting.OutputDir, reportRetention(cfg), cfg.Reporting.CompressReports, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize reporting: %w", err)
	}

	engineOpts := []engine.Option{}
	if cfg.Engine.MinConfidence > 0 {
		engineOpts = append(engineOpts, engine.WithValidation(engine.WithMinConfidence(cfg.Engine.MinConfidence)))
	}
	if cfg.Engine.Strict {
		engineOpts = append(engineOpts, engine.WithValidation(engine.Strict()))
	}
	if len(cfg.Engine.WeightOverrides) > 0 {
		engineOpts = append(engineOpts, engine.WithSourceReputation(cfg.Engine.WeightOverrides))
	}

	return &app{
		config:     cfg,
		logger:     logger,
		metrics:    utils.NewMetricsCollector(false),
		store:      store,
		repository: storage.NewExposureRepository(store, logger),
		vault:      v,
		engine:     engine.New(engineOpts...),
		generator:  generator,
	}, nil
}

func reportRetention(cfg *models.Config) time.Duration {
	if cfg.Reporting.AutoCleanup {
		return cfg.Reporting.MaxReportAge
	}
	return 0
}

// buildScanner adds the intelligence stack and the scan orchestrator.
func (a *app) buildScanner() error {
	intel := intelligence.NewClient(a.logger)

	ic := a.config.Intelligence
	if ic.BreachVault.Enabled && ic.BreachVault.APIKey != "" {
		provider := intelligence.NewBreachIndexProvider(&intelligence.BreachIndexConfig{
			APIKey:    ic.BreachVault.APIKey,
			BaseURL:   ic.BreachVault.BaseURL,
			RateLimit: ic.BreachVault.RateLimit,
		})
		if err := intel.AddProvider(provider, ic.BreachVault.APIKey); err != nil {
			return err
		}
	}
	if ic.PeopleIndex.Enabled && ic.PeopleIndex.APIKey != "" {
		provider := intelligence.NewPeopleSearchProvider(&intelligence.PeopleSearchConfig{
			APIKey:    ic.PeopleIndex.APIKey,
			BaseURL:   ic.PeopleIndex.BaseURL,
			RateLimit: ic.PeopleIndex.RateLimit,
		})
		if err := intel.AddProvider(provider, ic.PeopleIndex.APIKey); err != nil {
			return err
		}
	}
	if len(intel.Providers()) == 0 {
		a.logger.Warn("No intelligence providers configured; scans will find nothing. Set API keys in the config file.")
	}

	var checker *intelligence.SourceChecker
	if ic.SourceCheck.Enabled {
		checker = intelligence.NewSourceChecker(ic.SourceCheck.Nameservers, ic.SourceCheck.Timeout, a.logger)
	}

	var advisor *intelligence.CorrelationAdvisor
	if ic.Correlation.Enabled {
		apiKey := os.Getenv("VEILSCAN_OPENAI_API_KEY")
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey != "" {
			advisor = intelligence.NewCorrelationAdvisor(apiKey, "", ic.Correlation.Model, ic.Timeout, a.logger)
		} else {
			a.logger.Info("Correlation analysis disabled: no API key in environment")
		}
	}

	var notifier *orchestration.Notifier
	if a.config.Notification.Enabled && a.config.Notification.WebhookURL != "" {
		notifier = orchestration.NewNotifier(orchestration.NotifierConfig{
			WebhookURL:    a.config.Notification.WebhookURL,
			SigningSecret: a.config.Notification.SigningSecret,
			RiskThreshold: a.config.Reporting.RiskScoreThreshold,
		}, a.metrics, a.logger)
	}

	a.scanner = orchestration.NewScanner(
		intel, checker, advisor, a.engine, a.repository, a.store, notifier, a.metrics,
		orchestration.ScanConfig{
			MaxConcurrentScans: a.config.Global.MaxConcurrent,
			DefaultTimeout:     a.config.Global.Timeout,
			ScreenSources:      ic.SourceCheck.Enabled,
			ExpandIdentifiers:  true,
		},
		a.logger,
	)
	return nil
}

// unlockVault reads the passphrase from the flag, the environment, or stdin,
// in that order, and unlocks the vault.
func (a *app) unlockVault(passphrase string) error {
	if passphrase == "" {
		passphrase = os.Getenv("VEILSCAN_VAULT_PASSPHRASE")
	}
	if passphrase == "" {
		var err error
		passphrase, err = promptPassphrase("Vault passphrase: ")
		if err != nil {
			return err
		}
	}
	return a.vault.Unlock(passphrase)
}

func promptPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
