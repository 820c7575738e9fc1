package main

import (
	"fmt"
	"time"

	"github.com/sifan077/linkguard/config"
	appmodel "github.com/sifan077/linkguard/internal/app/model"
	apprepository "github.com/sifan077/linkguard/internal/app/repository"
	appservice "github.com/sifan077/linkguard/internal/app/service"
	infraPostgres "github.com/sifan077/linkguard/internal/infra/postgres"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// openDB is swapped in tests.
var openDB = func(cfg *config.Config) (*gorm.DB, error) {
	return infraPostgres.NewGorm(cfg.Postgres)
}

// env holds what every subcommand needs once the root pre-run has finished.
type env struct {
	cfg        *config.Config
	db         *gorm.DB
	links      apprepository.LinkRepository
	events     apprepository.AbuseEventRepository
	escalation *appservice.EscalationEngine
	recorder   *appservice.ClickRecorder
}

func newRootCmd(log *zap.Logger) (*cobra.Command, *env) {
	e := &env{}

	root := &cobra.Command{
		Use:           "linkctl",
		Short:         "Administer short links, click history and the IP block list.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}

			e.cfg = cfg
			e.db = db
			e.links = apprepository.NewLinkRepository(db)
			e.events = apprepository.NewAbuseEventRepository(db)
			clicks := apprepository.NewClickRecordRepository(db)
			e.escalation = appservice.NewEscalationEngine(e.events, apprepository.NewBlockRepository(db), appservice.EscalationPolicy{
				Threshold:     cfg.Abuse.SpamEventThreshold,
				BlockDuration: time.Duration(cfg.Abuse.BlockDurationDays) * 24 * time.Hour,
			}, log, nil)
			e.recorder = appservice.NewClickRecorder(e.links, clicks, clicks, appservice.ClickRecorderOptions{
				HistoryDays:   cfg.Clicks.HistoryDays,
				SamplesPerDay: cfg.Clicks.SamplesPerDay,
			}, log, nil)
			return nil
		},
	}

	root.AddCommand(
		newMigrateCmd(e),
		newInspectCmd(e),
		newLinksCmd(e),
		newTopCmd(e),
		newClicksCmd(e),
		newBlocksCmd(e),
		newBlockCmd(e),
		newEventsCmd(e),
	)
	return root, e
}

// close releases the database handle, if one was opened.
func (e *env) close() error {
	if e.db == nil {
		return nil
	}
	sqlDB, err := e.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := infraPostgres.AutoMigrate(cmd.Context(), e.db, appmodel.Entities()...); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
