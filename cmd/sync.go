package cmd

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	clubdb "github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/db"
	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/strava"
	clubsync "github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/sync"
)

var syncUserID uint

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync activities from Strava",
	Long:  `Sync run activities for every linked member, or for a single member with --user. Intended for cron.`,
	Run:   runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().StringVar(&configPath, "config", "", "Path to TOML config file")
	syncCmd.Flags().UintVar(&syncUserID, "user", 0, "Sync a single user id instead of all")
}

func runSync(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	database, err := clubdb.Connect(cfg)
	if err != nil {
		log.Fatalf("error connecting to database: %v", err)
	}

	client := strava.NewClient(cfg.Strava)
	syncer := clubsync.New(cfg.Strava, client, database)
	ctx := context.Background()

	if syncUserID == 0 {
		syncer.SyncAll(ctx)
		return
	}

	var link clubdb.StravaLink
	if err := database.First(&link, "user_id = ?", syncUserID).Error; err != nil {
		log.Fatalf("no strava link for user %d: %v", syncUserID, err)
	}

	synced, err := syncer.SyncAccount(ctx, &link)
	if err != nil {
		log.Fatalf("sync failed for user %d: %v", syncUserID, err)
	}
	log.Infof("Synced %d activities for user %d", synced, syncUserID)
}
