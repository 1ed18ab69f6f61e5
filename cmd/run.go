package cmd

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/authz"
	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/config"
	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/db"
	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/server"
	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/strava"
	clubsync "github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/sync"
)

var configPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the club web server",
	Long:  `Start the web server with the public API, the admin API and the background Strava sync worker.`,
	Run:   runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&configPath, "config", "", "Path to TOML config file")
}

func loadConfig() *config.Config {
	if configPath == "" {
		return config.Default()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("error loading config from %s: %v", configPath, err)
	}
	return cfg
}

func runServer(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	database, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("error connecting to database: %v", err)
	}

	authzApp := &authz.AuthzApp{DB: database}
	authzApp.Init()

	client := strava.NewClient(cfg.Strava)
	syncer := clubsync.New(cfg.Strava, client, database)
	worker := clubsync.NewWorker(syncer)
	go worker.Run(context.Background())

	if !cfg.Strava.Configured() {
		log.Warn("Strava client credentials are not configured, account linking is disabled")
	}

	srv := server.New(cfg, database, client, syncer, worker)
	log.Infof("Starting server on %s:%d", cfg.Server.Host, cfg.Server.Port)
	if err := srv.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
