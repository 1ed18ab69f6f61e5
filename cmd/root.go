package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "clubsite",
	Short: "Clubsite is the Mikkeller Running Club website backend",
	Long:  `A community running club backend that syncs member activities from Strava, ranks them on a leaderboard and serves the club's events, news, gallery and merchandise.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
