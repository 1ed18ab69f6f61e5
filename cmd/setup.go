package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/authz"
	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/config"
	clubdb "github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/db"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Setup commands",
	Long:  `Commands for managing admin users and system administration.`,
}

var adminAuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Set up admin username and password",
	Long:  `Interactive command to set up or update admin username and password.`,
	Run:   runAdminAuthSetup,
}

var newConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate default configuration file",
	Long:  `Generates a default configuration file named config.toml in the current directory.`,
	Run: func(cmd *cobra.Command, args []string) {
		configFilePath := "config.toml"
		if _, err := os.Stat(configFilePath); err == nil {
			log.Fatalf("Config file %s already exists. Aborting to prevent overwrite.", configFilePath)
		}

		if err := config.Save(config.Default(), configFilePath); err != nil {
			log.Fatalf("Failed to write config file: %v", err)
		}

		fmt.Printf("Default configuration file created at %s\n", configFilePath)
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
	setupCmd.AddCommand(adminAuthCmd)
	rootCmd.AddCommand(newConfigCmd)
	adminAuthCmd.Flags().StringVar(&configPath, "config", "", "Path to TOML config file")
}

func runAdminAuthSetup(cmd *cobra.Command, args []string) {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Enter admin username: ")
	username, err := reader.ReadString('\n')
	if err != nil {
		log.Fatalf("Error reading username: %v", err)
	}
	username = strings.TrimSpace(username)

	if username == "" {
		log.Fatal("Username cannot be empty")
	}

	fmt.Print("Enter admin password: ")
	passwordBytes, err := terminal.ReadPassword(int(syscall.Stdin))
	if err != nil {
		log.Fatalf("Error reading password: %v", err)
	}
	password := string(passwordBytes)
	fmt.Println()

	if len(password) < 4 {
		log.Fatal("Password must be at least 4 characters long")
	}

	fmt.Print("Confirm admin password: ")
	confirmPasswordBytes, err := terminal.ReadPassword(int(syscall.Stdin))
	if err != nil {
		log.Fatalf("Error reading password confirmation: %v", err)
	}
	confirmPassword := string(confirmPasswordBytes)
	fmt.Println()

	if password != confirmPassword {
		log.Fatal("Passwords do not match")
	}

	cfg := loadConfig()
	database, err := clubdb.Connect(cfg)
	if err != nil {
		log.Fatalf("error connecting to database: %v", err)
	}

	authzApp := &authz.AuthzApp{DB: database}

	var existingUser clubdb.User
	err = database.Where("username = ?", username).First(&existingUser).Error

	if err == nil {
		err = authzApp.ChangePassword(existingUser.ID, password)
		if err != nil {
			log.Fatalf("Failed to update password: %v", err)
		}
		fmt.Printf("Successfully updated password for admin user '%s'\n", username)
	} else {
		hash, err := authzApp.HashPassword(password)
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}

		user := clubdb.User{
			Username:     username,
			Email:        fmt.Sprintf("%s@localhost", username),
			PasswordHash: hash,
			Role:         "admin",
		}

		err = database.Create(&user).Error
		if err != nil {
			log.Fatalf("Failed to create admin user: %v", err)
		}
		fmt.Printf("Successfully created admin user '%s'\n", username)
	}
}
