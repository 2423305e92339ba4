package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"kokuban/internal/cli/scheme/colours"
	"kokuban/internal/config"
	"kokuban/internal/studio"
)

func main() {

	cfg, err := config.Load()
	if err != nil {
		colours.Error.Printf("❌ Error: %v\n", err)
		os.Exit(1)
	}

	app, err := studio.NewStudio(cfg)
	if err != nil {
		colours.Error.Printf("❌ Error: %v\n", err)
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\n" + colours.Warning.Sprint("👋 Stopping..."))
		app.Cancel()
	}()

	rootCmd := &cobra.Command{
		Use:   "kokuban",
		Short: "🎬 Script-driven narrated videos",
		Long: `
┌─────────────────────────────────────┐
│  🎬 kokuban                         │
│  Narrated videos from a YAML script │
└─────────────────────────────────────┘

kokuban synthesizes character voices for every line of a script,
measures them, and hands the frame timeline to the video renderer.
		`,
		Run: func(cmd *cobra.Command, args []string) {
			app.ShowWelcome()
		},
	}

	app.AddVoiceCommands(rootCmd)
	app.AddSyncCommands(rootCmd)
	app.AddTimelineCommands(rootCmd)
	app.AddServeCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		colours.Error.Printf("❌ Error: %v\n", err)
		app.Exit(1)
	}
	app.Close()
}

// Configuration management with Viper
func init() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).Warn("Failed to load .env")
	}

	viper.SetConfigName("kokuban")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.kokuban")
	viper.AddConfigPath(".")

	config.SetDefaults()
	config.BindEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logrus.WithError(err).Warn("Failed to read config file")
		}
	}
}
