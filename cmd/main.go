package main

import (
	"MedsetuPortal/internal/config"
	"MedsetuPortal/internal/events"
	"MedsetuPortal/internal/medsetu"
	"MedsetuPortal/internal/server"
	"MedsetuPortal/pkg/sl"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medsetu-portal",
		Short: "Clinical portal for NAMASTE / ICD-11 code translation",
	}

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the portal web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = os.Getenv("CONFIG_PATH")
			}
			return runServer(configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config file (defaults to $CONFIG_PATH)")
	return cmd
}

func runServer(configPath string) error {
	cfg, err := config.Init(configPath)
	if err != nil {
		slog.Error("failed to init config", sl.Error(err))
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: sl.Level(cfg.LogLevel)}))
	slog.SetDefault(logger)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	var pub events.Publisher = events.Nop{}
	if cfg.KafkaEnabled() {
		k, err := events.NewKafka(strings.Split(cfg.Kafka.Host, ","), cfg.Kafka.Topic)
		if err != nil {
			slog.Error("failed to init lookup event publisher", slog.String("kafkaHost", cfg.Kafka.Host), sl.Error(err))
			return err
		}
		pub = k
		slog.Info("publishing lookup events", slog.String("topic", cfg.Kafka.Topic))
	}

	api := medsetu.New(cfg.API.BaseURL, cfg.API.Timeout)

	serv, err := server.New(cfg, api, pub, logger)
	if err != nil {
		slog.Error("failed to create server", sl.Error(err))
		pub.Close()
		return err
	}

	slog.Info("using medsetu api", slog.String("baseURL", api.BaseURL()))
	serv.Run(cfg.Port)
	return nil
}
