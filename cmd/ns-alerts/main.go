// Command ns-alerts subscribes to the alert subject and prints every alert it receives.
package main

import (
	"DDoSpectra/internal/alerter"
	"DDoSpectra/internal/config"
	"DDoSpectra/internal/logging"
	"DDoSpectra/internal/model"
	"DDoSpectra/internal/notification"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration. Defaults apply when empty.")
	url := flag.String("url", "", "NATS server URL. Overrides nats.url.")
	subject := flag.String("subject", "", "Alert subject. Overrides nats.subject.")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ns-alerts: %v\n", err)
		os.Exit(model.ExitCode(err))
	}
	if *url != "" {
		cfg.NATS.URL = *url
	}
	if *subject != "" {
		cfg.NATS.Subject = *subject
	}
	if cfg.NATS.URL == "" {
		fmt.Fprintln(os.Stderr, "ns-alerts: no NATS url configured")
		os.Exit(model.ExitConfiguration)
	}

	logger := logging.Must(cfg.Logging)
	defer logger.Sync()

	sub, err := notification.NewSubscriber(cfg.NATS, logger)
	if err != nil {
		logger.Error("Failed to create subscriber", zap.Error(err))
		os.Exit(model.ExitFailure)
	}
	defer sub.Close()

	handler := func(runID string, alerts []model.Alert) {
		for _, al := range alerts {
			fmt.Printf("%s\t%s\n", runID, alerter.Message(al))
		}
	}
	if err := sub.Start(handler); err != nil {
		logger.Error("Subscriber failed to start", zap.Error(err))
		os.Exit(model.ExitFailure)
	}

	// Set up a channel to handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Wait for a shutdown signal
	<-sigChan
	logger.Info("Shutdown signal received, cleaning up...")
}
