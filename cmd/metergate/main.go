package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/metergate/metergate/internal/app"
	"github.com/metergate/metergate/internal/security"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	hashToken := flag.String("hash-token", "", "print the bcrypt hash of a token for use in the auth config and exit")
	flag.Parse()

	if *hashToken != "" {
		hash, err := security.HashToken(*hashToken)
		if err != nil {
			log.WithError(err).Fatal("hash token")
		}
		fmt.Println(hash)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, *configPath); err != nil {
		log.WithError(err).Fatal("service failed")
	}
}
