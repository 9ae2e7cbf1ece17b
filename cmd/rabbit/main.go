// Command rabbit declares the broker topology for an environment and
// exits. Useful for provisioning a fresh vhost before the pipeline
// starts.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"skirmish/internal/config"
	"skirmish/internal/rabbitmq"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	client, err := rabbitmq.NewClient(cfg.RabbitMQ)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}
	defer client.Close()

	gateway := rabbitmq.NewGateway(client, cfg.Environment, log.Logger)
	if err := gateway.DeclareTopology(); err != nil {
		log.Fatal().Err(err).Msg("failed to declare topology")
	}

	log.Info().Str("environment", cfg.Environment).Msg("broker topology declared")
}
