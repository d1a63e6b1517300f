// Command broker runs a standalone Nimbus broker, wiring configuration,
// logging and a durable store together the way plantd/broker wires its
// own main package around core/mdp.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/nimbusmq/nimbus/config"
	nimbuslog "github.com/nimbusmq/nimbus/log"
	"github.com/nimbusmq/nimbus/nimbus"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", "broker.yaml", "path to the broker configuration file")
	flag.Parse()

	cfg, err := config.LoadBrokerConfig(*configPath)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Fatal("failed to load broker configuration")
	}
	nimbuslog.Initialize(cfg.Log)

	store := newStore(cfg)
	security := newSecurityManager(cfg)

	loop, err := nimbus.NewBrokerLoop(nimbus.BrokerConfig{
		ClientAddr:         cfg.ClientAddr,
		WorkerControlAddr:  cfg.WorkerControlAddr,
		WorkerResponseAddr: cfg.WorkerResponseAddr,
		TProbe:             cfg.Control.TProbe(),
		TDisconnect:        cfg.Control.TDisconnect(),
	}, store, security)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Fatal("failed to start broker")
	}
	defer loop.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan bool, 1)

	go loop.Run(done)

	select {
	case <-sig:
		log.Info("received shutdown signal")
	case <-done:
		log.Warn("broker loop exited on its own")
	}
}

func newStore(cfg *config.BrokerConfig) nimbus.DurableStore {
	if cfg.Redis.Addr == "" {
		log.Info("no redis address configured, using in-memory durable store")
		return nimbus.NewMemoryStore(0)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return nimbus.NewRedisStore(client)
}

func newSecurityManager(cfg *config.BrokerConfig) *nimbus.SecurityManager {
	if cfg.KeyDir == "" {
		return nimbus.NewSecurityManager(cfg.Service.ID, nil, "")
	}
	keyPath := cfg.KeyDir + "/" + cfg.Service.ID + ".key.pem"
	signingKey, err := nimbus.LoadSigningKeyFromPEM(keyPath)
	if err != nil {
		log.WithFields(log.Fields{"error": err, "path": keyPath}).Warn("no broker signing key found, running unsigned")
		return nimbus.NewSecurityManager(cfg.Service.ID, nil, cfg.KeyDir)
	}
	return nimbus.NewSecurityManager(cfg.Service.ID, signingKey, cfg.KeyDir)
}
