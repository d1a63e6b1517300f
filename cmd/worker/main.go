// Command worker runs a standalone Nimbus worker registering a couple of
// example endpoints, showing how a real worker binary wires
// config/log/nimbus together the way plantd/module/echo wires core/mdp.
package main

import (
	"flag"

	log "github.com/sirupsen/logrus"

	"github.com/nimbusmq/nimbus/config"
	nimbuslog "github.com/nimbusmq/nimbus/log"
	"github.com/nimbusmq/nimbus/nimbus"
)

func main() {
	configPath := flag.String("config", "worker.yaml", "path to the worker configuration file")
	flag.Parse()

	cfg, err := config.LoadWorkerConfig(*configPath)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Fatal("failed to load worker configuration")
	}
	nimbuslog.Initialize(cfg.Log)

	security := newSecurityManager(cfg)

	w, err := nimbus.NewWorker(nimbus.WorkerConfig{
		ControlAddr:  cfg.ControlAddr,
		ResponseAddr: cfg.ResponseAddr,
		TProbe:       cfg.Control.TProbe(),
		TDisconnect:  cfg.Control.TDisconnect(),
	}, cfg.Service.ID, security, []string{"echo", "status"})
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Fatal("failed to connect worker to broker")
	}
	defer w.Close()

	w.Handle("POST", "echo", echoHandler)
	w.Handle("GET", "status", statusHandler)

	if err := w.Run(); err != nil {
		log.WithFields(log.Fields{"error": err}).Fatal("worker loop terminated")
	}
}

func echoHandler(req *nimbus.WorkerRequest) (interface{}, int, error) {
	body, ok := req.Data["body"]
	if !ok {
		return nil, 0, nimbus.NewDataNotCompleteError("body")
	}
	return body, nimbus.StatusOK, nil
}

func statusHandler(req *nimbus.WorkerRequest) (interface{}, int, error) {
	return "ok", nimbus.StatusOK, nil
}

func newSecurityManager(cfg *config.WorkerConfig) *nimbus.SecurityManager {
	if cfg.KeyDir == "" {
		return nimbus.NewSecurityManager(cfg.Service.ID, nil, "")
	}
	keyPath := cfg.KeyDir + "/" + cfg.Service.ID + ".key.pem"
	signingKey, err := nimbus.LoadSigningKeyFromPEM(keyPath)
	if err != nil {
		log.WithFields(log.Fields{"error": err, "path": keyPath}).Warn("no worker signing key found, running unsigned")
		return nimbus.NewSecurityManager(cfg.Service.ID, nil, cfg.KeyDir)
	}
	return nimbus.NewSecurityManager(cfg.Service.ID, signingKey, cfg.KeyDir)
}
