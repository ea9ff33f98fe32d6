// Command agentd-protocolsvcd runs the protocol service of §4.4: it accepts
// client connections, drives each through the authenticated handshake and
// command state machine, and forwards authorized commands to the data and
// random services.
package main

import (
	"crypto/rand"
	"os"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"synnergy-network/internal/agenterr"
	"synnergy-network/internal/ids"
	"synnergy-network/internal/ipcclient"
	"synnergy-network/internal/metrics"
	"synnergy-network/internal/protocolsvc"
	"synnergy-network/internal/reactor"
	"synnergy-network/internal/session"
	"synnergy-network/pkg/config"
)

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:   "agentd-protocolsvcd",
		Short: "run the agentd protocol service",
		Run: func(cmd *cobra.Command, args []string) {
			if err := run(configPath); err != nil {
				logrus.WithError(err).Fatal("agentd-protocolsvcd exited")
			}
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "agentd.yaml", "path to the agentd config file")
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	log := logrus.WithField("service", "protocolsvc")

	dataClient, err := ipcclient.Dial(cfg.ProtocolSvc.DataSocket)
	if err != nil {
		return err
	}
	defer dataClient.Close()
	randomClient, err := ipcclient.Dial(cfg.ProtocolSvc.RandomSocket)
	if err != nil {
		return err
	}
	defer randomClient.Close()

	// The entity directory (§4.4 "The server looks the entity id up
	// against a directory of authorized entities") and this process's
	// own long-term identity keypair are both provisioned out of band;
	// loading either from disk is out of scope (spec.md §6). A fresh
	// identity is generated per run, and the directory starts empty
	// until an out-of-band provisioning step populates it.
	identity, err := session.GenerateKeyPair(rand.Reader)
	if err != nil {
		return err
	}
	entityID := ids.New()
	dir := protocolsvc.Directory{}

	loop, err := reactor.New()
	if err != nil {
		return err
	}
	defer loop.Close()
	if err := loop.RegisterSignal(os.Interrupt); err != nil {
		return err
	}
	if err := loop.RegisterSignal(syscall.SIGTERM); err != nil {
		return err
	}

	svc := protocolsvc.New(loop, dataClient, randomClient, identity, entityID, dir)

	listenFD, err := reactor.Listen(cfg.ProtocolSvc.ListenSocket)
	if err != nil {
		return err
	}
	listenSC := loop.Add(listenFD)
	loop.SetReadCallback(listenSC, func(l *reactor.Loop, sc *reactor.SocketContext) {
		for {
			fd, err := reactor.Accept(listenFD)
			if err != nil {
				if agenterr.CodeOf(err) == agenterr.WouldBlock {
					return
				}
				log.WithError(err).Warn("accept")
				return
			}
			svc.Accept(fd)
		}
	})

	reg := metrics.New("protocolsvc")
	metricsSrv := metrics.NewServer(cfg.ProtocolSvc.MetricsAddr, reg, log)
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil {
			log.WithError(err).Warn("metrics server stopped")
		}
	}()
	defer metricsSrv.Close()

	scheduleConnectionCountSample(loop, svc, reg)

	log.WithFields(logrus.Fields{
		"socket": cfg.ProtocolSvc.ListenSocket, "entity": entityID.String(),
	}).Info("protocolsvcd listening")
	return loop.Run()
}

// connectionCountSampleInterval is how often the open-connections gauge is
// refreshed. Sampling from a self-rescheduling timer keeps the read inside
// the loop's single thread, matching §5's "no shared mutable objects
// between threads" model, instead of a separate goroutine racing the
// accept/close callbacks that mutate Service's connection map.
const connectionCountSampleInterval = 2 * time.Second

func scheduleConnectionCountSample(loop *reactor.Loop, svc *protocolsvc.Service, reg *metrics.Registry) {
	var sample func()
	sample = func() {
		reg.OpenConnections.Set(float64(svc.ConnectionCount()))
		if !loop.ForceExit() {
			loop.AddTimer(connectionCountSampleInterval, sample)
		}
	}
	loop.AddTimer(connectionCountSampleInterval, sample)
}
