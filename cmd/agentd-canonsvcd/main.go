// Command agentd-canonsvcd runs the canonization pipeline of §4.5: on a
// fixed timer it drains pending transactions into a block and submits it
// to the data service, using the random service for the block id.
package main

import (
	"os"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"synnergy-network/internal/canon"
	"synnergy-network/internal/ids"
	"synnergy-network/internal/ipcclient"
	"synnergy-network/internal/metrics"
	"synnergy-network/internal/reactor"
	"synnergy-network/pkg/config"
)

// canonSuiteID is the certificate header's crypto suite tag. It mirrors
// internal/protocolsvc.DefaultSuite's id (1): this implementation only ever
// advertises the one suite, so the canonization pipeline's certificates and
// the protocol service's handshakes agree on what "suite 1" means without
// importing protocolsvc just for the constant.
const canonSuiteID = 1

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:   "agentd-canonsvcd",
		Short: "run the agentd canonization pipeline",
		Run: func(cmd *cobra.Command, args []string) {
			if err := run(configPath); err != nil {
				logrus.WithError(err).Fatal("agentd-canonsvcd exited")
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
	log := logrus.WithField("service", "canonsvc")

	dataClient, err := ipcclient.Dial(cfg.CanonSvc.DataSocket)
	if err != nil {
		return err
	}
	defer dataClient.Close()
	randomClient, err := ipcclient.Dial(cfg.CanonSvc.RandomSocket)
	if err != nil {
		return err
	}
	defer randomClient.Close()

	blockMax := time.Duration(cfg.CanonSvc.BlockMaxMilliseconds) * time.Millisecond
	pipeline := canon.NewPipeline(dataClient, randomClient, cfg.CanonSvc.MaxTxnsPerBlock, blockMax)
	pipeline.SuiteID = canonSuiteID
	// The signer identity that tags every certificate this process
	// produces is, like protocolsvcd's entity identity, provisioned out
	// of band; a fresh one is generated per run (spec.md §6 config
	// non-goal).
	pipeline.SignerID = ids.New()

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

	reg := metrics.New("canonsvc")
	metricsSrv := metrics.NewServer(cfg.CanonSvc.MetricsAddr, reg, log)
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil {
			log.WithError(err).Warn("metrics server stopped")
		}
	}()
	defer metricsSrv.Close()

	var fire func()
	fire = func() {
		if loop.ForceExit() {
			return
		}
		rearm, err := pipeline.Fire()
		if err != nil {
			log.WithError(err).Error("canonization cycle failed, exiting")
			loop.RequestExit()
			return
		}
		reg.QueueDepth.Set(float64(pipeline.EntriesQueued()))
		loop.AddTimer(rearm, fire)
	}
	loop.AddTimer(blockMax, fire)

	log.WithField("max_txns_per_block", cfg.CanonSvc.MaxTxnsPerBlock).Info("canonsvcd running")
	return loop.Run()
}
