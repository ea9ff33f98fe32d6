// Command agentd-randomsvcd runs the random service of §6: a standalone
// process answering generate requests from protocolsvcd and canonsvcd over
// an AF_UNIX stream socket.
package main

import (
	"os"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"synnergy-network/internal/ipcserver"
	"synnergy-network/internal/metrics"
	"synnergy-network/internal/randomsvc"
	"synnergy-network/internal/reactor"
	"synnergy-network/pkg/config"
)

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:   "agentd-randomsvcd",
		Short: "run the agentd random service",
		Run: func(cmd *cobra.Command, args []string) {
			if err := run(configPath); err != nil {
				logrus.WithError(err).Fatal("agentd-randomsvcd exited")
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
	log := logrus.WithField("service", "randomsvc")

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

	listenFD, err := reactor.Listen(cfg.RandomSvc.ListenSocket)
	if err != nil {
		return err
	}

	reg := metrics.New("randomsvc")
	rnd := randomsvc.New()
	srv := ipcserver.New(loop, listenFD, func(body []byte) []byte {
		reg.RequestsTotal.WithLabelValues("generate").Inc()
		return rnd.HandleRequest(body)
	})
	srv.Start()

	metricsSrv := metrics.NewServer(cfg.RandomSvc.MetricsAddr, reg, log)
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil {
			log.WithError(err).Warn("metrics server stopped")
		}
	}()
	defer metricsSrv.Close()

	log.WithField("socket", cfg.RandomSvc.ListenSocket).Info("randomsvcd listening")
	return loop.Run()
}
