// Command agentd-datasvcd runs the data service of §6: the store of
// artifacts, pending and canonized transactions, and blocks, plus the
// child-context capability tree every other service authenticates its
// requests against.
package main

import (
	"os"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"synnergy-network/internal/agenterr"
	"synnergy-network/internal/dataproto"
	"synnergy-network/internal/datasvc"
	"synnergy-network/internal/ipcserver"
	"synnergy-network/internal/metrics"
	"synnergy-network/internal/reactor"
	"synnergy-network/pkg/config"
)

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:   "agentd-datasvcd",
		Short: "run the agentd data service",
		Run: func(cmd *cobra.Command, args []string) {
			if err := run(configPath); err != nil {
				logrus.WithError(err).Fatal("agentd-datasvcd exited")
			}
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "agentd.yaml", "path to the agentd config file")
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrapRootDelegate performs root_context_init and seeds the
// all-capabilities child at index 0 that protocolsvcd and canonsvcd both
// assume exists as their own child-creation caller (internal/canon's
// Pipeline.requestChild and internal/protocolsvc.Service.createChild both
// call child_context_create as index 0 "by convention for this process").
func bootstrapRootDelegate(data *datasvc.Service, databasePath string) error {
	initReq := dataproto.EncodeRootRequest(dataproto.MethodRootContextInit,
		dataproto.RootContextInitRequest{DatabasePath: databasePath}.Encode())
	initResp, err := dataproto.DecodeResponseHeader(data.Dispatch(initReq))
	if err != nil {
		return err
	}
	if initResp.Status != dataproto.StatusSuccess {
		return dataproto.ErrorFromStatus(initResp.Status)
	}

	allCaps := dataproto.Capability(1)<<dataproto.CapBitsMax - 1
	createReq := dataproto.EncodeRequest(dataproto.MethodChildContextCreate, 0,
		dataproto.ChildContextCreateRequest{Caps: allCaps}.Encode())
	createResp, err := dataproto.DecodeResponseHeader(data.Dispatch(createReq))
	if err != nil {
		return err
	}
	if createResp.Status != dataproto.StatusSuccess {
		return dataproto.ErrorFromStatus(createResp.Status)
	}
	return nil
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
	log := logrus.WithField("service", "datasvc")

	data := datasvc.New()
	if err := bootstrapRootDelegate(data, cfg.DataSvc.DatabasePath); err != nil {
		return err
	}

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

	listenFD, err := reactor.Listen(cfg.DataSvc.ListenSocket)
	if err != nil {
		return err
	}

	reg := metrics.New("datasvc")
	srv := ipcserver.New(loop, listenFD, func(body []byte) []byte {
		resp := data.Dispatch(body)
		if decoded, err := dataproto.DecodeResponseHeader(resp); err == nil && decoded.Status != dataproto.StatusSuccess {
			reg.ErrorsTotal.WithLabelValues(agenterr.CodeOf(dataproto.ErrorFromStatus(decoded.Status)).String()).Inc()
		}
		return resp
	})
	srv.Start()

	metricsSrv := metrics.NewServer(cfg.DataSvc.MetricsAddr, reg, log)
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil {
			log.WithError(err).Warn("metrics server stopped")
		}
	}()
	defer metricsSrv.Close()

	log.WithField("socket", cfg.DataSvc.ListenSocket).Info("datasvcd listening")
	return loop.Run()
}
