package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/axiomesh/axiom-aa-gateway/internal/bridge"
	"github.com/axiomesh/axiom-aa-gateway/internal/chainstate"
	"github.com/axiomesh/axiom-aa-gateway/pkg/loggers"
	"github.com/axiomesh/axiom-aa-gateway/pkg/repo"
)

// start boots the bridge orchestrator in demo mode: real chain readers and
// aggregator, simulated settlements until a signer-backed settler is wired
// in by an embedding service.
func start(ctx *cli.Context) error {
	rep, err := repo.Load(ctx.String("repo"))
	if err != nil {
		return err
	}
	if err := loggers.Initialize(rep); err != nil {
		return err
	}
	logger := loggers.Logger(loggers.App)
	rep.PrintInfo(func(c string) {
		logger.Info(c)
	})

	bootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	readers := make(map[string]chainstate.Reader, len(rep.Config.Chains))
	chainIDs := make(map[string]uint64, len(rep.Config.Chains))
	for _, chain := range rep.Config.Chains {
		reader, err := chainstate.DialReader(bootCtx, chain.RPCURL, chain.ChainID)
		if err != nil {
			return err
		}
		defer reader.Close()
		readers[chain.Name] = reader
		chainIDs[chain.Name] = chain.ChainID
	}

	fallbackFee, err := decimal.NewFromString(rep.Config.Bridge.FallbackFeeRate)
	if err != nil {
		return err
	}

	aggregator := bridge.NewAggregatorClient(rep.Config.Bridge.AggregatorURL, loggers.Logger(loggers.Bridge))
	orchestrator := bridge.NewOrchestrator(
		bridge.NewMemoryStore(),
		aggregator,
		readers,
		chainIDs,
		nil,
		bridge.Options{
			RelayInterval:     rep.Config.Bridge.RelayInterval.ToDuration(),
			FallbackFeeRate:   fallbackFee,
			SlippageTolerance: rep.Config.Bridge.SlippageTolerance,
			SupportedPairs:    rep.Config.Bridge.SupportedPairs,
		},
		loggers.Logger(loggers.Bridge),
	)
	defer orchestrator.Close()

	logger.Info("Bridge orchestrator started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutting down")
	return nil
}
