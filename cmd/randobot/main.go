package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rl1809/codemarket/internal/agent"
	"github.com/rl1809/codemarket/internal/client"
	"github.com/rl1809/codemarket/internal/config"
	"github.com/rl1809/codemarket/internal/logging"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var configFile string

var rootCmd = &cobra.Command{
	Use:   "randobot",
	Short: "Run a vendor that randomly shuffles its goods between store and stock",
	RunE: func(cmd *cobra.Command, args []string) error {
		v := config.New()
		if err := v.BindPFlag("agent.server", cmd.Flags().Lookup("server")); err != nil {
			return err
		}
		if err := v.BindPFlag("agent.transport", cmd.Flags().Lookup("transport")); err != nil {
			return err
		}
		if err := v.BindPFlag("agent.name", cmd.Flags().Lookup("name")); err != nil {
			return err
		}
		if err := v.BindPFlag("agent.url", cmd.Flags().Lookup("url")); err != nil {
			return err
		}
		if err := v.BindPFlag("agent.max_rounds", cmd.Flags().Lookup("rounds")); err != nil {
			return err
		}
		cfg, err := config.Load(v, configFile)
		if err != nil {
			return err
		}
		logger := logging.New(cfg.Log.Level, cfg.Log.Format)

		market, err := client.New(cfg.Agent.Transport, cfg.Agent.Server)
		if err != nil {
			return err
		}
		defer market.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		bot := agent.NewRandoBot(market, agent.Options{
			Name:      cfg.Agent.Name,
			URL:       cfg.Agent.URL,
			Interval:  cfg.Agent.Interval,
			MaxRounds: cfg.Agent.MaxRounds,
		}, logger)

		rounds, err := bot.Run(ctx)
		logger.Info().Int("rounds", rounds).Msg("agent finished")
		if errors.Is(err, agent.ErrStopped) {
			logger.Warn().Msg("market no longer recognizes this vendor")
			return nil
		}
		return err
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "path to a config file")
	rootCmd.Flags().String("server", "http://localhost:8000", "market address")
	rootCmd.Flags().String("transport", "http", "http or grpc")
	rootCmd.Flags().String("name", "", "vendor name; random when empty")
	rootCmd.Flags().String("url", "", "vendor url to register with")
	rootCmd.Flags().Int("rounds", 0, "stop after this many rounds; zero runs until interrupted")
}
