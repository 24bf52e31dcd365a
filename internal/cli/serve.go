package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tcfw/chainprover/internal/api"
	"github.com/tcfw/chainprover/internal/config"
	"github.com/tcfw/chainprover/internal/utils/logging"
)

var (
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "serve proving requests over gRPC",
		RunE:  runServe,
	}
)

func init() {
	serveCmd.Flags().StringP("listen", "l", "", "api listen address")
	serveCmd.Flags().StringP("output-dir", "o", "", "directory proofs are also written to")
	serveCmd.Flags().BoolP("save-inputs-on-error", "s", false, "save the inputs of failed operations")
	serveCmd.Flags().Bool("test-only", false, "only simulate execution and emit dummy proofs")

	viper.BindPFlag(config.Cfg_api_listen, serveCmd.Flags().Lookup("listen"))
	viper.BindPFlag(config.Cfg_api_outputDir, serveCmd.Flags().Lookup("output-dir"))
}

func runServe(cmd *cobra.Command, args []string) error {
	applyProvingFlags(cmd)

	ctx, cancel := signalContext()
	defer cancel()

	s, err := buildState(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	a, err := api.NewAPI(s.prover, s.store,
		api.WithOutputDir(cfg.API().OutputDir),
		api.WithLogger(logging.Logger()),
	)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- a.ListenAndServe(cfg.API().Listen)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		sctx, scancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer scancel()

		return a.Shutdown(sctx)
	}
}
