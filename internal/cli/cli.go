package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tcfw/chainprover/internal/config"
	"github.com/tcfw/chainprover/internal/utils/logging"
)

var (
	rootCmd = &cobra.Command{
		Use:               "chainprover",
		Short:             "prove blocks and chain their proofs",
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}

	cfg *config.Config
)

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "increase verbosity")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	regCommands()
}

func Execute() error {
	return rootCmd.Execute()
}

func loadConfig(cmd *cobra.Command, args []string) error {
	var err error

	cfg, err = config.GetConfig()
	if err != nil {
		return errors.Wrap(err, "loading config")
	}

	l := cfg.Log()
	logging.SetLevel(l.Level)
	logging.SetFormat(l.Format)

	if l.File != "" {
		logging.SetFile(logging.FileOptions{
			Path:       l.File,
			MaxSizeMB:  l.MaxSizeMB,
			MaxBackups: l.MaxBackups,
		})
	}

	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		select {
		case <-waitExit():
			logging.Entry().Warn("interrupted, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func waitExit() <-chan os.Signal {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	return sigs
}
