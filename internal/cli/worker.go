package cli

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tcfw/chainprover/internal/node"
	"github.com/tcfw/chainprover/internal/utils/logging"
)

var (
	workerCmd = &cobra.Command{
		Use:   "worker",
		Short: "execute proving tasks for remote leaders",
		RunE:  runWorker,
	}
)

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	if err := initCapability(cfg); err != nil {
		return err
	}

	n, err := node.NewNode(ctx, cfg.P2P(),
		node.WithRegistry(newRegistry()),
		node.WithLogger(logging.Logger()),
	)
	if err != nil {
		return errors.Wrap(err, "initing node")
	}

	for _, a := range n.Addrs() {
		logging.Entry().WithField("addr", a.String()).Info("worker address")
	}

	return n.ListenAndServe(ctx)
}
