package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tcfw/chainprover/internal/config"
	"github.com/tcfw/chainprover/internal/rpc"
	"github.com/tcfw/chainprover/internal/utils/logging"
	"github.com/tcfw/chainprover/pkg/ops"
	"github.com/tcfw/chainprover/pkg/runtime"
)

var (
	fetchCmd = &cobra.Command{
		Use:   "fetch [block]",
		Short: "fetch the prover input of a block and write it to stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  runFetch,
	}

	replayCmd = &cobra.Command{
		Use:   "replay [description.yaml...]",
		Short: "re-run operations whose inputs were saved on error",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runReplay,
	}
)

func init() {
	fetchCmd.Flags().StringP("rpc-url", "u", "", "tracing node RPC URL")
	fetchCmd.Flags().Uint64P("checkpoint-block-number", "c", 0, "checkpoint block number")
}

func runFetch(cmd *cobra.Command, args []string) error {
	n, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return errors.Wrap(err, "parsing block number")
	}

	url := viper.GetString(config.Cfg_rpc_url)
	if v, _ := cmd.Flags().GetString("rpc-url"); v != "" {
		url = v
	}

	cp := viper.GetUint64(config.Cfg_rpc_checkpoint)
	if cmd.Flags().Changed("checkpoint-block-number") {
		cp, _ = cmd.Flags().GetUint64("checkpoint-block-number")
	}

	ctx, cancel := signalContext()
	defer cancel()

	client, err := rpc.Dial(ctx, url,
		rpc.WithCheckpoint(cp),
		rpc.WithAttempts(cfg.RPC().Attempts),
		rpc.WithLogger(logging.Logger()),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	in, err := client.Fetch(ctx, n)
	if err != nil {
		return err
	}

	return json.NewEncoder(os.Stdout).Encode(in)
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	if err := initCapability(cfg); err != nil {
		return err
	}

	rt := runtime.NewInMemory(newRegistry(), 1, runtime.WithLogger(logging.Logger()))
	defer rt.Close()

	var failed int

	for _, path := range args {
		op, err := ops.Replay(ctx, rt, path)
		if err != nil {
			failed++
			logging.WithError(err).WithField("op", op).WithField("path", path).Error("replay failed")
			continue
		}

		fmt.Printf("%s: %s succeeded\n", path, op)
	}

	if failed > 0 {
		return errors.Errorf("%d of %d replays failed", failed, len(args))
	}

	return nil
}
