package cli

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tcfw/chainprover/internal/config"
	"github.com/tcfw/chainprover/internal/proofio"
	"github.com/tcfw/chainprover/internal/rpc"
	"github.com/tcfw/chainprover/internal/utils/logging"
	"github.com/tcfw/chainprover/pkg/chain"
	"github.com/tcfw/chainprover/pkg/leader"
	"github.com/tcfw/chainprover/pkg/proof"
	"github.com/tcfw/chainprover/pkg/storage"
)

var (
	stdioCmd = &cobra.Command{
		Use:   "stdio",
		Short: "prove a block read from stdin and write its proof to stdout",
		RunE:  runStdio,
	}

	rpcCmd = &cobra.Command{
		Use:   "rpc",
		Short: "prove blocks fetched from a tracing node",
		RunE:  runRPC,
	}
)

func init() {
	for _, c := range []*cobra.Command{stdioCmd, rpcCmd} {
		c.Flags().StringP("previous-proof", "f", "", "proof of the parent block to chain onto")
		c.Flags().BoolP("save-inputs-on-error", "s", false, "save the inputs of failed operations")
		c.Flags().Bool("test-only", false, "only simulate execution and emit dummy proofs")
	}

	rpcCmd.Flags().StringP("rpc-url", "u", "", "tracing node RPC URL")
	rpcCmd.Flags().StringP("block-numbers", "b", "", "block number N or inclusive range A..=B")
	rpcCmd.Flags().Uint64P("checkpoint-block-number", "c", 0, "checkpoint block number")
	rpcCmd.Flags().StringP("proof-output-dir", "o", "", "write proofs to this directory instead of stdout")
	rpcCmd.MarkFlagRequired("block-numbers")

	viper.BindPFlag(config.Cfg_rpc_url, rpcCmd.Flags().Lookup("rpc-url"))
	viper.BindPFlag(config.Cfg_rpc_checkpoint, rpcCmd.Flags().Lookup("checkpoint-block-number"))
}

// applyProvingFlags lets per command flags override the loaded config
func applyProvingFlags(cmd *cobra.Command) {
	if v, err := cmd.Flags().GetBool("save-inputs-on-error"); err == nil && cmd.Flags().Changed("save-inputs-on-error") {
		cfg.Proving().SaveInputsOnError = v
	}

	if v, err := cmd.Flags().GetBool("test-only"); err == nil && cmd.Flags().Changed("test-only") {
		cfg.Proving().TestOnly = v
	}
}

func previousProof(cmd *cobra.Command) (*proof.BlockProof, error) {
	path, _ := cmd.Flags().GetString("previous-proof")
	if path == "" {
		return nil, nil
	}

	return proofio.Read(path)
}

func runStdio(cmd *cobra.Command, args []string) error {
	applyProvingFlags(cmd)

	ctx, cancel := signalContext()
	defer cancel()

	in := &leader.BlockProverInput{}
	if err := json.NewDecoder(os.Stdin).Decode(in); err != nil {
		return errors.Wrap(err, "decoding prover input")
	}

	prev, err := previousProof(cmd)
	if err != nil {
		return err
	}

	s, err := buildState(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	bp, err := s.prover.ProveBlock(ctx, in, chain.Resolved(prev))
	if err != nil {
		return err
	}

	if _, err := s.store.PutProof(ctx, bp); err != nil {
		logging.WithError(err).Warn("storing proof")
	}

	_, err = proofio.Write("", os.Stdout, bp)
	return err
}

func runRPC(cmd *cobra.Command, args []string) error {
	applyProvingFlags(cmd)

	bs, _ := cmd.Flags().GetString("block-numbers")
	blocks, err := ParseBlockNumbers(bs)
	if err != nil {
		return err
	}

	outDir, _ := cmd.Flags().GetString("proof-output-dir")

	ctx, cancel := signalContext()
	defer cancel()

	s, err := buildState(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	prev, err := previousProof(cmd)
	if err != nil {
		return err
	}
	if prev == nil {
		if prev, err = storage.PreviousProof(ctx, s.store, blocks.Start); err != nil {
			return errors.Wrap(err, "loading previous proof")
		}
	}

	client, err := rpc.Dial(ctx, viper.GetString(config.Cfg_rpc_url),
		rpc.WithCheckpoint(viper.GetUint64(config.Cfg_rpc_checkpoint)),
		rpc.WithAttempts(cfg.RPC().Attempts),
		rpc.WithHashCache(s.store),
		rpc.WithLogger(logging.Logger()),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	it, err := client.Range(ctx, blocks.Start, blocks.End)
	if err != nil {
		return errors.Wrap(err, "fetching block hash window")
	}

	logging.WithFields(logging.Fields{"from": blocks.Start, "to": blocks.End, "chained": prev != nil}).Info("proving blocks")

	return s.prover.ProveRange(ctx, it, prev, func(r leader.BlockResult) error {
		if r.Err != nil {
			logging.WithError(r.Err).WithField("block", r.Number).Error("failed to prove block")
			return nil
		}

		if _, err := s.store.PutProof(ctx, r.Proof); err != nil {
			return errors.Wrap(err, "storing proof")
		}

		path, err := proofio.Write(outDir, os.Stdout, r.Proof)
		if err != nil {
			return err
		}

		logging.WithFields(logging.Fields{"block": r.Number, "path": path}).Info("wrote proof")

		return nil
	})
}
