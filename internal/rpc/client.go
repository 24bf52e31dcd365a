package rpc

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tcfw/chainprover/pkg/chain"
	"github.com/tcfw/chainprover/pkg/leader"
	"github.com/tcfw/chainprover/pkg/storage"
	"github.com/tcfw/chainprover/pkg/trace"
)

const (
	// ZeroTracer is the node side tracer producing block traces
	ZeroTracer = "zeroTracer"

	defaultAttempts = 3
)

var (
	_ leader.InputSource = (*Client)(nil)
	_ chain.HashSource   = (*Client)(nil)
)

type Option func(*Client)

func WithLogger(l *logrus.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithHashCache caches resolved block hashes in s
func WithHashCache(s storage.ProofStore) Option {
	return func(c *Client) {
		c.cache = s
	}
}

// WithCheckpoint sets the block whose state root anchors every fetched input
func WithCheckpoint(n uint64) Option {
	return func(c *Client) {
		c.checkpoint = n
	}
}

func WithAttempts(n int) Option {
	return func(c *Client) {
		c.attempts = n
	}
}

// Client fetches block prover inputs from a tracing node
type Client struct {
	rpc *gethrpc.Client
	eth *ethclient.Client

	cache      storage.ProofStore
	checkpoint uint64
	attempts   int
	minBackoff time.Duration

	logger *logrus.Logger
}

func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	c, err := gethrpc.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing %s", url)
	}

	return NewClient(c, opts...), nil
}

func NewClient(c *gethrpc.Client, opts ...Option) *Client {
	cl := &Client{
		rpc:        c,
		eth:        ethclient.NewClient(c),
		attempts:   defaultAttempts,
		minBackoff: 500 * time.Millisecond,
		logger:     logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(cl)
	}

	return cl
}

func (c *Client) Close() {
	c.rpc.Close()
}

func (c *Client) retry(ctx context.Context, what string, fn func() error) error {
	bo := &backoff.Backoff{
		Min: c.minBackoff,
		Max: 10 * time.Second,
	}

	var err error

	for i := 0; i < c.attempts; i++ {
		if err = fn(); err == nil {
			return nil
		} else if i == c.attempts-1 {
			break
		}

		d := bo.Duration()
		c.logger.WithError(err).WithField("call", what).WithField("retry_in", d).Warn("rpc call failed")

		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return errors.Wrap(err, what)
}

func (c *Client) header(ctx context.Context, n uint64) (*types.Header, error) {
	var h *types.Header

	err := c.retry(ctx, "eth_getBlockByNumber", func() error {
		var err error
		h, err = c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(n))
		return err
	})

	return h, err
}

// BlockHash resolves the hash of block n, consulting the cache first
func (c *Client) BlockHash(ctx context.Context, n uint64) (common.Hash, error) {
	if c.cache != nil {
		h, err := c.cache.GetBlockHash(ctx, n)
		if err == nil {
			return h, nil
		} else if err != storage.ErrNotFound {
			c.logger.WithError(err).Warn("reading block hash cache")
		}
	}

	hdr, err := c.header(ctx, n)
	if err != nil {
		return common.Hash{}, err
	}

	h := hdr.Hash()
	c.remember(ctx, n, h)

	return h, nil
}

func (c *Client) remember(ctx context.Context, n uint64, h common.Hash) {
	if c.cache == nil {
		return
	}

	if err := c.cache.PutBlockHash(ctx, n, h); err != nil {
		c.logger.WithError(err).Warn("caching block hash")
	}
}

// PreviousHashes returns the window of hashes preceding block n
func (c *Client) PreviousHashes(ctx context.Context, n uint64) (*chain.HashWindow, error) {
	return chain.FetchHashWindow(ctx, c, n, trace.HistoryDepth)
}

type tracerConfig struct {
	Tracer string `json:"tracer"`
}

type txTraceResult struct {
	TxHash common.Hash    `json:"txHash"`
	Result trace.TxnTrace `json:"result"`
	Error  string         `json:"error,omitempty"`
}

func (c *Client) blockTrace(ctx context.Context, n uint64) (*trace.BlockTrace, error) {
	var res []*txTraceResult

	err := c.retry(ctx, "debug_traceBlockByNumber", func() error {
		return c.rpc.CallContext(ctx, &res, "debug_traceBlockByNumber", gethrpc.BlockNumber(n), &tracerConfig{Tracer: ZeroTracer})
	})
	if err != nil {
		return nil, err
	}

	bt := &trace.BlockTrace{Txns: make([]trace.TxnTrace, 0, len(res))}
	for i, r := range res {
		if r.Error != "" {
			return nil, errors.Errorf("tracing txn %d of block %d: %s", i, n, r.Error)
		}

		txn := r.Result
		if txn.Hash == (common.Hash{}) {
			txn.Hash = r.TxHash
		}
		bt.Txns = append(bt.Txns, txn)
	}

	return bt, nil
}

// FetchProverInput assembles the trace and metadata of block n
func (c *Client) FetchProverInput(ctx context.Context, n uint64, prevHashes []common.Hash) (*leader.BlockProverInput, error) {
	hdr, err := c.header(ctx, n)
	if err != nil {
		return nil, err
	}

	var chainID *big.Int
	err = c.retry(ctx, "eth_chainId", func() error {
		var err error
		chainID, err = c.eth.ChainID(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	cp, err := c.header(ctx, c.checkpoint)
	if err != nil {
		return nil, errors.Wrap(err, "fetching checkpoint")
	}

	var prevRoot common.Hash
	if n > 0 {
		parent, err := c.header(ctx, n-1)
		if err != nil {
			return nil, errors.Wrap(err, "fetching parent")
		}
		prevRoot = parent.Root
	}

	bt, err := c.blockTrace(ctx, n)
	if err != nil {
		return nil, err
	}

	cur := hdr.Hash()
	c.remember(ctx, n, cur)

	meta := trace.BlockMetadata{
		Number:      uint256.MustFromBig(hdr.Number),
		Timestamp:   hdr.Time,
		Beneficiary: hdr.Coinbase,
		GasLimit:    hdr.GasLimit,
		GasUsed:     hdr.GasUsed,
		ChainID:     chainID.Uint64(),
	}
	if hdr.BaseFee != nil {
		meta.BaseFee = uint256.MustFromBig(hdr.BaseFee)
	}

	c.logger.WithFields(logrus.Fields{"block": n, "txns": len(bt.Txns)}).Debug("fetched prover input")

	return &leader.BlockProverInput{
		BlockTrace: *bt,
		OtherData: trace.OtherBlockData{
			Meta: meta,
			Hashes: trace.BlockHashes{
				PrevHashes: prevHashes,
				CurHash:    cur,
			},
			CheckpointStateRoot: cp.Root,
			PrevStateRoot:       prevRoot,
		},
	}, nil
}

// Fetch fetches a single block together with its hash window
func (c *Client) Fetch(ctx context.Context, n uint64) (*leader.BlockProverInput, error) {
	w, err := c.PreviousHashes(ctx, n)
	if err != nil {
		return nil, err
	}

	return c.FetchProverInput(ctx, n, w.Hashes())
}

// Range iterates the inputs of blocks from..=to in order
func (c *Client) Range(ctx context.Context, from, to uint64) (*leader.RangeIter, error) {
	w, err := c.PreviousHashes(ctx, from)
	if err != nil {
		return nil, err
	}

	return leader.NewRangeIter(ctx, c, from, to, w), nil
}
