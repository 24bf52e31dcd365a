package api

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/tcfw/chainprover/pkg/leader"
	"github.com/tcfw/chainprover/pkg/ops"
	"github.com/tcfw/chainprover/pkg/prover"
	"github.com/tcfw/chainprover/pkg/prover/hashprover"
	"github.com/tcfw/chainprover/pkg/runtime"
	"github.com/tcfw/chainprover/pkg/storage"
	"github.com/tcfw/chainprover/pkg/trace"
)

func testInput(n uint64) *leader.BlockProverInput {
	return &leader.BlockProverInput{
		BlockTrace: trace.BlockTrace{Txns: []trace.TxnTrace{
			{Hash: common.HexToHash("0x01"), Steps: []trace.Step{{Cycles: 2, Data: []byte{1}}, {Cycles: 1, Data: []byte{2}}}},
		}},
		OtherData: trace.OtherBlockData{
			Meta:   trace.BlockMetadata{Number: uint256.NewInt(n)},
			Hashes: trace.BlockHashes{CurHash: common.BigToHash(uint256.NewInt(n).ToBig())},
		},
	}
}

func testClient(t *testing.T) (*Client, storage.ProofStore, string) {
	t.Cleanup(prover.Override(hashprover.New()))

	reg := runtime.NewRegistry()
	ops.Register(reg)
	rt := runtime.NewInMemory(reg, 2)
	t.Cleanup(func() { rt.Close() })

	store := storage.NewMemStore()
	out := t.TempDir()

	a, err := NewAPI(leader.New(rt, leader.Config{MaxCPULenLog: 4}), store, WithOutputDir(out))
	if err != nil {
		t.Fatal(err)
	}

	lis := bufconn.Listen(1 << 20)
	go a.Serve(lis)
	t.Cleanup(func() { a.Shutdown(context.Background()) })

	c, err := NewClient("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })

	return c, store, out
}

func TestProveAndLatest(t *testing.T) {
	c, store, out := testClient(t)
	ctx := context.Background()

	_, err := c.Latest(ctx)
	assert.Equal(t, codes.NotFound, status.Code(err))

	first, err := c.Prove(ctx, &ProveRequest{Input: testInput(7)})
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, uint64(7), first.Proof.Height)
	assert.NotEmpty(t, first.ID)

	second, err := c.Prove(ctx, &ProveRequest{Input: testInput(8), UseStored: true})
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, uint64(8), second.Proof.Height)

	latest, err := c.Latest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, second.Proof.Intern, latest.Proof.Intern)

	stored, err := store.GetProof(ctx, 7)
	assert.NoError(t, err)
	assert.Equal(t, first.Proof.Intern, stored.Intern)

	_, err = os.Stat(filepath.Join(out, "b8.zkproof"))
	assert.NoError(t, err)
}

func TestProveErrors(t *testing.T) {
	c, _, _ := testClient(t)
	ctx := context.Background()

	_, err := c.Prove(ctx, &ProveRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	first, err := c.Prove(ctx, &ProveRequest{Input: testInput(3)})
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Prove(ctx, &ProveRequest{Input: testInput(5), Previous: first.Proof})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}
