package submit

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happy2099/zap-mono-sub002/internal/cache"
	"github.com/happy2099/zap-mono-sub002/internal/domain"
	solrpc "github.com/happy2099/zap-mono-sub002/internal/solana"
)

type stubBroadcaster struct {
	blockhash      solrpc.Blockhash
	blockhashCalls int
	blockhashErr   error

	sent    []string
	sendSig string
	sendErr error
}

func (s *stubBroadcaster) GetLatestBlockhash(context.Context) (solrpc.Blockhash, error) {
	s.blockhashCalls++
	return s.blockhash, s.blockhashErr
}

func (s *stubBroadcaster) SendTransaction(_ context.Context, tx string) (string, error) {
	s.sent = append(s.sent, tx)
	return s.sendSig, s.sendErr
}

func testSet() *domain.ClonedInstructionSet {
	return &domain.ClonedInstructionSet{
		Platform:          domain.VenueRaydiumV4,
		ScaledInputAmount: 100_000_000,
		MinOutputAmount:   49_500,
		Instructions: []domain.ClonedInstruction{
			{
				ProgramID: domain.RaydiumV4ProgramID,
				Accounts: []domain.AccountMeta{
					{Address: solana.NewWallet().PublicKey().String(), IsWritable: true},
				},
				Data: []byte{9, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}
}

func newTestSender(t *testing.T, broadcaster *stubBroadcaster, snapshots *cache.TTLStore[cache.Snapshot]) (*Sender, solana.PrivateKey) {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	sender, err := NewSender(Options{
		RPC:       broadcaster,
		Signer:    key,
		Snapshots: snapshots,
	})
	require.NoError(t, err)
	return sender, key
}

func TestSubmitSignsAndBroadcasts(t *testing.T) {
	broadcaster := &stubBroadcaster{
		blockhash: solrpc.Blockhash{Hash: solana.MustHashFromBase58("11111111111111111111111111111111").String()},
		sendSig:   "sig-submitted",
	}
	sender, key := newTestSender(t, broadcaster, nil)

	receipt, err := sender.Submit(context.Background(), testSet())
	require.NoError(t, err)
	assert.Equal(t, "sig-submitted", receipt.Signature)
	assert.GreaterOrEqual(t, receipt.ExecutionTime, time.Duration(0))

	require.Len(t, broadcaster.sent, 1)
	raw, err := base64.StdEncoding.DecodeString(broadcaster.sent[0])
	require.NoError(t, err)

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	require.NoError(t, err)

	// Payer is the sender wallet and the signature verifies.
	assert.Equal(t, key.PublicKey(), tx.Message.AccountKeys[0])
	require.NoError(t, tx.VerifySignatures())

	// Compute budget limit precedes the swap instruction.
	require.Len(t, tx.Message.Instructions, 2)
	firstProgram, err := tx.Message.Program(tx.Message.Instructions[0].ProgramIDIndex)
	require.NoError(t, err)
	assert.Equal(t, computeBudgetProgramID, firstProgram.String())
}

func TestSubmitUsesCachedBlockhash(t *testing.T) {
	broadcaster := &stubBroadcaster{
		blockhash: solrpc.Blockhash{Hash: solana.MustHashFromBase58("11111111111111111111111111111111").String()},
		sendSig:   "sig-1",
	}
	snapshots := cache.NewTTLStore[cache.Snapshot](15 * time.Second)
	sender, _ := newTestSender(t, broadcaster, snapshots)

	_, err := sender.Submit(context.Background(), testSet())
	require.NoError(t, err)
	_, err = sender.Submit(context.Background(), testSet())
	require.NoError(t, err)

	assert.Equal(t, 1, broadcaster.blockhashCalls)
}

func TestSubmitBlockhashFailureIsNetworkError(t *testing.T) {
	broadcaster := &stubBroadcaster{blockhashErr: errors.New("rpc down")}
	sender, _ := newTestSender(t, broadcaster, nil)

	_, err := sender.Submit(context.Background(), testSet())
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCategoryNetwork, domain.CategoryOf(err))
}

func TestSubmitPropagatesRejection(t *testing.T) {
	broadcaster := &stubBroadcaster{
		blockhash: solrpc.Blockhash{Hash: solana.MustHashFromBase58("11111111111111111111111111111111").String()},
		sendErr:   domain.Categorizef(domain.ErrorCategoryRejection, "custom program error: 0x1"),
	}
	sender, _ := newTestSender(t, broadcaster, nil)

	_, err := sender.Submit(context.Background(), testSet())
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCategoryRejection, domain.CategoryOf(err))
}

func TestNewSenderValidation(t *testing.T) {
	_, err := NewSender(Options{})
	assert.Error(t, err)

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	_, err = NewSender(Options{Signer: key})
	assert.Error(t, err)
}
