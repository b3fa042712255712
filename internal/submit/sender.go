// Package submit assembles, signs, and broadcasts reconstructed trades.
package submit

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/happy2099/zap-mono-sub002/internal/cache"
	"github.com/happy2099/zap-mono-sub002/internal/domain"
	solrpc "github.com/happy2099/zap-mono-sub002/internal/solana"
)

const (
	computeBudgetProgramID = "ComputeBudget111111111111111111111111111111"

	snapshotKey = "latest"

	// DefaultComputeUnitLimit covers an ATA create plus one venue swap.
	DefaultComputeUnitLimit uint32 = 200_000
)

// Broadcaster is the RPC surface submission needs.
type Broadcaster interface {
	GetLatestBlockhash(ctx context.Context) (solrpc.Blockhash, error)
	SendTransaction(ctx context.Context, signedTx string) (string, error)
}

// Receipt is the outcome of a successful submission.
type Receipt struct {
	Signature     string
	SubmittedAt   time.Time
	ExecutionTime time.Duration
}

// Sender signs and broadcasts cloned instruction sets.
type Sender struct {
	rpc    Broadcaster
	signer solana.PrivateKey

	// snapshots caches the recent blockhash so bursts of trades share one
	// fetch. May be nil.
	snapshots *cache.TTLStore[cache.Snapshot]

	computeUnitLimit  uint32
	priorityMicroLamp uint64

	log *logrus.Logger
}

// Options configures Sender.
type Options struct {
	RPC       Broadcaster
	Signer    solana.PrivateKey
	Snapshots *cache.TTLStore[cache.Snapshot]

	// ComputeUnitLimit caps compute per transaction. Zero uses the default.
	ComputeUnitLimit uint32
	// PriorityFeeMicroLamports sets the per-unit priority fee. Zero omits
	// the instruction.
	PriorityFeeMicroLamports uint64

	Logger *logrus.Logger
}

// NewSender creates a Sender.
func NewSender(opts Options) (*Sender, error) {
	if opts.RPC == nil {
		return nil, fmt.Errorf("rpc broadcaster is required")
	}
	if len(opts.Signer) == 0 {
		return nil, fmt.Errorf("signer key is required")
	}
	if opts.ComputeUnitLimit == 0 {
		opts.ComputeUnitLimit = DefaultComputeUnitLimit
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	return &Sender{
		rpc:               opts.RPC,
		signer:            opts.Signer,
		snapshots:         opts.Snapshots,
		computeUnitLimit:  opts.ComputeUnitLimit,
		priorityMicroLamp: opts.PriorityFeeMicroLamports,
		log:               opts.Logger,
	}, nil
}

// Wallet returns the public key trades are signed with.
func (s *Sender) Wallet() solana.PublicKey {
	return s.signer.PublicKey()
}

// Submit assembles the set into a transaction, signs it, and broadcasts
// it. Instruction order within the set is preserved.
func (s *Sender) Submit(ctx context.Context, set *domain.ClonedInstructionSet) (*Receipt, error) {
	started := time.Now()

	blockhash, err := s.recentBlockhash(ctx)
	if err != nil {
		return nil, domain.Categorize(domain.ErrorCategoryNetwork,
			fmt.Errorf("fetch blockhash: %w", err))
	}
	hash, err := solana.HashFromBase58(blockhash.Hash)
	if err != nil {
		return nil, domain.Categorize(domain.ErrorCategoryEncoding,
			fmt.Errorf("invalid blockhash %q: %w", blockhash.Hash, err))
	}

	instructions, err := s.assemble(set)
	if err != nil {
		return nil, err
	}

	tx, err := solana.NewTransaction(
		instructions,
		hash,
		solana.TransactionPayer(s.signer.PublicKey()),
	)
	if err != nil {
		return nil, domain.Categorize(domain.ErrorCategoryEncoding,
			fmt.Errorf("build transaction: %w", err))
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.signer.PublicKey()) {
			return &s.signer
		}
		return nil
	}); err != nil {
		return nil, domain.Categorize(domain.ErrorCategoryEncoding,
			fmt.Errorf("sign transaction: %w", err))
	}

	serialized, err := tx.MarshalBinary()
	if err != nil {
		return nil, domain.Categorize(domain.ErrorCategoryEncoding,
			fmt.Errorf("serialize transaction: %w", err))
	}

	signature, err := s.rpc.SendTransaction(ctx, base64.StdEncoding.EncodeToString(serialized))
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{
		Signature:     signature,
		SubmittedAt:   started,
		ExecutionTime: time.Since(started),
	}
	s.log.WithFields(logrus.Fields{
		"signature": signature,
		"platform":  set.Platform,
		"elapsed":   receipt.ExecutionTime,
	}).Info("transaction submitted")
	return receipt, nil
}

// recentBlockhash returns the cached snapshot or fetches a fresh one.
func (s *Sender) recentBlockhash(ctx context.Context) (solrpc.Blockhash, error) {
	if s.snapshots != nil {
		if snap, ok := s.snapshots.Get(snapshotKey); ok {
			return solrpc.Blockhash{Hash: snap.Blockhash, LastValidBlockHeight: uint64(snap.Slot)}, nil
		}
	}

	bh, err := s.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return solrpc.Blockhash{}, err
	}

	if s.snapshots != nil {
		s.snapshots.Set(snapshotKey, cache.Snapshot{
			Blockhash:   bh.Hash,
			Slot:        int64(bh.LastValidBlockHeight),
			RetrievedAt: time.Now(),
		})
	}
	return bh, nil
}

// assemble prepends the compute budget instructions and converts the set.
func (s *Sender) assemble(set *domain.ClonedInstructionSet) ([]solana.Instruction, error) {
	budgetProgram := solana.MustPublicKeyFromBase58(computeBudgetProgramID)

	limitData := make([]byte, 5)
	limitData[0] = 2 // SetComputeUnitLimit
	binary.LittleEndian.PutUint32(limitData[1:], s.computeUnitLimit)

	instructions := []solana.Instruction{
		solana.NewInstruction(budgetProgram, nil, limitData),
	}

	if s.priorityMicroLamp > 0 {
		priceData := make([]byte, 9)
		priceData[0] = 3 // SetComputeUnitPrice
		binary.LittleEndian.PutUint64(priceData[1:], s.priorityMicroLamp)
		instructions = append(instructions, solana.NewInstruction(budgetProgram, nil, priceData))
	}

	for _, ci := range set.Instructions {
		program, err := solana.PublicKeyFromBase58(ci.ProgramID)
		if err != nil {
			return nil, domain.Categorize(domain.ErrorCategoryEncoding,
				fmt.Errorf("invalid program id %q: %w", ci.ProgramID, err))
		}

		metas := make(solana.AccountMetaSlice, len(ci.Accounts))
		for i, acc := range ci.Accounts {
			key, err := solana.PublicKeyFromBase58(acc.Address)
			if err != nil {
				return nil, domain.Categorize(domain.ErrorCategoryEncoding,
					fmt.Errorf("invalid account address %q: %w", acc.Address, err))
			}
			metas[i] = &solana.AccountMeta{
				PublicKey:  key,
				IsSigner:   acc.IsSigner,
				IsWritable: acc.IsWritable,
			}
		}

		instructions = append(instructions, solana.NewInstruction(program, metas, ci.Data))
	}
	return instructions, nil
}
