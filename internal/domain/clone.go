package domain

// CloningTarget is the minimal description of the matched swap instruction
// to reconstruct for a different signer: the original program id, the
// ordered account list with role flags, and the raw payload. Extracted from
// the TransactionEvent at classification time; immutable.
type CloningTarget struct {
	ProgramID  string
	Accounts   []AccountMeta
	RawPayload []byte
}

// ClonedInstruction is one reconstructed instruction ready for assembly
// into a transaction.
type ClonedInstruction struct {
	ProgramID string
	Accounts  []AccountMeta
	Data      []byte
}

// ClonedInstructionSet is the reconstruction output: account-creation
// instructions (if any) followed by the swap instruction, in an order that
// must not be changed. Newly allocated per reconstruction and owned by
// the caller.
type ClonedInstructionSet struct {
	Instructions []ClonedInstruction

	Platform          Venue
	ScaledInputAmount uint64
	MinOutputAmount   uint64
	AppliedSlippage   int // basis points
}
