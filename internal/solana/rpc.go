package solana

import "context"

// ChainReader is the read-only chain capability consumed by the venue
// resolver and the trade engine. Timeouts are retryable, not fatal.
type ChainReader interface {
	// GetAccountInfo retrieves account info by public key.
	// Returns nil when the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetBalance retrieves the lamport balance of an account.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)

	// GetTokenBalance retrieves the raw token balance held by owner for mint,
	// summed across the owner's token accounts.
	GetTokenBalance(ctx context.Context, owner, mint string) (uint64, error)

	// GetLatestBlockhash retrieves a recent blockhash for transaction assembly.
	GetLatestBlockhash(ctx context.Context) (string, error)
}

// ChainWriter is the transaction submission capability.
type ChainWriter interface {
	// SendTransaction submits a signed, base64-encoded transaction and
	// returns its signature. A *RPCError means the chain refused the
	// transaction before inclusion; any other error is a transport failure
	// whose outcome is unknown to the caller.
	SendTransaction(ctx context.Context, txBase64 string) (string, error)

	// GetSignatureStatus retrieves the processing status of a signature.
	// Returns nil when the signature is unknown to the cluster.
	GetSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error)

	// GetTransaction retrieves a confirmed transaction with its meta.
	// Returns nil when not found.
	GetTransaction(ctx context.Context, signature string) (*TransactionResult, error)
}

// Client combines the read and write capabilities.
type Client interface {
	ChainReader
	ChainWriter
}
