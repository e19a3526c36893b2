package solana

import "strconv"

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64
	Owner      string
	Data       string // base64 encoded
	Executable bool
	RentEpoch  uint64
}

// SignatureStatus is the cluster's view of a submitted signature.
type SignatureStatus struct {
	Slot               uint64
	Confirmations      *uint64
	ConfirmationStatus string // "processed" | "confirmed" | "finalized"
	Err                interface{}
}

// Failed reports whether the transaction was included but errored on-chain.
func (s *SignatureStatus) Failed() bool {
	return s != nil && s.Err != nil
}

// Confirmed reports whether the transaction reached at least confirmed
// commitment without an error.
func (s *SignatureStatus) Confirmed() bool {
	if s == nil || s.Err != nil {
		return false
	}
	return s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized"
}

// TransactionResult is a confirmed transaction with the meta needed to
// reconcile realized amounts.
type TransactionResult struct {
	Slot      int64
	Signature string
	BlockTime int64 // unix seconds
	Meta      *TransactionMeta
}

// TransactionMeta carries balance movements for the transaction.
type TransactionMeta struct {
	Err               interface{}
	LogMessages       []string
	PreBalances       []uint64
	PostBalances      []uint64
	AccountKeys       []string
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
}

// TokenBalance is one entry of pre/postTokenBalances.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	Amount       string // raw amount as decimal string
}

// amountValue parses the raw token amount, tolerating malformed entries.
func (b TokenBalance) amountValue() uint64 {
	v, err := strconv.ParseUint(b.Amount, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// TokenDelta returns the signed change in owner's balance of mint.
func (m *TransactionMeta) TokenDelta(owner, mint string) int64 {
	if m == nil {
		return 0
	}
	var pre, post uint64
	for _, b := range m.PreTokenBalances {
		if b.Owner == owner && b.Mint == mint {
			pre += b.amountValue()
		}
	}
	for _, b := range m.PostTokenBalances {
		if b.Owner == owner && b.Mint == mint {
			post += b.amountValue()
		}
	}
	return int64(post) - int64(pre)
}

// LamportsDelta returns the signed change in owner's lamport balance.
func (m *TransactionMeta) LamportsDelta(owner string) int64 {
	if m == nil {
		return 0
	}
	for i, key := range m.AccountKeys {
		if key != owner {
			continue
		}
		if i < len(m.PreBalances) && i < len(m.PostBalances) {
			return int64(m.PostBalances[i]) - int64(m.PreBalances[i])
		}
	}
	return 0
}
