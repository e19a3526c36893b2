// Package txbuilder assembles, signs, and submits swap transactions. The
// slippage bound travels into the instruction data, so the final output
// check happens on-chain where no client race can bypass it.
package txbuilder

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58"
)

// AccountMeta describes one account an instruction touches.
type AccountMeta struct {
	Pubkey   string
	Signer   bool
	Writable bool
}

// Instruction is one program invocation.
type Instruction struct {
	ProgramID string
	Accounts  []AccountMeta
	Data      []byte
}

// appendCompactU16 appends the Solana compact-u16 (shortvec) encoding of v.
func appendCompactU16(buf []byte, v int) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}

// messageAccounts is the ordered, deduplicated account table of a message.
type messageAccounts struct {
	keys []string

	numRequiredSignatures uint8
	numReadonlySigned     uint8
	numReadonlyUnsigned   uint8
}

// collectAccounts builds the account table: writable signers first (fee
// payer leads), then readonly signers, writable non-signers, readonly
// non-signers. Duplicate references merge with privileges OR-ed together.
func collectAccounts(feePayer string, instructions []Instruction) *messageAccounts {
	type privilege struct {
		signer   bool
		writable bool
	}

	order := []string{feePayer}
	privs := map[string]*privilege{feePayer: {signer: true, writable: true}}

	note := func(key string, signer, writable bool) {
		p, ok := privs[key]
		if !ok {
			order = append(order, key)
			privs[key] = &privilege{signer: signer, writable: writable}
			return
		}
		p.signer = p.signer || signer
		p.writable = p.writable || writable
	}

	for _, ins := range instructions {
		for _, acc := range ins.Accounts {
			note(acc.Pubkey, acc.Signer, acc.Writable)
		}
		note(ins.ProgramID, false, false)
	}

	var writableSigners, readonlySigners, writableOthers, readonlyOthers []string
	for _, key := range order {
		p := privs[key]
		switch {
		case p.signer && p.writable:
			writableSigners = append(writableSigners, key)
		case p.signer:
			readonlySigners = append(readonlySigners, key)
		case p.writable:
			writableOthers = append(writableOthers, key)
		default:
			readonlyOthers = append(readonlyOthers, key)
		}
	}

	keys := make([]string, 0, len(order))
	keys = append(keys, writableSigners...)
	keys = append(keys, readonlySigners...)
	keys = append(keys, writableOthers...)
	keys = append(keys, readonlyOthers...)

	return &messageAccounts{
		keys:                  keys,
		numRequiredSignatures: uint8(len(writableSigners) + len(readonlySigners)),
		numReadonlySigned:     uint8(len(readonlySigners)),
		numReadonlyUnsigned:   uint8(len(readonlyOthers)),
	}
}

func (m *messageAccounts) indexOf(key string) (uint8, error) {
	for i, k := range m.keys {
		if k == key {
			return uint8(i), nil
		}
	}
	return 0, fmt.Errorf("account %s not in message", key)
}

// serializeMessage produces the legacy transaction message bytes.
func serializeMessage(feePayer, blockhash string, instructions []Instruction) ([]byte, error) {
	accounts := collectAccounts(feePayer, instructions)

	var buf bytes.Buffer
	buf.WriteByte(accounts.numRequiredSignatures)
	buf.WriteByte(accounts.numReadonlySigned)
	buf.WriteByte(accounts.numReadonlyUnsigned)

	buf.Write(appendCompactU16(nil, len(accounts.keys)))
	for _, key := range accounts.keys {
		raw, err := base58.Decode(key)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("bad account key %q", key)
		}
		buf.Write(raw)
	}

	hashRaw, err := base58.Decode(blockhash)
	if err != nil || len(hashRaw) != 32 {
		return nil, fmt.Errorf("bad blockhash %q", blockhash)
	}
	buf.Write(hashRaw)

	buf.Write(appendCompactU16(nil, len(instructions)))
	for _, ins := range instructions {
		programIdx, err := accounts.indexOf(ins.ProgramID)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(programIdx)

		buf.Write(appendCompactU16(nil, len(ins.Accounts)))
		for _, acc := range ins.Accounts {
			idx, err := accounts.indexOf(acc.Pubkey)
			if err != nil {
				return nil, err
			}
			buf.WriteByte(idx)
		}

		buf.Write(appendCompactU16(nil, len(ins.Data)))
		buf.Write(ins.Data)
	}

	return buf.Bytes(), nil
}

// serializeTransaction wraps a serialized message with its signatures.
func serializeTransaction(signatures [][]byte, message []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(appendCompactU16(nil, len(signatures)))
	for _, sig := range signatures {
		if len(sig) != 64 {
			return nil, fmt.Errorf("signature length %d, want 64", len(sig))
		}
		buf.Write(sig)
	}
	buf.Write(message)
	return buf.Bytes(), nil
}
