package signer

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/GoPolymarket/arena/internal/address"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
)

var ErrSignatureMismatch = errors.New("signature mismatch")

// Verify checks signature over msg for identity. EVM identities carry a 65-byte personal_sign
// signature in hex; native identities an ed25519 signature in base58.
func Verify(identity address.Address, msg []byte, signature string) error {
	if signature == "" {
		return fmt.Errorf("signature is required")
	}
	if identity.IsEVM() {
		return verifyEVM(identity, msg, signature)
	}
	return verifyEd25519(identity, msg, signature)
}

func verifyEVM(identity address.Address, msg []byte, signature string) error {
	rawSig, err := hexutil.Decode(signature)
	if err != nil {
		return fmt.Errorf("invalid signature encoding")
	}
	if len(rawSig) != crypto.SignatureLength {
		return fmt.Errorf("invalid signature length")
	}
	// Normalize V to 0/1 for recovery.
	if rawSig[64] >= 27 {
		rawSig[64] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(msg), rawSig)
	if err != nil {
		return fmt.Errorf("signature recovery failed")
	}
	if crypto.PubkeyToAddress(*pub) != identity.EVM() {
		return ErrSignatureMismatch
	}
	return nil
}

func verifyEd25519(identity address.Address, msg []byte, signature string) error {
	rawSig, err := base58.Decode(signature)
	if err != nil {
		return fmt.Errorf("invalid signature encoding")
	}
	if len(rawSig) != ed25519.SignatureSize {
		return fmt.Errorf("invalid signature length")
	}
	if !ed25519.Verify(ed25519.PublicKey(identity.Bytes()), msg, rawSig) {
		return ErrSignatureMismatch
	}
	return nil
}
