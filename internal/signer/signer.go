package signer

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/GoPolymarket/arena/internal/address"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
)

// Signer produces request signatures for one identity.
type Signer interface {
	Identity() address.Address
	Sign(msg []byte) (string, error)
}

// EVMSigner signs with a secp256k1 key using personal_sign (EIP-191).
type EVMSigner struct {
	key      *ecdsa.PrivateKey
	identity address.Address
}

func NewEVMSigner(privateKeyHex string) (*EVMSigner, error) {
	if privateKeyHex == "" {
		return nil, fmt.Errorf("private key is required")
	}
	if len(privateKeyHex) > 1 && privateKeyHex[:2] == "0x" {
		privateKeyHex = privateKeyHex[2:]
	}
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %v", err)
	}
	return &EVMSigner{
		key:      key,
		identity: address.FromEVM(crypto.PubkeyToAddress(key.PublicKey)),
	}, nil
}

func (s *EVMSigner) Identity() address.Address {
	return s.identity
}

func (s *EVMSigner) Sign(msg []byte) (string, error) {
	signature, err := crypto.Sign(accounts.TextHash(msg), s.key)
	if err != nil {
		return "", err
	}
	// wallets emit V as 27/28
	if signature[64] < 27 {
		signature[64] += 27
	}
	return hexutil.Encode(signature), nil
}

// Ed25519Signer signs with a native ed25519 keypair; the public key is the identity.
type Ed25519Signer struct {
	key      ed25519.PrivateKey
	identity address.Address
}

func NewEd25519Signer(key ed25519.PrivateKey) (*Ed25519Signer, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid ed25519 key length %d", len(key))
	}
	var id address.Address
	copy(id[:], key.Public().(ed25519.PublicKey))
	return &Ed25519Signer{key: key, identity: id}, nil
}

// NewEd25519SignerFromBase58 accepts a 64-byte keypair in base58, as wallet exports print it.
func NewEd25519SignerFromBase58(encoded string) (*Ed25519Signer, error) {
	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid keypair encoding: %w", err)
	}
	return NewEd25519Signer(ed25519.PrivateKey(raw))
}

func GenerateEd25519Signer() (*Ed25519Signer, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return NewEd25519Signer(key)
}

func (s *Ed25519Signer) Identity() address.Address {
	return s.identity
}

func (s *Ed25519Signer) Sign(msg []byte) (string, error) {
	return base58.Encode(ed25519.Sign(s.key, msg)), nil
}

func (s *Ed25519Signer) KeypairBase58() string {
	return base58.Encode(s.key)
}

// SignRequest returns the auth headers for one request.
func SignRequest(s Signer, method, path string, body []byte, now time.Time) (map[string]string, error) {
	ts := FormatTimestamp(now)
	sig, err := s.Sign(CanonicalMessage(method, path, ts, body))
	if err != nil {
		return nil, err
	}
	return map[string]string{
		HeaderIdentity:  s.Identity().String(),
		HeaderTimestamp: ts,
		HeaderSignature: sig,
	}, nil
}
