package wallet

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

// Identity is the keypair a wallet signs with, recoverable from its
// mnemonic phrase.
type Identity struct {
	PrivateKey *ecdsa.PrivateKey
	Address    common.Address
}

// GenerateMnemonic produces a fresh 24-word recovery phrase.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %v", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate mnemonic: %v", err)
	}
	return mnemonic, nil
}

// IdentityFromMnemonic derives the signing key deterministically from a
// recovery phrase. The same phrase and passphrase always yield the same
// address.
func IdentityFromMnemonic(mnemonic, passphrase string) (*Identity, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic phrase")
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	key, err := crypto.ToECDSA(crypto.Keccak256(seed))
	if err != nil {
		return nil, fmt.Errorf("failed to derive key from seed: %v", err)
	}
	return &Identity{
		PrivateKey: key,
		Address:    crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}
