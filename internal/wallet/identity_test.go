package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityFromMnemonicIsDeterministic(t *testing.T) {
	mnemonic, err := GenerateMnemonic()
	require.NoError(t, err)

	a, err := IdentityFromMnemonic(mnemonic, "")
	require.NoError(t, err)
	b, err := IdentityFromMnemonic(mnemonic, "")
	require.NoError(t, err)
	assert.Equal(t, a.Address, b.Address)

	c, err := IdentityFromMnemonic(mnemonic, "extra words")
	require.NoError(t, err)
	assert.NotEqual(t, a.Address, c.Address, "passphrase changes the derived account")
}

func TestIdentityFromMnemonicRejectsGarbage(t *testing.T) {
	_, err := IdentityFromMnemonic("definitely not a valid phrase", "")
	assert.Error(t, err)
}

func TestSecretRoundTrip(t *testing.T) {
	sealed := Encrypt("abandon ability able about", "hunter2")
	plain, err := Decrypt(sealed, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "abandon ability able about", plain)

	_, err = Decrypt(sealed, "wrong password")
	assert.Error(t, err)
}
