package keygen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestGenerate(t *testing.T) {
	key, err := Generate("deploy@gitsync")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key.PublicKey, "ssh-ed25519 "))
	assert.Contains(t, key.PrivateKey, "OPENSSH PRIVATE KEY")
	assert.False(t, key.GeneratedAt.IsZero())

	// Both halves parse and belong to the same pair.
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key.PublicKey))
	require.NoError(t, err)

	signer, err := ssh.ParsePrivateKey([]byte(key.PrivateKey))
	require.NoError(t, err)
	assert.Equal(t, string(pub.Marshal()), string(signer.PublicKey().Marshal()))
}

func TestGenerate_PairsAreUnique(t *testing.T) {
	a, err := Generate("a")
	require.NoError(t, err)
	b, err := Generate("b")
	require.NoError(t, err)

	assert.NotEqual(t, a.PublicKey, b.PublicKey)
}
