package keygen

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"time"

	"golang.org/x/crypto/ssh"
)

// DeployKey is the public/private pair authenticating a lineage to its
// remote repository. The public half goes into the remote's deploy-key
// settings; the private half never leaves the root application record.
type DeployKey struct {
	PublicKey   string    `json:"publicKey"`
	PrivateKey  string    `json:"privateKey"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Generate creates a fresh ed25519 deploy key pair. The public key is in
// authorized_keys form, the private key in OpenSSH PEM form.
func Generate(comment string) (*DeployKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("convert public key: %w", err)
	}

	pemBlock, err := ssh.MarshalPrivateKey(priv, comment)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}

	return &DeployKey{
		PublicKey:   string(ssh.MarshalAuthorizedKey(sshPub)),
		PrivateKey:  string(pem.EncodeToMemory(pemBlock)),
		GeneratedAt: time.Now(),
	}, nil
}
