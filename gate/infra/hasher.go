package infra

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"reading-gate/gate/domain"
)

// KeyedHasher deriva chaves de contador/dedup com BLAKE2b-256 chaveado.
// Sem o segredo não dá para reverter IP/email a partir das chaves do store.
type KeyedHasher struct {
	key []byte
}

// Propósitos das subchaves derivadas do segredo da aplicação.
const (
	PurposeSigning   = "gate/jwt-signing"
	PurposeStoreKeys = "gate/store-keys"
)

func NewKeyedHasher(secret []byte) *KeyedHasher {
	return &KeyedHasher{key: blake2bKey(secret)}
}

// DeriveKey devolve uma subchave de 32 bytes do segredo para um propósito.
// Propósitos diferentes dão chaves independentes.
func DeriveKey(secret []byte, purpose string) []byte {
	m, err := blake2b.New256(blake2bKey(secret))
	if err != nil {
		panic(err)
	}
	_, _ = m.Write([]byte(purpose))
	return m.Sum(nil)
}

// blake2bKey encurta segredos maiores que o limite de chave do BLAKE2b.
func blake2bKey(secret []byte) []byte {
	if len(secret) > blake2b.Size {
		sum := blake2b.Sum256(secret)
		return sum[:]
	}
	return secret
}

func (h *KeyedHasher) Sum(value string) string {
	m, err := blake2b.New256(h.key)
	if err != nil {
		// só acontece com chave > 64 bytes, já tratado no construtor
		panic(err)
	}
	_, _ = m.Write([]byte(value))
	return hex.EncodeToString(m.Sum(nil))
}

var _ domain.Hasher = (*KeyedHasher)(nil)
