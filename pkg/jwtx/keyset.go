package jwtx

import (
	"crypto/ed25519"
	"errors"
	"fmt"
)

var ErrNoKey = errors.New("jwtx: key not found")

// KeySet is the published, read-only set of verification keys for one
// token kind. It never changes after construction so lookups need no lock.
type KeySet struct {
	order []JWK
	byKid map[string]ed25519.PublicKey
}

func newKeySet(keys ...JWK) (*KeySet, error) {
	ks := &KeySet{byKid: make(map[string]ed25519.PublicKey, len(keys))}
	for _, k := range keys {
		pub, err := k.PublicKey()
		if err != nil {
			return nil, fmt.Errorf("jwtx: key %q: %w", k.Kid, err)
		}
		if _, dup := ks.byKid[k.Kid]; dup {
			return nil, fmt.Errorf("jwtx: duplicate kid %q", k.Kid)
		}
		ks.byKid[k.Kid] = pub
		ks.order = append(ks.order, k)
	}
	return ks, nil
}

func (k *KeySet) lookup(kid string) (ed25519.PublicKey, error) {
	if pub, ok := k.byKid[kid]; ok {
		return pub, nil
	}
	return nil, ErrNoKey
}

// PublicJWKS returns a copy that callers may serialise or modify freely.
func (k *KeySet) PublicJWKS() JWKS {
	return JWKS{Keys: append([]JWK(nil), k.order...)}
}

// IsReady reports whether any key is loaded.
func (k *KeySet) IsReady() bool {
	return k != nil && len(k.byKid) > 0
}
