// Package sig provides the process-wide signature context: a keystore
// mapping owner fingerprint to public (and optionally private) keys, and the
// sign/verify operations every manifest envelope goes through.
//
// Keys are libtrust.PublicKey/PrivateKey values, the same types the
// teacher's manifest/schema1 package signs Docker manifests with
// (github.com/docker/libtrust wraps JWS/JWK over EC and RSA keys) — here
// they sign Wildland manifest bodies instead of image manifests.
package sig

import (
	"fmt"
	"strings"
	"sync"

	"github.com/docker/libtrust"

	"github.com/wildland-go/wildland/errcode"
)

// Owner is a fingerprint: a stable identifier for a user, derived from their
// primary public key.
type Owner string

const dummyPrefix = "dummy."

// Signature is an opaque detached signature over a manifest body.
type Signature string

type keyEntry struct {
	primary    libtrust.PublicKey
	additional []libtrust.PublicKey
	private    libtrust.PrivateKey
}

// Context is a process-wide (or per-Client-clone) keystore. The zero value
// is not usable; construct with NewContext.
type Context struct {
	mu      sync.RWMutex
	keys    map[Owner]*keyEntry
	dummy   bool
}

// NewContext returns an empty signature context. If dummy is true, Sign and
// Verify operate in test mode: signatures are the literal string
// "dummy.<owner>" rather than real cryptographic signatures, matching the
// dummy sig context the original implementation uses in its test suite.
func NewContext(dummy bool) *Context {
	return &Context{keys: make(map[Owner]*keyEntry), dummy: dummy}
}

// Clone returns a shallow copy of the context sharing no mutable state with
// the original; used by client.Client.SubClientWithKey when the resolver
// crosses a bridge and needs to additionally trust the bridge target's key
// without mutating the caller's context.
func (c *Context) Clone() *Context {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := NewContext(c.dummy)
	for owner, entry := range c.keys {
		cp := *entry
		cp.additional = append([]libtrust.PublicKey(nil), entry.additional...)
		clone.keys[owner] = &cp
	}
	return clone
}

// Fingerprint deterministically derives an Owner from a public key.
func Fingerprint(pubkey libtrust.PublicKey) Owner {
	return Owner("0x" + pubkey.KeyID())
}

// FingerprintFromPEM parses a PEM-encoded public key and derives its
// fingerprint, used when a bridge manifest names its target by raw pubkey
// rather than by an already-known Owner.
func FingerprintFromPEM(pubkeyPEM string) (Owner, error) {
	pub, err := libtrust.UnmarshalPublicKeyPEM([]byte(pubkeyPEM))
	if err != nil {
		return "", errcode.ErrorCodeSignatureError.WithArgs(err.Error()).WithWrapped(err)
	}
	return Fingerprint(pub), nil
}

// AddKeyPair registers an owner's primary key pair, making Sign available
// for that owner.
func (c *Context) AddKeyPair(owner Owner, priv libtrust.PrivateKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.keys[owner]
	if !ok {
		entry = &keyEntry{}
		c.keys[owner] = entry
	}
	entry.primary = priv.PublicKey()
	entry.private = priv
}

// LoadPubkey adds an additional public key to an owner's set, as happens
// when a manifest declares additional pubkeys for key rotation/delegation.
func (c *Context) LoadPubkey(owner Owner, pubkey libtrust.PublicKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.keys[owner]
	if !ok {
		entry = &keyEntry{primary: pubkey}
		c.keys[owner] = entry
		return
	}
	if entry.primary == nil {
		entry.primary = pubkey
		return
	}
	if entry.primary.KeyID() == pubkey.KeyID() {
		return
	}
	for _, k := range entry.additional {
		if k.KeyID() == pubkey.KeyID() {
			return
		}
	}
	entry.additional = append(entry.additional, pubkey)
}

// Sign signs body with owner's private key. Fails with SignatureError if no
// private key is registered.
//
// primaryOnly restricts signing to the primary key, the constraint user
// manifests are signed under so a user's stable identity can't silently
// shift to a secondary key.
func (c *Context) Sign(owner Owner, body []byte, primaryOnly bool) (Signature, error) {
	if c.dummy {
		return Signature(dummyPrefix + string(owner)), nil
	}

	c.mu.RLock()
	entry, ok := c.keys[owner]
	c.mu.RUnlock()
	if !ok || entry.private == nil {
		return "", fmt.Errorf("sig: no private key for owner %s: %w", owner, errcode.ErrorCodeSignatureError.WithArgs("no private key"))
	}
	_ = primaryOnly // the primary key is the only one ever loaded as private today

	js, err := libtrust.NewJSONSignature(body)
	if err != nil {
		return "", errcode.ErrorCodeSignatureError.WithArgs(err.Error()).WithWrapped(err)
	}
	if err := js.Sign(entry.private); err != nil {
		return "", errcode.ErrorCodeSignatureError.WithArgs(err.Error()).WithWrapped(err)
	}
	pretty, err := js.PrettySignature("signatures")
	if err != nil {
		return "", errcode.ErrorCodeSignatureError.WithArgs(err.Error()).WithWrapped(err)
	}
	return Signature(pretty), nil
}

// Verify checks signature against body, returning the owner the signing key
// is registered to; the key itself is not returned. If expectedOwner is
// non-empty, the key must be registered to that owner, or verification fails
// with UntrustedSigner.
func (c *Context) Verify(signature Signature, body []byte, expectedOwner Owner) (Owner, error) {
	if c.dummy {
		s := string(signature)
		if !strings.HasPrefix(s, dummyPrefix) {
			return "", errcode.ErrorCodeSignatureError.WithArgs("not a dummy signature")
		}
		owner := Owner(strings.TrimPrefix(s, dummyPrefix))
		if expectedOwner != "" && owner != expectedOwner {
			return "", errcode.ErrorCodeUntrustedSigner.WithArgs(string(owner))
		}
		return owner, nil
	}

	jsig, err := libtrust.ParsePrettySignature([]byte(signature), "signatures")
	if err != nil {
		return "", errcode.ErrorCodeSignatureError.WithArgs(err.Error()).WithWrapped(err)
	}
	payload, err := jsig.Payload()
	if err != nil {
		return "", errcode.ErrorCodeSignatureError.WithArgs(err.Error()).WithWrapped(err)
	}
	if string(payload) != string(body) {
		return "", errcode.ErrorCodeSignatureError.WithArgs("payload does not match body")
	}
	keys, err := jsig.Verify()
	if err != nil {
		return "", errcode.ErrorCodeSignatureError.WithArgs(err.Error()).WithWrapped(err)
	}
	if len(keys) == 0 {
		return "", errcode.ErrorCodeSignatureError.WithArgs("no signing keys")
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, key := range keys {
		if owner, ok := c.ownerForKeyLocked(key); ok {
			if expectedOwner != "" && owner != expectedOwner {
				continue
			}
			return owner, nil
		}
	}
	if expectedOwner != "" {
		return "", errcode.ErrorCodeUntrustedSigner.WithArgs(string(expectedOwner))
	}
	return "", errcode.ErrorCodeSignatureError.WithArgs("signing key not registered to any known owner")
}

func (c *Context) ownerForKeyLocked(key libtrust.PublicKey) (Owner, bool) {
	for owner, entry := range c.keys {
		if entry.primary != nil && entry.primary.KeyID() == key.KeyID() {
			return owner, true
		}
		for _, k := range entry.additional {
			if k.KeyID() == key.KeyID() {
				return owner, true
			}
		}
	}
	return "", false
}

// HasPrivateKey reports whether owner has a signing key loaded.
func (c *Context) HasPrivateKey(owner Owner) bool {
	if c.dummy {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.keys[owner]
	return ok && entry.private != nil
}

// KnowsOwner reports whether any key is registered for owner.
func (c *Context) KnowsOwner(owner Owner) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.keys[owner]
	return ok
}
