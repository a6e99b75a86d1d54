// Package xof adapts golang.org/x/crypto/sha3's SHAKE implementations to
// the absorb/squeeze contract ML-DSA's samplers are specified against:
// a fresh state is seeded by one or more absorbs, then squeezed for an
// arbitrary number of output bytes.
package xof

import "golang.org/x/crypto/sha3"

// Security picks the SHAKE variant backing a State.
type Security int

const (
	// Security128 backs ExpandA (FIPS 204 uses SHAKE128 for it).
	Security128 Security = iota
	// Security256 backs every other absorb/squeeze context: ExpandS,
	// ExpandMask, SampleInBall, the rho/rho'/mu/tr/key derivations.
	Security256
)

// State is one absorb/squeeze context. A State must not be shared
// across goroutines; each concurrent caller constructs its own.
type State struct {
	h sha3.ShakeHash
}

// New returns a fresh State with nothing absorbed yet.
func New(sec Security) *State {
	if sec == Security128 {
		return &State{h: sha3.NewShake128()}
	}
	return &State{h: sha3.NewShake256()}
}

// Absorb writes each argument into the sponge in order. Safe to call
// repeatedly before the first Squeeze.
func (s *State) Absorb(chunks ...[]byte) *State {
	for _, c := range chunks {
		s.h.Write(c)
	}
	return s
}

// Reset clears the sponge so the State can be reused for an unrelated
// absorb/squeeze context, avoiding a fresh allocation. Equivalent to
// discarding s and calling New with the same security level.
func (s *State) Reset() {
	s.h.Reset()
}

// Squeeze reads exactly len(dst) bytes of output.
func (s *State) Squeeze(dst []byte) {
	s.h.Read(dst)
}

// Squeeze32 reads exactly 32 bytes, the size of rho, K, and ML-DSA-44's
// challenge seed c-tilde.
func (s *State) Squeeze32() (out [32]byte) {
	s.h.Read(out[:])
	return out
}

// Squeeze64 reads exactly 64 bytes, the size of rho', mu, and tr.
func (s *State) Squeeze64() (out [64]byte) {
	s.h.Read(out[:])
	return out
}

// Zero overwrites b with zeros. Used to scrub secret-dependent
// intermediates (rho', rnd) before a stack frame holding them returns.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
