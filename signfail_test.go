package mldsa

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSignDeterministic checks that SignDeterministic is a pure function
// of (key, message, context) — repeated calls produce byte-identical
// signatures, matching the ACVP deterministic sigGen scenario (spec.md
// §8 S2).
func TestSignDeterministic(t *testing.T) {
	key, err := GenerateKey44(rand.Reader)
	require.NoError(t, err)

	message := []byte("deterministic message")
	sig1, err := key.SignDeterministic(message, nil)
	require.NoError(t, err)
	sig2, err := key.SignDeterministic(message, nil)
	require.NoError(t, err)

	require.True(t, bytes.Equal(sig1, sig2), "SignDeterministic is not deterministic")

	pk := key.PublicKey()
	require.True(t, pk.Verify(sig1, message, nil))
}

// TestSignDeterministicVsRandomized checks that a randomized signature
// and a deterministic signature over the same message generally differ
// (they use different rnd/rho' derivations) while both verify.
func TestSignDeterministicVsRandomized(t *testing.T) {
	key, err := GenerateKey65(rand.Reader)
	require.NoError(t, err)

	message := []byte("same message, different randomness")

	detSig, err := key.SignDeterministic(message, nil)
	require.NoError(t, err)

	randSig, err := key.SignWithContext(rand.Reader, message, nil)
	require.NoError(t, err)

	require.False(t, bytes.Equal(detSig, randSig),
		"deterministic and randomized signatures collided")

	pk := key.PublicKey()
	require.True(t, pk.Verify(detSig, message, nil))
	require.True(t, pk.Verify(randSig, message, nil))
}

// TestSignInternalExhaustion forces the rejection-sampling loop's
// iteration bound to zero via the unexported kappa-limit seam (spec.md
// §9 REDESIGN FLAG (ii)), verifying exhaustion reports ErrSignFailed
// rather than looping forever or panicking.
func TestSignInternalExhaustion(t *testing.T) {
	key, err := GenerateKey44(rand.Reader)
	require.NoError(t, err)

	mPrime, err := encodeMPrime(nil, []byte("forced exhaustion"))
	require.NoError(t, err)

	var rnd [32]byte
	sig, err := key.PrivateKey44.signInternalWithKappaLimit(rnd[:], mPrime, 0)
	require.ErrorIs(t, err, ErrSignFailed)
	require.Nil(t, sig)
}

func TestSignInternalExhaustion65(t *testing.T) {
	key, err := GenerateKey65(rand.Reader)
	require.NoError(t, err)

	mPrime, err := encodeMPrime(nil, []byte("forced exhaustion"))
	require.NoError(t, err)

	var rnd [32]byte
	sig, err := key.PrivateKey65.signInternalWithKappaLimit(rnd[:], mPrime, 0)
	require.ErrorIs(t, err, ErrSignFailed)
	require.Nil(t, sig)
}

func TestSignInternalExhaustion87(t *testing.T) {
	key, err := GenerateKey87(rand.Reader)
	require.NoError(t, err)

	mPrime, err := encodeMPrime(nil, []byte("forced exhaustion"))
	require.NoError(t, err)

	var rnd [32]byte
	sig, err := key.PrivateKey87.signInternalWithKappaLimit(rnd[:], mPrime, 0)
	require.ErrorIs(t, err, ErrSignFailed)
	require.Nil(t, sig)
}

// TestEncodeMPrimeRejectsLongContext checks the single length-prefix
// byte's 255-byte ceiling (spec.md §6).
func TestEncodeMPrimeRejectsLongContext(t *testing.T) {
	longContext := bytes.Repeat([]byte{0x42}, 256)
	_, err := encodeMPrime(longContext, []byte("msg"))
	require.Error(t, err)

	key, err := GenerateKey44(rand.Reader)
	require.NoError(t, err)
	_, err = key.SignWithContext(rand.Reader, []byte("msg"), longContext)
	require.Error(t, err)
}
