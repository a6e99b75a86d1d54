package mldsa

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPower2RoundLaw checks the defining property of Algorithm 35:
// r == r1*2^d + r0 (mod q), with r0 in the centered range (-2^(d-1), 2^(d-1)].
func TestPower2RoundLaw(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	for trial := 0; trial < 64; trial++ {
		r := fieldElement(rng.Intn(q))
		r1, r0 := power2Round(r)

		recon := fieldAdd(fieldElement(uint32(r1)<<d%q), r0)
		require.Equal(t, r, recon, "trial %d: r=%d r1=%d r0=%d", trial, r, r1, r0)

		signed := int32(r0)
		if uint32(r0) > qMinus1Div2 {
			signed = int32(r0) - q
		}
		require.True(t, signed > -(1<<(d-1)) && signed <= (1<<(d-1)),
			"trial %d: r0=%d out of centered range", trial, r0)
	}
}

// TestDecomposeLaw checks Algorithm 36/37/38's defining property:
// r == r1*2*gamma2 + r0 (mod q) for both gamma2 values.
func TestDecomposeLaw(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for _, gamma2 := range []uint32{gamma2QMinus1Div32, gamma2QMinus1Div88} {
		for trial := 0; trial < 64; trial++ {
			r := fieldElement(rng.Intn(q))
			r1, r0 := decompose(r, gamma2)

			recon := int64(r1)*int64(gamma2)*2 + int64(r0)
			recon %= q
			if recon < 0 {
				recon += q
			}
			require.EqualValues(t, r, recon,
				"gamma2=%d trial %d: r=%d r1=%d r0=%d", gamma2, trial, r, r1, r0)
		}
	}
}

// TestHintRoundTrip checks Algorithm 39/40's defining property: when z is
// small relative to gamma2, UseHint(MakeHint(z, r), r) recovers
// HighBits(r+z).
func TestHintRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	for _, gamma2 := range []uint32{gamma2QMinus1Div32, gamma2QMinus1Div88} {
		for trial := 0; trial < 64; trial++ {
			r := fieldElement(rng.Intn(q))
			z := fieldElement(rng.Intn(int(gamma2)))

			hint := makeHint(z, r, gamma2)
			got := useHint(hint, r, gamma2)

			rPlusZ := fieldAdd(r, z)
			want, _ := decompose(rPlusZ, gamma2)

			require.EqualValues(t, want, got,
				"gamma2=%d trial %d: r=%d z=%d hint=%d", gamma2, trial, r, z, hint)
		}
	}
}

func TestCountOnes(t *testing.T) {
	var hints [k65]ringElement
	hints[0][0] = 1
	hints[0][5] = 1
	hints[2][100] = 1
	require.Equal(t, 3, countOnes(hints[:]))
}

func TestInfinityNorm(t *testing.T) {
	require.EqualValues(t, 0, infinityNorm(0))
	require.EqualValues(t, 1, infinityNorm(1))
	require.EqualValues(t, 1, infinityNorm(q-1))
	require.EqualValues(t, qMinus1Div2, infinityNorm(qMinus1Div2))
}
