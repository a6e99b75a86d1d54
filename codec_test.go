package mldsa

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// randBoundedRingElement returns a ring element with coefficients
// uniform in the signed range [-eta, eta], represented mod q.
func randBoundedRingElement(rng *rand.Rand, eta int) ringElement {
	var f ringElement
	for i := range f {
		v := rng.Intn(2*eta+1) - eta
		if v < 0 {
			f[i] = fieldElement(q + v)
		} else {
			f[i] = fieldElement(v)
		}
	}
	return f
}

func TestPackT1RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 8; trial++ {
		var f ringElement
		for i := range f {
			f[i] = fieldElement(rng.Intn(1 << 10))
		}
		got := unpackT1(packT1(f))
		require.Equal(t, f, got, "trial %d", trial)
	}
}

func TestPackT0RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for trial := 0; trial < 8; trial++ {
		f := randBoundedRingElement(rng, 1<<(d-1)-1)
		got := unpackT0(packT0(f))
		require.Equal(t, f, got, "trial %d", trial)
	}
}

func TestPackEta2RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 8; trial++ {
		f := randBoundedRingElement(rng, eta2)
		packed := packEta2(f)
		got, err := unpackEta2(packed)
		require.NoError(t, err)
		require.Equal(t, f, got, "trial %d", trial)
	}
}

func TestPackEta4RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	for trial := 0; trial < 8; trial++ {
		f := randBoundedRingElement(rng, eta4)
		packed := packEta4(f)
		got, err := unpackEta4(packed)
		require.NoError(t, err)
		require.Equal(t, f, got, "trial %d", trial)
	}
}

func TestPackZ17RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for trial := 0; trial < 8; trial++ {
		f := randBoundedRingElement(rng, gamma1Pow17-1)
		got := unpackZ17Sig(packZ17(f))
		require.Equal(t, f, got, "trial %d", trial)
	}
}

func TestPackZ19RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	for trial := 0; trial < 8; trial++ {
		f := randBoundedRingElement(rng, gamma1Pow19-1)
		got := unpackZ19Sig(packZ19(f))
		require.Equal(t, f, got, "trial %d", trial)
	}
}

func TestUnpackEta2RejectsOutOfRange(t *testing.T) {
	// A coefficient value of 5 or more per 3-bit group is invalid for eta=2.
	b := make([]byte, encodingSize3)
	b[0] = 0x05 // first 3-bit group = 5
	_, err := unpackEta2(b)
	require.Error(t, err)
}

func TestUnpackEta4RejectsOutOfRange(t *testing.T) {
	// A nibble value of 9 or more is invalid for eta=4.
	b := make([]byte, encodingSize4)
	b[0] = 0x09
	_, err := unpackEta4(b)
	require.Error(t, err)
}

func TestPackHintRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const k = k65
	const omega = omega55

	hints := make([]ringElement, k)
	total := 0
	for i := range hints {
		for j := 0; j < n && total < omega; j++ {
			if rng.Intn(4) == 0 {
				hints[i][j] = 1
				total++
			}
		}
	}

	packed := packHint(hints, omega)
	got := make([]ringElement, k)
	ok := unpackHint(packed, got, omega)
	require.True(t, ok)
	require.Equal(t, hints, got)
}

// TestPackHintRoundTripStructural is TestPackHintRoundTrip's structural
// counterpart: it compares the full []ringElement hint vector with
// cmp.Diff rather than testify's require.Equal, the way lattigo
// compares slice-valued parameter fields (rlwe.Parameters.Equal uses
// cmp.Equal on its qi/pi moduli slices).
func TestPackHintRoundTripStructural(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	const k = k44
	const omega = omega80

	hints := make([]ringElement, k)
	total := 0
	for i := range hints {
		for j := 0; j < n && total < omega; j++ {
			if rng.Intn(5) == 0 {
				hints[i][j] = 1
				total++
			}
		}
	}

	packed := packHint(hints, omega)
	got := make([]ringElement, k)
	ok := unpackHint(packed, got, omega)
	require.True(t, ok)

	if diff := cmp.Diff(hints, got); diff != "" {
		t.Fatalf("hint vector mismatch (-want +got):\n%s", diff)
	}
}

func TestUnpackHintRejectsNonMonotonicIndices(t *testing.T) {
	const k = k44
	const omega = omega80

	hints := make([]ringElement, k)
	hints[0][10] = 1
	hints[0][20] = 1
	packed := packHint(hints, omega)

	// Corrupt the encoding: swap the two index bytes so they are no
	// longer strictly increasing within the first polynomial's run.
	packed[0], packed[1] = packed[1], packed[0]

	got := make([]ringElement, k)
	ok := unpackHint(packed, got, omega)
	require.False(t, ok)
}
