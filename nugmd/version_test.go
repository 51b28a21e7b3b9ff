package nugmd

import (
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tcs := []struct {
		in  string
		out string
	}{
		{"1.0", "1.0"},
		{"01.02.03.00", "1.2.3"},
		{"1.0.0.0", "1.0.0"},
		{"1.0.0.5", "1.0.0.5"},
		{"1.0.0", "1.0.0"},
		{"1.0.0-beta.1", "1.0.0-beta.1"},
		{"1.0.0+build.123", "1.0.0"},
		{"1.0.0-beta+build.123", "1.0.0-beta"},
		{"00.00", "0.0"},
		{"007.0.0100", "7.0.100"},
		{"1.2.0.0000", "1.2.0"},
		{"1.2.3.0-rc-1", "1.2.3-rc-1"},
		{"1.2-a.b-c.d+m.n", "1.2-a.b-c.d"},
	}
	for _, tc := range tcs {
		out, err := Normalize(tc.in)
		require.NoError(t, err, "input %q", tc.in)
		require.Equal(t, tc.out, out, "input %q", tc.in)
	}
}

func TestNormalizeMalformed(t *testing.T) {
	for _, x := range []string{
		"",
		"abc",
		"1",
		"1.",
		"1.a",
		".1.2",
		"1.2.3.4.5",
		"1.2..4",
		"1.2.3-",
		"1.2.3+",
		"1.2.3-beta..1",
		"1.2.3-be_ta",
		"1.2.3+m+n",
		" 1.2.3",
		"1.2.3 ",
		"v1.2.3",
		"-1.2.3",
	} {
		_, err := Normalize(x)
		require.Error(t, err, "input %q", x)
		var pe *ParseError
		require.ErrorAs(t, err, &pe, "input %q", x)
		require.Equal(t, x, pe.Raw)
	}
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("01.2.003.04-beta.1+build.5")
	require.NoError(t, err)
	require.Equal(t, Version{
		Major:    "01",
		Minor:    "2",
		Patch:    "003",
		Revision: "04",
		Label:    "beta.1",
		Metadata: "build.5",
	}, v)

	v, err = ParseVersion("3.14")
	require.NoError(t, err)
	require.Equal(t, Version{Major: "3", Minor: "14"}, v)
	require.Empty(t, v.Patch)
	require.Empty(t, v.Revision)
}

// Digit components are kept as text, so there is no integer width limit.
func TestParseVersionWide(t *testing.T) {
	major := strings.Repeat("9", 40)
	out, err := Normalize(major + ".0001.2")
	require.NoError(t, err)
	require.Equal(t, major+".1.2", out)
}

func TestNormalizeIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(0))
	for i := 0; i < 1000; i++ {
		raw, v := genVersion(rng)
		n1, err := Normalize(raw)
		require.NoError(t, err, "input %q", raw)
		n2, err := Normalize(n1)
		require.NoError(t, err, "normalized %q of %q", n1, raw)
		require.Equal(t, n1, n2, "input %q", raw)

		require.NotContains(t, n1, "+", "input %q", raw)
		if v.Label != "" {
			require.True(t, strings.HasSuffix(n1, "-"+v.Label), "input %q -> %q", raw, n1)
		} else {
			require.NotContains(t, n1, "-", "input %q", raw)
		}
		numeric := strings.SplitN(strings.SplitN(n1, "-", 2)[0], ".", 5)
		for _, d := range numeric {
			if len(d) > 1 {
				require.NotEqual(t, byte('0'), d[0], "input %q -> %q", raw, n1)
			}
		}
	}
}

func genVersion(rng *rand.Rand) (string, Version) {
	digits := func() string {
		x := strconv.Itoa(rng.Intn(20))
		// random leading zeros
		return strings.Repeat("0", rng.Intn(3)) + x
	}
	v := Version{Major: digits(), Minor: digits()}
	if rng.Intn(2) == 0 {
		v.Patch = digits()
		if rng.Intn(2) == 0 {
			v.Revision = digits()
		}
	}
	if rng.Intn(2) == 0 {
		v.Label = []string{"alpha", "beta.1", "rc-2", "0"}[rng.Intn(4)]
	}
	if rng.Intn(2) == 0 {
		v.Metadata = []string{"build", "build.123", "sha-abc"}[rng.Intn(3)]
	}
	raw := v.Major + "." + v.Minor
	if v.Patch != "" {
		raw += "." + v.Patch
	}
	if v.Revision != "" {
		raw += "." + v.Revision
	}
	if v.Label != "" {
		raw += "-" + v.Label
	}
	if v.Metadata != "" {
		raw += "+" + v.Metadata
	}
	return raw, v
}
