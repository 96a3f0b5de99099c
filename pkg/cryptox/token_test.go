package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantLen int
	}{
		{"128-bit token", TokenSize128, 22},
		{"256-bit token", TokenSize256, 43},
		{"512-bit token", TokenSize512, 86},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := GenerateToken(tt.size)
			require.NoError(t, err)
			require.Len(t, token, tt.wantLen)

			other, err := GenerateToken(tt.size)
			require.NoError(t, err)
			require.NotEqual(t, token, other)
		})
	}
}

func TestGenerateToken_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		token, err := GenerateToken(size)
		require.Error(t, err)
		require.Empty(t, token)
	}
	require.Panics(t, func() { MustGenerateToken(0) })
}

func TestFingerprintToken(t *testing.T) {
	// sha256("abc")
	require.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		FingerprintToken("abc"),
	)

	require.Equal(t, FingerprintToken("t1"), FingerprintToken("t1"))
	require.NotEqual(t, FingerprintToken("t1"), FingerprintToken("t2"))
}

func TestEqual(t *testing.T) {
	require.True(t, Equal("abc", "abc"))
	require.False(t, Equal("abc", "abd"))
	require.False(t, Equal("abc", "abcd"))
}

func TestGenerateUserCode(t *testing.T) {
	seen := map[string]struct{}{}
	for range 200 {
		code, err := GenerateUserCode()
		require.NoError(t, err)
		require.Len(t, code, UserCodeLength)
		for _, r := range code {
			require.True(t, strings.ContainsRune(UserCodeAlphabet, r), "unexpected %q", r)
		}
		require.NotContains(t, code, "0")
		require.NotContains(t, code, "O")
		require.NotContains(t, code, "I")
		require.NotContains(t, code, "1")
		seen[code] = struct{}{}
	}
	require.Greater(t, len(seen), 190)
}

func TestNormalizeUserCode(t *testing.T) {
	require.Equal(t, "WDJBMJHT", NormalizeUserCode("wdjb-mjht"))
	require.Equal(t, "WDJBMJHT", NormalizeUserCode(" WDJB MJHT "))
	require.Equal(t, "WDJB-MJHT", FormatUserCode("WDJBMJHT"))
}
