package compress

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressDecompress_RoundTripEmpty(t *testing.T) {
	compressed, err := Compress(nil)
	require.NoError(t, err)
	decompressed, err := Decompress(compressed)
	require.NoError(t, err)
	assert.Empty(t, decompressed)
}

func TestCompressDecompress_RoundTripSmallInput(t *testing.T) {
	input := []byte("project documentation and release notes")
	compressed, err := Compress(input)
	require.NoError(t, err)
	decompressed, err := Decompress(compressed)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(input, decompressed))
}

func TestCompressDecompress_RoundTripMultiBlockInput(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	input := make([]byte, BlockSize*3+1234)
	_, _ = r.Read(input)

	compressed, err := Compress(input)
	require.NoError(t, err)
	decompressed, err := Decompress(compressed)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(input, decompressed))
}

func TestCompressDecompress_RoundTripUpToTwoMiB(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	input := make([]byte, 2*1024*1024)
	_, _ = r.Read(input)

	compressed, err := Compress(input)
	require.NoError(t, err)
	decompressed, err := Decompress(compressed)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(input, decompressed))
}

func TestDecompress_RejectsBadMagic(t *testing.T) {
	_, err := Decompress([]byte{0, 0, 0, 0})
	assert.Error(t, err)
}

func TestDecompress_RejectsTruncatedHeader(t *testing.T) {
	_, err := Decompress([]byte{1, 2})
	assert.Error(t, err)
}
