package commitment

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func leaves(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = digest(fmt.Sprintf("leaf-%d", i))
	}
	return out
}

func TestBuild_EveryProofVerifies(t *testing.T) {
	for n := 1; n <= 17; n++ {
		tree, err := Build(leaves(n))
		require.NoError(t, err)
		require.Equal(t, n, tree.Len())
		root := tree.Root()
		require.NotEmpty(t, root)

		for i := 0; i < n; i++ {
			leaf, err := tree.Leaf(i)
			require.NoError(t, err)
			proof, err := tree.Proof(i)
			require.NoError(t, err)
			assert.True(t, Verify(leaf, proof, i, root), "n=%d i=%d", n, i)
		}
	}
}

func TestBuild_OddTrailingHashCarriedUp(t *testing.T) {
	in := leaves(3)
	tree, err := Build(in)
	require.NoError(t, err)

	left, err := hashPair(in[0], in[1])
	require.NoError(t, err)
	want, err := hashPair(left, in[2])
	require.NoError(t, err)
	assert.Equal(t, want, tree.Root())

	proof, err := tree.Proof(2)
	require.NoError(t, err)
	assert.Equal(t, []string{left}, proof)
}

func TestBuild_SingleLeafIsRoot(t *testing.T) {
	in := leaves(1)
	tree, err := Build(in)
	require.NoError(t, err)
	assert.Equal(t, in[0], tree.Root())

	proof, err := tree.Proof(0)
	require.NoError(t, err)
	assert.Empty(t, proof)
	assert.True(t, Verify(in[0], proof, 0, tree.Root()))
}

func TestBuild_ZeroLeavesMeansNoCommitment(t *testing.T) {
	tree, err := Build(nil)
	require.NoError(t, err)
	assert.True(t, tree.Empty())
	assert.Equal(t, "", tree.Root())

	_, err = tree.Proof(0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.False(t, Verify(digest("x"), nil, 0, ""))
}

func TestHashPair_OrderIndependent(t *testing.T) {
	a, b := digest("a"), digest("b")
	ab, err := hashPair(a, b)
	require.NoError(t, err)
	ba, err := hashPair(b, a)
	require.NoError(t, err)
	assert.Equal(t, ab, ba)
}

func TestVerify_RejectsTamperedLeafAndProof(t *testing.T) {
	in := leaves(6)
	tree, err := Build(in)
	require.NoError(t, err)

	proof, err := tree.Proof(4)
	require.NoError(t, err)
	assert.False(t, Verify(digest("forged"), proof, 4, tree.Root()))

	tampered := append([]string(nil), proof...)
	tampered[0] = digest("other")
	assert.False(t, Verify(in[4], tampered, 4, tree.Root()))
	assert.False(t, Verify(in[4], proof, -1, tree.Root()))
	assert.False(t, Verify(in[4], proof[:len(proof)-1], 4, tree.Root()))
}

func TestBuild_RejectsMalformedLeaves(t *testing.T) {
	_, err := Build([]string{"not-a-hash"})
	assert.ErrorIs(t, err, ErrInvalidLeaf)

	_, err = Build([]string{strings.ToUpper(digest("a"))})
	assert.ErrorIs(t, err, ErrInvalidLeaf)
}

func TestProofs_MatchPerIndexProof(t *testing.T) {
	tree, err := Build(leaves(5))
	require.NoError(t, err)

	all := tree.Proofs()
	require.Len(t, all, 5)
	for i := range all {
		proof, err := tree.Proof(i)
		require.NoError(t, err)
		assert.Equal(t, proof, all[i])
	}
}
