package audit

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/pkg/platform/sentinel"
)

func TestBuildMerkleTree_Shape(t *testing.T) {
	tests := []struct {
		leaves int
		total  int // flattened node count across all levels
	}{
		{1, 1},
		{2, 3},
		{3, 6},  // 3 + 2 + 1
		{4, 7},  // 4 + 2 + 1
		{5, 11}, // 5 + 3 + 2 + 1
		{8, 15}, // 8 + 4 + 2 + 1
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d leaves", tt.leaves), func(t *testing.T) {
			leaves := make([]string, tt.leaves)
			for i := range leaves {
				leaves[i] = merkleCombine("leaf", fmt.Sprint(i))
			}
			tree := BuildMerkleTree(leaves)
			assert.Len(t, tree, tt.total)
			assert.Equal(t, MerkleRoot(leaves), tree[len(tree)-1])
		})
	}
}

func TestBuildMerkleTree_Empty(t *testing.T) {
	assert.Nil(t, BuildMerkleTree(nil))
	assert.Equal(t, "", MerkleRoot(nil))
}

func TestMerkleTree_OddNodeDuplication(t *testing.T) {
	// With three leaves the unpaired third node pairs with itself.
	a, b, c := merkleCombine("x", "a"), merkleCombine("x", "b"), merkleCombine("x", "c")
	root := MerkleRoot([]string{a, b, c})
	expected := merkleCombine(merkleCombine(a, b), merkleCombine(c, c))
	assert.Equal(t, expected, root)
}

func TestProof_RoundTripAllEvents(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 8, 13} {
		t.Run(fmt.Sprintf("%d events", n), func(t *testing.T) {
			l := newTestLogger()
			events := logN(t, l, n)

			for _, e := range events {
				proof, err := l.CreateProof(e.ID)
				require.NoError(t, err)
				assert.Equal(t, e.Hash, proof.EventHash)
				assert.True(t, VerifyProof(proof), "proof for event %s must verify", e.ID)
			}
		})
	}
}

func TestProof_CorruptedEventHashFails(t *testing.T) {
	l := newTestLogger()
	events := logN(t, l, 7)

	proof, err := l.CreateProof(events[3].ID)
	require.NoError(t, err)
	require.True(t, VerifyProof(proof))

	// Corrupt one byte of the event hash.
	corrupted := []byte(proof.EventHash)
	if corrupted[0] == 'a' {
		corrupted[0] = 'b'
	} else {
		corrupted[0] = 'a'
	}
	proof.EventHash = string(corrupted)
	assert.False(t, VerifyProof(proof))
}

func TestProof_CorruptedSiblingFails(t *testing.T) {
	l := newTestLogger()
	events := logN(t, l, 8)

	proof, err := l.CreateProof(events[5].ID)
	require.NoError(t, err)
	require.NotEmpty(t, proof.Siblings)

	proof.Siblings[0] = merkleCombine("not", "real")
	assert.False(t, VerifyProof(proof))
}

func TestCreateProof_UnknownEvent(t *testing.T) {
	l := newTestLogger()
	logN(t, l, 2)

	_, err := l.CreateProof("no-such-event")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestVerifyProof_NilAndEmpty(t *testing.T) {
	assert.False(t, VerifyProof(nil))
	assert.False(t, VerifyProof(&Proof{}))
}
