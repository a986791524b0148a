package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"vigil/pkg/platform/sentinel"
)

// Merkle construction pairs leaves sequentially; an unpaired node at the end
// of a level is duplicated (right = left). The duplication is a known
// simplification carried over from the original design: adversarial layouts
// can produce related trees with ambiguous proofs. Kept as-is; see DESIGN.md.

// Proof is the minimal evidence that an event is included in the chain's
// Merkle tree. Index is the leaf position; parity at each level decides
// whether the sibling combines from the right (even) or left (odd).
type Proof struct {
	EventID    string    `json:"eventId"`
	EventHash  string    `json:"eventHash"`
	MerkleRoot string    `json:"merkleRoot"`
	Index      int       `json:"index"`
	Siblings   []string  `json:"proof"`
	Timestamp  time.Time `json:"timestamp"`
}

func merkleCombine(left, right string) string {
	sum := sha256.Sum256([]byte(left + right))
	return hex.EncodeToString(sum[:])
}

// BuildMerkleTree returns the flattened tree: every level in order, leaves
// first, root last. An empty input yields an empty tree.
func BuildMerkleTree(leaves []string) []string {
	if len(leaves) == 0 {
		return nil
	}
	tree := append([]string{}, leaves...)
	level := leaves
	for len(level) > 1 {
		var next []string
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, merkleCombine(left, right))
		}
		tree = append(tree, next...)
		level = next
	}
	return tree
}

// MerkleRoot computes just the root of the given leaf hashes.
func MerkleRoot(leaves []string) string {
	if len(leaves) == 0 {
		return ""
	}
	level := leaves
	for len(level) > 1 {
		var next []string
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, merkleCombine(left, right))
		}
		level = next
	}
	return level[0]
}

// CreateProof derives the sibling path for an event currently in the chain.
func (l *Logger) CreateProof(eventID string) (*Proof, error) {
	events := l.Events()

	index := -1
	leaves := make([]string, len(events))
	for i, e := range events {
		leaves[i] = e.Hash
		if e.ID == eventID {
			index = i
		}
	}
	if index < 0 {
		return nil, fmt.Errorf("event %s: %w", eventID, sentinel.ErrNotFound)
	}

	proof := &Proof{
		EventID:   eventID,
		EventHash: leaves[index],
		Index:     index,
		Timestamp: time.Now().UTC(),
	}

	level := leaves
	idx := index
	for len(level) > 1 {
		sibling := idx
		if idx%2 == 0 {
			if idx+1 < len(level) {
				sibling = idx + 1
			}
			// Unpaired tail node: the sibling is the node itself.
		} else {
			sibling = idx - 1
		}
		proof.Siblings = append(proof.Siblings, level[sibling])

		var next []string
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, merkleCombine(left, right))
		}
		level = next
		idx /= 2
	}
	proof.MerkleRoot = level[0]
	return proof, nil
}

// VerifyProof recomputes the root from the event hash and sibling path and
// compares it to the proof's claimed root.
func VerifyProof(p *Proof) bool {
	if p == nil || p.EventHash == "" || p.MerkleRoot == "" {
		return false
	}
	hash := p.EventHash
	idx := p.Index
	for _, sibling := range p.Siblings {
		if idx%2 == 0 {
			hash = merkleCombine(hash, sibling)
		} else {
			hash = merkleCombine(sibling, hash)
		}
		idx /= 2
	}
	return hash == p.MerkleRoot
}
