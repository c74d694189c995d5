package commitment

import (
	"crypto/sha256"
	"encoding/hex"
)

// Tree is a binary hash tree over an ordered list of leaves.
// Leaf indexes are only meaningful relative to the order passed to Build,
// so index and ordering must be persisted together.
type Tree struct {
	layers [][]string
}

// Build constructs the tree. Each pair is hashed low-then-high by value and
// an unpaired trailing hash is carried up unchanged. Zero leaves yields an
// empty tree whose Root is "".
func Build(leaves []string) (*Tree, error) {
	base := make([]string, len(leaves))
	for i, leaf := range leaves {
		if _, err := decodeDigest(leaf); err != nil {
			return nil, err
		}
		base[i] = leaf
	}
	tree := &Tree{layers: [][]string{base}}
	if len(base) == 0 {
		return tree, nil
	}

	layer := base
	for len(layer) > 1 {
		next := make([]string, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			if i+1 == len(layer) {
				next = append(next, layer[i])
				continue
			}
			parent, err := hashPair(layer[i], layer[i+1])
			if err != nil {
				return nil, err
			}
			next = append(next, parent)
		}
		tree.layers = append(tree.layers, next)
		layer = next
	}
	return tree, nil
}

// Root returns the root hash, "" when the tree has no leaves.
func (t *Tree) Root() string {
	if t == nil || len(t.layers) == 0 || len(t.layers[0]) == 0 {
		return ""
	}
	top := t.layers[len(t.layers)-1]
	return top[0]
}

// Empty reports whether the tree commits to nothing.
func (t *Tree) Empty() bool { return t.Root() == "" }

// Len returns the leaf count.
func (t *Tree) Len() int {
	if t == nil || len(t.layers) == 0 {
		return 0
	}
	return len(t.layers[0])
}

// Leaf returns the leaf at index.
func (t *Tree) Leaf(index int) (string, error) {
	if index < 0 || index >= t.Len() {
		return "", ErrIndexOutOfRange
	}
	return t.layers[0][index], nil
}

// Proof returns the sibling hashes met while climbing from index to the root.
// Layers where the node was carried up contribute no sibling.
func (t *Tree) Proof(index int) ([]string, error) {
	if index < 0 || index >= t.Len() {
		return nil, ErrIndexOutOfRange
	}
	proof := make([]string, 0, len(t.layers)-1)
	pos := index
	for _, layer := range t.layers[:len(t.layers)-1] {
		sibling := pos ^ 1
		if sibling < len(layer) {
			proof = append(proof, layer[sibling])
		}
		pos /= 2
	}
	return proof, nil
}

// Proofs returns the proof of every leaf in order.
func (t *Tree) Proofs() [][]string {
	out := make([][]string, t.Len())
	for i := range out {
		out[i], _ = t.Proof(i)
	}
	return out
}

// Verify recomputes the root from a leaf, its proof and its index using the
// ordered pairing rule. Ordered pairing makes the climb independent of
// left/right position; index is checked for sanity only.
func Verify(leaf string, proof []string, index int, root string) bool {
	if index < 0 || root == "" {
		return false
	}
	if _, err := decodeDigest(leaf); err != nil {
		return false
	}
	current := leaf
	for _, sibling := range proof {
		parent, err := hashPair(current, sibling)
		if err != nil {
			return false
		}
		current = parent
	}
	return current == root
}

func hashPair(a, b string) (string, error) {
	if b < a {
		a, b = b, a
	}
	low, err := decodeDigest(a)
	if err != nil {
		return "", err
	}
	high, err := decodeDigest(b)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write(low)
	h.Write(high)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func decodeDigest(value string) ([]byte, error) {
	if len(value) != hex.EncodedLen(sha256.Size) {
		return nil, ErrInvalidLeaf
	}
	raw, err := hex.DecodeString(value)
	if err != nil || hex.EncodeToString(raw) != value {
		return nil, ErrInvalidLeaf
	}
	return raw, nil
}
