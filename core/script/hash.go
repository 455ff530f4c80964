package script

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/sha3"
)

// canonicalVersion guards the canonical encoding against silent drift: any
// change to the canonical structs must bump it so old hashes never collide
// with new ones.
const canonicalVersion uint8 = 1

// canonicalUnit is the intermediate form for deterministic unit hashing.
// Only parse-derived structure participates; file paths and raw source
// formatting (comments, blank lines) do not affect the hash.
type canonicalUnit struct {
	Version   uint8
	Name      string
	Functions []canonicalFunction
	Body      []canonicalNode
}

type canonicalFunction struct {
	Name   string
	Params []string
	Body   []canonicalNode
}

type canonicalNode struct {
	Kind     uint8
	Target   string          `cbor:",omitempty"`
	Expr     string          `cbor:",omitempty"`
	Branches []canonicalArm  `cbor:",omitempty"`
	Else     []canonicalNode `cbor:",omitempty"`
	LoopVar  string          `cbor:",omitempty"`
	Iterable string          `cbor:",omitempty"`
	Cond     string          `cbor:",omitempty"`
	Body     []canonicalNode `cbor:",omitempty"`
	Command  string          `cbor:",omitempty"`
	Args     []canonicalArg  `cbor:",omitempty"`
	Stages   []canonicalNode `cbor:",omitempty"`
	Text     string          `cbor:",omitempty"`
}

type canonicalArm struct {
	Cond string
	Body []canonicalNode
}

type canonicalArg struct {
	Name string `cbor:",omitempty"`
	Raw  string
}

// Hash computes the unit's content hash: canonical CBOR of the construct
// tree, SHA3-256, hex-encoded. Identical parse trees always hash identically,
// so a plan and a later verification run can detect source drift.
func (u *Unit) Hash() (string, error) {
	canonical := canonicalUnit{
		Version: canonicalVersion,
		Name:    u.Name,
	}
	for _, fn := range u.Functions {
		canonical.Functions = append(canonical.Functions, canonicalFunction{
			Name:   fn.Name,
			Params: fn.Params,
			Body:   canonicalNodes(fn.Body),
		})
	}
	canonical.Body = canonicalNodes(u.Body)

	opts, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return "", fmt.Errorf("canonical encoder: %w", err)
	}
	encoded, err := opts.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("encode canonical unit: %w", err)
	}

	sum := sha3.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

func canonicalNodes(nodes []Node) []canonicalNode {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]canonicalNode, len(nodes))
	for i, n := range nodes {
		c := canonicalNode{
			Kind:     uint8(n.Kind),
			Target:   n.Target,
			Expr:     n.Expr,
			Else:     canonicalNodes(n.Else),
			LoopVar:  n.LoopVar,
			Iterable: n.Iterable,
			Cond:     n.Cond,
			Body:     canonicalNodes(n.Body),
			Command:  n.Command,
			Stages:   canonicalNodes(n.Stages),
		}
		if n.Kind == NodeRawFragment {
			c.Text = n.Text
		}
		for _, br := range n.Branches {
			c.Branches = append(c.Branches, canonicalArm{Cond: br.Cond, Body: canonicalNodes(br.Body)})
		}
		for _, a := range n.Args {
			c.Args = append(c.Args, canonicalArg{Name: a.Name, Raw: a.Raw})
		}
		out[i] = c
	}
	return out
}
