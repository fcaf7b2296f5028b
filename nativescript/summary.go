package nativescript

import (
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/torrejonv/multisig-coordinator/model"
)

// TraceNode is one entry of the pre-order structure trace shown to users
// verifying what a script actually demands.
type TraceNode struct {
	Depth  int    `json:"depth"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

// Summary is everything the coordinator derives from a script tree.
type Summary struct {
	MRequired         uint32          `json:"m_required"`
	RequiredKeyHashes []model.KeyHash `json:"required_key_hashes"`
	ScriptHash        string          `json:"script_hash"`
	InvalidBefore     *uint64         `json:"invalid_before,omitempty"`
	InvalidHereafter  *uint64         `json:"invalid_hereafter,omitempty"`
	Trace             []TraceNode     `json:"trace"`
}

// Summarize parses scriptBytes and walks the tree once, deriving the
// effective threshold, the union of pubkey leaves, the script hash and the
// tightest validity bounds.
//
// Threshold rule: the maximum n over all at-least nodes if any exist,
// else 1 if any any-node exists, else the key count (the tree behaves as
// an all-node).
func Summarize(scriptBytes []byte) (*Summary, error) {
	script, err := Parse(scriptBytes)
	if err != nil {
		return nil, err
	}

	hash, err := HashScriptBytes(scriptBytes)
	if err != nil {
		return nil, err
	}

	w := &walker{keys: map[model.KeyHash]struct{}{}}
	w.walk(script, 0)

	keys := make([]model.KeyHash, 0, len(w.keys))
	for k := range w.keys {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var m uint32

	switch {
	case len(w.atLeastNs) > 0:
		var maxN uint64
		for _, n := range w.atLeastNs {
			if n > maxN {
				maxN = n
			}
		}
		//nolint:gosec // thresholds are tiny; the chain rejects scripts this large
		m = uint32(maxN)
	case w.sawAny:
		m = 1
	default:
		//nolint:gosec // key counts are tiny
		m = uint32(len(keys))
	}

	return &Summary{
		MRequired:         m,
		RequiredKeyHashes: keys,
		ScriptHash:        hex.EncodeToString(hash),
		InvalidBefore:     w.invalidBefore,
		InvalidHereafter:  w.invalidHereafter,
		Trace:             w.trace,
	}, nil
}

// SummarizeHex is Summarize over a hex-encoded script.
func SummarizeHex(scriptHex string) (*Summary, error) {
	script, err := ParseHex(scriptHex)
	if err != nil {
		return nil, err
	}

	b, err := script.Bytes()
	if err != nil {
		return nil, err
	}

	return Summarize(b)
}

type walker struct {
	keys             map[model.KeyHash]struct{}
	atLeastNs        []uint64
	sawAny           bool
	invalidBefore    *uint64
	invalidHereafter *uint64
	trace            []TraceNode
}

func (w *walker) walk(s *Script, depth int) {
	switch s.Kind {
	case KindPubkey:
		kh, err := model.NewKeyHashFromBytes(s.KeyHash)
		if err == nil {
			w.keys[kh] = struct{}{}
			w.trace = append(w.trace, TraceNode{Depth: depth, Kind: "pubkey", Detail: kh.String()})
		}

	case KindAll:
		w.trace = append(w.trace, TraceNode{Depth: depth, Kind: "all"})
		for _, sub := range s.Scripts {
			w.walk(sub, depth+1)
		}

	case KindAny:
		w.sawAny = true
		w.trace = append(w.trace, TraceNode{Depth: depth, Kind: "any"})
		for _, sub := range s.Scripts {
			w.walk(sub, depth+1)
		}

	case KindAtLeast:
		w.atLeastNs = append(w.atLeastNs, s.N)
		w.trace = append(w.trace, TraceNode{Depth: depth, Kind: "atLeast", Detail: fmt.Sprintf("%d", s.N)})
		for _, sub := range s.Scripts {
			w.walk(sub, depth+1)
		}

	case KindInvalidBefore:
		slot := s.Slot
		if w.invalidBefore == nil || slot > *w.invalidBefore {
			w.invalidBefore = &slot
		}
		w.trace = append(w.trace, TraceNode{Depth: depth, Kind: "invalidBefore", Detail: fmt.Sprintf("%d", slot)})

	case KindInvalidHereafter:
		slot := s.Slot
		if w.invalidHereafter == nil || slot < *w.invalidHereafter {
			w.invalidHereafter = &slot
		}
		w.trace = append(w.trace, TraceNode{Depth: depth, Kind: "invalidHereafter", Detail: fmt.Sprintf("%d", slot)})

	default:
		// inert for threshold and key-set purposes
		w.trace = append(w.trace, TraceNode{Depth: depth, Kind: "unknown", Detail: fmt.Sprintf("%d", s.Kind)})
	}
}
