// Package transfer reads and writes the interchange document and reconciles
// imported entity graphs with fresh identifiers.
package transfer

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/stepflow/stepflow/internal/app/dto"
	"github.com/stepflow/stepflow/internal/core/graph"
	"github.com/stepflow/stepflow/internal/core/session"
)

// Payload is a parsed and validated import document
type Payload struct {
	Items        []*graph.Workspace
	Selected     dto.Selection
	StateVersion int64
	FlowSession  *session.Snapshot
	Version      int
	// Nested reports whether the document used the versioned shape
	Nested bool
}

// ScenarioCount returns the number of scenarios across all workspaces
func (p *Payload) ScenarioCount() int {
	n := 0
	for _, w := range p.Items {
		n += len(w.Children)
	}
	return n
}

// nestedState mirrors dto.StateDTO with pointers so that missing keys can
// be told apart from empty ones
type nestedState struct {
	Items        *[]*graph.Workspace `json:"items"`
	Selected     dto.Selection       `json:"selected"`
	StateVersion int64               `json:"stateVersion"`
	FlowSession  *session.Snapshot   `json:"flowSession"`
}

type nestedEnvelope struct {
	State   *nestedState `json:"state"`
	Version int          `json:"version"`
}

// Parse decodes data and validates its shape. Nothing is remapped here;
// a payload that passes Parse is safe to hand to Reconcile.
func Parse(data []byte) (*Payload, error) {
	var top map[string]json.RawMessage
	if err := sonic.ConfigStd.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	p := &Payload{}
	if raw, ok := top[dto.DocumentKey]; ok && !isNull(raw) {
		var env nestedEnvelope
		if err := sonic.ConfigStd.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		p.Nested = true
		p.Version = env.Version
		if p.Version > dto.FormatVersion {
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, p.Version)
		}
		st := env.State
		if st == nil || st.Items == nil {
			return nil, ErrMissingItems
		}
		p.Items = *st.Items
		p.Selected = st.Selected
		p.StateVersion = st.StateVersion
		p.FlowSession = st.FlowSession
	} else {
		var flat dto.FlatDocument
		if err := sonic.ConfigStd.Unmarshal(data, &flat); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if flat.Items == nil {
			return nil, ErrMissingItems
		}
		p.Items = flat.Items
	}

	if err := validateShape(p.Items); err != nil {
		return nil, err
	}
	return p, nil
}

// validateShape rejects payloads the reconciler cannot remap: nil entries
// and node ids repeated inside one scenario.
func validateShape(items []*graph.Workspace) error {
	for wi, w := range items {
		if w == nil {
			return fmt.Errorf("%w: items[%d] is null", ErrMalformedPayload, wi)
		}
		for si, sc := range w.Children {
			if sc == nil {
				return fmt.Errorf("%w: items[%d].children[%d] is null", ErrMalformedPayload, wi, si)
			}
			seen := make(map[string]struct{}, len(sc.Children))
			for ni, n := range sc.Children {
				if n == nil {
					return fmt.Errorf("%w: scenario %q node %d is null", ErrMalformedPayload, sc.ID, ni)
				}
				if n.ID == "" {
					continue
				}
				if _, dup := seen[n.ID]; dup {
					return fmt.Errorf("%w: scenario %q repeats node id %q", ErrMalformedPayload, sc.ID, n.ID)
				}
				seen[n.ID] = struct{}{}
			}
			for ei, e := range sc.Edges {
				if e == nil {
					return fmt.Errorf("%w: scenario %q edge %d is null", ErrMalformedPayload, sc.ID, ei)
				}
			}
			for fi, f := range sc.Filters {
				if f == nil {
					return fmt.Errorf("%w: scenario %q filter %d is null", ErrMalformedPayload, sc.ID, fi)
				}
			}
		}
		for ci, c := range w.ContextItems {
			if c == nil {
				return fmt.Errorf("%w: workspace %q context item %d is null", ErrMalformedPayload, w.ID, ci)
			}
		}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
