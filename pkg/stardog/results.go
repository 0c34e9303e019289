package stardog

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TermType tags the three kinds of RDF term a binding can hold.
type TermType string

const (
	TermIRI     TermType = "uri"
	TermLiteral TermType = "literal"
	TermBNode   TermType = "bnode"
)

// Term is one RDF value as delivered by the server: an IRI, a literal with
// optional datatype or language tag, or a blank node label.
type Term struct {
	Type     TermType `json:"type"`
	Value    string   `json:"value"`
	Datatype string   `json:"datatype,omitempty"`
	Language string   `json:"xml:lang,omitempty"`
}

// IsIRI reports whether the term is an IRI.
func (t Term) IsIRI() bool { return t.Type == TermIRI }

// IsLiteral reports whether the term is a literal.
func (t Term) IsLiteral() bool { return t.Type == TermLiteral }

// IsBNode reports whether the term is a blank node.
func (t Term) IsBNode() bool { return t.Type == TermBNode }

// SelectResult is the bindings table produced by select and paths queries:
// ordered rows, each mapping a variable name to a term.
type SelectResult struct {
	Variables []string
	Bindings  []map[string]Term
}

// Len returns the number of rows.
func (r *SelectResult) Len() int { return len(r.Bindings) }

type sparqlJSON struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]Term `json:"bindings"`
	} `json:"results"`
}

func decodeSelect(body []byte) (*SelectResult, error) {
	var raw sparqlJSON
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("stardog: decode bindings response: %w", err)
	}
	return &SelectResult{Variables: raw.Head.Vars, Bindings: raw.Results.Bindings}, nil
}

func decodeBoolean(body []byte) (bool, error) {
	switch text := strings.TrimSpace(string(body)); text {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		// Servers negotiating JSON instead of text/boolean wrap the answer.
		var raw struct {
			Boolean *bool `json:"boolean"`
		}
		if err := json.Unmarshal(body, &raw); err == nil && raw.Boolean != nil {
			return *raw.Boolean, nil
		}
		return false, fmt.Errorf("stardog: unexpected boolean response %q", text)
	}
}

// Proof is one node of a reasoning or constraint-violation explanation.
type Proof struct {
	Status     string          `json:"status"`
	Expression json.RawMessage `json:"expression"`
	Children   []Proof         `json:"children,omitempty"`
}

func decodeProofs(body []byte) ([]Proof, error) {
	var wrapped struct {
		Proofs []Proof `json:"proofs"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Proofs != nil {
		return wrapped.Proofs, nil
	}
	var flat []Proof
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, fmt.Errorf("stardog: decode proof response: %w", err)
	}
	return flat, nil
}
