package engine

import (
	"fmt"
	"strings"

	"github.com/hupe1980/cqgo/attribute"
	"github.com/hupe1980/cqgo/query"
)

// Step describes how one leaf of a query is answered.
type Step struct {
	Leaf      string
	Attribute attribute.ID
	// Index is the name of the answering index, or ScanIndex.
	Index string
}

// Plan lists the access path of every leaf in query order.
type Plan struct {
	Query string
	Steps []Step
}

// String renders one line per step.
func (p *Plan) String() string {
	var b strings.Builder
	b.WriteString(p.Query)
	for _, s := range p.Steps {
		fmt.Fprintf(&b, "\n  %s -> %s", s.Leaf, s.Index)
	}
	return b.String()
}

// Explain returns the plan Evaluate would follow for q without retrieving
// anything. It fails where Evaluate would fail to choose an access path.
func (e *Engine[O]) Explain(q query.Query[O], opts *query.Options[O]) (*Plan, error) {
	if e.pushDown {
		q = query.PushDownNot(q)
	}
	p := &Plan{Query: q.String()}
	if err := e.explain(q, opts, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (e *Engine[O]) explain(q query.Query[O], opts *query.Options[O], p *Plan) error {
	switch n := q.(type) {
	case *query.Conjunction[O]:
		return e.explainAll(n.Children(), opts, p)
	case *query.Disjunction[O]:
		return e.explainAll(n.Children(), opts, p)
	case *query.Negation[O]:
		return e.explain(n.Child(), opts, p)
	case *query.Constant[O]:
		return nil
	case query.Leaf[O]:
		idx, err := e.choose(n, opts)
		if err != nil {
			return err
		}
		name := ScanIndex
		if idx != nil {
			name = idx.Name()
		} else if e.strict || opts.Strict() {
			return &UnsupportedQueryError{Query: n.String(), Reason: "no index supports it and scanning is disabled"}
		}
		p.Steps = append(p.Steps, Step{Leaf: n.String(), Attribute: n.AttributeID(), Index: name})
		return nil
	default:
		return &UnsupportedQueryError{Query: q.String(), Reason: "unknown query node"}
	}
}

func (e *Engine[O]) explainAll(children []query.Query[O], opts *query.Options[O], p *Plan) error {
	for _, c := range children {
		if err := e.explain(c, opts, p); err != nil {
			return err
		}
	}
	return nil
}
