// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rewrite

import (
	"bytes"
	"flag"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/hoprewrite/pkg/core/hops"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
}

// recordRule records the nodes it is offered, and never rewrites.
type recordRule struct {
	offered []hops.NodeID
}

func (r *recordRule) Name() string { return "test_record" }

func (r *recordRule) Apply(_ *Pass, id hops.NodeID) hops.NodeID {
	r.offered = append(r.offered, id)
	return hops.InvalidNodeID
}

// transpose2Rule rewrites Transpose(Transpose(x)) to x.
type transpose2Rule struct{}

func (transpose2Rule) Name() string { return "test_transpose2" }

func (r transpose2Rule) Apply(p *Pass, id hops.NodeID) hops.NodeID {
	g := p.Graph()
	n := g.Node(id)
	if n.OpType() != hops.OpTypeTranspose {
		return hops.InvalidNodeID
	}
	inner := g.Node(n.Input(0))
	if inner.OpType() != hops.OpTypeTranspose {
		return hops.InvalidNodeID
	}
	x := inner.Input(0)
	g.RedirectParents(id, x)
	g.Retire(id)
	if inner.NumParents() == 0 {
		g.Retire(inner.ID())
	}
	p.Trace(r, id, x, "removed double transpose")
	return x
}

// swapRule replaces Mult(a, b) by a new Mult(b, a), marking it as visited, and resumes at a and b.
type swapRule struct{}

func (swapRule) Name() string { return "test_swap" }

func (swapRule) Apply(p *Pass, id hops.NodeID) hops.NodeID {
	g := p.Graph()
	n := g.Node(id)
	if !n.IsBinary(hops.Mult) {
		return hops.InvalidNodeID
	}
	a, b := n.Input(0), n.Input(1)
	swapped := g.Mult(b, a)
	p.MarkVisited(swapped)
	g.RedirectParents(id, swapped)
	g.Retire(id)
	p.Resume(a, b)
	return swapped
}

// faultRule panics on Mult nodes.
type faultRule struct{}

func (faultRule) Name() string { return "test_fault" }

func (faultRule) Apply(p *Pass, id hops.NodeID) hops.NodeID {
	if p.Graph().Node(id).IsBinary(hops.Mult) {
		exceptions.Panicf("mult node #%d has unexpected operands", id)
	}
	return hops.InvalidNodeID
}

// noRedirectRule returns a new node without redirecting the consumers.
type noRedirectRule struct{}

func (noRedirectRule) Name() string { return "test_no_redirect" }

func (noRedirectRule) Apply(p *Pass, id hops.NodeID) hops.NodeID {
	g := p.Graph()
	if g.Node(id).OpType() != hops.OpTypeTranspose {
		return hops.InvalidNodeID
	}
	return g.Transpose(g.Node(id).Input(0))
}

func init() {
	Register("test_record", func(options string) (Rule, error) {
		if options != "" {
			return nil, errors.Errorf("test_record takes no options, got %q", options)
		}
		return &recordRule{}, nil
	})
	Register("test_transpose2", func(string) (Rule, error) { return transpose2Rule{}, nil })
}

func TestVisitOnce(t *testing.T) {
	g := hops.New("diamond")
	x := g.Matrix("X", 2, 2, -1)
	s := g.Pow(x, 2)
	lit := g.Node(s).Input(1)
	m1 := g.Mult(s, x)
	m2 := g.Mult(x, s)
	sum := g.Binary(hops.Plus, m1, m2)
	out := g.Write("out", sum)

	recorder := &recordRule{}
	newRoots, stats, err := NewWithRules(recorder).RewriteWithStats(g, []hops.NodeID{out})
	require.NoError(t, err)
	assert.Equal(t, []hops.NodeID{out}, newRoots)
	assert.Equal(t, []hops.NodeID{out, sum, m1, s, x, lit, m2}, recorder.offered)
	assert.Equal(t, 7, stats.NodesVisited)
	assert.Equal(t, 0, stats.NumApplied())

	// Visited marks are scoped to the pass: a second pass offers the same nodes again.
	recorder.offered = nil
	must.M1(NewWithRules(recorder).Rewrite(g, []hops.NodeID{out}))
	assert.Len(t, recorder.offered, 7)
}

func TestReplacement(t *testing.T) {
	g := hops.New("replacement")
	x := g.Matrix("X", 2, 3, -1)
	y := g.Matrix("Y", 2, 3, -1)
	tt := g.Transpose(g.Transpose(x))
	m := g.Mult(tt, y)
	out := g.Write("out", m)

	collector := &Collector{}
	rewriter := NewWithRules(transpose2Rule{}).WithTrace(collector).WithValidation(true)
	newRoots, stats, err := rewriter.RewriteWithStats(g, []hops.NodeID{out})
	require.NoError(t, err)
	assert.Equal(t, []hops.NodeID{out}, newRoots)
	assert.Equal(t, x, g.Node(m).Input(0))
	assert.True(t, g.Node(tt).IsRetired())
	assert.Equal(t, map[string]int{"test_transpose2": 1}, stats.Applied)
	assert.Equal(t, []string{"removed double transpose"}, collector.Summaries())
	assert.Equal(t, tt, collector.Records()[0].Node)
	assert.Equal(t, x, collector.Records()[0].Replacement)

	// A root is replaced in the returned slice.
	root := g.Transpose(g.Transpose(y))
	newRoot := must.M1(rewriter.RewriteSingle(g, root))
	assert.Equal(t, y, newRoot)
}

func TestSharedRootReplaced(t *testing.T) {
	g := hops.New("shared_root")
	x := g.Matrix("X", 2, 3, -1)
	tt := g.Transpose(g.Transpose(x))
	out := g.Write("out", tt)

	// tt is replaced while descending from out, and then given again as a root.
	newRoots := must.M1(NewWithRules(transpose2Rule{}).Rewrite(g, []hops.NodeID{out, tt}))
	assert.Equal(t, []hops.NodeID{out, x}, newRoots)
	assert.Equal(t, x, g.Node(out).Input(0))
	require.NoError(t, g.Validate())
}

func TestResume(t *testing.T) {
	g := hops.New("resume")
	x := g.Matrix("X", 2, 2, -1)
	tx := g.Transpose(x)
	y := g.Matrix("Y", 2, 2, -1)
	ty := g.Transpose(y)
	m := g.Mult(tx, ty)
	out := g.Write("out", m)

	recorder := &recordRule{}
	must.M1(NewWithRules(swapRule{}, recorder).WithValidation(true).Rewrite(g, []hops.NodeID{out}))
	swapped := g.Node(out).Input(0)
	assert.Equal(t, []hops.NodeID{ty, tx}, g.Node(swapped).Inputs())
	assert.True(t, g.Node(m).IsRetired())
	// The new node is offered to the following rules, then the traversal resumes at the operands.
	assert.Equal(t, []hops.NodeID{out, swapped, tx, x, ty, y}, recorder.offered)
}

func TestRuleFault(t *testing.T) {
	g := hops.New("fault")
	x := g.Matrix("X", 2, 2, -1)
	out := g.Write("out", g.Mult(x, x))
	_, err := NewWithRules(faultRule{}).Rewrite(g, []hops.NodeID{out})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected operands")
	assert.Contains(t, err.Error(), `rule "test_fault"`)

	out2 := g.Write("out2", g.Transpose(x))
	_, err = NewWithRules(noRedirectRule{}).Rewrite(g, []hops.NodeID{out2})
	require.ErrorContains(t, err, "was not redirected")
}

func TestConfig(t *testing.T) {
	assert.Equal(t, []string{"test_record", "test_transpose2"}, RegisteredRules())

	rewriter := must.M1(NewWithConfig(" test_transpose2, test_record "))
	rules := rewriter.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, "test_transpose2", rules[0].Name())
	assert.Equal(t, "test_record", rules[1].Name())

	// Empty configuration: all registered rules in name order.
	rewriter = must.M1(NewWithConfig(""))
	require.Len(t, rewriter.Rules(), 2)
	assert.Equal(t, "test_record", rewriter.Rules()[0].Name())

	_, err := NewWithConfig("test_record,unknown")
	require.ErrorContains(t, err, `unknown rewrite rule "unknown"`)
	_, err = NewWithConfig("test_record:fast")
	require.ErrorContains(t, err, "takes no options")

	t.Setenv(HOPREWRITE_RULES, "test_transpose2")
	rewriter = must.M1(New())
	require.Len(t, rewriter.Rules(), 1)
	assert.Equal(t, "test_transpose2", rewriter.Rules()[0].Name())
}

func TestDefaultConfig(t *testing.T) {
	DefaultConfig = "test_record"
	defer func() { DefaultConfig = "" }()
	rewriter := must.M1(New())
	require.Len(t, rewriter.Rules(), 1)
	assert.Equal(t, "test_record", rewriter.Rules()[0].Name())
}

func TestTraceSinks(t *testing.T) {
	g := hops.New("sinks")
	out := g.Write("out", g.Transpose(g.Transpose(g.Matrix("X", 2, 3, -1))))

	var records []Record
	sink := TraceFunc(func(r Record) { records = append(records, r) })
	_ = must.M1(NewWithRules(transpose2Rule{}).WithTrace(sink).Rewrite(g, []hops.NodeID{out}))
	require.Len(t, records, 1)
	assert.Equal(t, "sinks", records[0].Graph)
	assert.Contains(t, records[0].String(), "[test_transpose2]")

	// Logging sink: only checks it doesn't interfere with the pass.
	g2 := hops.New("klog")
	out2 := g2.Write("out", g2.Transpose(g2.Transpose(g2.Matrix("X", 2, 3, -1))))
	_, stats, err := NewWithRules(transpose2Rule{}).WithTrace(KlogSink(2)).RewriteWithStats(g2, []hops.NodeID{out2})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.NumApplied())
	assert.Contains(t, stats.String(), "test_transpose2=1")
}

func TestExplainLogging(t *testing.T) {
	var buf bytes.Buffer
	must.M(flag.Set("logtostderr", "false"))
	must.M(flag.Set("v", "2"))
	klog.SetOutput(&buf)
	defer func() {
		must.M(flag.Set("v", "0"))
		must.M(flag.Set("logtostderr", "true"))
	}()

	g := hops.New("explained")
	out := g.Write("out", g.Transpose(g.Transpose(g.Matrix("X", 2, 3, -1))))
	_ = must.M1(NewWithRules(transpose2Rule{}).Rewrite(g, []hops.NodeID{out}))
	klog.Flush()
	logged := buf.String()
	assert.Contains(t, logged, `graph "explained" after rewrite`)
	assert.Contains(t, logged, "2 nodes reachable")
}
