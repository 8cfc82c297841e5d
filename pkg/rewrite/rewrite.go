// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package rewrite implements the algebraic rewrite driver for hops graphs.
//
// A Rewriter holds an ordered list of Rule. Rewrite traverses the graph depth-first from the roots and,
// before descending into an operand, offers it to each rule in order. A rule that rewrites the node it is
// offered redirects every consumer of the node to its replacement, and returns the replacement. Each node's
// operands are descended at most once per pass, even if it is shared by many consumers.
//
// Rules register themselves with Register, usually in an init function, so a Rewriter can be configured by
// a string (see NewWithConfig). To include all the rules of this module:
//
//	import _ "github.com/gomlx/hoprewrite/pkg/rewrite/all"
//
// # Error Handling
//
// Rules signal structural faults (a node without the operands its op requires, for instance) by panicking
// with github.com/gomlx/exceptions. The driver converts them to an error returned by Rewrite: the pass is
// aborted. A rule whose pattern, profitability or safety checks fail simply returns hops.InvalidNodeID.
package rewrite

import (
	"os"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/hoprewrite/pkg/core/hops"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Rule is one rewrite rule.
type Rule interface {
	// Name of the rule, used in traces and statistics.
	Name() string

	// Apply offers node id to the rule.
	//
	// If the rule rewrites it, it must redirect every parent of id (see hops.Graph.RedirectParents) to
	// the replacement and return it. Otherwise, it returns hops.InvalidNodeID, and it must not have
	// changed the graph.
	Apply(p *Pass, id hops.NodeID) hops.NodeID
}

// Constructor takes an options string (optionally empty) and returns a Rule.
type Constructor func(options string) (Rule, error)

var registeredConstructors = make(map[string]Constructor)

// Register a rule constructor with the given name.
//
// To be safe, call Register during initialization of a package.
func Register(name string, constructor Constructor) {
	if strings.ContainsAny(name, ",:") {
		exceptions.Panicf("rewrite.Register(%q): rule names cannot contain ',' or ':'", name)
	}
	registeredConstructors[name] = constructor
}

// RegisteredRules returns the names of the registered rules, sorted.
func RegisteredRules() []string {
	names := make([]string, 0, len(registeredConstructors))
	for name := range registeredConstructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultConfig is the rules configuration used by New if HOPREWRITE_RULES is not set.
//
// See NewWithConfig for the format of the configuration string.
var DefaultConfig string

// HOPREWRITE_RULES is the environment variable with the default rules configuration to use.
const HOPREWRITE_RULES = "HOPREWRITE_RULES"

// New returns a Rewriter with the default configuration:
//
// 1. The environment HOPREWRITE_RULES is used as a configuration if defined.
// 2. Next the variable DefaultConfig is used as a configuration if defined.
// 3. All registered rules, in name order, with empty options.
func New() (*Rewriter, error) {
	if config, found := os.LookupEnv(HOPREWRITE_RULES); found {
		return NewWithConfig(config)
	}
	return NewWithConfig(DefaultConfig)
}

// NewWithConfig creates a Rewriter from a configuration string: a comma-separated list of rules,
// in the order they are offered the nodes. Each rule is formatted as "<rule_name>[:<options>]",
// where the options are rule specific. E.g.: "indexing:row,emult".
//
// An empty configuration selects all registered rules, in name order.
func NewWithConfig(config string) (*Rewriter, error) {
	if len(registeredConstructors) == 0 {
		return nil, errors.New(`no registered rewrite rules -- maybe import them with import _ "github.com/gomlx/hoprewrite/pkg/rewrite/all"?`)
	}
	var specs []string
	if strings.TrimSpace(config) == "" {
		specs = RegisteredRules()
	} else {
		for _, spec := range strings.Split(config, ",") {
			spec = strings.TrimSpace(spec)
			if spec != "" {
				specs = append(specs, spec)
			}
		}
	}
	rules := make([]Rule, 0, len(specs))
	for _, spec := range specs {
		name, options, _ := strings.Cut(spec, ":")
		constructor, found := registeredConstructors[name]
		if !found {
			return nil, errors.Errorf("unknown rewrite rule %q in configuration %q, registered rules are %q",
				name, config, RegisteredRules())
		}
		rule, err := constructor(options)
		if err != nil {
			return nil, errors.WithMessagef(err, "configuring rewrite rule %q", name)
		}
		rules = append(rules, rule)
	}
	return NewWithRules(rules...), nil
}

// Rewriter applies a list of rules to hops graphs. It can be reused, but a graph must only
// be rewritten by one pass at a time.
type Rewriter struct {
	rules    []Rule
	sink     TraceSink
	validate bool
}

// NewWithRules creates a Rewriter with the given rules, offered the nodes in the given order.
func NewWithRules(rules ...Rule) *Rewriter {
	return &Rewriter{rules: slices.Clone(rules)}
}

// WithTrace sets the sink of the trace records emitted by the rules. nil disables tracing.
func (r *Rewriter) WithTrace(sink TraceSink) *Rewriter {
	r.sink = sink
	return r
}

// WithValidation enables validating the graph (see hops.Graph.Validate) after each pass.
func (r *Rewriter) WithValidation(validate bool) *Rewriter {
	r.validate = validate
	return r
}

// Rules returns the rules of the Rewriter, in order.
func (r *Rewriter) Rules() []Rule { return slices.Clone(r.rules) }

// Rewrite runs one pass of the rules over the graph reachable from roots. It returns the new roots,
// in the same positions: a root rewritten by a rule is replaced by the rule's result.
//
// On error the graph may hold the rewrites applied before the failing rule: it should be discarded.
func (r *Rewriter) Rewrite(g *hops.Graph, roots []hops.NodeID) ([]hops.NodeID, error) {
	newRoots, _, err := r.RewriteWithStats(g, roots)
	return newRoots, err
}

// RewriteSingle is like Rewrite for one root.
func (r *Rewriter) RewriteSingle(g *hops.Graph, root hops.NodeID) (hops.NodeID, error) {
	roots, err := r.Rewrite(g, []hops.NodeID{root})
	if err != nil {
		return hops.InvalidNodeID, err
	}
	return roots[0], nil
}

// RewriteWithStats is like Rewrite, and also returns the statistics of the pass.
func (r *Rewriter) RewriteWithStats(g *hops.Graph, roots []hops.NodeID) ([]hops.NodeID, Stats, error) {
	p := newPass(r, g)
	var newRoots []hops.NodeID
	err := exceptions.TryCatch[error](func() {
		newRoots = p.run(roots)
	})
	if err != nil {
		if p.currentRule != "" {
			err = errors.WithMessagef(err, "rewrite of graph %q failed in rule %q on node #%d",
				g.Name(), p.currentRule, p.currentNode)
		} else {
			err = errors.WithMessagef(err, "rewrite of graph %q failed", g.Name())
		}
		return nil, p.stats, err
	}
	if r.validate {
		if err := g.Validate(); err != nil {
			return nil, p.stats, errors.WithMessagef(err, "graph invalid after rewrite")
		}
	}
	klog.V(1).Infof("rewrite of graph %q: %s", g.Name(), p.stats)
	if klog.V(2).Enabled() {
		klog.Infof("graph %q after rewrite:\n%s", g.Name(), g.Explain(newRoots...))
	}
	return newRoots, p.stats, nil
}
