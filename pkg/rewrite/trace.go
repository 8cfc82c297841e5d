// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rewrite

import (
	"fmt"
	"sync"

	"github.com/gomlx/hoprewrite/pkg/core/hops"
	"k8s.io/klog/v2"
)

// Record describes one rewrite applied by a rule. It is advisory only.
type Record struct {
	Graph       string
	Rule        string
	Node        hops.NodeID
	Replacement hops.NodeID
	Summary     string
}

// String implements fmt.Stringer.
func (r Record) String() string {
	return fmt.Sprintf("[%s] graph %q: #%d -> #%d: %s", r.Rule, r.Graph, r.Node, r.Replacement, r.Summary)
}

// TraceSink receives the trace records of the rewrites.
type TraceSink interface {
	Trace(r Record)
}

// TraceFunc adapts a function to a TraceSink.
type TraceFunc func(r Record)

// Trace implements TraceSink.
func (f TraceFunc) Trace(r Record) { f(r) }

// KlogSink returns a TraceSink that logs the records with klog at the given verbosity level.
func KlogSink(level klog.Level) TraceSink {
	return TraceFunc(func(r Record) {
		klog.V(level).Info(r.String())
	})
}

// Collector is a TraceSink that keeps the records in memory. It is safe for concurrent use.
type Collector struct {
	mu      sync.Mutex
	records []Record
}

// Trace implements TraceSink.
func (c *Collector) Trace(r Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, r)
}

// Records returns a copy of the collected records.
func (c *Collector) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Record(nil), c.records...)
}

// Summaries returns the summaries of the collected records.
func (c *Collector) Summaries() []string {
	records := c.Records()
	summaries := make([]string, len(records))
	for ii, r := range records {
		summaries[ii] = r.Summary
	}
	return summaries
}

// Reset discards the collected records.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = nil
}
