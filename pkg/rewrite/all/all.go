// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package all registers all the rewrite rules of this module.
//
// To use it simply include:
//
//	import _ "github.com/gomlx/hoprewrite/pkg/rewrite/all"
//
// And then rewrite.New() will return a rewriter with all the rules, unless HOPREWRITE_RULES is set.
package all

import (
	_ "github.com/gomlx/hoprewrite/pkg/rewrite/emult"
	_ "github.com/gomlx/hoprewrite/pkg/rewrite/indexing"
)
