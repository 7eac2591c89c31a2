// Copyright 2026 Kiln ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package native provides the pure-Go CPU pooling engine.
package native

import (
	"github.com/kiln-ml/kiln/backend"
	"github.com/kiln-ml/kiln/internal/backend/native"
)

// Engine is the pure-Go CPU engine.
type Engine = native.Engine

// Compile-time check that Engine implements backend.Engine.
var _ backend.Engine = (*Engine)(nil)

// New creates a native CPU engine.
func New() *Engine {
	return native.New()
}
