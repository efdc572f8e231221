package rtree

import "github.com/bluebrain/spatial-index-go/geom"

// SplitKind selects the R-tree's node-split strategy. Only linear split is
// implemented; the field exists so a future split strategy has somewhere
// to plug in.
type SplitKind int

// LinearSplit is the only supported split strategy.
const LinearSplit SplitKind = 0

// Config holds the tunable parameters of a Tree.
type Config struct {
	// FanOut is the R-tree's maximum node size. Default 16.
	FanOut int
	// Split selects the node-split strategy. Default LinearSplit.
	Split SplitKind
	// GeometryMode is the default query predicate mode; individual query
	// calls may override it. Default BoundingBoxGeometry.
	GeometryMode geom.GeometryMode
}

// DefaultConfig returns the default settings: fan-out 16, linear split,
// bounding-box geometry mode.
func DefaultConfig() Config {
	return Config{FanOut: 16, Split: LinearSplit, GeometryMode: geom.BoundingBoxGeometry}
}

// OrDefault normalizes a zero-value Config to DefaultConfig, and clamps a
// too-small FanOut up to the minimum useful value of 2.
func (c Config) OrDefault() Config {
	if c.FanOut <= 0 {
		c.FanOut = 16
	}
	if c.FanOut < 2 {
		c.FanOut = 2
	}
	return c
}
