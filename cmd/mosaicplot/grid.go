package main

import (
	"flag"

	"github.com/star/mosaicplanner/internal/planner"
)

// gridFlags are the command-line overrides of the saved grid settings.
type gridFlags struct {
	panelsX  int
	panelsY  int
	rotation float64
	overlap  float64
}

func registerGridFlags(fs *flag.FlagSet) *gridFlags {
	g := &gridFlags{}
	fs.IntVar(&g.panelsX, "x", 0, "override panels along X")
	fs.IntVar(&g.panelsY, "y", 0, "override panels along Y")
	fs.Float64Var(&g.rotation, "rot", 0, "override grid rotation in degrees")
	fs.Float64Var(&g.overlap, "overlap", 0, "override overlap percent")
	return g
}

// apply copies the grid flags given on the command line onto p. Flags that
// were not given keep the saved values, so "-rot 0" resets a rotated grid.
func (g *gridFlags) apply(fs *flag.FlagSet, p *planner.Planner) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "x":
			p.SetPanelsX(g.panelsX)
		case "y":
			p.SetPanelsY(g.panelsY)
		case "rot":
			p.SetRotation(g.rotation)
		case "overlap":
			p.SetOverlap(g.overlap)
		}
	})
}
