package export

import (
	"encoding/json"
	"io"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/harvestplan/core/model"
	"github.com/kilianp07/harvestplan/core/timeline"
)

// RouteMachine is the route of one machine in the route file.
type RouteMachine struct {
	ID    model.MachineID   `json:"id"`
	Name  string            `json:"name"`
	Kind  model.MachineKind `json:"kind"`
	Route model.Route       `json:"route"`
}

// RouteFile holds every decoded route and the rectangle enclosing the
// campaign, counter-clockwise from the lower-left corner.
type RouteFile struct {
	Machines []RouteMachine `json:"machines"`
	Bounds   []model.Point  `json:"bounds"`
}

// BuildRouteFile collects the routes of res.
func BuildRouteFile(res *timeline.Result) RouteFile {
	names := newNamer(res.Campaign)
	var rf RouteFile
	var xs, ys []float64
	add := func(p model.Point) {
		xs = append(xs, p.X)
		ys = append(ys, p.Y)
	}
	for _, id := range res.MachineIDs() {
		rm := RouteMachine{ID: id, Name: names.machine(id), Route: res.Routes[id]}
		if res.Campaign != nil {
			if m, ok := res.Campaign.Machine(id); ok {
				rm.Kind = m.Kind
			}
		}
		if rm.Route == nil {
			rm.Route = model.Route{}
		}
		for _, wp := range rm.Route {
			add(wp.Position)
		}
		rf.Machines = append(rf.Machines, rm)
	}
	if c := res.Campaign; c != nil {
		for _, f := range c.Fields {
			for _, p := range f.Boundary {
				add(p)
			}
			for _, p := range f.Accesses {
				add(p)
			}
		}
		for _, s := range c.Silos {
			for _, p := range s.Accesses {
				add(p)
			}
		}
	}
	rf.Bounds = boundingBox(xs, ys)
	return rf
}

func boundingBox(xs, ys []float64) []model.Point {
	if len(xs) == 0 {
		return []model.Point{}
	}
	minX, maxX := floats.Min(xs), floats.Max(xs)
	minY, maxY := floats.Min(ys), floats.Max(ys)
	return []model.Point{{X: minX, Y: minY}, {X: maxX, Y: minY}, {X: maxX, Y: maxY}, {X: minX, Y: maxY}}
}

// WriteRoutes writes the route file of res as JSON.
func WriteRoutes(w io.Writer, res *timeline.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(BuildRouteFile(res))
}
