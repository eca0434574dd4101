package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kilianp07/harvestplan/core/model"
	"github.com/kilianp07/harvestplan/core/timeline"
)

// Section selects one table of the state dump.
type Section uint8

const (
	FieldStates Section = 1 << iota
	FieldOverloads
	MachineStates
	VehicleOverloads
	VehicleUnloads
	AllOverloads
	SiloStates

	AllSections = FieldStates | FieldOverloads | MachineStates | VehicleOverloads | VehicleUnloads | AllOverloads | SiloStates
)

// WriteStates dumps the decoded timelines and events as separator-delimited
// tables, one block per entity under a "*** TITLE ***" heading.
func WriteStates(w io.Writer, res *timeline.Result, comma rune, sections Section) error {
	if res == nil {
		return fmt.Errorf("export: nil result")
	}
	t := &tableWriter{w: w, csv: csv.NewWriter(w), names: newNamer(res.Campaign)}
	t.csv.Comma = comma

	if sections&FieldStates != 0 {
		t.title("FIELD STATES")
		for _, id := range res.FieldIDs() {
			t.block(t.names.field(id), "ts_start", "ts_end", "harv_state",
				"harvested_percentage_start", "harvested_percentage_end",
				"harvested_yield_mass_start", "harvested_yield_mass_end", "harvester", "tv")
			for _, iv := range res.Fields[id].Intervals() {
				t.row(num(iv.TsStart), end(iv.Span), iv.State.String(),
					num(iv.PctStart), num(iv.PctEnd), num(iv.MassStart), num(iv.MassEnd),
					t.names.machinePtr(iv.Harvester), t.names.machinePtr(iv.Vehicle))
			}
			t.blank()
		}
		t.blank()
	}

	if sections&FieldOverloads != 0 {
		t.title("FIELD OVERLOADS")
		byField := map[model.FieldID][]*timeline.OverloadEvent{}
		for _, ov := range res.Overloads {
			byField[ov.Field] = append(byField[ov.Field], ov)
		}
		for _, id := range res.FieldIDs() {
			if len(byField[id]) == 0 {
				continue
			}
			t.block(t.names.field(id), "ts_start", "ts_end", "tv", "harvester", "mass")
			for _, ov := range byField[id] {
				t.row(num(ov.TsStart), num(ov.TsEnd), t.names.machine(ov.Vehicle), t.names.machine(ov.Harvester), num(ov.Mass))
			}
			t.blank()
		}
		t.blank()
	}

	if sections&MachineStates != 0 {
		t.title("MACHINE STATES")
		for _, id := range res.MachineIDs() {
			t.block(t.names.machine(id), "ts_start", "ts_end", "loc_start", "loc_end",
				"pt_start", "pt_end", "bunker_mass_start", "bunker_mass_end",
				"transit_time_start", "transit_time_end", "action", "activity", "overloading_machine")
			for _, iv := range res.Machines[id].Intervals() {
				action := ""
				if iv.Action != 0 {
					action = iv.Action.String()
				}
				t.row(num(iv.TsStart), end(iv.Span), iv.LocStart.String(), iv.LocEnd.String(),
					point(iv.PosStart), point(iv.PosEnd), num(iv.BunkerStart), num(iv.BunkerEnd),
					num(iv.TransitStart), num(iv.TransitEnd), action, iv.Activity.String(),
					t.names.machinePtr(iv.Counterpart))
			}
			t.blank()
		}
		t.blank()
	}

	if sections&VehicleOverloads != 0 {
		t.title("TV OVERLOADS")
		for _, id := range res.MachineIDs() {
			ovs, ok := res.VehicleOverloads[id]
			if !ok {
				continue
			}
			t.block(t.names.machine(id), "ts_start", "ts_end", "field", "harvester")
			for _, ov := range ovs {
				t.row(num(ov.TsStart), num(ov.TsEnd), t.names.field(ov.Field), t.names.machine(ov.Harvester))
			}
			t.blank()
		}
		t.blank()
	}

	if sections&VehicleUnloads != 0 {
		t.title("TV UNLOADS")
		for _, id := range res.MachineIDs() {
			uls, ok := res.VehicleUnloads[id]
			if !ok {
				continue
			}
			t.block(t.names.machine(id), "ts_start", "ts_end", "silo", "field_overload", "harvester_overload")
			for _, ul := range uls {
				field, harv := "", ""
				if ul.Overload != nil {
					field, harv = t.names.field(ul.Overload.Field), t.names.machine(ul.Overload.Harvester)
				}
				t.row(num(ul.TsStart), num(ul.TsEnd), t.names.silo(ul.Silo), field, harv)
			}
			t.blank()
		}
		t.blank()
	}

	if sections&AllOverloads != 0 {
		t.title("TV OVERLOADS (ALL)")
		t.row("ts_start", "ts_end", "field", "harvester", "tv")
		for _, ov := range res.Overloads {
			t.row(num(ov.TsStart), num(ov.TsEnd), t.names.field(ov.Field), t.names.machine(ov.Harvester), t.names.machine(ov.Vehicle))
		}
		t.blank()
	}

	if sections&SiloStates != 0 {
		t.title("SILO STATES")
		for _, id := range res.SiloIDs() {
			t.block(t.names.silo(id), "ts_start", "ts_end", "yield_mass_start", "yield_mass_end")
			for _, iv := range res.Silos[id].Intervals() {
				t.row(num(iv.TsStart), end(iv.Span), num(iv.MassStart), num(iv.MassEnd))
			}
			t.blank()
		}
		t.blank()
	}

	t.csv.Flush()
	if t.err != nil {
		return t.err
	}
	return t.csv.Error()
}

// tableWriter keeps the first error so the section code stays linear.
type tableWriter struct {
	w     io.Writer
	csv   *csv.Writer
	names namer
	err   error
}

func (t *tableWriter) title(s string) {
	t.raw("*** " + s + " ***\n\n")
}

func (t *tableWriter) block(name string, header ...string) {
	t.raw(strings.ToUpper(name) + "\n")
	t.row(header...)
}

func (t *tableWriter) blank() { t.raw("\n") }

// raw writes outside the csv encoder, flushing it first to keep ordering.
func (t *tableWriter) raw(s string) {
	if t.err != nil {
		return
	}
	t.csv.Flush()
	if t.err = t.csv.Error(); t.err != nil {
		return
	}
	_, t.err = io.WriteString(t.w, s)
}

func (t *tableWriter) row(cells ...string) {
	if t.err != nil {
		return
	}
	t.err = t.csv.Write(cells)
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func end(s timeline.Span) string {
	if v, ok := s.End(); ok {
		return num(v)
	}
	return ""
}

func point(p model.Point) string { return "(" + num(p.X) + "," + num(p.Y) + ")" }

// namer resolves entity names from the campaign, falling back to kind and id.
type namer struct{ c *model.Campaign }

func newNamer(c *model.Campaign) namer { return namer{c: c} }

func (n namer) machine(id model.MachineID) string {
	if n.c != nil {
		if m, ok := n.c.Machine(id); ok && m.Name != "" {
			return m.Name
		}
	}
	return fmt.Sprintf("machine_%d", id)
}

func (n namer) machinePtr(id *model.MachineID) string {
	if id == nil {
		return ""
	}
	return n.machine(*id)
}

func (n namer) field(id model.FieldID) string {
	if n.c != nil {
		if f, ok := n.c.Field(id); ok && f.Name != "" {
			return f.Name
		}
	}
	return fmt.Sprintf("field_%d", id)
}

func (n namer) silo(id model.SiloID) string {
	if n.c != nil {
		if s, ok := n.c.Silo(id); ok && s.Name != "" {
			return s.Name
		}
	}
	return fmt.Sprintf("silo_%d", id)
}
