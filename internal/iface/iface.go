// Package iface prints the externally visible interface of the entrypoint
// component: its events with their delays and state counts and its input
// and output ports with their availability.
package iface

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"filament/internal/ir"
	"filament/internal/source"
)

var ErrNoEntrypoint = errors.New("iface: no entrypoint")

// States returns, for each event, the largest end offset of a port range
// on that event. It is the number of states an FSM for the event needs.
func States(c *ir.Component) (map[ir.EventIdx]uint64, error) {
	states := make(map[ir.EventIdx]uint64)
	var err error
	c.Ports.Iter(func(idx ir.PortIdx, p ir.Port) {
		if err != nil {
			return
		}
		end := c.Time(p.Live.Range.End)
		v, ok := end.Offset.AsConcrete(c)
		if !ok {
			err = fmt.Errorf("iface: port %s ends at non-constant time %s", c.DisplayPort(idx), c.DisplayTime(p.Live.Range.End))
			return
		}
		states[end.Event] = max(states[end.Event], v)
	})
	return states, err
}

type printer struct {
	ctx  *ir.Context
	main *ir.Component
	src  *ir.InterfaceSrc
}

// name renders an identifier as a JSON string, or null when it is absent.
func (p *printer) name(id source.NameID, ok bool) string {
	if !ok || id == source.NoName || int(id) >= p.ctx.Names.Len() {
		return "null"
	}
	return `"` + p.ctx.Names.MustLookup(id) + `"`
}

func (p *printer) event(e ir.EventIdx) string {
	id, ok := p.src.Events[e]
	return p.name(id, ok)
}

func (p *printer) interfaces() (string, error) {
	states, err := States(p.main)
	if err != nil {
		return "", err
	}
	var lines []string
	for _, idx := range p.main.Events.Idxs() {
		ev := p.main.Events.Get(idx)
		unit, ok := ev.Delay.AsUnit()
		if !ok {
			return "", fmt.Errorf("iface: event %s has a non-simple delay", p.main.DisplayEvent(idx))
		}
		delay, ok := unit.AsConcrete(p.main)
		if !ok {
			return "", fmt.Errorf("iface: event %s has a non-constant delay", p.main.DisplayEvent(idx))
		}
		id, hasID := p.src.InterfacePorts[idx]
		lines = append(lines, fmt.Sprintf(`{"name": %s, "event": %s, "delay": %d, "states": %d, "phantom": %t }`,
			p.name(id, hasID), p.event(idx), delay, states[idx], !ev.HasInterface))
	}
	return strings.Join(lines, ",\n"), nil
}

func (p *printer) ports(ports []ir.PortIdx) (string, error) {
	var lines []string
	for _, idx := range ports {
		port := p.main.Ports.Get(idx)
		if port.Live.Dims() > 1 || (port.Live.Dims() == 1 && !port.Live.Lens[0].IsConst(p.main, 1)) {
			return "", fmt.Errorf("iface: entrypoint port %s is a bundle", p.main.DisplayPort(idx))
		}
		width, ok := port.Width.AsConcrete(p.main)
		if !ok {
			return "", fmt.Errorf("iface: port %s has a non-constant width", p.main.DisplayPort(idx))
		}
		start, end := p.main.Time(port.Live.Range.Start), p.main.Time(port.Live.Range.End)
		if start.Event != end.Event {
			return "", fmt.Errorf("iface: range %s of port %s is not a simple offset", p.main.DisplayRange(port.Live.Range), p.main.DisplayPort(idx))
		}
		st, ok1 := start.Offset.AsConcrete(p.main)
		en, ok2 := end.Offset.AsConcrete(p.main)
		if !ok1 || !ok2 {
			return "", fmt.Errorf("iface: range %s of port %s is not constant", p.main.DisplayRange(port.Live.Range), p.main.DisplayPort(idx))
		}
		id, hasID := p.src.Ports[idx]
		lines = append(lines, fmt.Sprintf(`{ "event": %s, "name": %s, "width": %d , "start": %d, "end": %d }`,
			p.event(start.Event), p.name(id, hasID), width, st, en))
	}
	return strings.Join(lines, ",\n"), nil
}

// Write prints the interface of the entrypoint of a monomorphized context.
func Write(w io.Writer, ctx *ir.Context) error {
	if ctx.Entrypoint == nil {
		return ErrNoEntrypoint
	}
	main := ctx.Get(ctx.Entrypoint.Comp)
	if main.Src == nil {
		return fmt.Errorf("iface: entrypoint %s has no source names", ctx.Entrypoint.Comp)
	}
	p := &printer{ctx: ctx, main: main, src: main.Src}
	ifaces, err := p.interfaces()
	if err != nil {
		return err
	}
	inputs, err := p.ports(main.Inputs())
	if err != nil {
		return err
	}
	outputs, err := p.ports(main.Outputs())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "{\n\"interfaces\": [\n%s\n],\n\"inputs\": [\n%s\n],\n\"outputs\": [\n%s\n]\n}\n", ifaces, inputs, outputs)
	return err
}
