// Package visitor walks the command lists of components and lets passes
// rewrite them.
//
// A pass implements Visitor, usually by embedding Base and overriding the
// hooks it cares about. Run visits every defined component of a context in
// dependency order: a component is visited only after every component it
// instantiates.
package visitor

import "filament/internal/ir"

type actionKind uint8

const (
	actContinue actionKind = iota
	actStop
	actAddBefore
	actChange
)

// Action tells the traversal what to do with the command just visited.
type Action struct {
	kind actionKind
	cmds []ir.Command
}

var (
	// Continue keeps the command and goes on.
	Continue = Action{kind: actContinue}
	// Stop keeps the command and every command after it untouched and ends
	// the traversal of the component.
	Stop = Action{kind: actStop}
)

// AddBefore inserts cmds right before the current command. Inserted
// commands are not visited by the running traversal.
func AddBefore(cmds ...ir.Command) Action {
	return Action{kind: actAddBefore, cmds: cmds}
}

// Change replaces the current command with cmds, possibly none.
func Change(cmds ...ir.Command) Action {
	return Action{kind: actChange, cmds: cmds}
}

// Cmds returns the commands carried by AddBefore and Change.
func (a Action) Cmds() []ir.Command { return a.cmds }

// AndThen runs next only if a is Continue.
func (a Action) AndThen(next func() Action) Action {
	if a.kind == actContinue {
		return next()
	}
	return a
}

func (a Action) String() string {
	switch a.kind {
	case actStop:
		return "stop"
	case actAddBefore:
		return "add-before"
	case actChange:
		return "change"
	}
	return "continue"
}
