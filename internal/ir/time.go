package ir

import "fmt"

// Time is a point in time: offset cycles after event.
type Time struct {
	Event  EventIdx
	Offset ExprIdx
}

func (t Time) String() string {
	return fmt.Sprintf("%s+%s", t.Event, t.Offset)
}

// TimeSub is the directed difference of two times. When both times share an
// event the difference is a plain expression (Unit); otherwise it stays
// symbolic and can only be compared, never added to a time.
type TimeSub struct {
	Sym  bool
	Unit ExprIdx
	L, R TimeIdx
}

// UnitSub wraps an expression as a time difference.
func UnitSub(e ExprIdx) TimeSub { return TimeSub{Unit: e} }

// SymSub builds the opaque difference l - r.
func SymSub(l, r TimeIdx) TimeSub { return TimeSub{Sym: true, L: l, R: r} }

func (ts TimeSub) String() string {
	if ts.Sym {
		return fmt.Sprintf("|%s - %s|", ts.L, ts.R)
	}
	return ts.Unit.String()
}

// AsUnit returns the expression of a Unit difference.
func (ts TimeSub) AsUnit() (ExprIdx, bool) {
	if ts.Sym {
		return 0, false
	}
	return ts.Unit, true
}

// TimeCtx can look up and intern times.
type TimeCtx interface {
	ExprCtx
	Time(TimeIdx) Time
	AddTime(Time) TimeIdx
}

// Sub returns t - o.
func (t TimeIdx) Sub(o TimeIdx, ctx TimeCtx) TimeSub {
	l, r := ctx.Time(t), ctx.Time(o)
	if l.Event == r.Event {
		return UnitSub(l.Offset.Sub(r.Offset, ctx))
	}
	return SymSub(t, o)
}

// Event returns the event t is relative to.
func (t TimeIdx) Event(ctx TimeCtx) EventIdx {
	return ctx.Time(t).Event
}

// Shift adds a Unit difference to t. Adding a symbolic difference has no
// meaning and is a compiler bug.
func (t TimeIdx) Shift(ts TimeSub, ctx TimeCtx) TimeIdx {
	if ts.Sym {
		panic(fmt.Sprintf("internal error: cannot add %s and %s", t, ts))
	}
	tm := ctx.Time(t)
	return ctx.AddTime(Time{Event: tm.Event, Offset: tm.Offset.Add(ts.Unit, ctx)})
}
