package pipeline

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// NopSink drops every event.
type NopSink struct{}

func (NopSink) OnEvent(Event) {}

// Recorder keeps the events it receives, in order.
type Recorder struct {
	Events []Event
}

func (r *Recorder) OnEvent(evt Event) { r.Events = append(r.Events, evt) }
