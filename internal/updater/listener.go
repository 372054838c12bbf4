package updater

// EventKind tags an Event.
type EventKind int

const (
	// EventUpdateFound carries a changelog and a package path.
	EventUpdateFound EventKind = iota + 1
	// EventError carries the error reported by a collaborator.
	EventError
)

// String returns the string representation of an EventKind.
func (k EventKind) String() string {
	switch k {
	case EventUpdateFound:
		return "update-found"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single cycle outcome.
type Event struct {
	Kind        EventKind
	Changelog   []string
	PackagePath string
	Err         error
}

// ChannelListener turns listener callbacks into Events on a channel.
// Callbacks block while the channel buffer is full.
type ChannelListener struct {
	events chan Event
}

// NewChannelListener creates a ChannelListener with the given buffer size.
func NewChannelListener(size int) *ChannelListener {
	return &ChannelListener{events: make(chan Event, size)}
}

// OnUpdateFound implements Listener.
func (l *ChannelListener) OnUpdateFound(changelog []string, packagePath string) {
	l.events <- Event{Kind: EventUpdateFound, Changelog: changelog, PackagePath: packagePath}
}

// OnError implements Listener.
func (l *ChannelListener) OnError(err error) {
	l.events <- Event{Kind: EventError, Err: err}
}

// Events returns the receive side of the event channel.
func (l *ChannelListener) Events() <-chan Event {
	return l.events
}
