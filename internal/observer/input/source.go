package input

// ChannelSource is a Source fed programmatically. The daemon uses it as the
// default when no platform capture backend is available, and tests drive it
// directly.
type ChannelSource struct {
	keys  chan KeyEvent
	focus chan FocusEvent
}

func NewChannelSource() *ChannelSource {
	return &ChannelSource{
		keys:  make(chan KeyEvent, 256),
		focus: make(chan FocusEvent, 64),
	}
}

func (s *ChannelSource) Start() error { return nil }

func (s *ChannelSource) Stop() {}

func (s *ChannelSource) Keys() <-chan KeyEvent { return s.keys }

func (s *ChannelSource) Focus() <-chan FocusEvent { return s.focus }

// PushKey injects a key event. Drops when the buffer is full rather than
// blocking the capture thread.
func (s *ChannelSource) PushKey(ev KeyEvent) {
	select {
	case s.keys <- ev:
	default:
	}
}

// PushFocus injects a focus event.
func (s *ChannelSource) PushFocus(ev FocusEvent) {
	select {
	case s.focus <- ev:
	default:
	}
}
