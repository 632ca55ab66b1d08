package syncer

// ChannelNotifier is a Notifier fed by explicit connectivity reports, e.g.
// from the client posting its online/offline state
type ChannelNotifier struct {
	ch chan bool
}

// NewChannelNotifier creates a buffered connectivity notifier
func NewChannelNotifier() *ChannelNotifier {
	return &ChannelNotifier{ch: make(chan bool, 8)}
}

// Online returns the connectivity channel
func (n *ChannelNotifier) Online() <-chan bool {
	return n.ch
}

// Report publishes a connectivity state. Reports are dropped when the buffer
// is full: the coordinator only cares about the latest transition.
func (n *ChannelNotifier) Report(online bool) {
	select {
	case n.ch <- online:
	default:
	}
}
