package eventbus

// Publisher is the side of the bus the pipeline depends on.
type Publisher interface {
	PublishAsync(topic string, args ...interface{}) bool
}

// Subscriber registers handlers for a topic.
type Subscriber interface {
	Subscribe(topic string, fn interface{}) error
}

// Nop discards everything. Used when a component is built without a bus.
type Nop struct{}

func (Nop) PublishAsync(string, ...interface{}) bool { return true }

var (
	_ Publisher  = (*AsyncEventBus)(nil)
	_ Subscriber = (*AsyncEventBus)(nil)
	_ Publisher  = Nop{}
)
