package bus

// Bus carries change events between processes. Delivery is best effort.
type Bus interface {
	Send(topic string, v []byte) error
	Recv(topic string) (chan []byte, error)
	Close()
}
