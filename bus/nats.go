package bus

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
)

var ErrClosed = errors.New("bus closed")

type Nats struct {
	nc *nats.Conn
	js nats.JetStreamContext

	m    sync.Mutex
	subs []*nats.Subscription
	msgs []chan *nats.Msg
}

// ConnectNats dials url, or nats.DefaultURL when empty.
func ConnectNats(url string) (*Nats, error) {
	if url == "" {
		url = nats.DefaultURL
	}

	nc, err := nats.Connect(url, nats.Name("mintdb"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Nats{nc: nc}, nil
}

// EnsureStream creates a file backed JetStream stream capturing
// subject and everything below it. Later sends are published through
// JetStream and wait for the stream ack.
func (n *Nats) EnsureStream(subject string) error {
	js, err := n.nc.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create jetstream context: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     strings.ReplaceAll(subject, ".", "_"),
		Subjects: []string{subject + ".>"},
		Replicas: 1,
		Storage:  nats.FileStorage,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("Error creating jetstream [needs a nats-server with -js] : %w", err)
	}

	n.m.Lock()
	n.js = js
	n.m.Unlock()
	return nil
}

func (n *Nats) Send(topic string, v []byte) error {
	n.m.Lock()
	js := n.js
	n.m.Unlock()

	if n.nc.IsClosed() {
		return ErrClosed
	}
	if js != nil {
		_, err := js.Publish(topic, v)
		return err
	}
	return n.nc.Publish(topic, v)
}

// Recv subscribes to topic, which may contain NATS wildcards.
func (n *Nats) Recv(topic string) (chan []byte, error) {
	n.m.Lock()
	defer n.m.Unlock()

	if n.nc.IsClosed() {
		return nil, ErrClosed
	}

	msgs := make(chan *nats.Msg, soloBuffer)
	sub, err := n.nc.ChanSubscribe(topic, msgs)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	n.subs = append(n.subs, sub)
	n.msgs = append(n.msgs, msgs)

	// flush so the subscription is registered before the caller sends
	if err := n.nc.Flush(); err != nil {
		return nil, err
	}

	out := make(chan []byte, soloBuffer)
	go func() {
		defer close(out)
		for msg := range msgs {
			out <- msg.Data
		}
	}()
	return out, nil
}

func (n *Nats) Close() {
	n.m.Lock()
	subs, msgs := n.subs, n.msgs
	n.subs, n.msgs = nil, nil
	n.m.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	n.nc.Close()

	for _, ch := range msgs {
		close(ch)
	}
}
