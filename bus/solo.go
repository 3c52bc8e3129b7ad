package bus

import (
	"sync"
)

const soloBuffer = 64

// SoloBus is an in-process bus for single node deployments and tests.
// A full subscriber drops messages instead of blocking the sender.
type SoloBus struct {
	m      sync.Mutex
	closed bool
	subs   map[string][]chan []byte
}

func NewSolo() *SoloBus {
	return &SoloBus{
		subs: make(map[string][]chan []byte),
	}
}

func (self *SoloBus) Send(topic string, v []byte) error {
	self.m.Lock()
	defer self.m.Unlock()

	if self.closed {
		return ErrClosed
	}

	for _, ch := range self.subs[topic] {
		select {
		case ch <- v:
		default:
		}
	}

	return nil
}

func (self *SoloBus) Recv(topic string) (chan []byte, error) {
	self.m.Lock()
	defer self.m.Unlock()

	if self.closed {
		return nil, ErrClosed
	}

	ch := make(chan []byte, soloBuffer)
	self.subs[topic] = append(self.subs[topic], ch)
	return ch, nil
}

func (self *SoloBus) Close() {
	self.m.Lock()
	defer self.m.Unlock()

	if self.closed {
		return
	}
	self.closed = true
	for _, chs := range self.subs {
		for _, ch := range chs {
			close(ch)
		}
	}
	self.subs = nil
}
