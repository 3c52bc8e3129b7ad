package bus

import (
	"fmt"
	"time"

	natsd "github.com/nats-io/nats-server/v2/server"
)

type EmbeddedOptions struct {
	Host string
	// Port -1 picks a random free port.
	Port int
	// StoreDir enables JetStream when set.
	StoreDir string
}

// NewEmbeddedNats starts a NATS server inside the process and waits until
// it accepts connections. Callers connect with ConnectNats(s.ClientURL()).
func NewEmbeddedNats(o EmbeddedOptions) (*natsd.Server, error) {
	if o.Host == "" {
		o.Host = "localhost"
	}
	if o.Port == 0 {
		o.Port = 4222
	}

	opts := &natsd.Options{
		Host:      o.Host,
		Port:      o.Port,
		JetStream: o.StoreDir != "",
		StoreDir:  o.StoreDir,
		NoSigs:    true,
	}

	s, err := natsd.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedded nats: %w", err)
	}

	go s.Start()

	if !s.ReadyForConnections(5 * time.Second) {
		s.Shutdown()
		return nil, fmt.Errorf("embedded nats not ready on %s:%d", o.Host, o.Port)
	}
	return s, nil
}
