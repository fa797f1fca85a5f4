package nats

import (
	"os"
	"sync"

	natsgo "github.com/nats-io/nats.go"
)

type closeFunc = func()

// Connector opens a NATS connection and returns the function releasing it.
type Connector func() (nc *natsgo.Conn, close closeFunc, err error)

// Shared hands out one connection to every caller. The connection is closed
// when the last caller released it and reopened on the next call.
func Shared(connect Connector) Connector {
	var (
		mu     sync.Mutex
		nc     *natsgo.Conn
		closer closeFunc
		leased int
	)
	release := func() {
		mu.Lock()
		defer mu.Unlock()
		if leased == 0 {
			return
		}
		leased--
		if leased == 0 {
			closer()
			nc = nil
		}
	}
	return func() (*natsgo.Conn, closeFunc, error) {
		mu.Lock()
		defer mu.Unlock()
		if leased == 0 {
			var err error
			nc, closer, err = connect()
			if err != nil {
				return nil, nil, err
			}
		}
		leased++
		var once sync.Once
		return nc, func() { once.Do(release) }, nil
	}
}

func ConnectURL(natsURL string, opts ...natsgo.Option) Connector {
	return func() (*natsgo.Conn, closeFunc, error) {
		nc, err := natsgo.Connect(
			natsURL,
			append([]natsgo.Option{
				natsgo.Name("esclient"),
				natsgo.MaxReconnects(3),
			}, opts...)...,
		)
		if err != nil {
			return nil, nil, err
		}
		return nc, func() { nc.Close() }, nil
	}
}

// ConnectDefault connects to ESCLIENT_NATS_URL, NATS_URL or the NATS
// default URL, in that order.
func ConnectDefault() Connector {
	for _, env := range []string{"ESCLIENT_NATS_URL", "NATS_URL"} {
		if natsURL := os.Getenv(env); natsURL != "" {
			return ConnectURL(natsURL)
		}
	}
	return ConnectURL(natsgo.DefaultURL)
}
