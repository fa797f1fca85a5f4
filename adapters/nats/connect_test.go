package nats

import (
	"errors"
	"testing"

	natsgo "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

func TestShared(t *testing.T) {
	var opened, closed int
	connect := Shared(func() (*natsgo.Conn, closeFunc, error) {
		opened++
		return &natsgo.Conn{}, func() { closed++ }, nil
	})

	nc1, release1, err := connect()
	require.NoError(t, err)
	nc2, release2, err := connect()
	require.NoError(t, err)
	require.Same(t, nc1, nc2)
	require.Equal(t, 1, opened)

	release1()
	release1()
	require.Zero(t, closed, "released twice by the same lease")

	release2()
	require.Equal(t, 1, closed)

	nc3, release3, err := connect()
	require.NoError(t, err)
	require.NotSame(t, nc1, nc3)
	require.Equal(t, 2, opened)
	release3()
	require.Equal(t, 2, closed)
}

func TestShared_ConnectError(t *testing.T) {
	boom := errors.New("boom")
	connect := Shared(func() (*natsgo.Conn, closeFunc, error) { return nil, nil, boom })
	_, _, err := connect()
	require.ErrorIs(t, err, boom)
}

func TestConnect_Container(t *testing.T) {
	connect := Shared(NewTestContainer(t))
	nc1, disconnect1, err := connect()
	require.NoError(t, err)
	require.Equal(t, natsgo.CONNECTED, nc1.Status())

	nc2, disconnect2, err := connect()
	require.NoError(t, err)
	require.Same(t, nc1, nc2)

	disconnect1()
	require.Equal(t, natsgo.CONNECTED, nc1.Status())
	disconnect2()
	require.Equal(t, natsgo.CLOSED, nc1.Status())
}
