package transport_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/mpcstats/transport"
	"go.dedis.ch/mpcstats/transport/channel"
)

func Test_Metrics_Instrument(t *testing.T) {
	n := channel.NewNetwork()
	a := transport.Endpoint{ID: 0}
	b := transport.Endpoint{ID: 1}

	var chA, chB map[int]transport.Channel
	wg := sync.WaitGroup{}
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		chA, err = n.Transport().Connect(context.Background(), a, []transport.Endpoint{b})
		require.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		var err error
		chB, err = n.Transport().Connect(context.Background(), b, []transport.Endpoint{a})
		require.NoError(t, err)
	}()
	wg.Wait()

	reg := prometheus.NewRegistry()
	mA := transport.NewMetrics(0, reg)
	mB := transport.NewMetrics(1, reg)

	sender := transport.Instrument(chA[1], mA)
	receiver := transport.Instrument(chB[0], mB)

	header := transport.NewHeader(0, 1, "s")
	pkt := transport.Packet{Header: &header, Msg: &transport.Message{Type: "t", Payload: []byte("12345")}}

	require.NoError(t, sender.Send(pkt, 0))
	require.NoError(t, sender.Send(pkt, 0))
	for i := 0; i < 2; i++ {
		_, err := receiver.Recv(time.Second)
		require.NoError(t, err)
	}

	require.Equal(t, 2.0, testutil.ToFloat64(mA.PacketsSent))
	require.Equal(t, 10.0, testutil.ToFloat64(mA.BytesSent))
	require.Equal(t, 2.0, testutil.ToFloat64(mB.PacketsRecv))
	require.Equal(t, 10.0, testutil.ToFloat64(mB.BytesRecv))

	// failed receptions are not counted
	_, err := receiver.Recv(10 * time.Millisecond)
	require.Error(t, err)
	require.Equal(t, 2.0, testutil.ToFloat64(mB.PacketsRecv))

	// registering the same party again reuses the counters
	again := transport.NewMetrics(0, reg)
	require.Equal(t, 2.0, testutil.ToFloat64(again.PacketsSent))
}
