package framing

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"moto/internal/datum"
)

func TestReaderDecodesFramesFromConn(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := NewReader(ctx, server)

	go func() {
		var buf bytes.Buffer
		_ = datum.Encode(datum.NewLive(0, 1, 16), &buf)
		_ = datum.Encode(datum.NewLive(1, 2, 16), &buf)
		client.Write(buf.Bytes())
	}()

	var got []datum.Datum
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case d := <-reader.Datums:
			got = append(got, d)
		case err := <-reader.Err:
			t.Fatalf("unexpected error: %v", err)
		case <-timeout:
			t.Fatal("timed out waiting for frames")
		}
	}
	require.Equal(t, uint64(1), got[0].FrameNum)
	require.Equal(t, uint64(2), got[1].FrameNum)
}

func TestReaderClosesDatumsOnEOF(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := NewReader(ctx, server)
	client.Close()

	select {
	case _, ok := <-reader.Datums:
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}
