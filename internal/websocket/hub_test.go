package websocket

import (
	"testing"
	"time"

	"github.com/reelbox/reelbox_server/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, client *Client) interface{} {
	t.Helper()
	select {
	case msg := <-client.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestHub_ShouldBroadcastMediaEventsToAllClients(t *testing.T) {
	// given
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	first := NewClient(hub, nil)
	second := NewClient(hub, nil)
	hub.Register(first)
	hub.Register(second)

	// when
	hub.MediaCreated(&media.Media{ID: "m-1", Title: "Clip"})
	hub.MediaDeleted("m-1")

	// then
	for _, client := range []*Client{first, second} {
		created, ok := receive(t, client).(*MediaMessage)
		require.True(t, ok)
		assert.Equal(t, MessageTypeMediaCreated, created.Type)
		assert.Equal(t, "Clip", created.Media.Title)

		deleted, ok := receive(t, client).(*MediaMessage)
		require.True(t, ok)
		assert.Equal(t, MessageTypeMediaDeleted, deleted.Type)
		assert.Equal(t, "m-1", deleted.MediaID)
	}
	assert.Equal(t, 2, hub.ClientCount())
}

func TestHub_Unregister_ShouldCloseClientQueue(t *testing.T) {
	// given
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()
	client := NewClient(hub, nil)
	hub.Register(client)

	// when
	hub.Unregister(client)

	// then
	_, open := <-client.send
	assert.False(t, open)
	assert.Zero(t, hub.ClientCount())
	assert.False(t, client.enqueue(&OutgoingMessage{Type: MessageTypePong}), "closed client must not accept messages")
}

func TestHub_Publish_ShouldNotBlockWithoutRunLoop(t *testing.T) {
	// given
	hub := NewHub()

	// when
	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBufferSize+10; i++ {
			hub.MediaDeleted("m")
		}
		close(done)
	}()

	// then
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publishing blocked")
	}
}

func TestClient_ShouldAnswerPing(t *testing.T) {
	// given
	client := NewClient(NewHub(), nil)

	// when
	client.handleMessage(&IncomingMessage{Type: MessageTypePing})

	// then
	msg, ok := receive(t, client).(*OutgoingMessage)
	require.True(t, ok)
	assert.Equal(t, MessageTypePong, msg.Type)
}
