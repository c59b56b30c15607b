/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		cautionPercent: 50,
		dangerPercent:  100,
		sensorLow:      0.01,
		sensorHigh:     0.6,
		sensorHalf:     0.5,
		sensorFull:     1.0,
		deviceInterval: time.Second,
	}
}

func startTestHub(t *testing.T) (*Hub, chan struct{}) {
	t.Helper()

	cfg := testConfig()
	hub := newHub(cfg, newRoster(cfg.thresholds()))

	done := make(chan struct{})
	go hub.run(done)

	return hub, done
}

// test clients have no websocket connection; the hub only ever touches
// their send channels until they unregister.
func newTestClient(connID, name string, capacity, consumed float64) *Client {
	return &Client{
		send:     make(chan any, 16),
		connID:   connID,
		name:     name,
		capacity: capacity,
		consumed: consumed,
	}
}

func recv(t *testing.T, c *Client) any {
	t.Helper()

	select {
	case msg, ok := <-c.send:
		require.True(t, ok, "send channel closed unexpectedly")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func recvRoster(t *testing.T, c *Client) rosterMessage {
	t.Helper()

	msg, ok := recv(t, c).(rosterMessage)
	require.True(t, ok, "expected a roster message, got %T", msg)
	return msg
}

func stopTestHub(hub *Hub, done chan struct{}, clients ...*Client) {
	for _, c := range clients {
		hub.unreg <- c
	}
	close(done)
}

func TestHubRegisterBroadcastsRoster(t *testing.T) {
	hub, done := startTestHub(t)

	alice := newTestClient("c1", "Alice", 2, 0)
	hub.register <- alice

	msg := recvRoster(t, alice)
	require.Len(t, msg.Users, 1)
	assert.Equal(t, "Alice", msg.Users[0].Name)
	assert.Equal(t, 2.0, msg.Users[0].Capacity)
	assert.Equal(t, StatusNormal, msg.Users[0].Status)

	bob := newTestClient("c2", "Bob", 4, 3)
	hub.register <- bob

	for _, c := range []*Client{alice, bob} {
		msg := recvRoster(t, c)
		require.Len(t, msg.Users, 2)
		assert.Equal(t, "Alice", msg.Users[0].Name)
		assert.Equal(t, "Bob", msg.Users[1].Name)
		assert.Equal(t, StatusCaution, msg.Users[1].Status)
	}

	stopTestHub(hub, done, alice, bob)
}

func TestHubAdmitThenRemoveBroadcastsTwice(t *testing.T) {
	hub, done := startTestHub(t)

	observer := newTestClient("c1", "Observer", 2, 0)
	hub.register <- observer
	recvRoster(t, observer)

	alice := newTestClient("c2", "Alice", 2, 0)
	hub.register <- alice

	joined := recvRoster(t, observer)
	require.Len(t, joined.Users, 2)

	hub.unreg <- alice

	left := recvRoster(t, observer)
	require.Len(t, left.Users, 1)
	assert.Equal(t, "Observer", left.Users[0].Name)
	assert.Equal(t, 1, hub.roster.Len())

	// alice's own channel was closed on unregister
	recvRoster(t, alice)
	_, open := <-alice.send
	assert.False(t, open)

	stopTestHub(hub, done, observer)
}

func TestHubChatEchoesToAllIncludingSender(t *testing.T) {
	hub, done := startTestHub(t)

	alice := newTestClient("c1", "Alice", 2, 0)
	bob := newTestClient("c2", "Bob", 2, 0)
	hub.register <- alice
	recvRoster(t, alice)
	hub.register <- bob
	recvRoster(t, alice)
	recvRoster(t, bob)

	hub.chats <- chatRequest{client: alice, body: "hi"}

	for _, c := range []*Client{alice, bob} {
		msg, ok := recv(t, c).(chatMessage)
		require.True(t, ok)
		assert.Equal(t, "Alice", msg.Sender)
		assert.Equal(t, "hi", msg.Body)
	}

	stopTestHub(hub, done, alice, bob)
}

func TestHubSensorReadingsIncrementEveryone(t *testing.T) {
	hub, done := startTestHub(t)

	alice := newTestClient("c1", "Alice", 2, 0)
	hub.register <- alice
	recvRoster(t, alice)

	hub.readings <- []byte("0.8")

	msg := recvRoster(t, alice)
	require.Len(t, msg.Users, 1)
	assert.Equal(t, 1.0, msg.Users[0].Consumed)
	assert.Equal(t, StatusCaution, msg.Users[0].Status)

	// an unparseable payload is logged and applied to nobody; the next
	// valid reading shows only its own delta
	hub.readings <- []byte("junk")
	hub.readings <- []byte("0.3")

	msg = recvRoster(t, alice)
	assert.Equal(t, 1.5, msg.Users[0].Consumed)
	assert.Equal(t, StatusCaution, msg.Users[0].Status)

	hub.readings <- []byte("0.9")

	msg = recvRoster(t, alice)
	assert.Equal(t, 2.5, msg.Users[0].Consumed)
	assert.Equal(t, StatusDanger, msg.Users[0].Status)

	stopTestHub(hub, done, alice)
}

func TestHubDuplicateConnectionIsRejected(t *testing.T) {
	hub, done := startTestHub(t)

	alice := newTestClient("dup", "Alice", 2, 0)
	hub.register <- alice
	recvRoster(t, alice)

	mallory := newTestClient("dup", "Mallory", 3, 0)
	hub.register <- mallory

	msg, ok := recv(t, mallory).(redirectMessage)
	require.True(t, ok)
	assert.Equal(t, "/", msg.URL)

	_, open := <-mallory.send
	assert.False(t, open)

	assert.Equal(t, 1, hub.roster.Len())
	assert.Equal(t, "Alice", hub.roster.Snapshot()[0].Name)

	stopTestHub(hub, done, alice)
}

func TestHubRejectedDuplicateDisconnectKeepsOriginal(t *testing.T) {
	hub, done := startTestHub(t)

	alice := newTestClient("dup", "Alice", 2, 0)
	hub.register <- alice
	recvRoster(t, alice)

	mallory := newTestClient("dup", "Mallory", 3, 0)
	hub.register <- mallory

	_, ok := recv(t, mallory).(redirectMessage)
	require.True(t, ok)

	// mallory's read pump winds down like any other disconnect; the
	// shared connID must not evict alice
	hub.unreg <- mallory

	assert.Equal(t, 1, hub.roster.Len())
	assert.Equal(t, "Alice", hub.roster.Snapshot()[0].Name)

	// and no spurious roster broadcast: the next message alice sees is chat
	hub.chats <- chatRequest{client: alice, body: "still pouring"}

	msg, ok := recv(t, alice).(chatMessage)
	require.True(t, ok)
	assert.Equal(t, "still pouring", msg.Body)

	stopTestHub(hub, done, alice)
}

func TestHubUnknownDisconnectIsIgnored(t *testing.T) {
	hub, done := startTestHub(t)

	alice := newTestClient("c1", "Alice", 2, 0)
	hub.register <- alice
	recvRoster(t, alice)

	ghost := newTestClient("ghost", "Ghost", 2, 0)
	hub.unreg <- ghost

	assert.Equal(t, 1, hub.roster.Len())

	// no spurious roster broadcast: the next message alice sees is chat
	hub.chats <- chatRequest{client: alice, body: "still here"}

	msg, ok := recv(t, alice).(chatMessage)
	require.True(t, ok)
	assert.Equal(t, "still here", msg.Body)

	stopTestHub(hub, done, alice)
}

func TestHubRejectUnauthenticated(t *testing.T) {
	cfg := testConfig()
	hub := newHub(cfg, newRoster(cfg.thresholds()))

	c := newTestClient("c1", "", 0, 0)
	hub.rejectUnauthenticated(c)

	msg, ok := (<-c.send).(redirectMessage)
	require.True(t, ok)
	assert.Equal(t, "redirect", msg.Type)
	assert.Equal(t, "/", msg.URL)

	_, open := <-c.send
	assert.False(t, open)

	assert.Equal(t, 0, hub.roster.Len())
}
