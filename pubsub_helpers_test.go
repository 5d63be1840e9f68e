package tally

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe_TypedRoundTrip(t *testing.T) {
	ps := newMemPubSub()
	v := newTestApp()
	v.Config(Options{PubSub: ps})

	type change struct {
		By  string `json:"by"`
		Val int    `json:"val"`
	}

	c := newContext("typed-ctx", "/", v)
	var got []change
	_, err := Subscribe(c, "counter.changes", func(ch change) {
		got = append(got, ch)
	})
	require.NoError(t, err)

	require.NoError(t, Publish(c, "counter.changes", change{By: "a", Val: 3}))
	require.NoError(t, Publish(c, "counter.changes", change{By: "b", Val: -1}))

	assert.Equal(t, []change{{"a", 3}, {"b", -1}}, got)
}

func TestSubscribe_SkipsBadJSON(t *testing.T) {
	ps := newMemPubSub()
	v := newTestApp()
	v.Config(Options{PubSub: ps})

	c := newContext("bad-json-ctx", "/", v)
	called := false
	_, err := Subscribe(c, "counter.shared", func(int) { called = true })
	require.NoError(t, err)

	require.NoError(t, c.Publish("counter.shared", []byte("not json")))
	assert.False(t, called)
}

func TestPublish_MarshalError(t *testing.T) {
	v := newTestApp()
	v.Config(Options{PubSub: newMemPubSub()})
	c := newContext("marshal-ctx", "/", v)

	err := Publish(c, "x", func() {})
	assert.Error(t, err)
}

type failingPubSub struct{ memPubSub }

var errBackendDown = errors.New("backend down")

func (f *failingPubSub) Subscribe(string, func([]byte)) (Subscription, error) {
	return nil, errBackendDown
}

func TestSubscribe_WrapsBackendError(t *testing.T) {
	v := newTestApp()
	v.Config(Options{PubSub: &failingPubSub{}})
	c := newContext("fail-ctx", "/", v)

	sub, err := c.Subscribe("counter.shared", func([]byte) {})
	assert.Nil(t, sub)
	assert.ErrorIs(t, err, errBackendDown)
	assert.Empty(t, c.subscriptions)
}
