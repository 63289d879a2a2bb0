package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventMessage(t *testing.T) {
	msg, err := Event{Key: "work", Value: map[string]any{"query": `title="Git*"`, "matches": 2}}.message()
	require.NoError(t, err)
	assert.Equal(t, []byte("work"), msg.Key)
	assert.JSONEq(t, `{"query":"title=\"Git*\"","matches":2}`, string(msg.Value))

	_, err = Event{Key: "bad", Value: make(chan int)}.message()
	assert.EqualError(t, err, `encoding event "bad": json: unsupported type: chan int`)
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Query   string `json:"query"`
		Matches int    `json:"matches"`
	}
	got, err := DecodeJSON[payload]([]byte(`{"query":"git","matches":1}`))
	require.NoError(t, err)
	assert.Equal(t, payload{Query: "git", Matches: 1}, got)

	_, err = DecodeJSON[payload]([]byte(`{`))
	assert.Error(t, err)
}
