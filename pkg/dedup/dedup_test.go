package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeen(t *testing.T) {
	c := New(time.Minute, 100)
	k := Key("device/data/temperature", []byte(`{"fields":{"value":21.5}}`))

	assert.False(t, c.Seen(k))
	assert.True(t, c.Seen(k))
	assert.False(t, c.Seen(Key("device/data/temperature", []byte(`{"fields":{"value":21.6}}`))))
}

func TestEmptyKeyNeverDeduplicated(t *testing.T) {
	c := New(time.Minute, 100)
	assert.False(t, c.Seen(""))
	assert.False(t, c.Seen(""))
}

func TestExpiry(t *testing.T) {
	c := New(time.Nanosecond, 100)
	k := Key("t", []byte("p"))
	assert.False(t, c.Seen(k))
	time.Sleep(time.Millisecond)
	assert.False(t, c.Seen(k))
}

func TestKeySeparatesTopicAndPayload(t *testing.T) {
	// "ab" + "c" must not collide with "a" + "bc"
	assert.NotEqual(t, Key("ab", []byte("c")), Key("a", []byte("bc")))
}
