package kafka

import (
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue([]byte(`raw`))
	require.NoError(t, err)
	assert.Equal(t, []byte(`raw`), b)

	b, err = encodeValue("text")
	require.NoError(t, err)
	assert.Equal(t, []byte("text"), b)

	b, err = encodeValue(map[string]float64{"price": 1.1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":1.1}`, string(b))
}

func TestParseCompression(t *testing.T) {
	assert.Equal(t, kafka.Snappy, parseCompression("snappy"))
	assert.Equal(t, kafka.Zstd, parseCompression("zstd"))
	// unknown values fall back to gzip
	assert.Equal(t, kafka.Gzip, parseCompression("brotli"))
}

func TestBackoffWithJitterBounds(t *testing.T) {
	for attempt := 1; attempt <= 6; attempt++ {
		for i := 0; i < 20; i++ {
			d := backoffWithJitter(50*time.Millisecond, 2*time.Second, attempt)
			assert.Greater(t, d, time.Duration(0))
			assert.LessOrEqual(t, d, 2*time.Second)
		}
	}
}

func TestPartitionLockIsStable(t *testing.T) {
	c := &Consumer{partLocks: map[string]map[int]*sync.Mutex{}}

	a := c.partitionLock("bars", 0)
	b := c.partitionLock("bars", 0)
	assert.Same(t, a, b)

	other := c.partitionLock("bars", 1)
	assert.NotSame(t, a, other)
}
