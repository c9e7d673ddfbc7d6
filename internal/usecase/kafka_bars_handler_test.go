package usecase

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaBarsHandlerStoresBar(t *testing.T) {
	store := &memStore{}
	cache := newMemPriceCache()
	h := NewKafkaBarsHandler("meanrev.bars.raw", store, cache, nopMetrics{})
	assert.Equal(t, "meanrev.bars.raw", h.Topic())

	ts := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC).Unix()
	msg := []byte(`{"pair":"EURUSD","t":` + strconv.FormatInt(ts, 10) + `,"o":1.0999,"h":1.1005,"l":1.0995,"c":1.1001,"v":1200,"s":0.0001}`)

	require.NoError(t, h.Handle(context.Background(), msg))

	bars, err := store.LatestN(context.Background(), "EURUSD", 10)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, "EURUSD", bars[0].Pair)
	assert.Equal(t, 1.1001, bars[0].Close)
	assert.Equal(t, time.Unix(ts, 0).UTC(), bars[0].Timestamp)

	price, err := cache.GetPrice(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, 1.1001, price)
}

func TestKafkaBarsHandlerMillisecondTimestamps(t *testing.T) {
	store := &memStore{}
	h := NewKafkaBarsHandler("bars", store, newMemPriceCache(), nopMetrics{})

	sec := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC).Unix()
	msg := []byte(`{"pair":"EURUSD","t":` + strconv.FormatInt(sec*1000, 10) + `,"c":1.1}`)
	require.NoError(t, h.Handle(context.Background(), msg))

	bars, err := store.LatestN(context.Background(), "EURUSD", 1)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, sec, bars[0].Timestamp.Unix())
}

func TestKafkaBarsHandlerRejectsGarbage(t *testing.T) {
	h := NewKafkaBarsHandler("bars", &memStore{}, newMemPriceCache(), nopMetrics{})
	assert.Error(t, h.Handle(context.Background(), []byte("not json")))
}
