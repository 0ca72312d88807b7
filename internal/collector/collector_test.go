package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"bus-collector/internal/gtfs"
)

type stubFetcher struct {
	msg *gtfsrt.FeedMessage
	err error
}

func (f *stubFetcher) Fetch(ctx context.Context) (*gtfsrt.FeedMessage, error) {
	return f.msg, f.err
}

type stubStore struct {
	rows []gtfs.VehiclePosition
	err  error
}

func (s *stubStore) InsertPositions(ctx context.Context, positions []gtfs.VehiclePosition) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.rows = append(s.rows, positions...)
	return len(positions), nil
}

type stubPublisher struct {
	published []gtfs.VehiclePosition
}

func (p *stubPublisher) PublishPosition(pos gtfs.VehiclePosition) error {
	p.published = append(p.published, pos)
	return nil
}

func snapshot(vehicleIDs ...string) *gtfsrt.FeedMessage {
	msg := &gtfsrt.FeedMessage{
		Header: &gtfsrt.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(1700000030),
		},
	}
	for _, id := range vehicleIDs {
		msg.Entity = append(msg.Entity, &gtfsrt.FeedEntity{
			Id: proto.String(id),
			Vehicle: &gtfsrt.VehiclePosition{
				Vehicle: &gtfsrt.VehicleDescriptor{Id: proto.String(id)},
				Position: &gtfsrt.Position{
					Latitude:  proto.Float32(47.6),
					Longitude: proto.Float32(-122.3),
				},
			},
		})
	}
	return msg
}

func TestCollectOnceStoresAllEntities(t *testing.T) {
	store := &stubStore{}
	c := New(&stubFetcher{msg: snapshot("7427", "7428", "7429")}, store, nil, nil, 30*time.Second)

	n, err := c.CollectOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, store.rows, 3)
	assert.Equal(t, "7427", store.rows[0].VehicleID)
	assert.Equal(t, int64(1700000030), store.rows[0].FeedTimestamp)
}

func TestCollectOnceEmptyFeedSkipsInsert(t *testing.T) {
	store := &stubStore{err: errors.New("insert must not be called")}
	c := New(&stubFetcher{msg: snapshot()}, store, nil, nil, 30*time.Second)

	n, err := c.CollectOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCollectOnceFetchErrorSkipsCycle(t *testing.T) {
	store := &stubStore{}
	c := New(&stubFetcher{err: errors.New("connection reset")}, store, nil, nil, 30*time.Second)

	n, err := c.CollectOnce(context.Background())
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Empty(t, store.rows)
}

func TestCollectOnceStoreErrorReturned(t *testing.T) {
	store := &stubStore{err: errors.New("connection dropped mid-write")}
	c := New(&stubFetcher{msg: snapshot("7427")}, store, nil, nil, 30*time.Second)

	n, err := c.CollectOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store positions")
	assert.Zero(t, n)
}

func TestConsecutiveCyclesAppend(t *testing.T) {
	store := &stubStore{}
	fetcher := &stubFetcher{msg: snapshot("7427")}
	c := New(fetcher, store, nil, nil, 30*time.Second)

	_, err := c.CollectOnce(context.Background())
	require.NoError(t, err)

	// Same vehicle in the next snapshot produces a second row, no overwrite.
	fetcher.msg = snapshot("7427")
	_, err = c.CollectOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, store.rows, 2)
	assert.Equal(t, store.rows[0].VehicleID, store.rows[1].VehicleID)
}

func TestCollectOncePublishesStoredPositions(t *testing.T) {
	store := &stubStore{}
	pub := &stubPublisher{}
	c := New(&stubFetcher{msg: snapshot("7427", "7428")}, store, pub, nil, 30*time.Second)

	_, err := c.CollectOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, pub.published, 2)
	assert.Equal(t, "7427", pub.published[0].VehicleID)
}

func TestRunStopsOnCancel(t *testing.T) {
	store := &stubStore{}
	c := New(&stubFetcher{msg: snapshot("7427")}, store, nil, nil, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	// The immediate first cycle should complete, then cancellation stops the loop.
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
	assert.Len(t, store.rows, 1)
}
