package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

func TestClientFetch(t *testing.T) {
	msg := &gtfsrt.FeedMessage{
		Header: feedHeader(1700000030),
		Entity: []*gtfsrt.FeedEntity{vehicleEntity("1", fullVehicle())},
	}
	body, err := proto.Marshal(msg)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-protobuf")
		w.Write(body)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	got, err := client.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got.Entity, 1)
	assert.Equal(t, uint64(1700000030), got.Header.GetTimestamp())
	assert.Equal(t, "7427", got.Entity[0].Vehicle.Vehicle.GetId())
}

func TestClientFetchNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestClientFetchMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a protobuf message, not even close"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode protobuf")
}

func TestClientFetchConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.Fetch(context.Background())
	require.Error(t, err)
}
