package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRooms(t *testing.T) {
	c := NewCollector()

	c.RecordRoomCreated()
	c.RecordRoomCreated()
	c.RecordRoomRestored()
	c.RecordRoomDeleted()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.roomsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.roomsRestored))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.roomsActive))
}

func TestCollectorPlaybackCommands(t *testing.T) {
	c := NewCollector()

	c.RecordPlaybackCommand("seek", true)
	c.RecordPlaybackCommand("seek", false)
	c.RecordPlaybackCommand("seek", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.playbackCommands.WithLabelValues("seek", "accepted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.playbackCommands.WithLabelValues("seek", "rejected")))
}

func TestCollectorHandler(t *testing.T) {
	c := NewCollector()
	c.RecordMessage("text")
	c.RecordConnectionOpened()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `watchparty_messages_total{type="text"} 1`)
	assert.Contains(t, string(body), "watchparty_ws_connections_open 1")
	assert.Contains(t, string(body), "go_goroutines")
}
