package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseControlPolicy(t *testing.T) {
	p, err := ParseControlPolicy("")
	require.NoError(t, err)
	assert.Equal(t, ControlPolicyOpen, p)

	p, err = ParseControlPolicy("host-controlled")
	require.NoError(t, err)
	assert.Equal(t, ControlPolicyHostControlled, p)

	_, err = ParseControlPolicy("anarchy")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRoomCanControl(t *testing.T) {
	host := Member{UserID: "a", IsHost: true}
	guest := Member{UserID: "b"}

	open := Room{Policy: ControlPolicyOpen}
	assert.True(t, open.CanControl(host))
	assert.True(t, open.CanControl(guest))

	hostOnly := Room{Policy: ControlPolicyHostControlled}
	assert.True(t, hostOnly.CanControl(host))
	assert.False(t, hostOnly.CanControl(guest))
}

func TestRoomSnapshotRestoreRoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := NewRoom("room-1", ControlPolicyHostControlled, "v1", now, 9)
	_, err := r.Members.Add("a", "Alice", now)
	require.NoError(t, err)
	_, err = r.Members.Add("b", "Bob", now)
	require.NoError(t, err)
	r.Messages.Append(SystemMessageDraft("Bob joined"), "m1", now)
	r.Messages.Append(MessageDraft{AuthorID: "a", AuthorName: "Alice", Type: MessageTypeGIF, Content: MessageContent{GIF: &GIFRef{URL: "u"}}}, "m2", now)
	_, err = r.Player.Apply(PlaybackCommand{Action: PlaybackActionSeek, Time: at(12), IssuedAt: 100, MemberID: "a"})
	require.NoError(t, err)

	snapshot := r.Snapshot()

	raw, err := json.Marshal(snapshot)
	require.NoError(t, err)
	var decoded Snapshot
	require.NoError(t, json.Unmarshal(raw, &decoded))

	restored, err := RestoreRoom(decoded, 9)
	require.NoError(t, err)
	assert.Equal(t, snapshot, restored.Snapshot())

	c, err := restored.Members.Add("c", "Carol", now)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), c.JoinSeq, "join sequence continues after restore")

	msg := restored.Messages.Append(SystemMessageDraft("Carol joined"), "m3", now)
	assert.Equal(t, uint64(3), msg.Seq, "message sequence continues after restore")
}

func TestRestoreRoomRejectsBrokenSnapshots(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name     string
		snapshot Snapshot
	}{
		{name: "empty id", snapshot: Snapshot{Members: []Member{{UserID: "a", IsHost: true}}}},
		{name: "no members", snapshot: Snapshot{RoomID: "r"}},
		{name: "two hosts", snapshot: Snapshot{RoomID: "r", Members: []Member{{UserID: "a", IsHost: true}, {UserID: "b", IsHost: true}}}},
		{name: "duplicate member", snapshot: Snapshot{RoomID: "r", Members: []Member{{UserID: "a", IsHost: true}, {UserID: "a"}}}},
		{name: "messages out of order", snapshot: Snapshot{
			RoomID:   "r",
			Members:  []Member{{UserID: "a", IsHost: true}},
			Messages: []Message{{ID: "2", Seq: 2, CreatedAt: now}, {ID: "1", Seq: 1, CreatedAt: now}},
		}},
		{name: "unknown policy", snapshot: Snapshot{RoomID: "r", Policy: "x", Members: []Member{{UserID: "a", IsHost: true}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RestoreRoom(tt.snapshot, 0)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}
