package room

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flodrama/watchparty/internal/domain"
	"github.com/flodrama/watchparty/internal/repository/room/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *service {
	t.Helper()
	var ids, ticks atomic.Int64
	start := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)

	return NewService(inmemory.NewRepo(slog.Default()), &Config{
		MembersLimit: 9,
		Now: func() time.Time {
			return start.Add(time.Duration(ticks.Add(1)) * time.Second)
		},
		NewId: func() string {
			return fmt.Sprintf("id-%d", ids.Add(1))
		},
	}, slog.Default())
}

func seconds(v float64) *float64 {
	return &v
}

func requireOneHost(t *testing.T, snapshot domain.Snapshot) {
	t.Helper()
	hosts := 0
	for _, m := range snapshot.Members {
		if m.IsHost {
			hosts++
		}
	}
	require.Equal(t, 1, hosts, "room must have exactly one host")
}

func createRoom(t *testing.T, s *service, policy string) string {
	t.Helper()
	resp, err := s.CreateRoom(context.Background(), &CreateRoomParams{
		UserId:      "A",
		DisplayName: "A",
		VideoRef:    "v1",
		Policy:      policy,
	})
	require.NoError(t, err)
	return resp.RoomId
}

func TestCreateRoom(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	resp, err := s.CreateRoom(ctx, &CreateRoomParams{
		UserId:      "A",
		DisplayName: "Alice",
		VideoRef:    "v1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.RoomId, "room id is empty")
	assert.True(t, resp.Host.IsHost, "creator must be host")
	assert.False(t, resp.Host.IsReady, "creator must not be ready")
	assert.Equal(t, domain.ControlPolicyOpen, resp.Snapshot.Policy)
	assert.False(t, resp.Snapshot.PlaybackState.IsPlaying)
	assert.Equal(t, 0.0, resp.Snapshot.PlaybackState.CurrentTime)
	assert.Equal(t, "v1", resp.Snapshot.PlaybackState.VideoRef)
	assert.Len(t, resp.Snapshot.Members, 1)
	assert.Empty(t, resp.Snapshot.Messages)

	_, err = s.CreateRoom(ctx, &CreateRoomParams{UserId: "A", DisplayName: "Alice", VideoRef: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.CreateRoom(ctx, &CreateRoomParams{UserId: "A", DisplayName: "Alice", VideoRef: "v1", Policy: "chaos"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.CreateRoom(ctx, &CreateRoomParams{UserId: "", DisplayName: "Alice", VideoRef: "v1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestJoinLeaveScenario(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	roomId := createRoom(t, s, "")

	joinResp, err := s.JoinRoom(ctx, &JoinRoomParams{RoomId: roomId, UserId: "B", DisplayName: "B"})
	require.NoError(t, err)
	assert.False(t, joinResp.JoinedMember.IsHost)
	assert.Equal(t, domain.MessageTypeSystem, joinResp.SystemMessage.Type)
	assert.Equal(t, "B joined", joinResp.SystemMessage.Content.Text)
	require.Len(t, joinResp.Snapshot.Members, 2)
	assert.Equal(t, "A", joinResp.Snapshot.Members[0].UserID)
	assert.True(t, joinResp.Snapshot.Members[0].IsHost)
	assert.Equal(t, "B", joinResp.Snapshot.Members[1].UserID)
	assert.Len(t, joinResp.Snapshot.Messages, 1)

	_, err = s.JoinRoom(ctx, &JoinRoomParams{RoomId: roomId, UserId: "B", DisplayName: "B again"})
	assert.ErrorIs(t, err, domain.ErrDuplicateMember)

	_, err = s.JoinRoom(ctx, &JoinRoomParams{RoomId: "missing", UserId: "C", DisplayName: "C"})
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	leaveResp, err := s.LeaveRoom(ctx, &LeaveRoomParams{RoomId: roomId, UserId: "A"})
	require.NoError(t, err)
	assert.True(t, leaveResp.IsMemberRemoved)
	assert.False(t, leaveResp.IsRoomDeleted)
	require.NotNil(t, leaveResp.PromotedHost)
	assert.Equal(t, "B", leaveResp.PromotedHost.UserID)
	require.NotNil(t, leaveResp.SystemMessage)
	assert.Equal(t, "A left, B is now host", leaveResp.SystemMessage.Content.Text)

	snapshot, err := s.GetSnapshot(ctx, roomId)
	require.NoError(t, err)
	require.Len(t, snapshot.Members, 1)
	requireOneHost(t, snapshot)
	assert.Equal(t, "B", snapshot.Members[0].UserID)

	leaveResp, err = s.LeaveRoom(ctx, &LeaveRoomParams{RoomId: roomId, UserId: "B"})
	require.NoError(t, err)
	assert.True(t, leaveResp.IsRoomDeleted)

	_, err = s.GetSnapshot(ctx, roomId)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestLeaveRoomIdempotent(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	roomId := createRoom(t, s, "")
	_, err := s.JoinRoom(ctx, &JoinRoomParams{RoomId: roomId, UserId: "B", DisplayName: "B"})
	require.NoError(t, err)

	first, err := s.LeaveRoom(ctx, &LeaveRoomParams{RoomId: roomId, UserId: "B"})
	require.NoError(t, err)
	assert.True(t, first.IsMemberRemoved)
	afterFirst, err := s.GetSnapshot(ctx, roomId)
	require.NoError(t, err)

	second, err := s.LeaveRoom(ctx, &LeaveRoomParams{RoomId: roomId, UserId: "B"})
	require.NoError(t, err)
	assert.False(t, second.IsMemberRemoved)
	assert.Nil(t, second.SystemMessage)
	afterSecond, err := s.GetSnapshot(ctx, roomId)
	require.NoError(t, err)

	assert.Equal(t, afterFirst, afterSecond)
}

func TestLeaveDroppedRoomIsNoop(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	roomId := createRoom(t, s, "")

	first, err := s.LeaveRoom(ctx, &LeaveRoomParams{RoomId: roomId, UserId: "A"})
	require.NoError(t, err)
	assert.True(t, first.IsRoomDeleted)

	second, err := s.LeaveRoom(ctx, &LeaveRoomParams{RoomId: roomId, UserId: "A"})
	require.NoError(t, err)
	assert.False(t, second.IsMemberRemoved)
	assert.False(t, second.IsRoomDeleted)
	assert.Empty(t, s.RoomIds(ctx))
}

func TestRemovedMemberCommandsFail(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	roomId := createRoom(t, s, "")
	_, err := s.JoinRoom(ctx, &JoinRoomParams{RoomId: roomId, UserId: "B", DisplayName: "B"})
	require.NoError(t, err)
	_, err = s.LeaveRoom(ctx, &LeaveRoomParams{RoomId: roomId, UserId: "B"})
	require.NoError(t, err)

	_, err = s.ApplyPlaybackControl(ctx, &ApplyPlaybackControlParams{RoomId: roomId, SenderId: "B", Action: "play"})
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)

	_, err = s.SendMessage(ctx, &SendMessageParams{RoomId: roomId, SenderId: "B", Type: "text", Content: domain.MessageContent{Text: "hi"}})
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)

	_, err = s.SetReady(ctx, &SetReadyParams{RoomId: roomId, SenderId: "B", IsReady: true})
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)
}

func TestApplyPlaybackControlStaleSeek(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	roomId := createRoom(t, s, "")
	_, err := s.JoinRoom(ctx, &JoinRoomParams{RoomId: roomId, UserId: "B", DisplayName: "B"})
	require.NoError(t, err)

	resp, err := s.ApplyPlaybackControl(ctx, &ApplyPlaybackControlParams{
		RoomId: roomId, SenderId: "A", Action: "seek", Time: seconds(30), IssuedAt: 100,
	})
	require.NoError(t, err)
	assert.True(t, resp.IsAccepted)

	resp, err = s.ApplyPlaybackControl(ctx, &ApplyPlaybackControlParams{
		RoomId: roomId, SenderId: "B", Action: "seek", Time: seconds(20), IssuedAt: 90,
	})
	require.NoError(t, err)
	assert.False(t, resp.IsAccepted)
	assert.Equal(t, 30.0, resp.Player.CurrentTime)
	assert.Equal(t, "A", resp.Player.LastUpdatedBy)

	snapshot, err := s.GetSnapshot(ctx, roomId)
	require.NoError(t, err)
	assert.Equal(t, 30.0, snapshot.PlaybackState.CurrentTime)
	assert.Equal(t, int64(100), snapshot.PlaybackState.LastUpdated)
}

func TestApplyPlaybackControlSimultaneousPlay(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	roomId := createRoom(t, s, "")
	_, err := s.JoinRoom(ctx, &JoinRoomParams{RoomId: roomId, UserId: "B", DisplayName: "B"})
	require.NoError(t, err)

	for _, sender := range []string{"B", "A"} {
		_, err := s.ApplyPlaybackControl(ctx, &ApplyPlaybackControlParams{
			RoomId: roomId, SenderId: sender, Action: "play", IssuedAt: 500,
		})
		require.NoError(t, err)
	}

	snapshot, err := s.GetSnapshot(ctx, roomId)
	require.NoError(t, err)
	assert.True(t, snapshot.PlaybackState.IsPlaying)
	assert.Equal(t, "A", snapshot.PlaybackState.LastUpdatedBy)
}

func TestApplyPlaybackControlOrderIndependent(t *testing.T) {
	seek := ApplyPlaybackControlParams{SenderId: "A", Action: "seek", Time: seconds(10), IssuedAt: 200}
	pause := ApplyPlaybackControlParams{SenderId: "B", Action: "pause", IssuedAt: 150}

	run := func(order ...ApplyPlaybackControlParams) domain.PlaybackState {
		s := newTestService(t)
		ctx := context.Background()
		roomId := createRoom(t, s, "")
		_, err := s.JoinRoom(ctx, &JoinRoomParams{RoomId: roomId, UserId: "B", DisplayName: "B"})
		require.NoError(t, err)

		for _, params := range order {
			params.RoomId = roomId
			_, err := s.ApplyPlaybackControl(ctx, &params)
			require.NoError(t, err)
		}

		snapshot, err := s.GetSnapshot(ctx, roomId)
		require.NoError(t, err)
		return snapshot.PlaybackState
	}

	assert.Equal(t, run(pause, seek), run(seek, pause))
	assert.Equal(t, 10.0, run(seek, pause).CurrentTime)
}

func TestApplyPlaybackControlDefaultsIssuedAt(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	roomId := createRoom(t, s, "")

	resp, err := s.ApplyPlaybackControl(ctx, &ApplyPlaybackControlParams{RoomId: roomId, SenderId: "A", Action: "play"})
	require.NoError(t, err)
	assert.True(t, resp.IsAccepted)
	assert.Positive(t, resp.Player.LastUpdated)
	assert.Equal(t, "A", resp.Player.LastUpdatedBy)
}

func TestApplyPlaybackControlInvalid(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	roomId := createRoom(t, s, "")

	_, err := s.ApplyPlaybackControl(ctx, &ApplyPlaybackControlParams{RoomId: roomId, SenderId: "A", Action: "seek", Time: seconds(-3)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.ApplyPlaybackControl(ctx, &ApplyPlaybackControlParams{RoomId: roomId, SenderId: "A", Action: "seek"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.ApplyPlaybackControl(ctx, &ApplyPlaybackControlParams{RoomId: "missing", SenderId: "A", Action: "play"})
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestHostControlledPolicy(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	roomId := createRoom(t, s, "host-controlled")
	_, err := s.JoinRoom(ctx, &JoinRoomParams{RoomId: roomId, UserId: "B", DisplayName: "B"})
	require.NoError(t, err)

	_, err = s.ApplyPlaybackControl(ctx, &ApplyPlaybackControlParams{RoomId: roomId, SenderId: "B", Action: "play", IssuedAt: 10})
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	resp, err := s.ApplyPlaybackControl(ctx, &ApplyPlaybackControlParams{RoomId: roomId, SenderId: "A", Action: "play", IssuedAt: 10})
	require.NoError(t, err)
	assert.True(t, resp.IsAccepted)

	// after handoff the new host gains control
	_, err = s.LeaveRoom(ctx, &LeaveRoomParams{RoomId: roomId, UserId: "A"})
	require.NoError(t, err)
	resp, err = s.ApplyPlaybackControl(ctx, &ApplyPlaybackControlParams{RoomId: roomId, SenderId: "B", Action: "pause", IssuedAt: 20})
	require.NoError(t, err)
	assert.True(t, resp.IsAccepted)
	assert.False(t, resp.Player.IsPlaying)
}

func TestSendMessage(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	roomId := createRoom(t, s, "")

	resp, err := s.SendMessage(ctx, &SendMessageParams{RoomId: roomId, SenderId: "A", Type: "text", Content: domain.MessageContent{Text: "hello"}})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Message.ID)
	assert.Equal(t, uint64(1), resp.Message.Seq)
	assert.Equal(t, "A", resp.Message.AuthorID)
	assert.Equal(t, "A", resp.Message.AuthorName)
	assert.False(t, resp.Message.CreatedAt.IsZero())

	resp, err = s.SendMessage(ctx, &SendMessageParams{RoomId: roomId, SenderId: "A", Type: "emoji", Content: domain.MessageContent{Emoji: "🎬"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), resp.Message.Seq)

	_, err = s.SendMessage(ctx, &SendMessageParams{RoomId: roomId, SenderId: "A", Type: "system", Content: domain.MessageContent{Text: "fake"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.SendMessage(ctx, &SendMessageParams{RoomId: roomId, SenderId: "A", Type: "gif"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.SendMessage(ctx, &SendMessageParams{RoomId: "missing", SenderId: "A", Type: "text", Content: domain.MessageContent{Text: "x"}})
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	messages, err := s.ListMessages(ctx, &ListMessagesParams{RoomId: roomId, Since: 1})
	require.NoError(t, err)
	list := slices.Collect(messages)
	require.Len(t, list, 1)
	assert.Equal(t, domain.MessageTypeEmoji, list[0].Type)

	_, err = s.ListMessages(ctx, &ListMessagesParams{RoomId: "missing"})
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestSetReady(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	roomId := createRoom(t, s, "")

	resp, err := s.SetReady(ctx, &SetReadyParams{RoomId: roomId, SenderId: "A", IsReady: true})
	require.NoError(t, err)
	assert.True(t, resp.UpdatedMember.IsReady)
	require.Len(t, resp.Members, 1)
	assert.True(t, resp.Members[0].IsReady)
}

func TestMembersLimit(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	roomId := createRoom(t, s, "")

	for i := 1; i < 9; i++ {
		_, err := s.JoinRoom(ctx, &JoinRoomParams{RoomId: roomId, UserId: fmt.Sprint(i), DisplayName: "user"})
		require.NoError(t, err)
	}

	_, err := s.JoinRoom(ctx, &JoinRoomParams{RoomId: roomId, UserId: "extra", DisplayName: "extra"})
	assert.ErrorIs(t, err, domain.ErrMembersLimitReached)
}

func replayScenario(t *testing.T, s *service) string {
	t.Helper()
	ctx := context.Background()
	roomId := createRoom(t, s, "")

	steps := []func() error{
		func() error {
			_, err := s.JoinRoom(ctx, &JoinRoomParams{RoomId: roomId, UserId: "B", DisplayName: "B"})
			return err
		},
		func() error {
			_, err := s.JoinRoom(ctx, &JoinRoomParams{RoomId: roomId, UserId: "C", DisplayName: "C"})
			return err
		},
		func() error {
			_, err := s.ApplyPlaybackControl(ctx, &ApplyPlaybackControlParams{RoomId: roomId, SenderId: "C", Action: "play", Time: seconds(4), IssuedAt: 50})
			return err
		},
		func() error {
			_, err := s.SendMessage(ctx, &SendMessageParams{RoomId: roomId, SenderId: "B", Type: "text", Content: domain.MessageContent{Text: "popcorn?"}})
			return err
		},
		func() error {
			_, err := s.LeaveRoom(ctx, &LeaveRoomParams{RoomId: roomId, UserId: "A"})
			return err
		},
		func() error {
			_, err := s.SetReady(ctx, &SetReadyParams{RoomId: roomId, SenderId: "C", IsReady: true})
			return err
		},
		func() error {
			_, err := s.ApplyPlaybackControl(ctx, &ApplyPlaybackControlParams{RoomId: roomId, SenderId: "B", Action: "pause", IssuedAt: 40})
			return err
		},
	}
	for _, step := range steps {
		require.NoError(t, step())
	}

	return roomId
}

func TestSnapshotMatchesReplay(t *testing.T) {
	ctx := context.Background()

	s1 := newTestService(t)
	s2 := newTestService(t)
	roomId1 := replayScenario(t, s1)
	roomId2 := replayScenario(t, s2)
	require.Equal(t, roomId1, roomId2)

	snapshot1, err := s1.GetSnapshot(ctx, roomId1)
	require.NoError(t, err)
	snapshot2, err := s2.GetSnapshot(ctx, roomId2)
	require.NoError(t, err)
	assert.Equal(t, snapshot1, snapshot2)

	requireOneHost(t, snapshot1)
	assert.Equal(t, "B", snapshot1.Members[0].UserID, "B joined first after A")
	assert.True(t, snapshot1.Members[0].IsHost)
	assert.True(t, snapshot1.PlaybackState.IsPlaying, "stale pause must not apply")
	assert.Equal(t, 4.0, snapshot1.PlaybackState.CurrentTime)
	assert.Len(t, snapshot1.Messages, 4)

	s3 := newTestService(t)
	require.NoError(t, s3.RestoreRoom(ctx, &snapshot1))
	restored, err := s3.GetSnapshot(ctx, roomId1)
	require.NoError(t, err)
	assert.Equal(t, snapshot1, restored)
	assert.Equal(t, []string{roomId1}, s3.RoomIds(ctx))
}

func TestConcurrentOperationsKeepInvariants(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	roomId := createRoom(t, s, "")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			userId := fmt.Sprintf("u%d", n)
			for j := 0; j < 25; j++ {
				_, _ = s.JoinRoom(ctx, &JoinRoomParams{RoomId: roomId, UserId: userId, DisplayName: userId})
				_, _ = s.ApplyPlaybackControl(ctx, &ApplyPlaybackControlParams{RoomId: roomId, SenderId: userId, Action: "seek", Time: seconds(float64(j)), IssuedAt: int64(j + 1)})
				_, _ = s.SendMessage(ctx, &SendMessageParams{RoomId: roomId, SenderId: userId, Type: "text", Content: domain.MessageContent{Text: "hey"}})
				_, _ = s.LeaveRoom(ctx, &LeaveRoomParams{RoomId: roomId, UserId: userId})
			}
		}(i)
	}
	wg.Wait()

	snapshot, err := s.GetSnapshot(ctx, roomId)
	require.NoError(t, err)
	require.Len(t, snapshot.Members, 1)
	assert.Equal(t, "A", snapshot.Members[0].UserID)
	requireOneHost(t, snapshot)

	for i := 1; i < len(snapshot.Messages); i++ {
		assert.Equal(t, snapshot.Messages[i-1].Seq+1, snapshot.Messages[i].Seq)
	}
}
