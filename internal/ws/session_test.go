package ws

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vietTNT/DoveRx-backend/internal/auth"
	"github.com/vietTNT/DoveRx-backend/internal/bus"
	"github.com/vietTNT/DoveRx-backend/internal/mocks"
	"github.com/vietTNT/DoveRx-backend/internal/models"
	"github.com/vietTNT/DoveRx-backend/internal/presence"
	"github.com/vietTNT/DoveRx-backend/internal/proto"
)

func newTestSession(t *testing.T, userID int, kind string) (*Session, *bus.Memory, *mocks.PresenceRepositoryMock) {
	t.Helper()
	log := zerolog.Nop()
	memory := bus.NewMemory(&log)
	repo := new(mocks.PresenceRepositoryMock)
	tracker := presence.NewTracker(repo, &log)
	identity := auth.Identity{User: models.User{ID: userID, Username: "u", IsActive: true}}
	s := NewSession("conn-1", identity, kind, nil, memory, tracker, nil, 0, 8, &log)
	return s, memory, repo
}

func TestActivateJoinsPersonalGroup(t *testing.T) {
	s, memory, repo := newTestSession(t, 1, KindChat)
	repo.On("SetOnline", mock.Anything, 1, true).Return(nil).Once()

	require.NoError(t, s.Activate(context.Background()))

	assert.Equal(t, StateActive, s.State())
	assert.Equal(t, 1, memory.Members(bus.UserGroup(1)))
	assert.Equal(t, 0, memory.Members(bus.PublicFeedGroup))

	frame := directFrame(t, s)
	assert.Equal(t, proto.TypeConnectionEstablished, frame["type"])
	assert.EqualValues(t, 1, frame["user_id"])
	repo.AssertExpectations(t)
}

func TestActivateFeedJoinsSharedGroup(t *testing.T) {
	s, memory, repo := newTestSession(t, 1, KindFeed)
	repo.On("SetOnline", mock.Anything, 1, true).Return(nil).Once()

	require.NoError(t, s.Activate(context.Background()))

	assert.Equal(t, 1, memory.Members(bus.UserGroup(1)))
	assert.Equal(t, 1, memory.Members(bus.PublicFeedGroup))
}

func TestActivateTwiceRejected(t *testing.T) {
	s, _, repo := newTestSession(t, 1, KindChat)
	repo.On("SetOnline", mock.Anything, 1, true).Return(nil).Once()

	require.NoError(t, s.Activate(context.Background()))
	assert.ErrorIs(t, s.Activate(context.Background()), ErrInvalidState)
}

func TestCloseLeavesGroupsAndPresence(t *testing.T) {
	s, memory, repo := newTestSession(t, 1, KindFeed)
	repo.On("SetOnline", mock.Anything, 1, true).Return(nil).Once()
	repo.On("SetOnline", mock.Anything, 1, false).Return(nil).Once()

	require.NoError(t, s.Activate(context.Background()))
	s.Close(context.Background())

	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 0, memory.Members(bus.UserGroup(1)))
	assert.Equal(t, 0, memory.Members(bus.PublicFeedGroup))
	repo.AssertExpectations(t)
}

func TestCloseIsIdempotent(t *testing.T) {
	s, _, repo := newTestSession(t, 1, KindChat)
	repo.On("SetOnline", mock.Anything, 1, true).Return(nil).Once()
	repo.On("SetOnline", mock.Anything, 1, false).Return(nil).Once()

	require.NoError(t, s.Activate(context.Background()))
	s.Close(context.Background())
	s.Close(context.Background())

	repo.AssertExpectations(t)
}

func TestKeepaliveStopsOnClose(t *testing.T) {
	log := zerolog.Nop()
	memory := bus.NewMemory(&log)
	repo := new(mocks.PresenceRepositoryMock)
	tracker := presence.NewTracker(repo, &log)
	identity := auth.Identity{User: models.User{ID: 1, Username: "u", IsActive: true}}
	s := NewSession("conn-ka", identity, KindChat, nil, memory, tracker, nil, 20*time.Millisecond, 8, &log)

	stopped := make(chan struct{})
	go func() {
		s.keepaliveLoop()
		close(stopped)
	}()

	frame := directFrame(t, s)
	assert.Equal(t, proto.TypePing, frame["type"])

	s.Close(context.Background())

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("keepalive goroutine did not exit after close")
	}

	// Any ping already queued before close is drained; nothing new may
	// arrive once the loop has stopped.
	for {
		select {
		case <-s.direct.C:
			continue
		default:
		}
		break
	}
	select {
	case <-s.direct.C:
		t.Fatal("ping sent after session close")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestKeepaliveDisabledSendsNothing(t *testing.T) {
	s, _, _ := newTestSession(t, 1, KindChat)

	stopped := make(chan struct{})
	go func() {
		s.keepaliveLoop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("keepalive goroutine did not return with interval disabled")
	}
	select {
	case <-s.direct.C:
		t.Fatal("ping sent with keepalive disabled")
	default:
	}
}

func TestDeliverFiltersOwnTypingIndicator(t *testing.T) {
	s, _, _ := newTestSession(t, 1, KindFeed)

	own, err := proto.Encode(proto.UserTyping{Type: proto.TypeUserTyping, PostID: 7, UserID: 1, IsTyping: true})
	require.NoError(t, err)

	// A self-originated typing frame is swallowed without touching the socket.
	assert.True(t, s.deliver(own))
}
