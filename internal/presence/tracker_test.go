package presence_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/vietTNT/DoveRx-backend/internal/mocks"
	"github.com/vietTNT/DoveRx-backend/internal/models"
	"github.com/vietTNT/DoveRx-backend/internal/presence"
)

func newTracker(repo *mocks.PresenceRepositoryMock) *presence.Tracker {
	log := zerolog.Nop()
	return presence.NewTracker(repo, &log)
}

func TestFirstConnectionMarksOnline(t *testing.T) {
	repo := new(mocks.PresenceRepositoryMock)
	tracker := newTracker(repo)
	repo.On("SetOnline", mock.Anything, 1, true).Return(nil).Once()

	tracker.Connect(context.Background(), 1)

	assert.True(t, tracker.IsOnline(context.Background(), 1))
	repo.AssertExpectations(t)
}

func TestSecondConnectionDoesNotRepersist(t *testing.T) {
	repo := new(mocks.PresenceRepositoryMock)
	tracker := newTracker(repo)
	repo.On("SetOnline", mock.Anything, 1, true).Return(nil).Once()

	tracker.Connect(context.Background(), 1)
	tracker.Connect(context.Background(), 1)

	repo.AssertExpectations(t)
}

func TestUserStaysOnlineUntilLastDisconnect(t *testing.T) {
	repo := new(mocks.PresenceRepositoryMock)
	tracker := newTracker(repo)
	repo.On("SetOnline", mock.Anything, 1, true).Return(nil).Once()
	repo.On("SetOnline", mock.Anything, 1, false).Return(nil).Once()

	tracker.Connect(context.Background(), 1)
	tracker.Connect(context.Background(), 1)
	tracker.Disconnect(context.Background(), 1)

	assert.True(t, tracker.IsOnline(context.Background(), 1))

	tracker.Disconnect(context.Background(), 1)
	repo.AssertExpectations(t)
}

func TestDisconnectWithoutConnectIsHarmless(t *testing.T) {
	repo := new(mocks.PresenceRepositoryMock)
	tracker := newTracker(repo)

	tracker.Disconnect(context.Background(), 1)
	repo.AssertNotCalled(t, "SetOnline", mock.Anything, 1, false)
}

func TestIsOnlineFallsBackToPersistedStatus(t *testing.T) {
	repo := new(mocks.PresenceRepositoryMock)
	tracker := newTracker(repo)
	repo.On("GetStatus", mock.Anything, 9).
		Return(models.UserStatus{UserID: 9, IsOnline: true, LastSeen: time.Now()}, nil).Once()

	assert.True(t, tracker.IsOnline(context.Background(), 9))
	repo.AssertExpectations(t)
}
