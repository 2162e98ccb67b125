package broadcast_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vietTNT/DoveRx-backend/internal/broadcast"
	"github.com/vietTNT/DoveRx-backend/internal/bus"
	"github.com/vietTNT/DoveRx-backend/internal/mocks"
	"github.com/vietTNT/DoveRx-backend/internal/models"
	"github.com/vietTNT/DoveRx-backend/internal/proto"
)

type fixture struct {
	bus           *bus.Memory
	users         *mocks.UserRepositoryMock
	reactions     *mocks.ReactionRepositoryMock
	shares        *mocks.ShareRepositoryMock
	notifications *mocks.NotificationRepositoryMock
	broadcaster   *broadcast.Broadcaster
}

func newFixture() *fixture {
	log := zerolog.Nop()
	f := &fixture{
		bus:           bus.NewMemory(&log),
		users:         new(mocks.UserRepositoryMock),
		reactions:     new(mocks.ReactionRepositoryMock),
		shares:        new(mocks.ShareRepositoryMock),
		notifications: new(mocks.NotificationRepositoryMock),
	}
	f.broadcaster = broadcast.New(f.bus, f.users, f.reactions, f.shares, f.notifications, &log)
	return f
}

func (f *fixture) listen(group string) *bus.Subscription {
	sub := bus.NewSubscription("listener:"+group, 8)
	f.bus.Subscribe(group, sub)
	return sub
}

func decodeFrame(t *testing.T, sub *bus.Subscription) map[string]any {
	t.Helper()
	select {
	case payload := <-sub.C:
		var frame map[string]any
		require.NoError(t, json.Unmarshal(payload, &frame))
		return frame
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func assertSilent(t *testing.T, sub *bus.Subscription) {
	t.Helper()
	select {
	case <-sub.C:
		t.Fatal("unexpected frame delivered")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNewMessageReachesRecipientOnly(t *testing.T) {
	f := newFixture()
	recipient := f.listen(bus.UserGroup(2))
	bystander := f.listen(bus.UserGroup(3))

	f.broadcaster.NewMessage(context.Background(), 2, models.MessagePayload{ID: 10, Conversation: 5, Text: "hi"})

	frame := decodeFrame(t, recipient)
	assert.Equal(t, proto.TypeNewMessage, frame["type"])
	assertSilent(t, bystander)
}

func TestMessagesRead(t *testing.T) {
	f := newFixture()
	recipient := f.listen(bus.UserGroup(2))

	f.broadcaster.MessagesRead(context.Background(), 2, 5, 1)

	frame := decodeFrame(t, recipient)
	assert.Equal(t, proto.TypeMessagesRead, frame["type"])
	assert.EqualValues(t, 5, frame["conversation_id"])
	assert.EqualValues(t, 1, frame["user_id"])
}

func TestNewPostNotifiesFriendsButNotAuthor(t *testing.T) {
	f := newFixture()
	feed := f.listen(bus.PublicFeedGroup)
	friend := f.listen(bus.UserGroup(2))
	author := f.listen(bus.UserGroup(1))

	actor := models.User{ID: 1, Username: "ana", FirstName: "Ana"}
	f.users.On("ListFriendIDs", mock.Anything, 1).Return([]int{1, 2}, nil).Once()
	f.notifications.On("Create", mock.Anything, 2, 1, models.NotificationNewPost, mock.Anything, (*int)(nil)).
		Return(models.Notification{ID: 9, RecipientID: 2, ActorID: 1, Kind: models.NotificationNewPost}, nil).Once()

	f.broadcaster.NewPost(context.Background(), actor, models.PostPayload{ID: 7, Kind: models.PostKindNormal})

	feedFrame := decodeFrame(t, feed)
	assert.Equal(t, proto.TypeFeedUpdate, feedFrame["type"])
	data := feedFrame["data"].(map[string]any)
	assert.Equal(t, proto.FeedNewPost, data["event"])

	friendFrame := decodeFrame(t, friend)
	assert.Equal(t, proto.TypeNotification, friendFrame["type"])

	assertSilent(t, author)
	f.users.AssertExpectations(t)
	f.notifications.AssertExpectations(t)
}

func TestPostReactionRecomputesCountsAndNotifiesAuthor(t *testing.T) {
	f := newFixture()
	feed := f.listen(bus.PublicFeedGroup)
	author := f.listen(bus.UserGroup(5))

	kind := "love"
	post := models.Post{ID: 7, AuthorID: 5}
	actor := models.User{ID: 1, Username: "ana"}
	f.reactions.On("PostReactionCounts", mock.Anything, 7).
		Return(map[string]int{"love": 2, "like": 1}, nil).Once()
	f.notifications.On("Create", mock.Anything, 5, 1, models.NotificationPostReact, mock.Anything, (*int)(nil)).
		Return(models.Notification{ID: 3, RecipientID: 5, ActorID: 1, Kind: models.NotificationPostReact}, nil).Once()

	f.broadcaster.PostReaction(context.Background(), post, actor, &kind)

	frame := decodeFrame(t, feed)
	data := frame["data"].(map[string]any)
	assert.Equal(t, proto.FeedPostReact, data["event"])
	counts := data["reaction_counts"].(map[string]any)
	assert.EqualValues(t, 2, counts["love"])
	assert.EqualValues(t, 1, counts["like"])

	notification := decodeFrame(t, author)
	assert.Equal(t, proto.TypeNotification, notification["type"])
	f.reactions.AssertExpectations(t)
	f.notifications.AssertExpectations(t)
}

func TestPostUnreactSkipsNotification(t *testing.T) {
	f := newFixture()
	feed := f.listen(bus.PublicFeedGroup)
	author := f.listen(bus.UserGroup(5))

	f.reactions.On("PostReactionCounts", mock.Anything, 7).
		Return(map[string]int{}, nil).Once()

	f.broadcaster.PostReaction(context.Background(), models.Post{ID: 7, AuthorID: 5}, models.User{ID: 1}, nil)

	frame := decodeFrame(t, feed)
	data := frame["data"].(map[string]any)
	assert.Equal(t, proto.FeedPostUnreact, data["event"])

	assertSilent(t, author)
	f.notifications.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSelfReactionNotNotified(t *testing.T) {
	f := newFixture()
	author := f.listen(bus.UserGroup(1))

	kind := "like"
	f.reactions.On("PostReactionCounts", mock.Anything, 7).
		Return(map[string]int{"like": 1}, nil).Once()

	// Author reacting to their own post: feed event only, no notification.
	f.broadcaster.PostReaction(context.Background(), models.Post{ID: 7, AuthorID: 1}, models.User{ID: 1}, &kind)

	assertSilent(t, author)
	f.notifications.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestNewCommentReplyNotifiesParentAuthor(t *testing.T) {
	f := newFixture()
	feed := f.listen(bus.PublicFeedGroup)
	parentAuthor := f.listen(bus.UserGroup(4))
	postAuthor := f.listen(bus.UserGroup(5))

	parentID := 20
	payload := models.CommentPayload{ID: 30, PostID: 7, ParentID: &parentID, Text: "reply"}
	f.notifications.On("Create", mock.Anything, 4, 1, models.NotificationNewComment, mock.Anything, mock.Anything).
		Return(models.Notification{ID: 11, RecipientID: 4, ActorID: 1, Kind: models.NotificationNewComment}, nil).Once()

	f.broadcaster.NewComment(context.Background(), models.Post{ID: 7, AuthorID: 5}, models.User{ID: 1}, payload, 4)

	frame := decodeFrame(t, feed)
	data := frame["data"].(map[string]any)
	assert.Equal(t, proto.FeedNewComment, data["event"])
	assert.Equal(t, true, data["is_reply"])

	decodeFrame(t, parentAuthor)
	assertSilent(t, postAuthor)
	f.notifications.AssertExpectations(t)
}

func TestNotifyPersistFailureDropsDelivery(t *testing.T) {
	f := newFixture()
	recipient := f.listen(bus.UserGroup(5))

	f.shares.On("CountForPost", mock.Anything, 7).Return(3, nil).Once()
	f.notifications.On("Create", mock.Anything, 5, 1, models.NotificationSharePost, mock.Anything, (*int)(nil)).
		Return(models.Notification{}, assert.AnError).Once()

	f.broadcaster.SharedPost(context.Background(), models.Post{ID: 7, AuthorID: 5}, models.User{ID: 1}, "look")

	assertSilent(t, recipient)
	f.notifications.AssertExpectations(t)
}
