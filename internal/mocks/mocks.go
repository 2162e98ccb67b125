package mocks

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/vietTNT/DoveRx-backend/internal/models"
	"github.com/vietTNT/DoveRx-backend/internal/repositories"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) BulkUsers(ctx context.Context, ids []int) ([]models.User, error) {
	args := m.Called(ctx, ids)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) AreFriends(ctx context.Context, userID, otherID int) (bool, error) {
	args := m.Called(ctx, userID, otherID)
	return args.Bool(0), args.Error(1)
}

func (m *UserRepositoryMock) ListFriendIDs(ctx context.Context, userID int) ([]int, error) {
	args := m.Called(ctx, userID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) GetConversation(ctx context.Context, conversationID int) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) FindOrCreate(ctx context.Context, userID, otherID int) (models.Conversation, error) {
	args := m.Called(ctx, userID, otherID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) ListForUser(ctx context.Context, userID int) ([]models.Conversation, error) {
	args := m.Called(ctx, userID)
	var convs []models.Conversation
	if val := args.Get(0); val != nil {
		convs = val.([]models.Conversation)
	}
	return convs, args.Error(1)
}

func (m *ConversationRepositoryMock) Touch(ctx context.Context, conversationID int) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, conversationID, senderID int, text, attachment string) (models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, text, attachment)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, conversationID, limit, offset int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, limit, offset)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, conversationID, readerID int) (int, error) {
	args := m.Called(ctx, conversationID, readerID)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) UnreadCount(ctx context.Context, conversationID, userID int) (int, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) LastMessage(ctx context.Context, conversationID int) (models.Message, error) {
	args := m.Called(ctx, conversationID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type PostRepositoryMock struct {
	mock.Mock
}

func (m *PostRepositoryMock) CreatePost(ctx context.Context, authorID int, kind, contentText string, contentMedical json.RawMessage, visibility string) (models.Post, error) {
	args := m.Called(ctx, authorID, kind, contentText, contentMedical, visibility)
	var post models.Post
	if val := args.Get(0); val != nil {
		post = val.(models.Post)
	}
	return post, args.Error(1)
}

func (m *PostRepositoryMock) GetPost(ctx context.Context, postID int) (models.Post, error) {
	args := m.Called(ctx, postID)
	var post models.Post
	if val := args.Get(0); val != nil {
		post = val.(models.Post)
	}
	return post, args.Error(1)
}

func (m *PostRepositoryMock) UpdatePost(ctx context.Context, postID int, contentText string, contentMedical json.RawMessage) (models.Post, error) {
	args := m.Called(ctx, postID, contentText, contentMedical)
	var post models.Post
	if val := args.Get(0); val != nil {
		post = val.(models.Post)
	}
	return post, args.Error(1)
}

func (m *PostRepositoryMock) DeletePost(ctx context.Context, postID int) error {
	args := m.Called(ctx, postID)
	return args.Error(0)
}

func (m *PostRepositoryMock) ListPosts(ctx context.Context, limit, offset int) ([]models.Post, error) {
	args := m.Called(ctx, limit, offset)
	var posts []models.Post
	if val := args.Get(0); val != nil {
		posts = val.([]models.Post)
	}
	return posts, args.Error(1)
}

type CommentRepositoryMock struct {
	mock.Mock
}

func (m *CommentRepositoryMock) CreateComment(ctx context.Context, postID, authorID int, text string, parentID *int) (models.Comment, error) {
	args := m.Called(ctx, postID, authorID, text, parentID)
	var comment models.Comment
	if val := args.Get(0); val != nil {
		comment = val.(models.Comment)
	}
	return comment, args.Error(1)
}

func (m *CommentRepositoryMock) GetComment(ctx context.Context, commentID int) (models.Comment, error) {
	args := m.Called(ctx, commentID)
	var comment models.Comment
	if val := args.Get(0); val != nil {
		comment = val.(models.Comment)
	}
	return comment, args.Error(1)
}

func (m *CommentRepositoryMock) UpdateComment(ctx context.Context, commentID int, text string) (models.Comment, error) {
	args := m.Called(ctx, commentID, text)
	var comment models.Comment
	if val := args.Get(0); val != nil {
		comment = val.(models.Comment)
	}
	return comment, args.Error(1)
}

func (m *CommentRepositoryMock) DeleteComment(ctx context.Context, commentID int) error {
	args := m.Called(ctx, commentID)
	return args.Error(0)
}

func (m *CommentRepositoryMock) ListByPost(ctx context.Context, postID int) ([]models.Comment, error) {
	args := m.Called(ctx, postID)
	var comments []models.Comment
	if val := args.Get(0); val != nil {
		comments = val.([]models.Comment)
	}
	return comments, args.Error(1)
}

func (m *CommentRepositoryMock) CountForPost(ctx context.Context, postID int) (int, error) {
	args := m.Called(ctx, postID)
	return args.Int(0), args.Error(1)
}

type ReactionRepositoryMock struct {
	mock.Mock
}

func (m *ReactionRepositoryMock) UpsertPostReaction(ctx context.Context, postID, userID int, kind string) (bool, error) {
	args := m.Called(ctx, postID, userID, kind)
	return args.Bool(0), args.Error(1)
}

func (m *ReactionRepositoryMock) RemovePostReaction(ctx context.Context, postID, userID int) (bool, error) {
	args := m.Called(ctx, postID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ReactionRepositoryMock) PostReactionCounts(ctx context.Context, postID int) (map[string]int, error) {
	args := m.Called(ctx, postID)
	var counts map[string]int
	if val := args.Get(0); val != nil {
		counts = val.(map[string]int)
	}
	return counts, args.Error(1)
}

func (m *ReactionRepositoryMock) UpsertCommentReaction(ctx context.Context, commentID, userID int, kind string) (bool, error) {
	args := m.Called(ctx, commentID, userID, kind)
	return args.Bool(0), args.Error(1)
}

func (m *ReactionRepositoryMock) RemoveCommentReaction(ctx context.Context, commentID, userID int) (bool, error) {
	args := m.Called(ctx, commentID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ReactionRepositoryMock) CommentReactionCounts(ctx context.Context, commentID int) (map[string]int, error) {
	args := m.Called(ctx, commentID)
	var counts map[string]int
	if val := args.Get(0); val != nil {
		counts = val.(map[string]int)
	}
	return counts, args.Error(1)
}

type ShareRepositoryMock struct {
	mock.Mock
}

func (m *ShareRepositoryMock) CreateShare(ctx context.Context, postID, userID int, message string) (models.Share, error) {
	args := m.Called(ctx, postID, userID, message)
	var share models.Share
	if val := args.Get(0); val != nil {
		share = val.(models.Share)
	}
	return share, args.Error(1)
}

func (m *ShareRepositoryMock) CountForPost(ctx context.Context, postID int) (int, error) {
	args := m.Called(ctx, postID)
	return args.Int(0), args.Error(1)
}

type NotificationRepositoryMock struct {
	mock.Mock
}

func (m *NotificationRepositoryMock) Create(ctx context.Context, recipientID, actorID int, kind string, postID, commentID *int) (models.Notification, error) {
	args := m.Called(ctx, recipientID, actorID, kind, postID, commentID)
	var notification models.Notification
	if val := args.Get(0); val != nil {
		notification = val.(models.Notification)
	}
	return notification, args.Error(1)
}

func (m *NotificationRepositoryMock) ListForUser(ctx context.Context, userID, limit, offset int) ([]models.Notification, error) {
	args := m.Called(ctx, userID, limit, offset)
	var notifications []models.Notification
	if val := args.Get(0); val != nil {
		notifications = val.([]models.Notification)
	}
	return notifications, args.Error(1)
}

func (m *NotificationRepositoryMock) MarkRead(ctx context.Context, notificationID, userID int) error {
	args := m.Called(ctx, notificationID, userID)
	return args.Error(0)
}

func (m *NotificationRepositoryMock) MarkAllRead(ctx context.Context, userID int) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type PresenceRepositoryMock struct {
	mock.Mock
}

func (m *PresenceRepositoryMock) SetOnline(ctx context.Context, userID int, online bool) error {
	args := m.Called(ctx, userID, online)
	return args.Error(0)
}

func (m *PresenceRepositoryMock) GetStatus(ctx context.Context, userID int) (models.UserStatus, error) {
	args := m.Called(ctx, userID)
	var status models.UserStatus
	if val := args.Get(0); val != nil {
		status = val.(models.UserStatus)
	}
	return status, args.Error(1)
}

var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
var _ repositories.ConversationRepository = (*ConversationRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.PostRepository = (*PostRepositoryMock)(nil)
var _ repositories.CommentRepository = (*CommentRepositoryMock)(nil)
var _ repositories.ReactionRepository = (*ReactionRepositoryMock)(nil)
var _ repositories.ShareRepository = (*ShareRepositoryMock)(nil)
var _ repositories.NotificationRepository = (*NotificationRepositoryMock)(nil)
var _ repositories.PresenceRepository = (*PresenceRepositoryMock)(nil)
