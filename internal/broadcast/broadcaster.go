// Package broadcast bridges synchronous persistence operations to
// asynchronous delivery: after a write commits, it publishes structured events
// to the relevant groups through the bus. Delivery is best-effort: a failed
// publish is logged and dropped, never rolled back into the write.
package broadcast

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/vietTNT/DoveRx-backend/internal/bus"
	"github.com/vietTNT/DoveRx-backend/internal/models"
	"github.com/vietTNT/DoveRx-backend/internal/proto"
	"github.com/vietTNT/DoveRx-backend/internal/repositories"
)

// Broadcaster fans persisted actions out to groups and personal notifications.
type Broadcaster struct {
	bus           bus.Bus
	users         repositories.UserRepository
	reactions     repositories.ReactionRepository
	shares        repositories.ShareRepository
	notifications repositories.NotificationRepository
	log           *zerolog.Logger
}

// New constructs a Broadcaster.
func New(
	b bus.Bus,
	users repositories.UserRepository,
	reactions repositories.ReactionRepository,
	shares repositories.ShareRepository,
	notifications repositories.NotificationRepository,
	log *zerolog.Logger,
) *Broadcaster {
	return &Broadcaster{
		bus:           b,
		users:         users,
		reactions:     reactions,
		shares:        shares,
		notifications: notifications,
		log:           log,
	}
}

// Broadcast encodes the frame once and publishes it to each group. Callers
// invoke it only after the triggering write has committed.
func (b *Broadcaster) Broadcast(ctx context.Context, groups []string, frame any) {
	payload, err := proto.Encode(frame)
	if err != nil {
		b.log.Error().Err(err).Msg("encode broadcast frame")
		return
	}
	for _, group := range groups {
		if err := b.bus.Publish(ctx, group, payload); err != nil {
			b.log.Error().Err(err).Str("group", group).Msg("broadcast publish failed, delivery degraded")
		}
	}
}

// NewMessage delivers a stored direct message to the other participant's
// personal group. The echo to the sender happens on the sender's own
// connection, not here.
func (b *Broadcaster) NewMessage(ctx context.Context, recipientID int, payload models.MessagePayload) {
	frame := proto.MessageFrame{Type: proto.TypeNewMessage, Message: payload}
	b.Broadcast(ctx, []string{bus.UserGroup(recipientID)}, frame)
}

// MessagesRead notifies the other participant that the reader caught up.
func (b *Broadcaster) MessagesRead(ctx context.Context, recipientID, conversationID, readerID int) {
	frame := proto.MessagesRead{
		Type:           proto.TypeMessagesRead,
		ConversationID: conversationID,
		UserID:         readerID,
	}
	b.Broadcast(ctx, []string{bus.UserGroup(recipientID)}, frame)
}

// Typing relays a typing indicator either to the other chat participant or to
// the shared feed group.
func (b *Broadcaster) Typing(ctx context.Context, group string, frame proto.UserTyping) {
	b.Broadcast(ctx, []string{group}, frame)
}

// NewPost announces a post on the shared feed group and notifies the author's
// friends personally.
func (b *Broadcaster) NewPost(ctx context.Context, actor models.User, payload models.PostPayload) {
	b.Broadcast(ctx, []string{bus.PublicFeedGroup}, proto.NewFeedUpdate(proto.FeedEvent{
		Event: proto.FeedNewPost,
		Post:  &payload,
	}))

	friendIDs, err := b.users.ListFriendIDs(ctx, actor.ID)
	if err != nil {
		b.log.Error().Err(err).Int("user_id", actor.ID).Msg("list friends for post notification")
		return
	}
	for _, friendID := range friendIDs {
		b.notify(ctx, friendID, actor, models.NotificationNewPost, &payload.ID, nil)
	}
}

// UpdatedPost announces an edited post on the shared feed group.
func (b *Broadcaster) UpdatedPost(ctx context.Context, payload models.PostPayload) {
	b.Broadcast(ctx, []string{bus.PublicFeedGroup}, proto.NewFeedUpdate(proto.FeedEvent{
		Event: proto.FeedUpdatePost,
		Post:  &payload,
	}))
}

// DeletedPost announces a removed post on the shared feed group.
func (b *Broadcaster) DeletedPost(ctx context.Context, postID int) {
	b.Broadcast(ctx, []string{bus.PublicFeedGroup}, proto.NewFeedUpdate(proto.FeedEvent{
		Event:  proto.FeedDeletePost,
		PostID: postID,
	}))
}

// PostReaction announces a reaction change with counts recomputed from the
// persisted rows, and notifies the post author unless they reacted themselves.
func (b *Broadcaster) PostReaction(ctx context.Context, post models.Post, actor models.User, reactionType *string) {
	counts, err := b.reactions.PostReactionCounts(ctx, post.ID)
	if err != nil {
		b.log.Error().Err(err).Int("post_id", post.ID).Msg("recompute post reaction counts")
		counts = map[string]int{}
	}

	event := proto.FeedEvent{
		Event:          proto.FeedPostReact,
		PostID:         post.ID,
		UserID:         actor.ID,
		UserName:       actor.FullName(),
		ReactionType:   reactionType,
		ReactionCounts: counts,
	}
	if reactionType == nil {
		event.Event = proto.FeedPostUnreact
	}
	b.Broadcast(ctx, []string{bus.PublicFeedGroup}, proto.NewFeedUpdate(event))

	if reactionType != nil {
		b.notify(ctx, post.AuthorID, actor, models.NotificationPostReact, &post.ID, nil)
	}
}

// SharedPost announces a share with the fresh share count and notifies the
// post author.
func (b *Broadcaster) SharedPost(ctx context.Context, post models.Post, actor models.User, message string) {
	count, err := b.shares.CountForPost(ctx, post.ID)
	if err != nil {
		b.log.Error().Err(err).Int("post_id", post.ID).Msg("count shares")
	}

	b.Broadcast(ctx, []string{bus.PublicFeedGroup}, proto.NewFeedUpdate(proto.FeedEvent{
		Event:       proto.FeedSharePost,
		PostID:      post.ID,
		UserID:      actor.ID,
		UserName:    actor.FullName(),
		Message:     message,
		SharesCount: count,
	}))

	b.notify(ctx, post.AuthorID, actor, models.NotificationSharePost, &post.ID, nil)
}

// NewComment announces a comment on the feed and notifies a single recipient:
// the parent comment's author for replies, the post author otherwise.
func (b *Broadcaster) NewComment(ctx context.Context, post models.Post, actor models.User, payload models.CommentPayload, parentAuthorID int) {
	b.Broadcast(ctx, []string{bus.PublicFeedGroup}, proto.NewFeedUpdate(proto.FeedEvent{
		Event:   proto.FeedNewComment,
		PostID:  post.ID,
		Comment: &payload,
		IsReply: payload.ParentID != nil,
	}))

	recipientID := post.AuthorID
	if payload.ParentID != nil {
		recipientID = parentAuthorID
	}
	b.notify(ctx, recipientID, actor, models.NotificationNewComment, &post.ID, &payload.ID)
}

// UpdatedComment announces an edited comment on the feed.
func (b *Broadcaster) UpdatedComment(ctx context.Context, postID int, payload models.CommentPayload) {
	b.Broadcast(ctx, []string{bus.PublicFeedGroup}, proto.NewFeedUpdate(proto.FeedEvent{
		Event:   proto.FeedUpdateComment,
		PostID:  postID,
		Comment: &payload,
	}))
}

// DeletedComment announces a removed comment on the feed.
func (b *Broadcaster) DeletedComment(ctx context.Context, postID, commentID, deletedBy int) {
	b.Broadcast(ctx, []string{bus.PublicFeedGroup}, proto.NewFeedUpdate(proto.FeedEvent{
		Event:     proto.FeedDeleteComment,
		PostID:    postID,
		CommentID: commentID,
		UserID:    deletedBy,
	}))
}

// CommentReaction announces a comment reaction change with recomputed counts
// and notifies the comment author.
func (b *Broadcaster) CommentReaction(ctx context.Context, comment models.Comment, actor models.User, reactionType *string) {
	counts, err := b.reactions.CommentReactionCounts(ctx, comment.ID)
	if err != nil {
		b.log.Error().Err(err).Int("comment_id", comment.ID).Msg("recompute comment reaction counts")
		counts = map[string]int{}
	}

	event := proto.FeedEvent{
		Event:          proto.FeedCommentReact,
		PostID:         comment.PostID,
		CommentID:      comment.ID,
		UserID:         actor.ID,
		UserName:       actor.FullName(),
		ReactionType:   reactionType,
		ReactionCounts: counts,
	}
	if reactionType == nil {
		event.Event = proto.FeedCommentUnreact
	}
	b.Broadcast(ctx, []string{bus.PublicFeedGroup}, proto.NewFeedUpdate(event))

	if reactionType != nil {
		b.notify(ctx, comment.AuthorID, actor, models.NotificationCommentReact, &comment.PostID, &comment.ID)
	}
}

// notify persists a personal notification and publishes it to the recipient's
// personal group. Self-notifications are suppressed.
func (b *Broadcaster) notify(ctx context.Context, recipientID int, actor models.User, kind string, postID, commentID *int) {
	if recipientID == actor.ID {
		return
	}

	n, err := b.notifications.Create(ctx, recipientID, actor.ID, kind, postID, commentID)
	if err != nil {
		b.log.Error().Err(err).Int("recipient_id", recipientID).Str("kind", kind).Msg("persist notification")
		return
	}

	frame := proto.NewNotification(n.Payload(actor.Summary()))
	b.Broadcast(ctx, []string{bus.UserGroup(recipientID)}, frame)
}
