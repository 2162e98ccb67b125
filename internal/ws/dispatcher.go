package ws

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/vietTNT/DoveRx-backend/internal/auth"
	"github.com/vietTNT/DoveRx-backend/internal/broadcast"
	"github.com/vietTNT/DoveRx-backend/internal/bus"
	"github.com/vietTNT/DoveRx-backend/internal/models"
	"github.com/vietTNT/DoveRx-backend/internal/observability"
	"github.com/vietTNT/DoveRx-backend/internal/proto"
	"github.com/vietTNT/DoveRx-backend/internal/repositories"
)

// ErrInvalidState is returned when a lifecycle transition is attempted from
// the wrong state.
var ErrInvalidState = errors.New("invalid session state")

type frameHandler func(ctx context.Context, s *Session, frame []byte)

// Dispatcher routes inbound frames to their handlers. Each connection kind
// has its own fixed handler table; frames with a type outside the table are
// ignored, malformed frames are dropped.
type Dispatcher struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	posts         repositories.PostRepository
	comments      repositories.CommentRepository
	reactions     repositories.ReactionRepository
	broadcaster   *broadcast.Broadcaster
	pool          *Pool
	log           zerolog.Logger

	chatHandlers map[string]frameHandler
	feedHandlers map[string]frameHandler
}

// NewDispatcher wires the handler tables.
func NewDispatcher(
	conversations repositories.ConversationRepository,
	messages repositories.MessageRepository,
	posts repositories.PostRepository,
	comments repositories.CommentRepository,
	reactions repositories.ReactionRepository,
	broadcaster *broadcast.Broadcaster,
	pool *Pool,
	log *zerolog.Logger,
) *Dispatcher {
	d := &Dispatcher{
		conversations: conversations,
		messages:      messages,
		posts:         posts,
		comments:      comments,
		reactions:     reactions,
		broadcaster:   broadcaster,
		pool:          pool,
		log:           log.With().Str("component", "ws.dispatcher").Logger(),
	}
	d.chatHandlers = map[string]frameHandler{
		proto.TypePing:        d.handlePing,
		proto.TypeSendMessage: d.handleSendMessage,
		proto.TypeTyping:      d.handleChatTyping,
		proto.TypeMarkRead:    d.handleMarkRead,
	}
	d.feedHandlers = map[string]frameHandler{
		proto.TypePing:          d.handlePing,
		proto.TypeTyping:        d.handleFeedTyping,
		proto.TypePostReact:     d.handlePostReact,
		proto.TypeDeleteComment: d.handleDeleteComment,
	}
	return d
}

// Dispatch decodes the frame's type discriminant and runs the matching
// handler on the worker pool, waiting for it so each connection processes its
// frames in order. Side effects of a frame already being handled finish even
// if the connection drops mid-flight.
func (d *Dispatcher) Dispatch(ctx context.Context, s *Session, frame []byte) {
	var env proto.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		d.log.Debug().Err(err).Str("conn_id", s.ID).Msg("malformed frame dropped")
		return
	}

	table := d.chatHandlers
	if s.Kind == KindFeed {
		table = d.feedHandlers
	}
	handler, ok := table[env.Type]
	if !ok {
		d.log.Debug().Str("conn_id", s.ID).Str("frame_type", env.Type).Msg("unknown frame type ignored")
		return
	}

	observability.IncWSEvent(s.Kind, env.Type)
	hctx := context.WithoutCancel(ctx)
	_ = d.pool.Submit(ctx, func() {
		handler(hctx, s, frame)
	})
}

func (d *Dispatcher) handlePing(ctx context.Context, s *Session, frame []byte) {
	var ping proto.PingFrame
	if err := json.Unmarshal(frame, &ping); err != nil {
		return
	}
	s.Send(proto.Pong{Type: proto.TypePong, Timestamp: ping.Timestamp})
}

func (d *Dispatcher) handleSendMessage(ctx context.Context, s *Session, frame []byte) {
	var req proto.SendMessageFrame
	if err := json.Unmarshal(frame, &req); err != nil {
		s.SendError("invalid send_message payload")
		return
	}
	if req.Text == "" && req.Attachment == "" {
		s.SendError("message text or attachment required")
		return
	}

	conv, err := d.conversations.GetConversation(ctx, req.ConversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			s.SendError("conversation not found")
		} else {
			d.log.Error().Err(err).Int("conversation_id", req.ConversationID).Msg("load conversation")
			s.SendError("could not send message")
		}
		return
	}
	recipientID, ok := conv.OtherParticipant(s.Identity.User.ID)
	if !ok {
		s.SendError("not a participant of this conversation")
		return
	}

	msg, err := d.messages.CreateMessage(ctx, conv.ID, s.Identity.User.ID, req.Text, req.Attachment)
	if err != nil {
		d.log.Error().Err(err).Int("conversation_id", conv.ID).Msg("persist message")
		s.SendError("could not send message")
		return
	}
	if err := d.conversations.Touch(ctx, conv.ID); err != nil {
		d.log.Warn().Err(err).Int("conversation_id", conv.ID).Msg("touch conversation")
	}

	payload := msg.Payload(s.Identity.Summary())
	d.broadcaster.NewMessage(ctx, recipientID, payload)
	s.Send(proto.MessageFrame{Type: proto.TypeMessageSent, Message: payload})
}

func (d *Dispatcher) handleChatTyping(ctx context.Context, s *Session, frame []byte) {
	var req proto.TypingFrame
	if err := json.Unmarshal(frame, &req); err != nil {
		return
	}
	conv, err := d.conversations.GetConversation(ctx, req.ConversationID)
	if err != nil {
		return
	}
	recipientID, ok := conv.OtherParticipant(s.Identity.User.ID)
	if !ok {
		return
	}
	d.broadcaster.Typing(ctx, bus.UserGroup(recipientID), proto.UserTyping{
		Type:           proto.TypeUserTyping,
		ConversationID: conv.ID,
		UserID:         s.Identity.User.ID,
		UserName:       s.Identity.User.FullName(),
		IsTyping:       req.Typing(),
	})
}

func (d *Dispatcher) handleFeedTyping(ctx context.Context, s *Session, frame []byte) {
	var req proto.TypingFrame
	if err := json.Unmarshal(frame, &req); err != nil {
		return
	}
	// Delivered to everyone on the feed; the sender's own copy is filtered
	// out at write time.
	d.broadcaster.Typing(ctx, bus.PublicFeedGroup, proto.UserTyping{
		Type:     proto.TypeUserTyping,
		PostID:   req.PostID,
		UserID:   s.Identity.User.ID,
		UserName: s.Identity.User.FullName(),
		IsTyping: req.Typing(),
	})
}

func (d *Dispatcher) handleMarkRead(ctx context.Context, s *Session, frame []byte) {
	var req proto.MarkReadFrame
	if err := json.Unmarshal(frame, &req); err != nil {
		s.SendError("invalid mark_read payload")
		return
	}
	conv, err := d.conversations.GetConversation(ctx, req.ConversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			s.SendError("conversation not found")
		} else {
			d.log.Error().Err(err).Int("conversation_id", req.ConversationID).Msg("load conversation")
			s.SendError("could not mark messages read")
		}
		return
	}
	recipientID, ok := conv.OtherParticipant(s.Identity.User.ID)
	if !ok {
		s.SendError("not a participant of this conversation")
		return
	}
	marked, err := d.messages.MarkRead(ctx, conv.ID, s.Identity.User.ID)
	if err != nil {
		d.log.Error().Err(err).Int("conversation_id", conv.ID).Msg("mark messages read")
		s.SendError("could not mark messages read")
		return
	}
	if marked > 0 {
		d.broadcaster.MessagesRead(ctx, recipientID, conv.ID, s.Identity.User.ID)
	}
}

func (d *Dispatcher) handlePostReact(ctx context.Context, s *Session, frame []byte) {
	var req proto.PostReactFrame
	if err := json.Unmarshal(frame, &req); err != nil {
		s.SendError("invalid post_react payload")
		return
	}
	if req.ReactionType != nil && !models.ValidReactionKind(*req.ReactionType) {
		s.SendError("unknown reaction type")
		return
	}

	post, err := d.posts.GetPost(ctx, req.PostID)
	if err != nil {
		if errors.Is(err, repositories.ErrPostNotFound) {
			s.SendError("post not found")
		} else {
			d.log.Error().Err(err).Int("post_id", req.PostID).Msg("load post")
			s.SendError("could not react to post")
		}
		return
	}

	if req.ReactionType == nil {
		removed, err := d.reactions.RemovePostReaction(ctx, post.ID, s.Identity.User.ID)
		if err != nil {
			d.log.Error().Err(err).Int("post_id", post.ID).Msg("remove post reaction")
			s.SendError("could not remove reaction")
			return
		}
		if !removed {
			return
		}
	} else {
		if _, err := d.reactions.UpsertPostReaction(ctx, post.ID, s.Identity.User.ID, *req.ReactionType); err != nil {
			d.log.Error().Err(err).Int("post_id", post.ID).Msg("upsert post reaction")
			s.SendError("could not react to post")
			return
		}
	}
	d.broadcaster.PostReaction(ctx, post, s.Identity.User, req.ReactionType)
}

func (d *Dispatcher) handleDeleteComment(ctx context.Context, s *Session, frame []byte) {
	var req proto.DeleteCommentFrame
	if err := json.Unmarshal(frame, &req); err != nil {
		s.SendError("invalid delete_comment payload")
		return
	}
	comment, err := d.comments.GetComment(ctx, req.CommentID)
	if err != nil {
		if !errors.Is(err, repositories.ErrCommentNotFound) {
			d.log.Error().Err(err).Int("comment_id", req.CommentID).Msg("load comment")
			s.SendError("could not delete comment")
		}
		return
	}
	if err := auth.RequireOwner(comment.AuthorID, s.Identity.User.ID); err != nil {
		s.SendError("cannot delete another user's comment")
		return
	}
	if err := d.comments.DeleteComment(ctx, comment.ID); err != nil {
		if !errors.Is(err, repositories.ErrCommentNotFound) {
			d.log.Error().Err(err).Int("comment_id", comment.ID).Msg("delete comment")
			s.SendError("could not delete comment")
		}
		return
	}
	d.broadcaster.DeletedComment(ctx, comment.PostID, comment.ID, s.Identity.User.ID)
}
