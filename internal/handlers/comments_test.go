package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vietTNT/DoveRx-backend/internal/broadcast"
	"github.com/vietTNT/DoveRx-backend/internal/bus"
	"github.com/vietTNT/DoveRx-backend/internal/mocks"
	"github.com/vietTNT/DoveRx-backend/internal/models"
)

type commentFixture struct {
	posts     *mocks.PostRepositoryMock
	comments  *mocks.CommentRepositoryMock
	reactions *mocks.ReactionRepositoryMock
	router    *gin.Engine
}

func newCommentFixture() *commentFixture {
	gin.SetMode(gin.TestMode)
	log := zerolog.Nop()
	f := &commentFixture{
		posts:     new(mocks.PostRepositoryMock),
		comments:  new(mocks.CommentRepositoryMock),
		reactions: new(mocks.ReactionRepositoryMock),
	}
	users := new(mocks.UserRepositoryMock)
	broadcaster := broadcast.New(bus.NewMemory(&log), users, f.reactions, new(mocks.ShareRepositoryMock), new(mocks.NotificationRepositoryMock), &log)
	handler := NewCommentHandler(f.posts, f.comments, f.reactions, users, broadcaster)

	f.router = gin.New()
	f.router.Use(testIdentity(1))
	f.router.POST("/posts/:post_id/comments", handler.CreateComment)
	f.router.PUT("/comments/:comment_id", handler.UpdateComment)
	f.router.DELETE("/comments/:comment_id", handler.DeleteComment)
	return f
}

func TestCreateCommentRejectsForeignParent(t *testing.T) {
	f := newCommentFixture()

	f.posts.On("GetPost", mock.Anything, 7).
		Return(models.Post{ID: 7, AuthorID: 2}, nil).Once()
	f.comments.On("GetComment", mock.Anything, 20).
		Return(models.Comment{ID: 20, PostID: 8, AuthorID: 3}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/posts/7/comments", bytes.NewBufferString(`{"text":"hi","parent_id":20}`))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	f.comments.AssertNotCalled(t, "CreateComment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateCommentSuccess(t *testing.T) {
	f := newCommentFixture()

	f.posts.On("GetPost", mock.Anything, 7).
		Return(models.Post{ID: 7, AuthorID: 1}, nil).Once()
	f.comments.On("CreateComment", mock.Anything, 7, 1, "hi", (*int)(nil)).
		Return(models.Comment{ID: 30, PostID: 7, AuthorID: 1, Text: "hi"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/posts/7/comments", bytes.NewBufferString(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	f.comments.AssertExpectations(t)
}

func TestUpdateCommentRejectsNonOwner(t *testing.T) {
	f := newCommentFixture()

	f.comments.On("GetComment", mock.Anything, 30).
		Return(models.Comment{ID: 30, PostID: 7, AuthorID: 2}, nil).Once()

	req := httptest.NewRequest(http.MethodPut, "/comments/30", bytes.NewBufferString(`{"text":"edit"}`))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	f.comments.AssertNotCalled(t, "UpdateComment", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteCommentRejectsNonOwner(t *testing.T) {
	f := newCommentFixture()

	f.comments.On("GetComment", mock.Anything, 30).
		Return(models.Comment{ID: 30, PostID: 7, AuthorID: 2}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/comments/30", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	f.comments.AssertNotCalled(t, "DeleteComment", mock.Anything, mock.Anything)
}
