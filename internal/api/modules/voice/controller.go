package voice

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ethanbaker/voicechat/internal/audio"
	"github.com/ethanbaker/voicechat/internal/auth"
	"github.com/ethanbaker/voicechat/internal/conversation"
	"github.com/ethanbaker/voicechat/internal/pipeline"
	"github.com/ethanbaker/voicechat/internal/stores/session"
	"github.com/ethanbaker/voicechat/pkg/apperr"
	"github.com/ethanbaker/voicechat/pkg/sdk"
)

// formOverhead leaves room for multipart boundaries and the session_id field
const formOverhead = 1 << 20

type turnRunner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

type sessionCreator interface {
	Create(ctx context.Context, ownerID string, metadata session.Metadata) (*session.Session, error)
}

type messageLister interface {
	Limit(requested int) int
	Messages(ctx context.Context, sessionID uuid.UUID, ownerID string, limit int) ([]*session.Message, error)
}

// Controller serves the voice endpoints
type Controller struct {
	pipeline      turnRunner
	sessions      sessionCreator
	messages      messageLister
	maxBodyBytes  int64
	exposeDetails bool
}

// Options configure a Controller
type Options struct {
	MaxAudioBytes int64
	ExposeDetails bool
}

// NewController creates the voice controller
func NewController(p turnRunner, sessions sessionCreator, messages messageLister, opts Options) *Controller {
	if opts.MaxAudioBytes <= 0 {
		opts.MaxAudioBytes = audio.DefaultLimits().MaxBytes
	}
	return &Controller{
		pipeline:      p,
		sessions:      sessions,
		messages:      messages,
		maxBodyBytes:  opts.MaxAudioBytes + formOverhead,
		exposeDetails: opts.ExposeDetails,
	}
}

// PostTurn handles POST requests carrying one spoken utterance
func (ctrl *Controller) PostTurn(c *gin.Context) {
	identity, _ := auth.IdentityFrom(c)

	fileHeader, err := c.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ctrl.respondError(c, apperr.ValidationStatus(http.StatusRequestEntityTooLarge, audio.CodeAudioTooLarge, "the upload exceeds the maximum audio size"))
			return
		}
		ctrl.respondError(c, apperr.Validation("missing_audio", "the multipart field 'audio' is required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		ctrl.respondError(c, apperr.Internal("failed to read the uploaded audio", err))
		return
	}
	defer file.Close()

	result, err := ctrl.pipeline.Run(c.Request.Context(), pipeline.Request{
		OwnerID:     identity.OwnerID,
		SessionID:   c.PostForm("session_id"),
		Audio:       file,
		ContentType: fileHeader.Header.Get("Content-Type"),
	})
	if err != nil {
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			c.Header(sdk.HeaderRequestID, stageErr.RequestID)
		}
		ctrl.respondError(c, err)
		return
	}

	c.Header(sdk.HeaderRequestID, result.RequestID)
	c.Header(sdk.HeaderSessionID, result.SessionID.String())
	c.Header(sdk.HeaderTranscript, url.PathEscape(result.Transcript))
	c.Header(sdk.HeaderTurnPersisted, strconv.FormatBool(result.Persisted))
	if result.PersistErr != nil {
		c.Header(sdk.HeaderTurnError, apperr.Normalize(result.PersistErr).WireCode())
	}

	c.Data(http.StatusOK, result.ContentType, result.Audio)
}

// CreateSession handles POST requests to explicitly start a session
func (ctrl *Controller) CreateSession(c *gin.Context) {
	identity, _ := auth.IdentityFrom(c)

	// The body is optional
	var req sdk.CreateSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			ctrl.respondError(c, apperr.Validation("invalid_body", "could not parse request body"))
			return
		}
	}

	s, err := ctrl.sessions.Create(c.Request.Context(), identity.OwnerID, session.Metadata(req.Metadata))
	if err != nil {
		ctrl.respondError(c, err)
		return
	}

	c.JSON(sdk.NewSuccessResponse("Session created successfully", toSDKSession(s)).AsGinResponse())
}

// ListMessages handles GET requests for the recent messages of an owned session
func (ctrl *Controller) ListMessages(c *gin.Context) {
	identity, _ := auth.IdentityFrom(c)

	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		ctrl.respondError(c, apperr.NotFound("session not found"))
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			ctrl.respondError(c, apperr.Validation("invalid_limit", "limit must be a positive integer"))
			return
		}
	}
	limit = ctrl.messages.Limit(limit)

	messages, err := ctrl.messages.Messages(c.Request.Context(), id, identity.OwnerID, limit)
	if err != nil {
		ctrl.respondError(c, err)
		return
	}

	resp := sdk.MessageList{
		SessionID: id.String(),
		Limit:     limit,
		Messages:  make([]sdk.Message, 0, len(messages)),
	}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, toSDKMessage(m))
	}

	c.JSON(sdk.NewSuccessResponse("Messages retrieved successfully", resp).AsGinResponse())
}

// Helper method to convert an internal session to an sdk session
func toSDKSession(s *session.Session) sdk.Session {
	return sdk.Session{
		ID:             s.ID.String(),
		OwnerID:        s.OwnerID,
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
		Metadata:       s.Metadata,
	}
}

// Helper method to convert an internal message to an sdk message
func toSDKMessage(m *session.Message) sdk.Message {
	return sdk.Message{
		ID:        m.ID,
		SessionID: m.SessionID.String(),
		Role:      string(m.Role),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

var (
	_ turnRunner     = (*pipeline.Orchestrator)(nil)
	_ sessionCreator = (*conversation.Resolver)(nil)
	_ messageLister  = (*conversation.ContextLoader)(nil)
)
