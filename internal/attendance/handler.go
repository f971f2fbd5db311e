package attendance

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-events/backend/internal/middleware"
	"github.com/lumen-events/backend/pkg/response"
)

// IssueRequest is the body for POST /attendance/issue.
type IssueRequest struct {
	SignupID string `json:"signup_id" binding:"required,uuid"`
	EventID  string `json:"event_id" binding:"required,uuid"`
}

// VerifyRequest is the body for POST /attendance/verify.
type VerifyRequest struct {
	Token string `json:"token" binding:"required"`
	Notes string `json:"notes"`
}

// Broadcaster pushes confirmed check-ins to the live staff feed.
type Broadcaster interface {
	BroadcastToEventAndPublish(eventID uuid.UUID, event string, payload interface{})
}

// Handler handles attendance HTTP endpoints. Both routes sit behind the
// staff/admin role guard; the handler only consumes the asserted actor
// identity for attribution.
type Handler struct {
	svc    *Service
	feed   Broadcaster
	logger *zap.Logger
}

// NewHandler creates an attendance handler. feed may be nil.
func NewHandler(svc *Service, feed Broadcaster, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, feed: feed, logger: logger}
}

// Issue handles POST /attendance/issue (staff/admin). Issues or re-issues a
// QR ticket for a signup; any previously issued ticket stops verifying.
func (h *Handler) Issue(c *gin.Context) {
	var req IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "signup_id and event_id are required")
		return
	}
	// binding:"uuid" has already rejected anything unparseable.
	signupID := uuid.MustParse(req.SignupID)
	eventID := uuid.MustParse(req.EventID)

	ticket, err := h.svc.Issue(c.Request.Context(), signupID, eventID)
	if errors.Is(err, ErrSignupNotFound) {
		response.NotFound(c, "signup not found for event")
		return
	}
	if err != nil {
		h.logger.Error("issue ticket failed", zap.Error(err), zap.String("signup_id", req.SignupID))
		response.Internal(c, "failed to issue ticket")
		return
	}

	response.OK(c, gin.H{
		"qr_code": ticket.DataURI,
		"token":   ticket.Token,
		"payload": ticket.Payload,
	})
}

// Verify handles POST /attendance/verify (staff/admin). Returns 200 on
// first use, 409 when the code was already used, 404 when it matches
// nothing, and 500 only for store failures (safe to retry).
func (h *Handler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "token is required")
		return
	}

	var actorID *uuid.UUID
	if v, ok := c.Get(middleware.ContextUserID); ok {
		if id, ok := v.(uuid.UUID); ok {
			actorID = &id
		}
	}

	res, err := h.svc.Verify(c.Request.Context(), req.Token, actorID, req.Notes)
	if err != nil {
		h.logger.Error("verify failed", zap.Error(err))
		response.Internal(c, "verification unavailable, try again")
		return
	}

	switch res.Status {
	case StatusConfirmed:
		if h.feed != nil {
			h.feed.BroadcastToEventAndPublish(res.EventID, "check_in", gin.H{
				"signup_id":     res.SignupID,
				"attendee_name": res.AttendeeName,
				"checked_in_at": res.CheckedInAt,
			})
		}
		response.OK(c, gin.H{
			"status":        res.Status,
			"signup_id":     res.SignupID,
			"attendee_name": res.AttendeeName,
			"event_id":      res.EventID,
			"checked_in_at": res.CheckedInAt,
		})
	case StatusAlreadyUsed:
		response.Conflict(c, gin.H{
			"status":        res.Status,
			"attendee_name": res.AttendeeName,
			"event_id":      res.EventID,
		}, "this code has already been used")
	default:
		response.NotFound(c, "invalid or unknown code")
	}
}
