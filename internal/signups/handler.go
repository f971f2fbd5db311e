package signups

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-events/backend/internal/events"
	"github.com/lumen-events/backend/internal/middleware"
	"github.com/lumen-events/backend/internal/models"
	"github.com/lumen-events/backend/pkg/queue"
	"github.com/lumen-events/backend/pkg/response"
)

// RegisterRequest is the body for POST /events/:id/signups.
type RegisterRequest struct {
	Email      string `json:"email" binding:"required,email"`
	FullName   string `json:"full_name" binding:"required"`
	SignupType string `json:"signup_type"` // participant (default), caregiver, volunteer
}

// Handler handles signup HTTP endpoints.
type Handler struct {
	repo      *Repository
	eventRepo *events.Repository
	jobs      *queue.Queue
	logger    *zap.Logger
}

// NewHandler creates a signups handler. jobs may be nil (no ticket emails).
func NewHandler(repo *Repository, eventRepo *events.Repository, jobs *queue.Queue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, eventRepo: eventRepo, jobs: jobs, logger: logger}
}

// Register handles POST /events/:id/signups (public). Creates the signup and
// queues the QR ticket email; the ticket itself is issued by the worker at
// send time.
func (h *Handler) Register(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if _, err := h.eventRepo.GetByID(c.Request.Context(), eventID); err != nil {
		response.NotFound(c, "event not found")
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	signupType := models.SignupParticipant
	if req.SignupType != "" {
		st, ok := models.ParseSignupType(req.SignupType)
		if !ok {
			response.BadRequest(c, "invalid signup_type")
			return
		}
		signupType = st
	}

	s := &models.Signup{
		EventID:  eventID,
		Email:    req.Email,
		FullName: req.FullName,
		Type:     signupType,
	}
	if err := h.repo.Create(c.Request.Context(), s); err != nil {
		h.logger.Error("create signup failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to sign up")
		return
	}

	if h.jobs != nil {
		err := h.jobs.EnqueueTicketEmail(c.Request.Context(), queue.TicketEmailPayload{
			SignupID:       s.ID,
			EventID:        s.EventID,
			RecipientEmail: s.Email,
			RecipientName:  s.FullName,
		})
		if err != nil {
			// Signup stands; the ticket can be re-issued by staff.
			h.logger.Warn("enqueue ticket email failed", zap.Error(err), zap.String("signup_id", s.ID.String()))
		}
	}

	response.Created(c, s)
}

// ListByEvent handles GET /events/:id/signups (staff/admin).
func (h *Handler) ListByEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	list, err := h.repo.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		response.Internal(c, "failed to list signups")
		return
	}
	response.OK(c, list)
}

// Mine handles GET /signups (authenticated): the caller's own signups by email.
func (h *Handler) Mine(c *gin.Context) {
	email, _ := c.MustGet(middleware.ContextUserEmail).(string)
	if email == "" {
		response.Unauthorized(c, "missing user context")
		return
	}
	list, err := h.repo.ListByEmail(c.Request.Context(), email)
	if err != nil {
		response.Internal(c, "failed to list signups")
		return
	}
	response.OK(c, list)
}

// Cancel handles DELETE /signups/:id (staff/admin). Checked-in signups stay.
func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid signup id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.Internal(c, "failed to cancel signup")
		return
	}
	response.NoContent(c)
}
