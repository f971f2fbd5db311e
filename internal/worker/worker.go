// Package worker processes background jobs from the Redis queue.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/lumen-events/backend/internal/attendance"
	"github.com/lumen-events/backend/internal/models"
	"github.com/lumen-events/backend/pkg/queue"
)

// Sender delivers a single email.
type Sender interface {
	Send(to, subject, htmlBody string) error
}

// TicketIssuer issues a fresh QR ticket for a signup.
type TicketIssuer interface {
	Issue(ctx context.Context, signupID, eventID uuid.UUID) (*attendance.Ticket, error)
}

// SignupGetter loads a signup by ID.
type SignupGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Signup, error)
}

// EventGetter loads an event by ID.
type EventGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// TicketProcessor consumes ticket email jobs. It issues the QR ticket at
// send time so the raw token only ever exists in the outgoing email.
type TicketProcessor struct {
	jobs       *queue.Queue
	signupRepo SignupGetter
	eventRepo  EventGetter
	issuer     TicketIssuer
	mailer     Sender
	logger     *zap.Logger
}

// NewTicketProcessor creates a ticket email processor.
func NewTicketProcessor(jobs *queue.Queue, signupRepo SignupGetter, eventRepo EventGetter, issuer TicketIssuer, mailer Sender, logger *zap.Logger) *TicketProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketProcessor{
		jobs:       jobs,
		signupRepo: signupRepo,
		eventRepo:  eventRepo,
		issuer:     issuer,
		mailer:     mailer,
		logger:     logger,
	}
}

// Run dequeues and processes jobs until ctx is cancelled.
func (p *TicketProcessor) Run(ctx context.Context) {
	p.logger.Info("ticket worker started", zap.String("queue", queue.QueueTickets))
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("ticket worker stopping")
			return
		default:
		}

		job, err := p.jobs.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("dequeue failed", zap.Error(err))
			time.Sleep(2 * time.Second)
			continue
		}
		if job == nil {
			continue
		}

		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.Error(err),
				zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
			if rerr := p.jobs.Retry(ctx, job); rerr != nil {
				p.logger.Error("retry failed", zap.Error(rerr), zap.String("job_id", job.ID))
			}
		}
	}
}

// Process handles a single job.
func (p *TicketProcessor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeTicketEmail:
		var payload queue.TicketEmailPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.sendTicket(ctx, payload)
	default:
		p.logger.Warn("unknown job type", zap.String("type", string(job.Type)), zap.String("job_id", job.ID))
		return nil
	}
}

func (p *TicketProcessor) sendTicket(ctx context.Context, payload queue.TicketEmailPayload) error {
	signup, err := p.signupRepo.GetByID(ctx, payload.SignupID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Cancelled before the worker got to it; nothing to send.
			p.logger.Info("signup gone, skipping ticket email", zap.String("signup_id", payload.SignupID.String()))
			return nil
		}
		return fmt.Errorf("load signup: %w", err)
	}
	event, err := p.eventRepo.GetByID(ctx, signup.EventID)
	if err != nil {
		return fmt.Errorf("load event: %w", err)
	}

	ticket, err := p.issuer.Issue(ctx, signup.ID, signup.EventID)
	if err != nil {
		return fmt.Errorf("issue ticket: %w", err)
	}

	body, err := renderTicketEmail(ticketEmailData{
		RecipientName: signup.FullName,
		EventTitle:    event.Title,
		EventLocation: event.Location,
		StartsAt:      event.StartsAt,
		QRDataURI:     template.URL(ticket.DataURI),
	})
	if err != nil {
		return fmt.Errorf("render email: %w", err)
	}

	subject := fmt.Sprintf("Your ticket for %s", event.Title)
	if err := p.mailer.Send(signup.Email, subject, body); err != nil {
		return err
	}
	p.logger.Info("ticket email sent",
		zap.String("signup_id", signup.ID.String()),
		zap.String("event_id", signup.EventID.String()))
	return nil
}

type ticketEmailData struct {
	RecipientName string
	EventTitle    string
	EventLocation string
	StartsAt      time.Time
	QRDataURI     template.URL
}

var ticketTmpl = template.Must(template.New("ticket").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #222;">
  <h2>You're signed up for {{.EventTitle}}</h2>
  <p>Hi {{.RecipientName}},</p>
  <p>Show this QR code at the door. It works once, so don't share it.</p>
  <p><img src="{{.QRDataURI}}" alt="Your entry QR code" width="300" height="300"/></p>
  {{if not .StartsAt.IsZero}}<p><strong>When:</strong> {{.StartsAt.Format "Mon, 2 Jan 2006 15:04 MST"}}</p>{{end}}
  {{if .EventLocation}}<p><strong>Where:</strong> {{.EventLocation}}</p>{{end}}
  <p>See you there!</p>
</body>
</html>`))

func renderTicketEmail(data ticketEmailData) (string, error) {
	var b strings.Builder
	if err := ticketTmpl.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
