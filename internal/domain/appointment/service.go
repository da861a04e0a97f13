package appointment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebook/carebook/internal/domain/identity"
	"github.com/carebook/carebook/internal/platform/apperr"
	"github.com/carebook/carebook/internal/platform/auth"
	"github.com/carebook/carebook/internal/platform/notification"
)

// Fan-out event names, used as the metrics label.
const (
	EventCreated       = "appointment.created"
	EventStatusUpdated = "appointment.status_updated"
	EventReminder      = "appointment.reminder"
)

const unknownName = "Unknown"

// Directory resolves users. identity.Service implements it.
type Directory interface {
	Lookup(ctx context.Context, id uuid.UUID) (*identity.Identity, error)
	ListIdentitiesByRole(ctx context.Context, role string, limit, offset int) ([]identity.Identity, int, error)
}

// Metrics receives lifecycle counters.
type Metrics interface {
	AppointmentCreated(severity string)
	AppointmentTransition(from, to string)
}

type noopMetrics struct{}

func (noopMetrics) AppointmentCreated(string)            {}
func (noopMetrics) AppointmentTransition(string, string) {}

// Options tunes the lifecycle engine.
type Options struct {
	InitialStatus      Status
	EnforceTransitions bool
	AdminPageSize      int
}

// DefaultOptions books appointments as Pending, enforces the transition
// table and pages admins 100 at a time.
func DefaultOptions() Options {
	return Options{InitialStatus: StatusPending, EnforceTransitions: true, AdminPageSize: 100}
}

type Service struct {
	appointments AppointmentRepository
	directory    Directory
	notifier     *notification.Dispatcher
	metrics      Metrics
	opts         Options
	logger       zerolog.Logger
}

// NewService creates the lifecycle engine. metrics may be nil.
func NewService(
	appointments AppointmentRepository,
	directory Directory,
	notifier *notification.Dispatcher,
	metrics Metrics,
	opts Options,
	logger zerolog.Logger,
) *Service {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if _, ok := ParseStatus(string(opts.InitialStatus)); !ok {
		opts.InitialStatus = StatusPending
	}
	if opts.AdminPageSize <= 0 {
		opts.AdminPageSize = DefaultOptions().AdminPageSize
	}
	return &Service{
		appointments: appointments,
		directory:    directory,
		notifier:     notifier,
		metrics:      metrics,
		opts:         opts,
		logger:       logger.With().Str("component", "appointment").Logger(),
	}
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return unknownName
	}
	return name
}

// nameOf prefers the name carried by the token and falls back to the
// directory.
func (s *Service) nameOf(ctx context.Context, caller auth.Caller) string {
	if caller.Name != "" {
		return caller.Name
	}
	id, err := s.directory.Lookup(ctx, caller.ID)
	if err != nil {
		return unknownName
	}
	return displayName(id.Name)
}

// Create books an appointment for the calling patient and notifies the
// doctor, the patient and every admin. Notification failures never fail the
// booking.
func (s *Service) Create(ctx context.Context, caller auth.Caller, req CreateRequest) (*Appointment, error) {
	if strings.TrimSpace(req.DoctorID) == "" {
		return nil, apperr.Validation("Doctor is required")
	}
	doctorID, err := uuid.Parse(strings.TrimSpace(req.DoctorID))
	if err != nil {
		return nil, apperr.Validation("invalid doctorId")
	}
	if strings.TrimSpace(req.Date) == "" {
		return nil, apperr.Validation("Date is required")
	}
	date, err := parseDate(strings.TrimSpace(req.Date))
	if err != nil {
		return nil, apperr.Validation("invalid date %q", req.Date)
	}
	if strings.TrimSpace(req.TimeSlot) == "" {
		return nil, apperr.Validation("Time slot is required")
	}

	doctor, err := s.directory.Lookup(ctx, doctorID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound("Doctor not found")
		}
		return nil, err
	}
	if doctor.Role != auth.RoleDoctor {
		s.logger.Warn().
			Str("doctor_id", doctorID.String()).
			Str("role", doctor.Role).
			Msg("appointment booked with a user who is not a doctor")
	}

	a := &Appointment{
		PatientID: caller.ID,
		DoctorID:  doctorID,
		Date:      date,
		TimeSlot:  strings.TrimSpace(req.TimeSlot),
		Reason:    req.Reason,
		Status:    s.opts.InitialStatus,
	}
	if err := s.appointments.Create(ctx, a); err != nil {
		return nil, apperr.FromDB(err, "appointment")
	}

	severity := ClassifyUrgency(a.Reason)
	s.metrics.AppointmentCreated(string(severity))

	doctorName := displayName(doctor.Name)
	dateText := a.Date.Format(DateLayout)
	s.notifier.Fanout(ctx, EventCreated,
		notification.Target{
			RecipientID: a.DoctorID,
			Severity:    severity,
			Template:    notification.TplAppointmentRequest,
			Data:        map[string]string{"reason": a.Reason, "date": dateText, "time_slot": a.TimeSlot},
		},
		notification.Target{
			RecipientID: a.PatientID,
			Severity:    notification.SeverityInfo,
			Template:    notification.TplAppointmentReceipt,
			Data:        map[string]string{"doctor": doctorName, "date": dateText, "status": string(a.Status)},
		},
	)
	s.notifyAdmins(ctx, map[string]string{"patient": s.nameOf(ctx, caller), "doctor": doctorName})

	return a, nil
}

// notifyAdmins pages through the admin directory and alerts each admin.
func (s *Service) notifyAdmins(ctx context.Context, data map[string]string) {
	offset := 0
	for {
		admins, total, err := s.directory.ListIdentitiesByRole(ctx, auth.RoleAdmin, s.opts.AdminPageSize, offset)
		if err != nil {
			s.logger.Error().Err(err).Int("offset", offset).Msg("list admins for fan-out")
			return
		}
		if len(admins) == 0 {
			return
		}
		targets := make([]notification.Target, 0, len(admins))
		for _, admin := range admins {
			targets = append(targets, notification.Target{
				RecipientID: admin.ID,
				Severity:    notification.SeverityInfo,
				Template:    notification.TplAppointmentAlert,
				Data:        data,
			})
		}
		s.notifier.Fanout(ctx, EventCreated, targets...)

		offset += len(admins)
		if offset >= total {
			return
		}
	}
}

// ListForCaller returns the caller's appointments. Doctors get their
// schedule nearest first; everyone else gets their history newest first.
func (s *Service) ListForCaller(ctx context.Context, caller auth.Caller) ([]*ListItem, error) {
	var (
		items []*ListItem
		err   error
	)
	if caller.Role == auth.RoleDoctor {
		items, err = s.appointments.ListByDoctor(ctx, caller.ID)
	} else {
		items, err = s.appointments.ListByPatient(ctx, caller.ID)
	}
	if err != nil {
		return nil, apperr.FromDB(err, "appointments")
	}
	if items == nil {
		items = []*ListItem{}
	}
	return items, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		if err = apperr.FromDB(err, "appointment"); apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound("Appointment not found")
		}
		return nil, err
	}
	return a, nil
}

// Get returns one appointment to one of its participants or an admin.
func (s *Service) Get(ctx context.Context, caller auth.Caller, id uuid.UUID) (*Appointment, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && caller.ID != a.PatientID && caller.ID != a.DoctorID {
		return nil, apperr.Unauthorized("Not authorized")
	}
	return a, nil
}

// UpdateStatus moves an appointment to a new status. Doctors may only touch
// their own appointments, admins may touch any, and every other role is
// rejected. The patient is notified after the write.
func (s *Service) UpdateStatus(ctx context.Context, caller auth.Caller, id uuid.UUID, raw string) (*Appointment, error) {
	next, ok := ParseStatus(strings.TrimSpace(raw))
	if !ok {
		return nil, apperr.Validation("invalid status %q", raw)
	}
	if !caller.IsDoctor() && !caller.IsAdmin() {
		return nil, apperr.Unauthorized("Not authorized")
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.IsDoctor() && current.DoctorID != caller.ID {
		return nil, apperr.Unauthorized("Not authorized")
	}
	if s.opts.EnforceTransitions && !CanTransition(current.Status, next) {
		return nil, apperr.InvalidTransition(string(current.Status), string(next))
	}

	updated, err := s.writeStatus(ctx, current, next)
	if err != nil {
		return nil, err
	}
	s.metrics.AppointmentTransition(string(current.Status), string(next))

	severity := notification.SeverityWarning
	if next == StatusApproved {
		severity = notification.SeverityInfo
	}
	s.notifier.Fanout(ctx, EventStatusUpdated, notification.Target{
		RecipientID: updated.PatientID,
		Severity:    severity,
		Template:    notification.TplStatusUpdated,
		Data:        map[string]string{"status": string(next)},
	})
	return updated, nil
}

// writeStatus persists next. With transitions enforced the write only lands
// if the row still holds the status that was checked; a concurrent change
// (a medical record completing the appointment, say) is re-checked against
// the fresh status instead of being overwritten.
func (s *Service) writeStatus(ctx context.Context, current *Appointment, next Status) (*Appointment, error) {
	if !s.opts.EnforceTransitions {
		updated, err := s.appointments.UpdateStatus(ctx, current.ID, next)
		if err != nil {
			if err = apperr.FromDB(err, "appointment"); apperr.Is(err, apperr.KindNotFound) {
				return nil, apperr.NotFound("Appointment not found")
			}
			return nil, err
		}
		return updated, nil
	}

	updated, err := s.appointments.TransitionStatus(ctx, current.ID, current.Status, next)
	if err == nil {
		return updated, nil
	}
	if err = apperr.FromDB(err, "appointment"); !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}

	fresh, err := s.load(ctx, current.ID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(fresh.Status, next) {
		return nil, apperr.InvalidTransition(string(fresh.Status), string(next))
	}
	s.logger.Warn().Str("appointment_id", current.ID.String()).
		Str("expected", string(current.Status)).Str("found", string(fresh.Status)).
		Msg("status changed during update")
	return nil, apperr.Conflict("Appointment was modified concurrently, retry")
}

// Remind sends the other participant a reminder and marks the appointment
// as reminded. Each call sends a new notification.
func (s *Service) Remind(ctx context.Context, caller auth.Caller, id uuid.UUID) error {
	a, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	data := map[string]string{
		"date":      a.Date.Format(reminderDateLayout),
		"time_slot": a.TimeSlot,
	}
	var target notification.Target
	switch {
	case caller.Role == auth.RoleDoctor && caller.ID == a.DoctorID:
		data["doctor"] = s.nameOf(ctx, caller)
		target = notification.Target{RecipientID: a.PatientID, Template: notification.TplReminderToPatient}
	case caller.Role == auth.RolePatient && caller.ID == a.PatientID:
		data["patient"] = s.nameOf(ctx, caller)
		target = notification.Target{RecipientID: a.DoctorID, Template: notification.TplReminderToDoctor}
	default:
		return apperr.Unauthorized("Not authorized to remind for this appointment")
	}
	target.Severity = notification.SeverityInfo
	target.Data = data

	if err := s.appointments.MarkReminded(ctx, a.ID); err != nil {
		return apperr.FromDB(err, "appointment")
	}
	s.notifier.Fanout(ctx, EventReminder, target)
	return nil
}

// Count returns the number of appointments ever booked.
func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.appointments.CountAll(ctx)
	if err != nil {
		return 0, apperr.FromDB(err, "appointments")
	}
	return n, nil
}
