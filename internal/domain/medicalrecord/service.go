package medicalrecord

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebook/carebook/internal/domain/appointment"
	"github.com/carebook/carebook/internal/domain/auditlog"
	"github.com/carebook/carebook/internal/platform/apperr"
	"github.com/carebook/carebook/internal/platform/auth"
	"github.com/carebook/carebook/internal/platform/db"
	"github.com/carebook/carebook/internal/platform/hipaa"
)

// Appointments is the slice of the appointment repository that record
// linkage writes through.
type Appointments interface {
	GetForUpdate(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status appointment.Status) (*appointment.Appointment, error)
}

// Auditor appends audit entries. auditlog.Service implements it.
type Auditor interface {
	Record(ctx context.Context, e *auditlog.Entry) error
}

// staleKeyChecker is implemented by encryptors that support key rotation.
type staleKeyChecker interface {
	NeedsReEncryption(value string) bool
}

type Service struct {
	records      RecordRepository
	appointments Appointments
	audit        Auditor
	tx           db.TxRunner
	enc          hipaa.FieldEncryptor
	metrics      appointment.Metrics
	logger       zerolog.Logger
}

// NewService wires record linkage. metrics may be nil.
func NewService(
	records RecordRepository,
	appointments Appointments,
	audit Auditor,
	tx db.TxRunner,
	enc hipaa.FieldEncryptor,
	metrics appointment.Metrics,
	logger zerolog.Logger,
) *Service {
	return &Service{
		records:      records,
		appointments: appointments,
		audit:        audit,
		tx:           tx,
		enc:          enc,
		metrics:      metrics,
		logger:       logger.With().Str("component", "medicalrecord").Logger(),
	}
}

// Create writes the record, completes the appointment and appends the audit
// entry in one transaction. The returned record holds plaintext.
func (s *Service) Create(ctx context.Context, caller auth.Caller, req CreateRequest, ip string) (*Record, error) {
	if strings.TrimSpace(req.AppointmentID) == "" {
		return nil, apperr.Validation("Appointment is required")
	}
	appointmentID, err := uuid.Parse(strings.TrimSpace(req.AppointmentID))
	if err != nil {
		return nil, apperr.Validation("invalid appointmentId")
	}
	if strings.TrimSpace(req.Diagnosis) == "" {
		return nil, apperr.Validation("Diagnosis is required")
	}

	var (
		rec  *Record
		from appointment.Status
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.appointments.GetForUpdate(ctx, appointmentID)
		if err != nil {
			if err = apperr.FromDB(err, "appointment"); apperr.Is(err, apperr.KindNotFound) {
				return apperr.NotFound("Appointment not found")
			}
			return err
		}
		if a.DoctorID != caller.ID {
			return apperr.Unauthorized("Not authorized")
		}
		exists, err := s.records.ExistsForAppointment(ctx, a.ID)
		if err != nil {
			return apperr.FromDB(err, "medical record")
		}
		if exists {
			return apperr.Conflict("a medical record already exists for this appointment")
		}
		if appointment.IsTerminal(a.Status) {
			return apperr.Conflict("appointment is already %s", a.Status)
		}
		from = a.Status

		stored, err := s.seal(&Record{
			PatientID:     a.PatientID,
			DoctorID:      caller.ID,
			AppointmentID: a.ID,
			Diagnosis:     req.Diagnosis,
			Prescription:  req.Prescription,
			Notes:         req.Notes,
		})
		if err != nil {
			return err
		}
		if err := s.records.Create(ctx, stored); err != nil {
			return apperr.FromDB(err, "medical record")
		}
		if _, err := s.appointments.UpdateStatus(ctx, a.ID, appointment.StatusCompleted); err != nil {
			return apperr.FromDB(err, "appointment")
		}

		patientID := a.PatientID
		if err := s.audit.Record(ctx, &auditlog.Entry{
			UserID:    caller.ID,
			Action:    auditlog.ActionCreateMedicalRecord,
			TargetID:  &patientID,
			IPAddress: ip,
		}); err != nil {
			return err
		}

		rec = &Record{
			ID:            stored.ID,
			PatientID:     stored.PatientID,
			DoctorID:      stored.DoctorID,
			AppointmentID: stored.AppointmentID,
			Diagnosis:     req.Diagnosis,
			Prescription:  req.Prescription,
			Notes:         req.Notes,
			CreatedAt:     stored.CreatedAt,
		}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			return nil, apperr.Persistence("create medical record", err)
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.AppointmentTransition(string(from), string(appointment.StatusCompleted))
	}
	s.logger.Info().
		Str("record_id", rec.ID.String()).
		Str("appointment_id", rec.AppointmentID.String()).
		Msg("medical record created")
	return rec, nil
}

// seal returns a copy of r with the PHI fields encrypted.
func (s *Service) seal(r *Record) (*Record, error) {
	out := *r
	for _, f := range []*string{&out.Diagnosis, &out.Prescription, &out.Notes} {
		v, err := s.enc.Encrypt(*f)
		if err != nil {
			return nil, &apperr.Error{Kind: apperr.KindInternal, Code: apperr.CodeInternal, Message: "encrypt record", Err: err}
		}
		*f = v
	}
	return &out, nil
}

// open decrypts the PHI fields of r in place. Values that do not decrypt are
// returned as stored, which covers rows written before encryption was enabled.
func (s *Service) open(r *Record) {
	checker, _ := s.enc.(staleKeyChecker)
	for _, f := range []*string{&r.Diagnosis, &r.Prescription, &r.Notes} {
		if *f == "" {
			continue
		}
		if checker != nil && checker.NeedsReEncryption(*f) {
			s.logger.Debug().Str("record_id", r.ID.String()).Msg("record field sealed with a previous key")
		}
		v, err := s.enc.Decrypt(*f)
		if err != nil {
			s.logger.Warn().Err(err).Str("record_id", r.ID.String()).Msg("record field not decryptable, returning stored value")
			continue
		}
		*f = v
	}
}

// ListMine returns the caller's records as a patient, newest first.
func (s *Service) ListMine(ctx context.Context, patientID uuid.UUID) ([]*RecordView, error) {
	items, err := s.records.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, apperr.FromDB(err, "medical records")
	}
	if items == nil {
		items = []*RecordView{}
	}
	for _, v := range items {
		s.open(&v.Record)
	}
	return items, nil
}

// Get returns one record to its patient, its author or an admin.
func (s *Service) Get(ctx context.Context, caller auth.Caller, id uuid.UUID) (*Record, error) {
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		if err = apperr.FromDB(err, "medical record"); apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound("Medical record not found")
		}
		return nil, err
	}
	if !caller.IsAdmin() && caller.ID != rec.PatientID && caller.ID != rec.DoctorID {
		return nil, apperr.Unauthorized("Not authorized")
	}
	s.open(rec)
	return rec, nil
}
