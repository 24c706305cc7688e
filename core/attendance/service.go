package attendance

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/kahero/campushub/core"
	"github.com/kahero/campushub/core/club"
	"github.com/kahero/campushub/core/event"
	"github.com/kahero/campushub/core/faculty"
	"github.com/kahero/campushub/core/scoring"
	"github.com/kahero/campushub/core/student"
)

var (
	// errors
	ErrNotFound        = errors.New("attendance record not found")
	ErrNotRegistered   = errors.New("student is not registered for this event")
	ErrEventNotOngoing = errors.New("attendance can only be marked while the event is ongoing")
	ErrNoReport        = errors.New("no report generated for this event")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateRecord(ctx context.Context, rec Record, exec ...core.DBExecutor) (Record, error)
		GetRecord(ctx context.Context, eventID, studentID string, exec ...core.DBExecutor) (Record, error)
		UpdateRecord(ctx context.Context, rec Record, exec ...core.DBExecutor) (Record, error)
		QueryRecords(ctx context.Context, eventID string, exec ...core.DBExecutor) ([]Record, error)
		QueryRecordsByStudent(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]Record, error)
		CountByStatus(ctx context.Context, eventID, status string, exec ...core.DBExecutor) (int, error)

		CreateReport(ctx context.Context, rpt Report, exec ...core.DBExecutor) (Report, error)
		GetLatestReport(ctx context.Context, eventID string, exec ...core.DBExecutor) (Report, error)
		SetReportSentTo(ctx context.Context, reportID, sentTo string, exec ...core.DBExecutor) error
		// ReportRows joins attendance records with student details for the
		// report sheet, ordered by USN.
		ReportRows(ctx context.Context, eventID string, exec ...core.DBExecutor) ([]ReportRow, error)
	}

	// Exporter renders a report workbook for mailing.
	Exporter interface {
		EventReportWorkbook(evt event.Event, rpt Report, rows []ReportRow) (*bytes.Buffer, error)
	}

	// Service records attendance and derives its consequences. Marking is
	// the single entry point that moves social scores and activity points;
	// both changes commit atomically with the attendance row.
	Service interface {
		Mark(ctx context.Context, eventID, memberID string, m Mark) (Record, error)
		Records(ctx context.Context, eventID string) ([]Record, error)
		RecordsOf(ctx context.Context, studentID string) ([]Record, error)
		GetSummary(ctx context.Context, eventID string) (Summary, error)
		// CompleteEvent ends an ongoing event, snapshots its attendance
		// into a report and mails the report to the club's faculty in
		// charge.
		CompleteEvent(ctx context.Context, eventID, memberID string) (event.Event, Report, error)
		LatestReport(ctx context.Context, eventID string) (Report, error)
	}

	service struct {
		db         core.DB
		repo       Repository
		eventSvc   event.Service
		studentSvc student.Service
		clubSvc    club.Service
		facultySvc faculty.Service
		mailSvc    core.EmailService
		exporter   Exporter
		logger     core.Logger
		conf       *core.Config
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(
	db core.DB,
	repo Repository,
	eventSvc event.Service,
	studentSvc student.Service,
	clubSvc club.Service,
	facultySvc faculty.Service,
	mailSvc core.EmailService,
	exporter Exporter,
	logger core.Logger,
	conf *core.Config,
) Service {
	return &service{
		db:         db,
		repo:       repo,
		eventSvc:   eventSvc,
		studentSvc: studentSvc,
		clubSvc:    clubSvc,
		facultySvc: facultySvc,
		mailSvc:    mailSvc,
		exporter:   exporter,
		logger:     logger,
		conf:       conf,
	}
}

// Mark records (or corrects) a student's attendance at an ongoing event.
// Re-marking with the same status rewrites the record in place without
// touching the score; re-marking with the other status first reverses the
// previous score and activity point effects, then applies the new ones.
// Everything commits in one transaction.
func (svc *service) Mark(ctx context.Context, eventID, memberID string, m Mark) (rec Record, err error) {
	evt, err := svc.eventSvc.GetByID(ctx, eventID)
	if err != nil {
		return Record{}, err
	}
	if evt.Status != event.StatusOngoing {
		return Record{}, ErrEventNotOngoing
	}

	reg, err := svc.eventSvc.GetRegistration(ctx, eventID, m.StudentID)
	if err != nil {
		if errors.Cause(err) == event.ErrRegistrationNotFound {
			return Record{}, ErrNotRegistered
		}
		return Record{}, err
	}
	if reg.Status != event.RegistrationRegistered {
		return Record{}, ErrNotRegistered
	}

	err = core.Atomic(ctx, svc.db, func(tx core.DBTransactor) error {
		now := NowFunc().UTC()

		prev, err := svc.repo.GetRecord(ctx, eventID, m.StudentID, tx)
		switch errors.Cause(err) {
		case nil:
			sameStatus := prev.Status == m.Status
			if !sameStatus {
				if err = svc.reverseEffects(ctx, tx, evt, prev); err != nil {
					return err
				}
			}
			prev.Status = m.Status
			prev.MarkedBy = &memberID
			prev.MarkedAt = now
			prev.Remarks = m.Remarks
			if rec, err = svc.repo.UpdateRecord(ctx, prev, tx); err != nil {
				return errors.Wrap(err, "updating attendance record")
			}
			if sameStatus {
				return nil
			}
		case ErrNotFound:
			rec = Record{
				EventID:   eventID,
				StudentID: m.StudentID,
				MarkedBy:  &memberID,
				Status:    m.Status,
				Remarks:   m.Remarks,
				MarkedAt:  now,
			}
			if rec, err = svc.repo.CreateRecord(ctx, rec, tx); err != nil {
				return errors.Wrap(err, "creating attendance record")
			}
		default:
			return errors.Wrap(err, "finding attendance record")
		}

		return svc.applyEffects(ctx, tx, evt, rec)
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// applyEffects moves the social score and activity points for a fresh mark.
func (svc *service) applyEffects(ctx context.Context, tx core.DBExecutor, evt event.Event, rec Record) error {
	if outcome, affected := scoring.Decide(rec.Present(), evt.PointBearing()); affected {
		var remark string
		if rec.Present() {
			remark = fmt.Sprintf("Marked present at: %s (Non-Activity Event)", evt.Name)
		} else {
			remark = fmt.Sprintf("Marked absent from: %s", evt.Name)
		}
		if _, err := svc.studentSvc.ApplyScoreDeltaTx(ctx, tx, rec.StudentID, outcome.Delta, outcome.Reason, &evt.ID, remark); err != nil {
			return errors.Wrap(err, "applying score delta")
		}
	}
	if rec.Present() && evt.PointBearing() {
		if err := svc.studentSvc.CreditActivityPointsTx(ctx, tx, rec.StudentID, evt.ActivityPoints); err != nil {
			return errors.Wrap(err, "crediting activity points")
		}
	}
	return nil
}

// reverseEffects undoes what the previous mark did to the student. The
// ledger is only touched when the previous mark actually moved the score;
// a present mark at a point-bearing event has no score effect, so only its
// activity points are debited.
func (svc *service) reverseEffects(ctx context.Context, tx core.DBExecutor, evt event.Event, prev Record) error {
	if _, affected := scoring.Decide(prev.Present(), evt.PointBearing()); affected {
		remark := fmt.Sprintf("Reverted: attendance re-marked for %s", evt.Name)
		if _, _, err := svc.studentSvc.ReverseEventScoreTx(ctx, tx, prev.StudentID, evt.ID, remark); err != nil {
			return errors.Wrap(err, "reversing score effect")
		}
	}
	if prev.Present() && evt.PointBearing() {
		if err := svc.studentSvc.CreditActivityPointsTx(ctx, tx, prev.StudentID, -evt.ActivityPoints); err != nil {
			return errors.Wrap(err, "debiting activity points")
		}
	}
	return nil
}

func (svc *service) Records(ctx context.Context, eventID string) ([]Record, error) {
	return svc.repo.QueryRecords(ctx, eventID)
}

func (svc *service) RecordsOf(ctx context.Context, studentID string) ([]Record, error) {
	return svc.repo.QueryRecordsByStudent(ctx, studentID)
}

func (svc *service) GetSummary(ctx context.Context, eventID string) (Summary, error) {
	return svc.summarize(ctx, eventID)
}

func (svc *service) summarize(ctx context.Context, eventID string, exec ...core.DBExecutor) (Summary, error) {
	regs, err := svc.eventSvc.Registrations(ctx, eventID)
	if err != nil {
		return Summary{}, err
	}
	var registered int
	for _, reg := range regs {
		if reg.Status == event.RegistrationRegistered {
			registered++
		}
	}

	present, err := svc.repo.CountByStatus(ctx, eventID, StatusPresent, exec...)
	if err != nil {
		return Summary{}, errors.Wrap(err, "counting present")
	}
	absent, err := svc.repo.CountByStatus(ctx, eventID, StatusAbsent, exec...)
	if err != nil {
		return Summary{}, errors.Wrap(err, "counting absent")
	}

	return Summary{
		TotalRegistered: registered,
		TotalPresent:    present,
		TotalAbsent:     absent,
		NotMarked:       registered - (present + absent),
	}, nil
}

func (svc *service) CompleteEvent(ctx context.Context, eventID, memberID string) (event.Event, Report, error) {
	evt, rpt, err := svc.completeEvent(ctx, eventID, memberID)
	if err != nil {
		return event.Event{}, Report{}, err
	}
	go svc.sendReportMail(evt, rpt)
	return evt, rpt, nil
}

// completeEvent ends the event and snapshots its attendance into a report
// in one transaction, so a completed event always has a report.
func (svc *service) completeEvent(ctx context.Context, eventID, memberID string) (evt event.Event, rpt Report, err error) {
	err = core.Atomic(ctx, svc.db, func(tx core.DBTransactor) error {
		var err error
		if evt, err = svc.eventSvc.EndTx(ctx, tx, eventID, memberID); err != nil {
			return err
		}
		sum, err := svc.summarize(ctx, eventID, tx)
		if err != nil {
			return errors.Wrap(err, "summarizing attendance")
		}
		if rpt, err = svc.repo.CreateReport(ctx, newReport(eventID, sum, NowFunc().UTC()), tx); err != nil {
			return errors.Wrap(err, "creating report")
		}
		return nil
	})
	if err != nil {
		return event.Event{}, Report{}, err
	}
	return evt, rpt, nil
}

func (svc *service) LatestReport(ctx context.Context, eventID string) (Report, error) {
	return svc.repo.GetLatestReport(ctx, eventID)
}

// sendReportMail delivers the report workbook to the club's faculty in
// charge (and the club inbox when set). Mailing is best-effort; the report
// itself is already persisted.
func (svc *service) sendReportMail(evt event.Event, rpt Report) {
	ctx := context.Background()

	cl, err := svc.clubSvc.GetByID(ctx, evt.ClubID)
	if err != nil {
		svc.logger.Error("report mail: loading club", "error", err)
		return
	}

	var to []mail.Address
	if cl.FacultyID != nil {
		if fac, err := svc.facultySvc.GetByID(ctx, *cl.FacultyID); err == nil {
			to = append(to, mail.Address{Name: fac.FullName(), Address: fac.Email})
		} else {
			svc.logger.Error("report mail: loading faculty in charge", "error", err)
		}
	}
	if cl.Email != "" {
		to = append(to, mail.Address{Name: cl.Name, Address: cl.Email})
	}
	if len(to) == 0 {
		svc.logger.Warn("report mail: no recipients", "event", evt.ID)
		return
	}

	rows, err := svc.repo.ReportRows(ctx, evt.ID)
	if err != nil {
		svc.logger.Error("report mail: loading report rows", "error", err)
		return
	}

	msg := &core.EmailMessage{
		To:           to,
		Subject:      fmt.Sprintf("%s - Event Report: %s", svc.conf.AppName, evt.Name),
		TemplateName: "event-report",
		TemplateData: struct {
			EventName            string
			ClubName             string
			TotalRegistered      int
			TotalPresent         int
			TotalAbsent          int
			AttendancePercentage string
		}{
			EventName:            evt.Name,
			ClubName:             cl.Name,
			TotalRegistered:      rpt.TotalRegistered,
			TotalPresent:         rpt.TotalPresent,
			TotalAbsent:          rpt.TotalAbsent,
			AttendancePercentage: rpt.AttendancePercentage.String(),
		},
	}

	if svc.exporter != nil {
		if buf, err := svc.exporter.EventReportWorkbook(evt, rpt, rows); err == nil {
			fname := fmt.Sprintf("event-report-%s.xlsx", evt.StartsAt.Format("2006-01-02"))
			if err = msg.Attach(buf, fname); err != nil {
				svc.logger.Error("report mail: attaching workbook", "error", err)
			}
		} else {
			svc.logger.Error("report mail: rendering workbook", "error", err)
		}
	}

	svc.mailSvc.SendMessages(msg)

	recipients := make([]string, 0, len(to))
	for _, addr := range to {
		recipients = append(recipients, addr.Address)
	}
	if err = svc.repo.SetReportSentTo(ctx, rpt.ID, strings.Join(recipients, ", ")); err != nil {
		svc.logger.Error("report mail: recording recipients", "error", err)
	}
}
