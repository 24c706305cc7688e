package attendance

import (
	"context"

	"github.com/kahero/campushub/core"
	"github.com/kahero/campushub/core/club"
	"github.com/kahero/campushub/core/event"
	"github.com/kahero/campushub/core/faculty"
	"github.com/kahero/campushub/core/student"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service whose side effects run synchronously.
func NewServiceMock(
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
	return &serviceMock{
		service: service{
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
		},
	}
}

func (svc *serviceMock) CompleteEvent(ctx context.Context, eventID, memberID string) (event.Event, Report, error) {
	evt, rpt, err := svc.completeEvent(ctx, eventID, memberID)
	if err != nil {
		return event.Event{}, Report{}, err
	}
	// run synchronously
	svc.sendReportMail(evt, rpt)
	return evt, rpt, nil
}
