package attendance_test

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/kahero/campushub/core"
	"github.com/kahero/campushub/core/attendance"
	"github.com/kahero/campushub/core/club"
	"github.com/kahero/campushub/core/event"
	"github.com/kahero/campushub/core/faculty"
	"github.com/kahero/campushub/core/scoring"
	"github.com/kahero/campushub/core/student"
	dummydb "github.com/kahero/campushub/storage/database/dummy"
)

type mailRecorder struct {
	sync.Mutex
	messages []*core.EmailMessage
}

func (m *mailRecorder) SendMessages(messages ...*core.EmailMessage) {
	m.Lock()
	defer m.Unlock()
	m.messages = append(m.messages, messages...)
}

type stubExporter struct{}

func (stubExporter) EventReportWorkbook(event.Event, attendance.Report, []attendance.ReportRow) (*bytes.Buffer, error) {
	return bytes.NewBufferString("workbook"), nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type testEnv struct {
	conf          *core.Config
	mail          *mailRecorder
	studentSvc    student.Service
	facultySvc    faculty.Service
	clubSvc       club.Service
	eventSvc      event.Service
	attendanceSvc attendance.Service
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatal(err)
	}
	conn := dummydb.NewConn()
	conf := &core.Config{AppName: "CampusHub", TestMode: true}
	mailSvc := &mailRecorder{}

	studentSvc := student.NewService(conn, dummydb.NewStudentRepository(db), mailSvc, conf)
	facultySvc := faculty.NewService(dummydb.NewFacultyRepository(db))
	clubSvc := club.NewService(dummydb.NewClubRepository(db))
	eventSvc := event.NewService(dummydb.NewEventRepository(db), studentSvc)
	attendanceSvc := attendance.NewServiceMock(
		conn, dummydb.NewAttendanceRepository(db),
		eventSvc, studentSvc, clubSvc, facultySvc,
		mailSvc, stubExporter{}, nopLogger{}, conf,
	)

	return &testEnv{
		conf:          conf,
		mail:          mailSvc,
		studentSvc:    studentSvc,
		facultySvc:    facultySvc,
		clubSvc:       clubSvc,
		eventSvc:      eventSvc,
		attendanceSvc: attendanceSvc,
	}
}

var studentSeq int

func (env *testEnv) newStudent(t *testing.T, ctx context.Context) student.Student {
	t.Helper()
	studentSeq++
	std, err := env.studentSvc.Create(ctx, student.NewStudent{
		USN:       fmt.Sprintf("1ab21cs%03d", studentSeq),
		FirstName: "Asha",
		LastName:  "Rao",
		Email:     fmt.Sprintf("asha.rao%d@test.com", studentSeq),
		Password:  "S3cr3tPassw0rd!",
	})
	if err != nil {
		t.Fatal(err)
	}
	return std
}

func (env *testEnv) newClub(t *testing.T, ctx context.Context) club.Club {
	t.Helper()
	cl, err := env.clubSvc.Create(ctx, club.NewClub{Name: fmt.Sprintf("Robotics Club %d", studentSeq)})
	if err != nil {
		t.Fatal(err)
	}
	return cl
}

// newOngoingEvent schedules an event, registers the given students and
// starts it so attendance can be marked.
func (env *testEnv) newOngoingEvent(t *testing.T, ctx context.Context, clubID, typ string, points int, students ...student.Student) event.Event {
	t.Helper()
	evt, err := env.eventSvc.Create(ctx, clubID, "mbr-test", event.NewEvent{
		Name:           "Tech Talk",
		Type:           typ,
		ActivityPoints: points,
		StartsAt:       time.Now().Add(time.Hour),
		Venue:          "Auditorium",
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, std := range students {
		if _, err = env.eventSvc.Register(ctx, evt.ID, std.ID); err != nil {
			t.Fatalf("registering %s: %v", std.USN, err)
		}
	}
	evt, err = env.eventSvc.Start(ctx, evt.ID, "mbr-test")
	if err != nil {
		t.Fatal(err)
	}
	return evt
}

func (env *testEnv) score(t *testing.T, ctx context.Context, studentID string) core.Score {
	t.Helper()
	std, err := env.studentSvc.GetByID(ctx, studentID)
	if err != nil {
		t.Fatal(err)
	}
	return std.SocialScore
}

func TestServiceMark(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	std := env.newStudent(t, ctx)
	cl := env.newClub(t, ctx)
	evt := env.newOngoingEvent(t, ctx, cl.ID, event.TypeNormal, 0, std)

	// start below the ceiling so the presence reward is visible
	if _, err := env.studentSvc.AdjustScore(ctx, std.ID, student.ManualAdjustment{NewScore: 9000, Remark: "seed"}); err != nil {
		t.Fatal(err)
	}

	rec, err := env.attendanceSvc.Mark(ctx, evt.ID, "mbr-test", attendance.Mark{StudentID: std.ID, Status: attendance.StatusAbsent})
	if err != nil {
		t.Fatalf("Mark() error = %v", err)
	}
	if rec.Status != attendance.StatusAbsent {
		t.Errorf("Status = %q", rec.Status)
	}
	if got := env.score(t, ctx, std.ID); got != 8500 {
		t.Errorf("score after absence = %s, want 85.00", got)
	}

	// re-marking with the same status rewrites the record in place and
	// leaves the score alone
	rec, err = env.attendanceSvc.Mark(ctx, evt.ID, "mbr-two", attendance.Mark{StudentID: std.ID, Status: attendance.StatusAbsent, Remarks: "confirmed absent"})
	if err != nil {
		t.Fatalf("same-status re-mark error = %v", err)
	}
	if rec.Remarks != "confirmed absent" || rec.MarkedBy == nil || *rec.MarkedBy != "mbr-two" {
		t.Errorf("record not rewritten: %+v", rec)
	}
	if got := env.score(t, ctx, std.ID); got != 8500 {
		t.Errorf("score after same-status re-mark = %s, want 85.00", got)
	}

	// re-mark present: the absence is reverted, then the reward applied
	rec, err = env.attendanceSvc.Mark(ctx, evt.ID, "mbr-test", attendance.Mark{StudentID: std.ID, Status: attendance.StatusPresent})
	if err != nil {
		t.Fatalf("re-mark error = %v", err)
	}
	if !rec.Present() {
		t.Errorf("Status = %q", rec.Status)
	}
	if got := env.score(t, ctx, std.ID); got != 9250 {
		t.Errorf("score after re-mark = %s, want 92.50", got)
	}

	// the record was rewritten in place, not duplicated
	recs, err := env.attendanceSvc.Records(ctx, evt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}

	// the ledger kept the full history: seed, absence, reversal, reward
	logs, err := env.studentSvc.ScoreHistory(ctx, std.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 4 {
		t.Fatalf("ledger entries = %d, want 4", len(logs))
	}
	reward, reversal, absence := logs[0], logs[1], logs[2]
	if reward.Reason != scoring.ReasonPresentAtNonActivityEvent || reward.Delta != 250 {
		t.Errorf("reward entry = %+v", reward)
	}
	if !strings.HasPrefix(reward.Remark, "Marked present at: "+evt.Name) {
		t.Errorf("reward remark = %q", reward.Remark)
	}
	if reversal.Reason != scoring.ReasonAbsentFromEvent || reversal.Delta != 500 {
		t.Errorf("reversal entry = %+v", reversal)
	}
	if reversal.Remark != "Reverted: attendance re-marked for "+evt.Name {
		t.Errorf("reversal remark = %q", reversal.Remark)
	}
	if absence.Reason != scoring.ReasonAbsentFromEvent || absence.Delta != -500 {
		t.Errorf("absence entry = %+v", absence)
	}
	if absence.Remark != "Marked absent from: "+evt.Name {
		t.Errorf("absence remark = %q", absence.Remark)
	}
}

func TestServiceMarkPointEvent(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	std := env.newStudent(t, ctx)
	cl := env.newClub(t, ctx)
	evt := env.newOngoingEvent(t, ctx, cl.ID, event.TypeActivityPoints, 10, std)

	// presence at a point-bearing event earns points, never score
	if _, err := env.attendanceSvc.Mark(ctx, evt.ID, "mbr-test", attendance.Mark{StudentID: std.ID, Status: attendance.StatusPresent}); err != nil {
		t.Fatalf("Mark() error = %v", err)
	}
	got, err := env.studentSvc.GetByID(ctx, std.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.SocialScore != core.MaxScore {
		t.Errorf("score = %s, want 100.00", got.SocialScore)
	}
	if got.TotalActivityPoints != 10 {
		t.Errorf("activity points = %d, want 10", got.TotalActivityPoints)
	}

	// re-mark absent: points are debited, then the penalty applies
	if _, err = env.attendanceSvc.Mark(ctx, evt.ID, "mbr-test", attendance.Mark{StudentID: std.ID, Status: attendance.StatusAbsent}); err != nil {
		t.Fatalf("re-mark error = %v", err)
	}
	got, err = env.studentSvc.GetByID(ctx, std.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.SocialScore != 9500 {
		t.Errorf("score = %s, want 95.00", got.SocialScore)
	}
	if got.TotalActivityPoints != 0 {
		t.Errorf("activity points = %d, want 0", got.TotalActivityPoints)
	}
}

func TestServiceMarkPointEventToggle(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	std := env.newStudent(t, ctx)
	cl := env.newClub(t, ctx)
	evt := env.newOngoingEvent(t, ctx, cl.ID, event.TypeActivityPoints, 10, std)

	mark := func(status string) {
		t.Helper()
		if _, err := env.attendanceSvc.Mark(ctx, evt.ID, "mbr-test", attendance.Mark{StudentID: std.ID, Status: status}); err != nil {
			t.Fatalf("Mark(%s) error = %v", status, err)
		}
	}

	// toggling absent -> present -> absent charges the penalty exactly once:
	// a present mark at a point-bearing event never moved the score, so the
	// second absence has nothing to reverse
	mark(attendance.StatusAbsent)
	mark(attendance.StatusPresent)
	mark(attendance.StatusAbsent)

	got, err := env.studentSvc.GetByID(ctx, std.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.SocialScore != 9500 {
		t.Errorf("score = %s, want 95.00", got.SocialScore)
	}
	if got.TotalActivityPoints != 0 {
		t.Errorf("activity points = %d, want 0", got.TotalActivityPoints)
	}

	logs, err := env.studentSvc.ScoreHistory(ctx, std.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 3 {
		t.Fatalf("ledger entries = %d, want 3", len(logs))
	}
	second, reversal, first := logs[0], logs[1], logs[2]
	if first.Delta != -500 || first.Reason != scoring.ReasonAbsentFromEvent {
		t.Errorf("first absence entry = %+v", first)
	}
	if reversal.Delta != 500 || !strings.HasPrefix(reversal.Remark, "Reverted: ") {
		t.Errorf("reversal entry = %+v", reversal)
	}
	if second.Delta != -500 || second.Reason != scoring.ReasonAbsentFromEvent {
		t.Errorf("second absence entry = %+v", second)
	}

	// and flipping back to present restores the original state
	mark(attendance.StatusPresent)
	got, err = env.studentSvc.GetByID(ctx, std.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.SocialScore != core.MaxScore {
		t.Errorf("score = %s, want 100.00", got.SocialScore)
	}
	if got.TotalActivityPoints != 10 {
		t.Errorf("activity points = %d, want 10", got.TotalActivityPoints)
	}
}

func TestServiceMarkErrors(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	std := env.newStudent(t, ctx)
	cl := env.newClub(t, ctx)

	t.Run("event not ongoing", func(t *testing.T) {
		evt, err := env.eventSvc.Create(ctx, cl.ID, "mbr-test", event.NewEvent{
			Name:     "Scheduled Only",
			Type:     event.TypeNormal,
			StartsAt: time.Now().Add(time.Hour),
		})
		if err != nil {
			t.Fatal(err)
		}
		if _, err = env.attendanceSvc.Mark(ctx, evt.ID, "mbr-test", attendance.Mark{StudentID: std.ID, Status: attendance.StatusPresent}); errors.Cause(err) != attendance.ErrEventNotOngoing {
			t.Errorf("error = %v, want %v", err, attendance.ErrEventNotOngoing)
		}
	})

	t.Run("student not registered", func(t *testing.T) {
		evt := env.newOngoingEvent(t, ctx, cl.ID, event.TypeNormal, 0)
		if _, err := env.attendanceSvc.Mark(ctx, evt.ID, "mbr-test", attendance.Mark{StudentID: std.ID, Status: attendance.StatusPresent}); errors.Cause(err) != attendance.ErrNotRegistered {
			t.Errorf("error = %v, want %v", err, attendance.ErrNotRegistered)
		}
	})
}

func TestServiceCompleteEvent(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	fac, err := env.facultySvc.Create(ctx, faculty.NewFaculty{
		Code:      "fac001",
		FirstName: "Meera",
		LastName:  "Iyer",
		Email:     "meera.iyer@test.com",
		Password:  "S3cr3tPassw0rd!",
	})
	if err != nil {
		t.Fatal(err)
	}
	cl, err := env.clubSvc.Create(ctx, club.NewClub{
		Name:      "Coding Club",
		FacultyID: &fac.ID,
		Email:     "coding.club@test.com",
	})
	if err != nil {
		t.Fatal(err)
	}

	present := env.newStudent(t, ctx)
	absent := env.newStudent(t, ctx)
	evt := env.newOngoingEvent(t, ctx, cl.ID, event.TypeNormal, 0, present, absent)

	if _, err = env.attendanceSvc.Mark(ctx, evt.ID, "mbr-test", attendance.Mark{StudentID: present.ID, Status: attendance.StatusPresent}); err != nil {
		t.Fatal(err)
	}
	if _, err = env.attendanceSvc.Mark(ctx, evt.ID, "mbr-test", attendance.Mark{StudentID: absent.ID, Status: attendance.StatusAbsent}); err != nil {
		t.Fatal(err)
	}

	evt, rpt, err := env.attendanceSvc.CompleteEvent(ctx, evt.ID, "mbr-test")
	if err != nil {
		t.Fatalf("CompleteEvent() error = %v", err)
	}
	if evt.Status != event.StatusCompleted {
		t.Errorf("event status = %q", evt.Status)
	}
	if rpt.TotalRegistered != 2 || rpt.TotalPresent != 1 || rpt.TotalAbsent != 1 {
		t.Errorf("report totals = %d/%d/%d, want 2/1/1", rpt.TotalRegistered, rpt.TotalPresent, rpt.TotalAbsent)
	}
	if rpt.AttendancePercentage != 5000 {
		t.Errorf("attendance percentage = %s, want 50.00", rpt.AttendancePercentage)
	}

	// the report was mailed to the faculty in charge and the club inbox
	if len(env.mail.messages) != 1 {
		t.Fatalf("mails sent = %d, want 1", len(env.mail.messages))
	}
	msg := env.mail.messages[0]
	if len(msg.To) != 2 {
		t.Fatalf("recipients = %d, want 2", len(msg.To))
	}
	if msg.To[0].Address != fac.Email || msg.To[1].Address != cl.Email {
		t.Errorf("recipients = %v", msg.To)
	}
	if !msg.HasAttachments() {
		t.Error("expected the report workbook attached")
	}

	latest, err := env.attendanceSvc.LatestReport(ctx, evt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != rpt.ID {
		t.Errorf("LatestReport() = %q, want %q", latest.ID, rpt.ID)
	}
	if latest.SentTo != fac.Email+", "+cl.Email {
		t.Errorf("SentTo = %q", latest.SentTo)
	}

	// a completed event no longer accepts marks
	if _, err = env.attendanceSvc.Mark(ctx, evt.ID, "mbr-test", attendance.Mark{StudentID: absent.ID, Status: attendance.StatusPresent}); errors.Cause(err) != attendance.ErrEventNotOngoing {
		t.Errorf("error = %v, want %v", err, attendance.ErrEventNotOngoing)
	}
}

// countingDB wraps the dummy conn and counts handed-out transactions.
type countingDB struct {
	core.DB
	begun int
}

func (db *countingDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (core.DBTransactor, error) {
	db.begun++
	return db.DB.BeginTx(ctx, opts)
}

// reportSpyRepo records the executors the report insert runs with.
type reportSpyRepo struct {
	attendance.Repository
	reportExecs []core.DBExecutor
}

func (r *reportSpyRepo) CreateReport(ctx context.Context, rpt attendance.Report, exec ...core.DBExecutor) (attendance.Report, error) {
	r.reportExecs = exec
	return r.Repository.CreateReport(ctx, rpt, exec...)
}

func TestServiceCompleteEventReportTransaction(t *testing.T) {
	ctx := context.Background()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatal(err)
	}
	conn := &countingDB{DB: dummydb.NewConn()}
	repo := &reportSpyRepo{Repository: dummydb.NewAttendanceRepository(db)}
	conf := &core.Config{AppName: "CampusHub", TestMode: true}
	mailSvc := &mailRecorder{}

	studentSvc := student.NewService(conn, dummydb.NewStudentRepository(db), mailSvc, conf)
	facultySvc := faculty.NewService(dummydb.NewFacultyRepository(db))
	clubSvc := club.NewService(dummydb.NewClubRepository(db))
	eventSvc := event.NewService(dummydb.NewEventRepository(db), studentSvc)
	attendanceSvc := attendance.NewServiceMock(
		conn, repo, eventSvc, studentSvc, clubSvc, facultySvc,
		mailSvc, stubExporter{}, nopLogger{}, conf,
	)
	env := &testEnv{
		conf:          conf,
		mail:          mailSvc,
		studentSvc:    studentSvc,
		facultySvc:    facultySvc,
		clubSvc:       clubSvc,
		eventSvc:      eventSvc,
		attendanceSvc: attendanceSvc,
	}

	cl := env.newClub(t, ctx)
	evt := env.newOngoingEvent(t, ctx, cl.ID, event.TypeNormal, 0)

	evt, rpt, err := attendanceSvc.CompleteEvent(ctx, evt.ID, "mbr-test")
	if err != nil {
		t.Fatalf("CompleteEvent() error = %v", err)
	}
	if evt.Status != event.StatusCompleted {
		t.Errorf("event status = %q", evt.Status)
	}

	// the status transition and the report insert share one transaction, so
	// a completed event is never left without a report
	if conn.begun != 1 {
		t.Errorf("transactions begun = %d, want 1", conn.begun)
	}
	if len(repo.reportExecs) != 1 {
		t.Errorf("report insert ran with %d executors, want the completion transaction", len(repo.reportExecs))
	}

	latest, err := attendanceSvc.LatestReport(ctx, evt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != rpt.ID {
		t.Errorf("LatestReport() = %q, want %q", latest.ID, rpt.ID)
	}
}

func TestServiceGetSummary(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	cl := env.newClub(t, ctx)
	a, b, c := env.newStudent(t, ctx), env.newStudent(t, ctx), env.newStudent(t, ctx)
	evt := env.newOngoingEvent(t, ctx, cl.ID, event.TypeNormal, 0, a, b, c)

	if _, err := env.attendanceSvc.Mark(ctx, evt.ID, "mbr-test", attendance.Mark{StudentID: a.ID, Status: attendance.StatusPresent}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.attendanceSvc.Mark(ctx, evt.ID, "mbr-test", attendance.Mark{StudentID: b.ID, Status: attendance.StatusAbsent}); err != nil {
		t.Fatal(err)
	}

	sum, err := env.attendanceSvc.GetSummary(ctx, evt.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := attendance.Summary{TotalRegistered: 3, TotalPresent: 1, TotalAbsent: 1, NotMarked: 1}
	if sum != want {
		t.Errorf("GetSummary() = %+v, want %+v", sum, want)
	}
}
