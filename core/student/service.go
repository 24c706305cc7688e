package student

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/kahero/campushub/core"
	"github.com/kahero/campushub/core/scoring"
)

var (
	// errors
	ErrNotFound    = errors.New("student not found")
	ErrEmailExists = errors.New("a student with this email already exists")
	ErrUSNExists   = errors.New("a student with this USN already exists")
	ErrNoScoreLog  = errors.New("no score log entry for this event")
)

type (
	Repository interface {
		CheckUniqueness(ctx context.Context, usn, email string, excluded []Student, exec ...core.DBExecutor) error
		CreateStudent(ctx context.Context, std Student, exec ...core.DBExecutor) (Student, error)
		GetStudent(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Student, error)
		// GetStudentForUpdate locks the student row until the transaction
		// owning exec ends. It must only be called with a transaction executor.
		GetStudentForUpdate(ctx context.Context, id string, exec core.DBExecutor) (Student, error)
		// QueryStudents applies AND on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of
		// Student.USN, FirstName, LastName or Email.
		QueryStudents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Student, error)
		UpdateStudent(ctx context.Context, std Student, isActive *bool, exec ...core.DBExecutor) (Student, error)
		UpdateStudentScore(ctx context.Context, id string, score core.Score, exec ...core.DBExecutor) error
		UpdateStudentActivityPoints(ctx context.Context, id string, points int, exec ...core.DBExecutor) error
		AppendScoreLog(ctx context.Context, entry ScoreLogEntry, exec ...core.DBExecutor) (ScoreLogEntry, error)
		// GetScoreLogs returns a student's ledger entries, newest first.
		GetScoreLogs(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]ScoreLogEntry, error)
		// GetLatestScoreLogForEvent returns the most recently appended
		// ledger entry tying the student to the event, or ErrNoScoreLog.
		GetLatestScoreLogForEvent(ctx context.Context, studentID, eventID string, exec ...core.DBExecutor) (ScoreLogEntry, error)
		// SumActivityPoints totals the activity points of all point-bearing
		// events the student is marked present at.
		SumActivityPoints(ctx context.Context, studentID string, exec ...core.DBExecutor) (int, error)
		DeleteStudentsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error
	}

	Service interface {
		CheckUniqueness(usn, email string, excluded ...Student) error
		Create(ctx context.Context, ns NewStudent) (Student, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		GetByID(ctx context.Context, id string) (Student, error)
		GetByUSN(ctx context.Context, usn string) (Student, error)
		GetByEmail(ctx context.Context, email string) (Student, error)
		GetByUSNOrEmail(ctx context.Context, usn string) (Student, error)
		Update(ctx context.Context, id string, us UpdateStudent) (Student, error)
		SetLastLogin(ctx context.Context, std Student) error
		Delete(ctx context.Context, ids ...string) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetStudentPassword) error

		// score engine
		ApplyScoreDelta(ctx context.Context, studentID string, delta core.Score, reason scoring.Reason, eventID *string, remark string) (ScoreLogEntry, error)
		ApplyScoreDeltaTx(ctx context.Context, tx core.DBExecutor, studentID string, delta core.Score, reason scoring.Reason, eventID *string, remark string) (ScoreLogEntry, error)
		ReverseEventScoreTx(ctx context.Context, tx core.DBExecutor, studentID, eventID, remark string) (ScoreLogEntry, bool, error)
		AdjustScore(ctx context.Context, studentID string, adj ManualAdjustment) (ScoreLogEntry, error)
		ScoreHistory(ctx context.Context, studentID string) ([]ScoreLogEntry, error)
		CheckEligibility(ctx context.Context, studentID string) (Eligibility, error)
		CreditActivityPointsTx(ctx context.Context, tx core.DBExecutor, studentID string, points int) error
		RecomputeActivityPoints(ctx context.Context, studentID string) (int, error)
	}

	service struct {
		db      core.DB
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(db core.DB, repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return &service{
		db:      db,
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

func (svc *service) CheckUniqueness(usn, email string, excluded ...Student) error {
	if err := svc.repo.CheckUniqueness(context.Background(), usn, email, excluded); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUSNExists:
			field = "usn"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	now := time.Now().UTC()
	std := Student{
		USN:                   ns.USN,
		FirstName:             ns.FirstName,
		LastName:              ns.LastName,
		Email:                 ns.Email,
		Phone:                 ns.Phone,
		Department:            ns.Department,
		Semester:              ns.Semester,
		DateOfBirth:           ns.DateOfBirth,
		Gender:                ns.Gender,
		Address:               ns.Address,
		MaxEventRegistrations: DefaultMaxEventRegistrations,
		SocialScore:           core.MaxScore, // every student starts at 100.00
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	std.SetActive(true)
	if err := std.SetPassword(ns.Password); err != nil {
		return Student{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateStudent(ctx, std)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUSN(ctx context.Context, usn string) (Student, error) {
	return svc.repo.GetStudent(ctx, GetFilter{USN: core.CleanString(usn, true /* lower */)})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (Student, error) {
	return svc.repo.GetStudent(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) GetByUSNOrEmail(ctx context.Context, usn string) (Student, error) {
	return svc.repo.GetStudent(ctx, GetFilter{USNOrEmail: core.CleanString(usn, true /* lower */)})
}

func (svc *service) Update(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	std := Student{
		ID:          id,
		FirstName:   us.FirstName,
		LastName:    us.LastName,
		Email:       us.Email,
		Phone:       us.Phone,
		Department:  us.Department,
		Semester:    us.Semester,
		DateOfBirth: us.DateOfBirth,
		Gender:      us.Gender,
		Address:     us.Address,
		UpdatedAt:   time.Now().UTC(),
	}
	if us.Password != "" {
		if err := std.SetPassword(us.Password); err != nil {
			return Student{}, errors.Wrap(err, "hashing password")
		}
	}
	return svc.repo.UpdateStudent(ctx, std, us.IsActive)
}

func (svc *service) SetLastLogin(ctx context.Context, std Student) error {
	std.LastLogin = time.Now().UTC()
	_, err := svc.repo.UpdateStudent(ctx, std, nil)
	return err
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteStudentsByID(ctx, ids)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	std, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	go svc.sendPasswordResetMail(std)
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetStudentPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	std, err := svc.GetByID(ctx, id)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	if err = verifyToken(std, rp.Token, svc.conf); err != nil {
		return core.NewValidationError(err)
	}
	if err = std.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	std.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateStudent(ctx, std, nil)
	return err
}

// ApplyScoreDelta applies a social score change to a student in its own
// transaction. The student row is locked for the duration so concurrent
// changes to the same student serialize; the ledger entry records the
// effective (post-clamp) delta.
func (svc *service) ApplyScoreDelta(
	ctx context.Context,
	studentID string,
	delta core.Score,
	reason scoring.Reason,
	eventID *string,
	remark string,
) (entry ScoreLogEntry, err error) {
	err = core.Atomic(ctx, svc.db, func(tx core.DBTransactor) error {
		entry, err = svc.ApplyScoreDeltaTx(ctx, tx, studentID, delta, reason, eventID, remark)
		return err
	})
	return entry, err
}

// ApplyScoreDeltaTx is ApplyScoreDelta running inside a caller-owned
// transaction, for flows that change attendance and score atomically.
func (svc *service) ApplyScoreDeltaTx(
	ctx context.Context,
	tx core.DBExecutor,
	studentID string,
	delta core.Score,
	reason scoring.Reason,
	eventID *string,
	remark string,
) (ScoreLogEntry, error) {
	std, err := svc.repo.GetStudentForUpdate(ctx, studentID, tx)
	if err != nil {
		return ScoreLogEntry{}, errors.Wrap(err, "locking student row")
	}

	newScore := (std.SocialScore + delta).Clamp()
	effective := newScore - std.SocialScore

	if err = svc.repo.UpdateStudentScore(ctx, studentID, newScore, tx); err != nil {
		return ScoreLogEntry{}, errors.Wrap(err, "updating social score")
	}
	entry := ScoreLogEntry{
		StudentID: studentID,
		Delta:     effective,
		NewScore:  newScore,
		Reason:    reason,
		EventID:   eventID,
		Remark:    remark,
		CreatedAt: time.Now().UTC(),
	}
	entry, err = svc.repo.AppendScoreLog(ctx, entry, tx)
	if err != nil {
		return ScoreLogEntry{}, errors.Wrap(err, "appending score log")
	}
	return entry, nil
}

// ReverseEventScoreTx undoes the score effect the student last received
// for an event by applying the negated effective delta under the same
// reason. It reports false when the event never affected the score.
func (svc *service) ReverseEventScoreTx(ctx context.Context, tx core.DBExecutor, studentID, eventID, remark string) (ScoreLogEntry, bool, error) {
	last, err := svc.repo.GetLatestScoreLogForEvent(ctx, studentID, eventID, tx)
	if err != nil {
		if errors.Cause(err) == ErrNoScoreLog {
			return ScoreLogEntry{}, false, nil
		}
		return ScoreLogEntry{}, false, errors.Wrap(err, "finding score log to reverse")
	}
	entry, err := svc.ApplyScoreDeltaTx(ctx, tx, studentID, -last.Delta, last.Reason, &eventID, remark)
	if err != nil {
		return ScoreLogEntry{}, false, err
	}
	return entry, true, nil
}

// AdjustScore sets a student's social score to an absolute value and logs
// the resulting delta as a manual adjustment.
func (svc *service) AdjustScore(ctx context.Context, studentID string, adj ManualAdjustment) (entry ScoreLogEntry, err error) {
	err = core.Atomic(ctx, svc.db, func(tx core.DBTransactor) error {
		std, err := svc.repo.GetStudentForUpdate(ctx, studentID, tx)
		if err != nil {
			return errors.Wrap(err, "locking student row")
		}
		delta := adj.NewScore.Clamp() - std.SocialScore
		entry, err = svc.ApplyScoreDeltaTx(ctx, tx, studentID, delta, scoring.ReasonManualAdjustment, nil, adj.Remark)
		return err
	})
	return entry, err
}

func (svc *service) ScoreHistory(ctx context.Context, studentID string) ([]ScoreLogEntry, error) {
	if _, err := svc.GetByID(ctx, studentID); err != nil {
		return nil, err
	}
	return svc.repo.GetScoreLogs(ctx, studentID)
}

func (svc *service) CheckEligibility(ctx context.Context, studentID string) (Eligibility, error) {
	std, err := svc.GetByID(ctx, studentID)
	if err != nil {
		return Eligibility{}, err
	}
	return newEligibility(std), nil
}

// CreditActivityPointsTx adds earned points to the cached total inside a
// caller-owned transaction. A negative amount debits, when a present mark
// at a point-bearing event is reverted.
func (svc *service) CreditActivityPointsTx(ctx context.Context, tx core.DBExecutor, studentID string, points int) error {
	std, err := svc.repo.GetStudentForUpdate(ctx, studentID, tx)
	if err != nil {
		return errors.Wrap(err, "locking student row")
	}
	total := std.TotalActivityPoints + points
	if total < 0 {
		total = 0
	}
	return svc.repo.UpdateStudentActivityPoints(ctx, studentID, total, tx)
}

// RecomputeActivityPoints rebuilds the cached total from attendance truth.
func (svc *service) RecomputeActivityPoints(ctx context.Context, studentID string) (total int, err error) {
	err = core.Atomic(ctx, svc.db, func(tx core.DBTransactor) error {
		if _, err := svc.repo.GetStudentForUpdate(ctx, studentID, tx); err != nil {
			return errors.Wrap(err, "locking student row")
		}
		total, err = svc.repo.SumActivityPoints(ctx, studentID, tx)
		if err != nil {
			return errors.Wrap(err, "summing activity points")
		}
		return svc.repo.UpdateStudentActivityPoints(ctx, studentID, total, tx)
	})
	return total, err
}

func (svc *service) sendPasswordResetMail(std Student) {
	token, err := MakeToken(std, svc.conf)
	if err != nil {
		return
	}
	svc.mailSvc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: std.FullName(), Address: std.Email}},
			Subject:      svc.conf.AppName + " - Password Reset",
			TemplateName: "password-reset",
			TemplateData: struct {
				UID   string
				Token string
			}{
				UID:   EncodeUID(std),
				Token: token,
			},
		},
	)
}
