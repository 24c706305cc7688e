package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/kahero/campushub/core"
	"github.com/kahero/campushub/core/student"
	dummydb "github.com/kahero/campushub/storage/database/dummy"
)

func setup(t *testing.T) (student.Service, student.Repository) {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	repo := dummydb.NewStudentRepository(db)
	svc := student.NewService(dummydb.NewConn(), repo, nil, &core.Config{})
	return svc, repo
}

func newRequest(e *echo.Echo, method, path string, data ...[]byte) (echo.Context, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	return ctx, rec
}

func createStudent(
	t *testing.T,
	repo student.Repository,
	usn, firstName, lastName, email, department string,
	semester int,
	score core.Score,
	isActive bool,
	createdAt ...time.Time,
) student.Student {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	std := student.Student{
		USN:         usn,
		FirstName:   firstName,
		LastName:    lastName,
		Email:       email,
		Department:  department,
		Semester:    semester,
		SocialScore: score,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	}
	std.SetActive(isActive)
	std, err := repo.CreateStudent(context.Background(), std)
	if err != nil {
		t.Fatalf("createStudent() failed: %v", err)
	}
	return std
}

func marshalStudents(t *testing.T, students ...student.Student) []byte {
	data, err := json.Marshal(students)
	if err != nil {
		t.Fatalf("marshalStudents() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
	wantData []byte
	wantErr  error
}

func Test_studentApi_query(t *testing.T) {
	svc, repo := setup(t)
	api := &studentApi{svc: svc}
	e := echo.New()

	path := func(search, department string, semester int, isActive *bool, createdFrom, createdTo time.Time) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if department != "" {
			v.Add("department", department)
		}
		if semester != 0 {
			v.Add("semester", strconv.Itoa(semester))
		}
		if isActive != nil {
			v.Add("is_active", strconv.FormatBool(*isActive))
		}
		if !createdFrom.IsZero() {
			v.Add("created_from", createdFrom.Format(time.RFC3339))
		}
		if !createdTo.IsZero() {
			v.Add("created_to", createdTo.Format(time.RFC3339))
		}
		return "/students?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }

	now := time.Now()
	t1 := now.Add(1 * time.Hour).Truncate(time.Second)
	t2 := now.Add(2 * time.Hour).Truncate(time.Second)
	t3 := now.Add(3 * time.Hour).Truncate(time.Second)
	t4 := now.Add(4 * time.Hour).Truncate(time.Second)

	asha := createStudent(t, repo, "1ab20cs001", "Asha", "Rao", "asha@test.test", "CS", 5, 10000, true, t1)
	kiran := createStudent(t, repo, "1ab20cs002", "Kiran", "Shetty", "kiran@test.test", "CS", 3, 9700, true)
	meena := createStudent(t, repo, "1ab20ec001", "Meena", "Iyer", "meena@test.test", "EC", 5, 9800, true, t2)
	ravi := createStudent(t, repo, "1ab20me001", "Ravi", "Kumar", "ravi@test.test", "ME", 7, 9500, false, t3)
	empty := marshalStudents(t)

	tests := []httpTest{
		{name: "Get all", path: "/students", wantData: marshalStudents(t, asha, kiran, meena, ravi)},
		{name: "search (unknown)", path: path("lol", "", 0, nil, time.Time{}, time.Time{}), wantData: empty},
		{name: "search by USN", path: path("1ab20cs", "", 0, nil, time.Time{}, time.Time{}), wantData: marshalStudents(t, asha, kiran)},
		{name: "search by name", path: path("MEE", "", 0, nil, time.Time{}, time.Time{}), wantData: marshalStudents(t, meena)},
		{name: "department (unknown)", path: path("", "CE", 0, nil, time.Time{}, time.Time{}), wantData: empty},
		{name: "department=CS", path: path("", "CS", 0, nil, time.Time{}, time.Time{}), wantData: marshalStudents(t, asha, kiran)},
		{name: "semester=5", path: path("", "", 5, nil, time.Time{}, time.Time{}), wantData: marshalStudents(t, asha, meena)},
		{name: "is_active=true", path: path("", "", 0, bPtr(true), time.Time{}, time.Time{}), wantData: marshalStudents(t, asha, kiran, meena)},
		{name: "is_active=false", path: path("", "", 0, bPtr(false), time.Time{}, time.Time{}), wantData: marshalStudents(t, ravi)},
		{name: "created_from", path: path("", "", 0, nil, t2, time.Time{}), wantData: marshalStudents(t, meena, ravi)},
		{name: "created_to", path: path("", "", 0, nil, time.Time{}, t2), wantData: marshalStudents(t, asha, kiran, meena)},
		{name: "created_from - created_to (empty)", path: path("", "", 0, nil, t4, t4.Add(time.Hour)), wantData: empty},
		{name: "created_from - created_to (found)", path: path("", "", 0, nil, t1, t2), wantData: marshalStudents(t, asha, meena)},
		{name: "all combo (empty)", path: path("asha", "EC", 0, nil, time.Time{}, time.Time{}), wantData: empty},
		{name: "all combo (found)", path: path("cs", "CS", 5, bPtr(true), t1, t2), wantData: marshalStudents(t, asha)},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.wantCode = http.StatusOK

		t.Run(tt.name, func(t *testing.T) {
			ctx, rec := newRequest(e, tt.method, tt.path, tt.body)
			if err := api.query(ctx); err != tt.wantErr {
				t.Errorf("query() error = %v; wantErr %v", err, tt.wantErr)
			}
			if rec.Code != tt.wantCode {
				t.Errorf("query() code = %v; wantCode %v", rec.Code, tt.wantCode)
			}
			ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
			if err != nil {
				t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
			}
			if !ok {
				t.Errorf("query() data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
			}
		})
	}
}

func Test_studentApi_eligibility(t *testing.T) {
	svc, repo := setup(t)
	api := &studentApi{svc: svc}
	e := echo.New()

	tests := []struct {
		name         string
		usn          string
		score        core.Score
		wantEligible bool
		wantDeficit  float64
	}{
		{name: "at threshold", usn: "1ab20cs001", score: 9800, wantEligible: true},
		{name: "just below threshold", usn: "1ab20cs002", score: 9799, wantEligible: false, wantDeficit: 0.01},
		{name: "far below threshold", usn: "1ab20cs003", score: 9000, wantEligible: false, wantDeficit: 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			std := createStudent(t, repo, tt.usn, "Asha", "Rao", tt.usn+"@test.test", "CS", 5, tt.score, true)

			ctx, rec := newRequest(e, http.MethodGet, "/students/"+std.ID+"/eligibility")
			ctx.SetParamNames("id")
			ctx.SetParamValues(std.ID)
			if err := api.eligibility(ctx); err != nil {
				t.Fatalf("eligibility() error = %v", err)
			}
			if rec.Code != http.StatusOK {
				t.Errorf("eligibility() code = %v; want %v", rec.Code, http.StatusOK)
			}

			var got map[string]interface{}
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("unmarshalling response: %v", err)
			}
			assert.Equal(t, tt.wantEligible, got["eligible"])
			assert.Equal(t, tt.wantDeficit, got["deficit"])
			if !tt.wantEligible {
				assert.NotEmpty(t, got["message"])
			}
		})
	}
}

func Test_studentApi_adjustScore(t *testing.T) {
	svc, repo := setup(t)
	api := &studentApi{svc: svc, validate: validator.New()}
	e := echo.New()

	std := createStudent(t, repo, "1ab20cs001", "Asha", "Rao", "asha@test.test", "CS", 5, 9500, true)

	body, _ := json.Marshal(student.ManualAdjustment{NewScore: 8000, Remark: "disciplinary review"})
	ctx, rec := newRequest(e, http.MethodPost, "/students/"+std.ID+"/adjust-score", body)
	ctx.SetParamNames("id")
	ctx.SetParamValues(std.ID)
	if err := api.adjustScore(ctx); err != nil {
		t.Fatalf("adjustScore() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("adjustScore() code = %v; want %v", rec.Code, http.StatusOK)
	}

	var entry student.ScoreLogEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	assert.Equal(t, core.Score(-1500), entry.Delta)
	assert.Equal(t, core.Score(8000), entry.NewScore)

	// missing remark is rejected
	body, _ = json.Marshal(student.ManualAdjustment{NewScore: 7000})
	ctx, _ = newRequest(e, http.MethodPost, "/students/"+std.ID+"/adjust-score", body)
	ctx.SetParamNames("id")
	ctx.SetParamValues(std.ID)
	if err := api.adjustScore(ctx); err == nil {
		t.Error("adjustScore() expected a validation error for a missing remark")
	}

	got, err := svc.GetByID(context.Background(), std.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	assert.Equal(t, core.Score(8000), got.SocialScore)
}
