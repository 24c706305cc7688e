package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/kahero/campushub/core"
	"github.com/kahero/campushub/core/attendance"
	"github.com/kahero/campushub/core/club"
	"github.com/kahero/campushub/core/event"
	"github.com/kahero/campushub/core/faculty"
	"github.com/kahero/campushub/core/scoring"
	"github.com/kahero/campushub/core/student"
)

type (
	// Generator abstracts the model call for testing.
	Generator interface {
		Enabled() bool
		Generate(ctx context.Context, prompt, promptCtx string) (string, error)
	}

	// Service grounds each advisory answer in live system data before
	// asking the model.
	Service interface {
		Enabled() bool
		AdviseStudent(ctx context.Context, studentID string) (string, error)
		RecommendEvents(ctx context.Context, studentID string) (string, error)
		SuggestEventIdeas(ctx context.Context, clubID string) (string, error)
		AnalyzeClubPerformance(ctx context.Context, facultyID string) (string, error)
		AskAsStudent(ctx context.Context, studentID, question string) (string, error)
	}

	service struct {
		gen           Generator
		studentSvc    student.Service
		eventSvc      event.Service
		clubSvc       club.Service
		facultySvc    faculty.Service
		attendanceSvc attendance.Service
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(
	gen Generator,
	studentSvc student.Service,
	eventSvc event.Service,
	clubSvc club.Service,
	facultySvc faculty.Service,
	attendanceSvc attendance.Service,
) Service {
	return &service{
		gen:           gen,
		studentSvc:    studentSvc,
		eventSvc:      eventSvc,
		clubSvc:       clubSvc,
		facultySvc:    facultySvc,
		attendanceSvc: attendanceSvc,
	}
}

func (svc *service) Enabled() bool {
	return svc.gen.Enabled()
}

// AdviseStudent builds a strategic plan to lift a student's social score
// back over the activity-event threshold.
func (svc *service) AdviseStudent(ctx context.Context, studentID string) (string, error) {
	std, err := svc.studentSvc.GetByID(ctx, studentID)
	if err != nil {
		return "", err
	}
	elig, err := svc.studentSvc.CheckEligibility(ctx, studentID)
	if err != nil {
		return "", err
	}

	// each non-activity event attended recovers the presence reward
	eventsNeeded := int(elig.Deficit / scoring.PresenceReward)
	if elig.Deficit%scoring.PresenceReward != 0 {
		eventsNeeded++
	}

	upcoming, err := svc.eventSvc.Query(ctx, &event.QueryFilter{
		Status: event.StatusScheduled,
		Type:   event.TypeNormal,
	}, nil)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are the campus events assistant.\n\n")
	fmt.Fprintf(&b, "Student Profile:\n")
	fmt.Fprintf(&b, "- Name: %s\n- USN: %s\n", std.FullName(), strings.ToUpper(std.USN))
	fmt.Fprintf(&b, "- Current Social Score: %s%%\n- Target Score: %s%%\n", elig.Score, elig.Required)
	fmt.Fprintf(&b, "- Score Deficit: %s%%\n- Events Needed: %d\n\n", elig.Deficit, eventsNeeded)
	fmt.Fprintf(&b, "Social Score Rules:\n")
	fmt.Fprintf(&b, "- Attending non-activity events increases score by +%s%%\n", scoring.PresenceReward)
	fmt.Fprintf(&b, "- Being absent decreases score by %s%%\n", scoring.AbsencePenalty)
	fmt.Fprintf(&b, "- Score must be at least %s%% to register for activity point events\n\n", elig.Required)
	b.WriteString("Upcoming Non-Activity Events:")
	if len(upcoming) == 0 {
		b.WriteString("\nNo upcoming non-activity events found.")
	}
	for i, evt := range upcoming {
		if i == 5 {
			break
		}
		fmt.Fprintf(&b, "\n%d. %s - %s", i+1, evt.Name, evt.StartsAt.Format("2006-01-02 15:04"))
	}

	prompt := fmt.Sprintf(
		"Provide a strategic plan for %s to improve their social score from %s%% to %s%%.\n\n"+
			"Include:\n"+
			"1. Urgency level assessment\n"+
			"2. Specific events to attend (from the list above)\n"+
			"3. Timeline to reach target\n"+
			"4. Motivational advice\n"+
			"5. Warning about avoiding absences\n\n"+
			"Be encouraging, specific, and actionable. Keep response under 200 words.",
		std.FirstName, elig.Score, elig.Required,
	)
	return svc.gen.Generate(ctx, prompt, b.String())
}

// RecommendEvents picks upcoming events suited to a student's history.
func (svc *service) RecommendEvents(ctx context.Context, studentID string) (string, error) {
	std, err := svc.studentSvc.GetByID(ctx, studentID)
	if err != nil {
		return "", err
	}

	records, err := svc.attendanceSvc.RecordsOf(ctx, studentID)
	if err != nil {
		return "", err
	}
	attended := 0
	for _, rec := range records {
		if rec.Present() {
			attended++
		}
	}

	upcoming, err := svc.eventSvc.Query(ctx, &event.QueryFilter{Status: event.StatusScheduled}, nil)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("You are the campus events assistant, recommending events for a student.\n\n")
	fmt.Fprintf(&b, "Student Profile:\n")
	fmt.Fprintf(&b, "- Name: %s\n- Department: %s\n", std.FullName(), std.Department)
	fmt.Fprintf(&b, "- Current Activity Points: %d\n- Social Score: %s%%\n", std.TotalActivityPoints, std.SocialScore)
	fmt.Fprintf(&b, "- Events Attended: %d\n\n", attended)
	b.WriteString("Upcoming Events:")
	if len(upcoming) == 0 {
		b.WriteString("\nNo upcoming events found.")
	}
	for i, evt := range upcoming {
		if i == 10 {
			break
		}
		kind := "Non-Activity"
		if evt.PointBearing() {
			kind = fmt.Sprintf("Activity Points: %d", evt.ActivityPoints)
		}
		fmt.Fprintf(&b, "\n%d. %s (%s) - %s", i+1, evt.Name, kind, evt.StartsAt.Format("2006-01-02"))
	}

	prompt := "Recommend the TOP 3 events this student should attend.\n\n" +
		"Consider:\n" +
		"1. Social score requirements\n" +
		"2. Activity points opportunities\n" +
		"3. Event timing\n" +
		"4. Department relevance\n\n" +
		"For each recommendation, explain WHY it's a good fit.\n" +
		"Be personalized and motivating. Keep under 250 words."
	return svc.gen.Generate(ctx, prompt, b.String())
}

// SuggestEventIdeas proposes new events from a club's past performance.
func (svc *service) SuggestEventIdeas(ctx context.Context, clubID string) (string, error) {
	cl, err := svc.clubSvc.GetByID(ctx, clubID)
	if err != nil {
		return "", err
	}
	past, err := svc.eventSvc.Query(ctx, &event.QueryFilter{
		ClubID: clubID,
		Status: event.StatusCompleted,
	}, nil)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("You are the campus events assistant, helping a club plan events.\n\n")
	fmt.Fprintf(&b, "Club: %s\n\nPast Events Performance:", cl.Name)
	var listed int
	for _, evt := range past {
		if listed == 5 {
			break
		}
		rpt, err := svc.attendanceSvc.LatestReport(ctx, evt.ID)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "\n- %s (%s): %s%% attendance, %d attendees",
			evt.Name, evt.Type, rpt.AttendancePercentage, rpt.TotalPresent)
		listed++
	}
	if listed == 0 {
		b.WriteString("\nNo past event data available.")
	}

	prompt := "Suggest 3 innovative event ideas for this club.\n\n" +
		"Consider:\n" +
		"1. Past event success patterns\n" +
		"2. Current trends in student activities\n" +
		"3. Seasonal relevance\n" +
		"4. Resource requirements\n" +
		"5. Expected engagement\n\n" +
		"For each idea:\n" +
		"- Event name and theme\n" +
		"- Target audience\n" +
		"- Expected outcomes\n" +
		"- Why it will succeed\n\n" +
		"Be creative and practical. Keep under 300 words."
	return svc.gen.Generate(ctx, prompt, b.String())
}

// AnalyzeClubPerformance reviews all clubs overseen by a faculty member.
func (svc *service) AnalyzeClubPerformance(ctx context.Context, facultyID string) (string, error) {
	fac, err := svc.facultySvc.GetByID(ctx, facultyID)
	if err != nil {
		return "", err
	}
	clubs, err := svc.clubSvc.Query(ctx, &club.QueryFilter{FacultyID: facultyID}, nil)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("You are the campus events assistant, analyzing club performance for a faculty member.\n\n")
	fmt.Fprintf(&b, "Faculty: %s\nDepartment: %s\nTotal Clubs Managed: %d\n\n", fac.FullName(), fac.Department, len(clubs))
	b.WriteString("Club Performance Metrics:")
	for _, cl := range clubs {
		members, err := svc.clubSvc.Members(ctx, cl.ID)
		if err != nil {
			return "", err
		}
		completed, err := svc.eventSvc.Query(ctx, &event.QueryFilter{
			ClubID: cl.ID,
			Status: event.StatusCompleted,
		}, nil)
		if err != nil {
			return "", err
		}

		var rateSum core.Score
		var rated int
		for _, evt := range completed {
			if rpt, err := svc.attendanceSvc.LatestReport(ctx, evt.ID); err == nil {
				rateSum += rpt.AttendancePercentage
				rated++
			}
		}
		var avg core.Score
		if rated > 0 {
			avg = rateSum / core.Score(rated)
		}
		hasHead := "No"
		if cl.HeadStudentID != nil {
			hasHead = "Yes"
		}

		fmt.Fprintf(&b, "\n\n%s:", cl.Name)
		fmt.Fprintf(&b, "\n- Members: %d", len(members))
		fmt.Fprintf(&b, "\n- Completed Events: %d", len(completed))
		fmt.Fprintf(&b, "\n- Avg Attendance: %s%%", avg)
		fmt.Fprintf(&b, "\n- Has Club Head: %s", hasHead)
	}

	prompt := "Provide a comprehensive analysis:\n\n" +
		"1. Overall performance assessment\n" +
		"2. Top performing clubs (and why)\n" +
		"3. Clubs needing improvement (with specific issues)\n" +
		"4. Actionable recommendations for each underperforming club\n" +
		"5. Strategic suggestions for faculty\n\n" +
		"Be data-driven and constructive. Keep under 400 words."
	return svc.gen.Generate(ctx, prompt, b.String())
}

// AskAsStudent answers a free-form question with the student's context.
func (svc *service) AskAsStudent(ctx context.Context, studentID, question string) (string, error) {
	std, err := svc.studentSvc.GetByID(ctx, studentID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("You are the campus events assistant.\n\n")
	fmt.Fprintf(&b, "Student Context:\n")
	fmt.Fprintf(&b, "- Name: %s\n- USN: %s\n", std.FullName(), strings.ToUpper(std.USN))
	fmt.Fprintf(&b, "- Social Score: %s%%\n- Activity Points: %d\n\n", std.SocialScore, std.TotalActivityPoints)
	b.WriteString("System Rules:\n")
	fmt.Fprintf(&b, "- Social score starts at 100%%\n")
	fmt.Fprintf(&b, "- %s%% for absence, +%s%% for attending non-activity events\n", scoring.AbsencePenalty, scoring.PresenceReward)
	fmt.Fprintf(&b, "- Need %s%%+ to register for activity point events\n", student.EligibilityThreshold)
	b.WriteString("- Activity events award points for career development\n\n")
	b.WriteString("Answer the student's question helpfully and accurately.")

	return svc.gen.Generate(ctx, question, b.String())
}
