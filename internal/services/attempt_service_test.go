package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/edtestlab/exam-engine/internal/events"
	"github.com/edtestlab/exam-engine/internal/models"
	"github.com/edtestlab/exam-engine/internal/repositories"
	"github.com/edtestlab/exam-engine/internal/validator"
)

// ===== IN-MEMORY REPOSITORY FAKE =====

type fakeRepo struct {
	tests       map[uint]*models.Test
	questions   map[uint][]*models.Question
	assignments map[uint]*models.Assignment
	members     map[string]bool
	attempts    map[uint]*models.Attempt
	users       map[string]*models.User
	nextID      uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		tests:       map[uint]*models.Test{},
		questions:   map[uint][]*models.Question{},
		assignments: map[uint]*models.Assignment{},
		members:     map[string]bool{},
		attempts:    map[uint]*models.Attempt{},
		users:       map[string]*models.User{},
		nextID:      1,
	}
}

func memberKey(classID uint, studentID string) string {
	return questionKey(classID) + ":" + studentID
}

func (f *fakeRepo) Test() repositories.TestRepository             { return fakeTestRepo{f} }
func (f *fakeRepo) Question() repositories.QuestionRepository     { return fakeQuestionRepo{f} }
func (f *fakeRepo) Assignment() repositories.AssignmentRepository { return fakeAssignmentRepo{f} }
func (f *fakeRepo) Membership() repositories.MembershipRepository { return fakeMembershipRepo{f} }
func (f *fakeRepo) Attempt() repositories.AttemptRepository       { return fakeAttemptRepo{f} }
func (f *fakeRepo) User() repositories.UserRepository             { return fakeUserRepo{f} }

func (f *fakeRepo) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(f)
}
func (f *fakeRepo) Ping(ctx context.Context) error { return nil }
func (f *fakeRepo) Close() error                   { return nil }

type fakeTestRepo struct{ f *fakeRepo }

func (r fakeTestRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Test, error) {
	if t, ok := r.f.tests[id]; ok {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeTestRepo) GetWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Test, error) {
	t, err := r.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	copied := *t
	for _, q := range r.f.questions[id] {
		copied.Questions = append(copied.Questions, *q)
	}
	return &copied, nil
}

type fakeQuestionRepo struct{ f *fakeRepo }

func (r fakeQuestionRepo) GetByTest(ctx context.Context, tx *gorm.DB, testID uint) ([]*models.Question, error) {
	return r.f.questions[testID], nil
}

func (r fakeQuestionRepo) SumMarks(ctx context.Context, tx *gorm.DB, testID uint) (float64, error) {
	sum := 0.0
	for _, q := range r.f.questions[testID] {
		sum += q.Marks
	}
	return sum, nil
}

type fakeAssignmentRepo struct{ f *fakeRepo }

func (r fakeAssignmentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Assignment, error) {
	if a, ok := r.f.assignments[id]; ok {
		return a, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeAssignmentRepo) GetWithTest(ctx context.Context, tx *gorm.DB, id uint) (*models.Assignment, error) {
	a, err := r.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	copied := *a
	if t, ok := r.f.tests[a.TestID]; ok {
		copied.Test = *t
	}
	return &copied, nil
}

type fakeMembershipRepo struct{ f *fakeRepo }

func (r fakeMembershipRepo) IsActiveMember(ctx context.Context, tx *gorm.DB, classID uint, studentID string) (bool, error) {
	return r.f.members[memberKey(classID, studentID)], nil
}

type fakeAttemptRepo struct{ f *fakeRepo }

func (r fakeAttemptRepo) Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	// Emulates the partial unique index on open attempts.
	for _, a := range r.f.attempts {
		if a.AssignmentID == attempt.AssignmentID && a.StudentID == attempt.StudentID && !a.IsCompleted {
			return gorm.ErrDuplicatedKey
		}
	}
	attempt.ID = r.f.nextID
	r.f.nextID++
	attempt.CreatedAt = time.Now()
	r.f.attempts[attempt.ID] = attempt
	return nil
}

func (r fakeAttemptRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	if a, ok := r.f.attempts[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeAttemptRepo) GetOpenAttempt(ctx context.Context, tx *gorm.DB, assignmentID uint, studentID string) (*models.Attempt, error) {
	for _, a := range r.f.attempts {
		if a.AssignmentID == assignmentID && a.StudentID == studentID && !a.IsCompleted {
			copied := *a
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeAttemptRepo) CountForAssignment(ctx context.Context, tx *gorm.DB, assignmentID uint, studentID string) (int64, error) {
	var n int64
	for _, a := range r.f.attempts {
		if a.AssignmentID == assignmentID && a.StudentID == studentID {
			n++
		}
	}
	return n, nil
}

func (r fakeAttemptRepo) SaveProgress(ctx context.Context, tx *gorm.DB, id uint, updates map[string]interface{}) (int64, error) {
	a, ok := r.f.attempts[id]
	if !ok || a.IsCompleted {
		return 0, nil
	}
	applyAttemptUpdates(a, updates)
	return 1, nil
}

func (r fakeAttemptRepo) Finalize(ctx context.Context, tx *gorm.DB, id uint, updates map[string]interface{}) (int64, error) {
	a, ok := r.f.attempts[id]
	if !ok || a.IsCompleted {
		return 0, nil
	}
	applyAttemptUpdates(a, updates)
	a.IsCompleted = true
	return 1, nil
}

func (r fakeAttemptRepo) ListByAssignment(ctx context.Context, tx *gorm.DB, assignmentID uint, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	var out []*models.Attempt
	for _, a := range r.f.attempts {
		if a.AssignmentID != assignmentID {
			continue
		}
		if filters.StudentID != nil && a.StudentID != *filters.StudentID {
			continue
		}
		if filters.Completed != nil && a.IsCompleted != *filters.Completed {
			continue
		}
		copied := *a
		out = append(out, &copied)
	}
	return out, int64(len(out)), nil
}

func applyAttemptUpdates(a *models.Attempt, updates map[string]interface{}) {
	for col, val := range updates {
		switch col {
		case "answers":
			a.Answers = datatypes.JSON(val.([]byte))
		case "tab_switches":
			a.TabSwitches = val.(int)
		case "copy_attempts":
			a.CopyAttempts = val.(int)
		case "suspicious_activity":
			a.SuspiciousActivity = datatypes.JSON(val.([]byte))
		case "score":
			a.Score = val.(float64)
		case "percentage":
			a.Percentage = val.(float64)
		case "passed":
			a.Passed = val.(bool)
		case "submitted_at":
			t := val.(time.Time)
			a.SubmittedAt = &t
		case "time_spent_seconds":
			a.TimeSpentSeconds = val.(int)
		}
	}
}

type fakeUserRepo struct{ f *fakeRepo }

func (r fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := r.f.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range r.f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeUserRepo) ExistsByID(ctx context.Context, id string) (bool, error) {
	_, ok := r.f.users[id]
	return ok, nil
}

func (r fakeUserRepo) HasRole(ctx context.Context, id string, role models.UserRole) (bool, error) {
	u, ok := r.f.users[id]
	return ok && u.Role == role, nil
}

// ===== FIXTURE =====

type fixture struct {
	repo      *fakeRepo
	service   AttemptService
	publisher *events.MockEventPublisher
}

// newFixture seeds one published test (3 questions, 2 marks each) assigned
// to class 10 with an open window, a member student, an outsider, and a
// teacher.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newFakeRepo()
	now := time.Now()

	repo.tests[1] = &models.Test{
		ID:              1,
		Title:           "Algebra quiz",
		DurationMinutes: 30,
		PassingScore:    50,
		MaxAttempts:     2,
		IsPublished:     true,
		TeacherID:       "teacher-1",
	}
	repo.questions[1] = []*models.Question{
		{ID: 1, TestID: 1, QuestionType: models.SingleChoice, QuestionText: "1+1", Options: datatypes.JSON(`["1","2","3"]`), CorrectAnswer: datatypes.JSON(`1`), Marks: 2, OrderNumber: 1},
		{ID: 2, TestID: 1, QuestionType: models.TrueFalse, QuestionText: "2 is even", CorrectAnswer: datatypes.JSON(`true`), Marks: 2, OrderNumber: 2},
		{ID: 3, TestID: 1, QuestionType: models.ShortAnswer, QuestionText: "capital of France", CorrectAnswer: datatypes.JSON(`["Paris"]`), Marks: 2, OrderNumber: 3},
	}
	repo.assignments[5] = &models.Assignment{
		ID:        5,
		TestID:    1,
		ClassID:   10,
		StartDate: now.Add(-time.Hour),
		EndDate:   now.Add(time.Hour),
		IsActive:  true,
	}
	repo.members[memberKey(10, "student-1")] = true
	repo.users["student-1"] = &models.User{ID: "student-1", Role: models.RoleStudent}
	repo.users["student-2"] = &models.User{ID: "student-2", Role: models.RoleStudent}
	repo.users["teacher-1"] = &models.User{ID: "teacher-1", Role: models.RoleTeacher}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := events.NewMockEventPublisher()
	service := NewAttemptService(repo, nil, logger, validator.New(), NewGradingService(logger), publisher)

	return &fixture{repo: repo, service: service, publisher: publisher}
}

func mustStart(t *testing.T, fx *fixture, studentID string) *StartAttemptResponse {
	t.Helper()
	resp, err := fx.service.Start(context.Background(), &StartAttemptRequest{AssignmentID: 5}, studentID, ClientInfo{})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return resp
}

// ===== START =====

func TestStartAttempt(t *testing.T) {
	ctx := context.Background()

	t.Run("creates attempt with max score snapshot", func(t *testing.T) {
		fx := newFixture(t)

		resp := mustStart(t, fx, "student-1")

		if resp.Resumed {
			t.Error("fresh attempt reported as resumed")
		}
		if resp.DurationMinutes != 30 {
			t.Errorf("DurationMinutes = %d, want 30", resp.DurationMinutes)
		}
		if len(resp.Questions) != 3 {
			t.Fatalf("got %d questions, want 3", len(resp.Questions))
		}
		for _, q := range resp.Questions {
			if q.CorrectAnswer != nil {
				t.Errorf("question %d leaks correct answer on start", q.ID)
			}
		}

		stored := fx.repo.attempts[resp.AttemptID]
		if stored.MaxScore != 6 {
			t.Errorf("MaxScore = %v, want 6", stored.MaxScore)
		}
	})

	t.Run("resumes open attempt instead of creating", func(t *testing.T) {
		fx := newFixture(t)

		first := mustStart(t, fx, "student-1")
		second := mustStart(t, fx, "student-1")

		if !second.Resumed {
			t.Error("second start did not resume")
		}
		if second.AttemptID != first.AttemptID {
			t.Errorf("resumed attempt %d, want %d", second.AttemptID, first.AttemptID)
		}
		if len(fx.repo.attempts) != 1 {
			t.Errorf("%d attempts stored, want 1", len(fx.repo.attempts))
		}
	})

	t.Run("rejects non-members", func(t *testing.T) {
		fx := newFixture(t)

		_, err := fx.service.Start(ctx, &StartAttemptRequest{AssignmentID: 5}, "student-2", ClientInfo{})
		if err != ErrNotClassMember {
			t.Errorf("err = %v, want ErrNotClassMember", err)
		}
	})

	t.Run("rejects before window opens", func(t *testing.T) {
		fx := newFixture(t)
		fx.repo.assignments[5].StartDate = time.Now().Add(time.Hour)
		fx.repo.assignments[5].EndDate = time.Now().Add(2 * time.Hour)

		_, err := fx.service.Start(ctx, &StartAttemptRequest{AssignmentID: 5}, "student-1", ClientInfo{})
		if err != ErrAssignmentNotStarted {
			t.Errorf("err = %v, want ErrAssignmentNotStarted", err)
		}
	})

	t.Run("rejects after window closes", func(t *testing.T) {
		fx := newFixture(t)
		fx.repo.assignments[5].StartDate = time.Now().Add(-2 * time.Hour)
		fx.repo.assignments[5].EndDate = time.Now().Add(-time.Hour)

		_, err := fx.service.Start(ctx, &StartAttemptRequest{AssignmentID: 5}, "student-1", ClientInfo{})
		if err != ErrAssignmentEnded {
			t.Errorf("err = %v, want ErrAssignmentEnded", err)
		}
	})

	t.Run("rejects inactive assignment", func(t *testing.T) {
		fx := newFixture(t)
		fx.repo.assignments[5].IsActive = false

		_, err := fx.service.Start(ctx, &StartAttemptRequest{AssignmentID: 5}, "student-1", ClientInfo{})
		if err != ErrAssignmentInactive {
			t.Errorf("err = %v, want ErrAssignmentInactive", err)
		}
	})

	t.Run("enforces attempt limit", func(t *testing.T) {
		fx := newFixture(t)

		for i := 0; i < 2; i++ {
			resp := mustStart(t, fx, "student-1")
			if _, err := fx.service.Submit(ctx, resp.AttemptID, &AttemptProgressRequest{}, "student-1"); err != nil {
				t.Fatalf("Submit failed: %v", err)
			}
		}

		_, err := fx.service.Start(ctx, &StartAttemptRequest{AssignmentID: 5}, "student-1", ClientInfo{})
		if err != ErrMaxAttemptsReached {
			t.Errorf("err = %v, want ErrMaxAttemptsReached", err)
		}
	})

	t.Run("unknown assignment", func(t *testing.T) {
		fx := newFixture(t)

		_, err := fx.service.Start(ctx, &StartAttemptRequest{AssignmentID: 99}, "student-1", ClientInfo{})
		if err != ErrAssignmentNotFound {
			t.Errorf("err = %v, want ErrAssignmentNotFound", err)
		}
	})
}

// ===== SAVE PROGRESS =====

func TestSaveProgress(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces answers wholesale", func(t *testing.T) {
		fx := newFixture(t)
		resp := mustStart(t, fx, "student-1")

		first := &AttemptProgressRequest{Answers: map[string]json.RawMessage{
			"1": json.RawMessage(`1`),
			"2": json.RawMessage(`true`),
		}}
		if err := fx.service.SaveProgress(ctx, resp.AttemptID, first, "student-1"); err != nil {
			t.Fatalf("first save failed: %v", err)
		}

		second := &AttemptProgressRequest{Answers: map[string]json.RawMessage{
			"3": json.RawMessage(`"Paris"`),
		}}
		if err := fx.service.SaveProgress(ctx, resp.AttemptID, second, "student-1"); err != nil {
			t.Fatalf("second save failed: %v", err)
		}

		stored, err := decodeAnswerMap(fx.repo.attempts[resp.AttemptID].Answers)
		if err != nil {
			t.Fatalf("failed to decode stored answers: %v", err)
		}
		if len(stored) != 1 {
			t.Errorf("stored %d answers, want 1 (saves must not merge)", len(stored))
		}
		if _, ok := stored["3"]; !ok {
			t.Error("latest save missing from storage")
		}
	})

	t.Run("coerces telemetry garbage", func(t *testing.T) {
		fx := newFixture(t)
		resp := mustStart(t, fx, "student-1")

		req := &AttemptProgressRequest{
			TabSwitches:        json.RawMessage(`"lots"`),
			CopyAttempts:       json.RawMessage(`3`),
			SuspiciousActivity: json.RawMessage(`{"not":"an array"}`),
		}
		if err := fx.service.SaveProgress(ctx, resp.AttemptID, req, "student-1"); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		stored := fx.repo.attempts[resp.AttemptID]
		if stored.TabSwitches != 0 {
			t.Errorf("TabSwitches = %d, want 0 for garbage input", stored.TabSwitches)
		}
		if stored.CopyAttempts != 3 {
			t.Errorf("CopyAttempts = %d, want 3", stored.CopyAttempts)
		}
		if string(stored.SuspiciousActivity) != "[]" {
			t.Errorf("SuspiciousActivity = %s, want []", stored.SuspiciousActivity)
		}
	})

	t.Run("completed attempt reads as not found", func(t *testing.T) {
		fx := newFixture(t)
		resp := mustStart(t, fx, "student-1")
		if _, err := fx.service.Submit(ctx, resp.AttemptID, &AttemptProgressRequest{}, "student-1"); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}

		err := fx.service.SaveProgress(ctx, resp.AttemptID, &AttemptProgressRequest{}, "student-1")
		if err != ErrAttemptNotFound {
			t.Errorf("err = %v, want ErrAttemptNotFound", err)
		}
	})

	t.Run("foreign attempt reads as not found", func(t *testing.T) {
		fx := newFixture(t)
		resp := mustStart(t, fx, "student-1")

		err := fx.service.SaveProgress(ctx, resp.AttemptID, &AttemptProgressRequest{}, "student-2")
		if err != ErrAttemptNotFound {
			t.Errorf("err = %v, want ErrAttemptNotFound", err)
		}
	})

	t.Run("rejects non-numeric answer keys", func(t *testing.T) {
		fx := newFixture(t)
		resp := mustStart(t, fx, "student-1")

		req := &AttemptProgressRequest{Answers: map[string]json.RawMessage{
			"not-a-question": json.RawMessage(`1`),
		}}
		err := fx.service.SaveProgress(ctx, resp.AttemptID, req, "student-1")
		if _, ok := err.(ValidationErrors); !ok {
			t.Errorf("err = %v, want ValidationErrors", err)
		}
	})
}

// ===== SUBMIT =====

func TestSubmitAttempt(t *testing.T) {
	ctx := context.Background()

	t.Run("grades and completes", func(t *testing.T) {
		fx := newFixture(t)
		resp := mustStart(t, fx, "student-1")

		req := &AttemptProgressRequest{Answers: map[string]json.RawMessage{
			"1": json.RawMessage(`1`),
			"2": json.RawMessage(`false`),
			"3": json.RawMessage(`" paris"`),
		}}
		result, err := fx.service.Submit(ctx, resp.AttemptID, req, "student-1")
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}

		if result.Score != 4 {
			t.Errorf("Score = %v, want 4", result.Score)
		}
		if result.MaxScore != 6 {
			t.Errorf("MaxScore = %v, want 6", result.MaxScore)
		}
		if pct := result.Percentage; pct < 66.6 || pct > 66.7 {
			t.Errorf("Percentage = %v, want ~66.67", pct)
		}
		if !result.Passed {
			t.Error("Passed = false, want true at 66.67% against passing score 50")
		}

		stored := fx.repo.attempts[resp.AttemptID]
		if !stored.IsCompleted || stored.SubmittedAt == nil {
			t.Error("attempt not marked completed")
		}

		graded, err := decodeGradedMap(stored.Answers)
		if err != nil {
			t.Fatalf("failed to decode graded answers: %v", err)
		}
		if !graded["1"].IsCorrect || graded["2"].IsCorrect || !graded["3"].IsCorrect {
			t.Errorf("graded map wrong: %+v", graded)
		}
	})

	t.Run("second submit fails", func(t *testing.T) {
		fx := newFixture(t)
		resp := mustStart(t, fx, "student-1")

		if _, err := fx.service.Submit(ctx, resp.AttemptID, &AttemptProgressRequest{}, "student-1"); err != nil {
			t.Fatalf("first submit failed: %v", err)
		}
		_, err := fx.service.Submit(ctx, resp.AttemptID, &AttemptProgressRequest{}, "student-1")
		if err != ErrAttemptAlreadySubmitted {
			t.Errorf("err = %v, want ErrAttemptAlreadySubmitted", err)
		}
	})

	t.Run("publishes attempt.submitted once", func(t *testing.T) {
		fx := newFixture(t)
		resp := mustStart(t, fx, "student-1")

		if _, err := fx.service.Submit(ctx, resp.AttemptID, &AttemptProgressRequest{}, "student-1"); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}

		published := fx.publisher.Events()
		if len(published) != 1 {
			t.Fatalf("published %d events, want 1", len(published))
		}
		if published[0].Topic != events.TopicAttemptSubmitted {
			t.Errorf("topic = %s, want %s", published[0].Topic, events.TopicAttemptSubmitted)
		}
		payload := published[0].Payload.(events.AttemptSubmittedPayload)
		if payload.AttemptID != resp.AttemptID || payload.StudentID != "student-1" {
			t.Errorf("payload = %+v", payload)
		}
	})

	t.Run("submit without body grades last save", func(t *testing.T) {
		fx := newFixture(t)
		resp := mustStart(t, fx, "student-1")

		save := &AttemptProgressRequest{Answers: map[string]json.RawMessage{
			"1": json.RawMessage(`1`),
			"2": json.RawMessage(`true`),
			"3": json.RawMessage(`"Paris"`),
		}}
		if err := fx.service.SaveProgress(ctx, resp.AttemptID, save, "student-1"); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		result, err := fx.service.Submit(ctx, resp.AttemptID, &AttemptProgressRequest{}, "student-1")
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		if result.Score != 6 {
			t.Errorf("Score = %v, want 6", result.Score)
		}
	})
}

// ===== GET / RESULT =====

func TestGetAttempt(t *testing.T) {
	ctx := context.Background()

	t.Run("open attempt hides correct answers", func(t *testing.T) {
		fx := newFixture(t)
		resp := mustStart(t, fx, "student-1")

		detail, err := fx.service.GetByID(ctx, resp.AttemptID, "student-1")
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		for _, q := range detail.Questions {
			if q.CorrectAnswer != nil {
				t.Errorf("open attempt leaks correct answer for question %d", q.ID)
			}
		}
	})

	t.Run("completed attempt reveals correct answers", func(t *testing.T) {
		fx := newFixture(t)
		resp := mustStart(t, fx, "student-1")
		if _, err := fx.service.Submit(ctx, resp.AttemptID, &AttemptProgressRequest{}, "student-1"); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}

		detail, err := fx.service.GetByID(ctx, resp.AttemptID, "student-1")
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		for _, q := range detail.Questions {
			if q.CorrectAnswer == nil {
				t.Errorf("completed attempt missing correct answer for question %d", q.ID)
			}
		}
	})

	t.Run("foreign attempt reads as not found", func(t *testing.T) {
		fx := newFixture(t)
		resp := mustStart(t, fx, "student-1")

		_, err := fx.service.GetByID(ctx, resp.AttemptID, "student-2")
		if err != ErrAttemptNotFound {
			t.Errorf("err = %v, want ErrAttemptNotFound", err)
		}
	})
}

func TestGetResult(t *testing.T) {
	ctx := context.Background()

	t.Run("owner sees graded breakdown", func(t *testing.T) {
		fx := newFixture(t)
		resp := mustStart(t, fx, "student-1")

		req := &AttemptProgressRequest{Answers: map[string]json.RawMessage{
			"1": json.RawMessage(`1`),
		}}
		if _, err := fx.service.Submit(ctx, resp.AttemptID, req, "student-1"); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}

		result, err := fx.service.GetResult(ctx, resp.AttemptID, "student-1")
		if err != nil {
			t.Fatalf("GetResult failed: %v", err)
		}
		if len(result.Results) != 3 {
			t.Fatalf("got %d results, want 3", len(result.Results))
		}
		for _, r := range result.Results {
			if r.CorrectAnswer == nil {
				t.Errorf("result for question %d missing correct answer", r.QuestionID)
			}
		}
	})

	t.Run("proctoring events are summarized by type", func(t *testing.T) {
		fx := newFixture(t)
		resp := mustStart(t, fx, "student-1")

		req := &AttemptProgressRequest{
			SuspiciousActivity: json.RawMessage(`[
				{"type":"tab_switch","time_offset":30},
				{"type":"tab_switch","time_offset":65},
				{"type":"copy_paste","time_offset":90,"detail":"ctrl+c"}
			]`),
		}
		if _, err := fx.service.Submit(ctx, resp.AttemptID, req, "student-1"); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}

		result, err := fx.service.GetResult(ctx, resp.AttemptID, "student-1")
		if err != nil {
			t.Fatalf("GetResult failed: %v", err)
		}
		if got := result.Proctoring[models.EventTabSwitch]; got != 2 {
			t.Errorf("tab_switch count = %d, want 2", got)
		}
		if got := result.Proctoring[models.EventCopyPaste]; got != 1 {
			t.Errorf("copy_paste count = %d, want 1", got)
		}
	})

	t.Run("clean attempt has no proctoring summary", func(t *testing.T) {
		fx := newFixture(t)
		resp := mustStart(t, fx, "student-1")
		if _, err := fx.service.Submit(ctx, resp.AttemptID, &AttemptProgressRequest{}, "student-1"); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}

		result, err := fx.service.GetResult(ctx, resp.AttemptID, "student-1")
		if err != nil {
			t.Fatalf("GetResult failed: %v", err)
		}
		if result.Proctoring != nil {
			t.Errorf("Proctoring = %v, want nil", result.Proctoring)
		}
	})

	t.Run("open attempt has no result", func(t *testing.T) {
		fx := newFixture(t)
		resp := mustStart(t, fx, "student-1")

		_, err := fx.service.GetResult(ctx, resp.AttemptID, "student-1")
		if err != ErrAttemptNotFound {
			t.Errorf("err = %v, want ErrAttemptNotFound", err)
		}
	})

	t.Run("teacher may read any result", func(t *testing.T) {
		fx := newFixture(t)
		resp := mustStart(t, fx, "student-1")
		if _, err := fx.service.Submit(ctx, resp.AttemptID, &AttemptProgressRequest{}, "student-1"); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}

		if _, err := fx.service.GetResult(ctx, resp.AttemptID, "teacher-1"); err != nil {
			t.Errorf("teacher read failed: %v", err)
		}
	})

	t.Run("other students read not found", func(t *testing.T) {
		fx := newFixture(t)
		resp := mustStart(t, fx, "student-1")
		if _, err := fx.service.Submit(ctx, resp.AttemptID, &AttemptProgressRequest{}, "student-1"); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}

		_, err := fx.service.GetResult(ctx, resp.AttemptID, "student-2")
		if err != ErrAttemptNotFound {
			t.Errorf("err = %v, want ErrAttemptNotFound", err)
		}
	})
}

// ===== MONITORING =====

func TestListByAssignment(t *testing.T) {
	ctx := context.Background()

	t.Run("teacher lists attempts", func(t *testing.T) {
		fx := newFixture(t)
		resp := mustStart(t, fx, "student-1")
		if _, err := fx.service.Submit(ctx, resp.AttemptID, &AttemptProgressRequest{}, "student-1"); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}

		page, err := fx.service.ListByAssignment(ctx, 5, models.ListAttemptsParams{Size: 10}, "teacher-1")
		if err != nil {
			t.Fatalf("ListByAssignment failed: %v", err)
		}
		if page.TotalElements != 1 {
			t.Errorf("TotalElements = %d, want 1", page.TotalElements)
		}
	})

	t.Run("students are rejected", func(t *testing.T) {
		fx := newFixture(t)

		_, err := fx.service.ListByAssignment(ctx, 5, models.ListAttemptsParams{Size: 10}, "student-1")
		if _, ok := err.(*PermissionError); !ok {
			t.Errorf("err = %v, want PermissionError", err)
		}
	})
}

// ===== SHUFFLE DETERMINISM =====

func TestQuestionOrderStableAcrossReads(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.repo.tests[1].ShuffleQuestions = true

	resp := mustStart(t, fx, "student-1")

	first, err := fx.service.GetByID(ctx, resp.AttemptID, "student-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	second, err := fx.service.GetByID(ctx, resp.AttemptID, "student-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	if len(first.Questions) != len(second.Questions) {
		t.Fatalf("question counts differ: %d vs %d", len(first.Questions), len(second.Questions))
	}
	for i := range first.Questions {
		if first.Questions[i].ID != second.Questions[i].ID {
			t.Fatalf("order changed between reads at position %d", i)
		}
	}
}
