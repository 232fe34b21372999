package services

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/edtestlab/exam-engine/internal/models"
)

func testGrader() GradingService {
	return NewGradingService(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestIsCorrect(t *testing.T) {
	g := testGrader()

	tests := []struct {
		name      string
		qType     models.QuestionType
		correct   string
		submitted string
		want      bool
	}{
		// singlechoice
		{"singlechoice index match", models.SingleChoice, `2`, `2`, true},
		{"singlechoice numeric string", models.SingleChoice, `2`, `"2"`, true},
		{"singlechoice mismatch", models.SingleChoice, `2`, `1`, false},
		{"singlechoice string case insensitive", models.SingleChoice, `"B"`, `"b"`, true},

		// multiplechoice: set equality, order irrelevant
		{"multiplechoice reordered", models.MultipleChoice, `[0,2]`, `[2,0]`, true},
		{"multiplechoice wrong subset", models.MultipleChoice, `[0,2]`, `[0,1]`, false},
		{"multiplechoice missing selection", models.MultipleChoice, `[0,2]`, `[0]`, false},
		{"multiplechoice extra selection", models.MultipleChoice, `[0,2]`, `[0,2,3]`, false},
		{"multiplechoice duplicated selection", models.MultipleChoice, `[0,2]`, `[0,2,2]`, false},
		{"multiplechoice scalar submitted", models.MultipleChoice, `[0]`, `0`, false},

		// truefalse coercion
		{"truefalse bool", models.TrueFalse, `true`, `true`, true},
		{"truefalse one as true", models.TrueFalse, `true`, `1`, true},
		{"truefalse yes as true", models.TrueFalse, `true`, `"yes"`, true},
		{"truefalse zero as false", models.TrueFalse, `false`, `0`, true},
		{"truefalse no as false", models.TrueFalse, `false`, `"No"`, true},
		{"truefalse wrong", models.TrueFalse, `true`, `false`, false},
		{"truefalse garbage", models.TrueFalse, `true`, `"maybe"`, false},

		// shortanswer: any-of with normalization
		{"shortanswer trims and lowers", models.ShortAnswer, `["Paris","paris "]`, `"  PARIS"`, true},
		{"shortanswer scalar accepted", models.ShortAnswer, `"Paris"`, `"paris"`, true},
		{"shortanswer numeric equivalence", models.ShortAnswer, `["42"]`, `42`, true},
		{"shortanswer wrong", models.ShortAnswer, `["Paris"]`, `"London"`, false},

		// ordering: positional
		{"ordering exact", models.Ordering, `["a","b","c"]`, `["a","b","c"]`, true},
		{"ordering swapped", models.Ordering, `["a","b","c"]`, `["b","a","c"]`, false},
		{"ordering short", models.Ordering, `["a","b","c"]`, `["a","b"]`, false},

		// matching: object pairs or positional array
		{"matching object", models.Matching, `{"h2o":"water","nacl":"salt"}`, `{"nacl":"Salt","h2o":"WATER"}`, true},
		{"matching object wrong pair", models.Matching, `{"h2o":"water","nacl":"salt"}`, `{"h2o":"salt","nacl":"water"}`, false},
		{"matching array positional", models.Matching, `["water","salt"]`, `["water","salt"]`, true},
		{"matching array swapped", models.Matching, `["water","salt"]`, `["salt","water"]`, false},

		// fillblanks: every blank in position, alternatives allowed
		{"fillblanks all correct", models.FillBlanks, `["cat","dog"]`, `["Cat"," dog"]`, true},
		{"fillblanks alternatives", models.FillBlanks, `[["colour","color"],"red"]`, `["color","red"]`, true},
		{"fillblanks one wrong", models.FillBlanks, `["cat","dog"]`, `["cat","fox"]`, false},
		{"fillblanks length mismatch", models.FillBlanks, `["cat","dog"]`, `["cat"]`, false},

		// imagebased: shape dispatch
		{"imagebased scalar label", models.ImageBased, `"region-3"`, `"Region-3"`, true},
		{"imagebased hotspot set", models.ImageBased, `["r1","r2"]`, `["r2","r1"]`, true},
		{"imagebased hotspot wrong", models.ImageBased, `["r1","r2"]`, `["r1"]`, false},

		// degenerate inputs
		{"empty submission", models.SingleChoice, `2`, ``, false},
		{"malformed submission", models.MultipleChoice, `[0]`, `{not json`, false},
		{"unknown type", models.QuestionType("essay"), `"x"`, `"x"`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.IsCorrect(tt.qType, json.RawMessage(tt.correct), json.RawMessage(tt.submitted))
			if got != tt.want {
				t.Errorf("IsCorrect(%s, %s, %s) = %v, want %v",
					tt.qType, tt.correct, tt.submitted, got, tt.want)
			}
		})
	}
}

func TestGradeAttempt(t *testing.T) {
	g := testGrader()

	questions := []*models.Question{
		{ID: 1, QuestionType: models.SingleChoice, CorrectAnswer: []byte(`0`), Marks: 2},
		{ID: 2, QuestionType: models.TrueFalse, CorrectAnswer: []byte(`true`), Marks: 2},
		{ID: 3, QuestionType: models.ShortAnswer, CorrectAnswer: []byte(`["Paris"]`), Marks: 2},
	}

	t.Run("partial credit across questions, none within", func(t *testing.T) {
		answers := map[string]json.RawMessage{
			"1": json.RawMessage(`0`),
			"2": json.RawMessage(`false`),
			"3": json.RawMessage(`"paris"`),
		}

		grade := g.GradeAttempt(questions, answers)

		if grade.Score != 4 {
			t.Errorf("Score = %v, want 4", grade.Score)
		}
		if len(grade.Graded) != 3 {
			t.Fatalf("Graded has %d entries, want 3", len(grade.Graded))
		}
		if !grade.Graded["1"].IsCorrect || grade.Graded["1"].EarnedMarks != 2 {
			t.Errorf("question 1 graded %+v, want correct with 2 marks", grade.Graded["1"])
		}
		if grade.Graded["2"].IsCorrect || grade.Graded["2"].EarnedMarks != 0 {
			t.Errorf("question 2 graded %+v, want incorrect with 0 marks", grade.Graded["2"])
		}
	})

	t.Run("unanswered questions earn zero", func(t *testing.T) {
		grade := g.GradeAttempt(questions, map[string]json.RawMessage{})

		if grade.Score != 0 {
			t.Errorf("Score = %v, want 0", grade.Score)
		}
		for id, ga := range grade.Graded {
			if ga.IsCorrect {
				t.Errorf("question %s graded correct with no answer", id)
			}
		}
	})

	t.Run("malformed answer does not abort grading", func(t *testing.T) {
		answers := map[string]json.RawMessage{
			"1": json.RawMessage(`{broken`),
			"2": json.RawMessage(`true`),
		}

		grade := g.GradeAttempt(questions, answers)

		if grade.Score != 2 {
			t.Errorf("Score = %v, want 2", grade.Score)
		}
	})
}

func BenchmarkGradeAttempt(b *testing.B) {
	g := testGrader()

	questions := make([]*models.Question, 50)
	answers := make(map[string]json.RawMessage, 50)
	for i := range questions {
		id := uint(i + 1)
		questions[i] = &models.Question{
			ID:            id,
			QuestionType:  models.MultipleChoice,
			CorrectAnswer: []byte(`[0,2]`),
			Marks:         1,
		}
		answers[questionKey(id)] = json.RawMessage(`[2,0]`)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.GradeAttempt(questions, answers)
	}
}
