package grading

import (
	"testing"

	"github.com/google/uuid"

	"github.com/cardlet/cardlet-backend/internal/model"
)

func strPtr(s string) *string { return &s }

func optionAnswer(id uuid.UUID) model.TestAnswer {
	return model.TestAnswer{SelectedOptionID: &id}
}

func textAnswer(s string) model.TestAnswer {
	return model.TestAnswer{TextAnswer: strPtr(s)}
}

func makeQuestion(typ model.QuestionType, points int, correct ...bool) (*model.QuizQuestion, []uuid.UUID) {
	q := &model.QuizQuestion{
		ID:     uuid.New(),
		Type:   typ,
		Points: points,
	}
	ids := make([]uuid.UUID, len(correct))
	for i, c := range correct {
		ids[i] = uuid.New()
		q.Options = append(q.Options, model.QuizQuestionOption{
			ID:             ids[i],
			QuizQuestionID: q.ID,
			IsCorrect:      c,
		})
	}
	return q, ids
}

func TestGradeSingleSelect(t *testing.T) {
	q, ids := makeQuestion(model.QuestionTypeSingleSelect, 5, true, false, false)

	tests := []struct {
		name    string
		answers []model.TestAnswer
		want    bool
	}{
		{"correct option", []model.TestAnswer{optionAnswer(ids[0])}, true},
		{"wrong option", []model.TestAnswer{optionAnswer(ids[1])}, false},
		{"no answers", nil, false},
		{"correct plus extra", []model.TestAnswer{optionAnswer(ids[0]), optionAnswer(ids[1])}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GradeQuestion(q, tt.answers); got != tt.want {
				t.Errorf("GradeQuestion() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGradeMultiSelect(t *testing.T) {
	q, ids := makeQuestion(model.QuestionTypeMultiSelect, 10, true, true, false)

	tests := []struct {
		name    string
		answers []model.TestAnswer
		want    bool
	}{
		{"exact correct set", []model.TestAnswer{optionAnswer(ids[0]), optionAnswer(ids[1])}, true},
		{"order irrelevant", []model.TestAnswer{optionAnswer(ids[1]), optionAnswer(ids[0])}, true},
		{"subset only", []model.TestAnswer{optionAnswer(ids[0])}, false},
		{"superset", []model.TestAnswer{optionAnswer(ids[0]), optionAnswer(ids[1]), optionAnswer(ids[2])}, false},
		{"disjoint", []model.TestAnswer{optionAnswer(ids[2])}, false},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GradeQuestion(q, tt.answers); got != tt.want {
				t.Errorf("GradeQuestion() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGradeFreeText(t *testing.T) {
	q := &model.QuizQuestion{ID: uuid.New(), Type: model.QuestionTypeFreeText, Points: 3}

	tests := []struct {
		name    string
		answers []model.TestAnswer
		want    bool
	}{
		{"non-empty text", []model.TestAnswer{textAnswer("photosynthesis")}, true},
		{"whitespace only", []model.TestAnswer{textAnswer("   ")}, false},
		{"empty string", []model.TestAnswer{textAnswer("")}, false},
		{"no answers", nil, false},
		{"two answers", []model.TestAnswer{textAnswer("a"), textAnswer("b")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GradeQuestion(q, tt.answers); got != tt.want {
				t.Errorf("GradeQuestion() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGradeTestSumsPoints(t *testing.T) {
	q1, ids1 := makeQuestion(model.QuestionTypeSingleSelect, 5, true, false)
	q2, ids2 := makeQuestion(model.QuestionTypeMultiSelect, 10, true, true)
	q3, _ := makeQuestion(model.QuestionTypeSingleSelect, 7, true, false)

	questions := []model.QuizQuestion{*q1, *q2, *q3}
	answers := map[uuid.UUID][]model.TestAnswer{
		q1.ID: {optionAnswer(ids1[0])},
		q2.ID: {optionAnswer(ids2[0]), optionAnswer(ids2[1])},
		// q3 unanswered.
	}

	correct, score := GradeTest(questions, answers)

	if score != 15 {
		t.Errorf("score = %d, want 15", score)
	}
	if len(correct) != 3 {
		t.Fatalf("graded %d questions, want 3", len(correct))
	}
	if !correct[q1.ID] || !correct[q2.ID] {
		t.Error("expected q1 and q2 to grade correct")
	}
	if correct[q3.ID] {
		t.Error("unanswered question graded correct")
	}
}

func TestGradeSelectNoCorrectOptions(t *testing.T) {
	// A select question with no correct options can never be answered
	// correctly, even with an empty selection.
	q, ids := makeQuestion(model.QuestionTypeSingleSelect, 5, false, false)
	if GradeQuestion(q, []model.TestAnswer{optionAnswer(ids[0])}) {
		t.Error("question with no answer key graded correct")
	}
}

func TestValidateAnswers(t *testing.T) {
	single, singleIDs := makeQuestion(model.QuestionTypeSingleSelect, 1, true, false)
	multi, multiIDs := makeQuestion(model.QuestionTypeMultiSelect, 1, true, true, false)
	free := &model.QuizQuestion{ID: uuid.New(), Type: model.QuestionTypeFreeText}
	foreign := uuid.New()

	tests := []struct {
		name    string
		q       *model.QuizQuestion
		answers []model.TestAnswer
		wantErr bool
	}{
		{"single one option", single, []model.TestAnswer{optionAnswer(singleIDs[0])}, false},
		{"single two options", single, []model.TestAnswer{optionAnswer(singleIDs[0]), optionAnswer(singleIDs[1])}, true},
		{"single text answer", single, []model.TestAnswer{textAnswer("x")}, true},
		{"single unknown option", single, []model.TestAnswer{optionAnswer(foreign)}, true},
		{"multi several options", multi, []model.TestAnswer{optionAnswer(multiIDs[0]), optionAnswer(multiIDs[2])}, false},
		{"multi duplicate option", multi, []model.TestAnswer{optionAnswer(multiIDs[0]), optionAnswer(multiIDs[0])}, true},
		{"free text", free, []model.TestAnswer{textAnswer("hello")}, false},
		{"free with option", free, []model.TestAnswer{optionAnswer(foreign)}, true},
		{"free two answers", free, []model.TestAnswer{textAnswer("a"), textAnswer("b")}, true},
		{"empty set", single, nil, true},
		{"both option and text", single, []model.TestAnswer{{SelectedOptionID: &singleIDs[0], TextAnswer: strPtr("x")}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAnswers(tt.q, tt.answers)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAnswers() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
