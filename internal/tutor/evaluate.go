package tutor

import (
	"context"
	"fmt"
	"strings"

	"github.com/echotutor/tutor-service/internal/dashscope"
	"github.com/echotutor/tutor-service/internal/model"
	"github.com/echotutor/tutor-service/internal/observability"
)

const (
	// InvalidQuestionMessage is returned for a question index outside the latest result
	InvalidQuestionMessage = "Invalid question ID"
	// EvaluationErrorMessage is returned when the question cannot be graded
	EvaluationErrorMessage = "评估答案时出错，请重试。"

	evaluationSystemPrompt = "你是一位耐心的语言导师。评估学生的答案并提供建设性的反馈。"
)

// Evaluate grades answer against question questionIndex of latest. The
// correctness flag is a case-insensitive trimmed comparison; the explanation
// comes from the model and is not reconciled with the flag.
func (t *Tutor) Evaluate(ctx context.Context, latest *model.SectionResult, answer string, questionIndex int) model.Feedback {
	feedback := model.Feedback{NextAction: model.NextActionContinue}

	if latest == nil || questionIndex < 0 || questionIndex >= len(latest.Questions) {
		feedback.Explanation = InvalidQuestionMessage
		return feedback
	}

	question := latest.Questions[questionIndex]
	if strings.TrimSpace(question.CorrectAnswer) == "" {
		t.logger.Warn().Int("question", questionIndex).Msg("question has no correct answer")
		feedback.Explanation = EvaluationErrorMessage
		return feedback
	}

	reply := t.service.Converse(ctx, []dashscope.Message{
		{Role: "system", Content: evaluationSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("问题：%s\n正确答案：%s\n学生的答案：%s\n\n学生答对了吗？请提供反馈。",
			question.Question, question.CorrectAnswer, answer)},
	})
	if reply.Degraded {
		t.logger.Warn().Err(reply.Err).Msg("answer feedback degraded")
	}

	feedback.IsCorrect = normalizeAnswer(answer) == normalizeAnswer(question.CorrectAnswer)
	feedback.Explanation = reply.Value
	observability.RecordAnswer(feedback.IsCorrect)
	return feedback
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
