package tutor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/echotutor/tutor-service/internal/dashscope"
	"github.com/echotutor/tutor-service/internal/model"
	"github.com/echotutor/tutor-service/internal/observability"
)

const questionSystemPrompt = `你是一位语言学习导师。根据给定的文本段落，生成2-3个问题来帮助学生理解和练习内容。

对于每个问题，请提供：
1. 问题文本
2. 3-4个选项（如适用）
3. 正确答案
4. 简短解释

请以JSON格式返回，格式如下：
[
  {
    "question": "问题内容",
    "options": ["选项A", "选项B", "选项C", "选项D"],
    "correct_answer": "选项A",
    "explanation": "解释为什么这是正确答案"
  }
]
`

const questionUserPrefix = "请为以下文本生成学习问题：\n\n"

// FallbackQuestions are used whenever the model output cannot be parsed
func FallbackQuestions() []model.Question {
	return []model.Question{
		{
			Question:      "这段文字的主要内容是什么？",
			Options:       []string{"选项A", "选项B", "选项C", "选项D"},
			CorrectAnswer: "选项A",
			Explanation:   "这段文字主要讨论了...",
		},
		{
			Question:      "文中提到的关键信息是？",
			Options:       []string{"信息1", "信息2", "信息3", "信息4"},
			CorrectAnswer: "信息1",
			Explanation:   "根据文本内容...",
		},
	}
}

func (t *Tutor) generateQuestions(ctx context.Context, text string) []model.Question {
	prompt, trimmed := t.budget.Trim(text)
	if trimmed {
		t.logger.Debug().Int("max_tokens", t.budget.maxTokens).Msg("section trimmed for question prompt")
	}

	reply := t.service.Converse(ctx, []dashscope.Message{
		{Role: "system", Content: questionSystemPrompt},
		{Role: "user", Content: questionUserPrefix + prompt},
	})
	if reply.Degraded {
		t.logger.Warn().Err(reply.Err).Msg("question generation degraded")
	}

	questions, err := ParseQuestions(reply.Value)
	if err != nil {
		t.logger.Warn().Err(err).Str("reply", truncate(reply.Value, 120)).Msg("question parse failed, using fallback")
		observability.RecordQuestionFallback()
		return FallbackQuestions()
	}
	return questions
}

// ParseQuestions decodes a model reply into questions. Leading ```json or ```
// and a trailing ``` fence are stripped first.
func ParseQuestions(reply string) ([]model.Question, error) {
	cleaned := stripFences(reply)

	var questions []model.Question
	if err := json.Unmarshal([]byte(cleaned), &questions); err != nil {
		return nil, err
	}
	if questions == nil {
		return nil, errors.New("null question list")
	}
	return questions, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
