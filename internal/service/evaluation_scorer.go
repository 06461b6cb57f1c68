package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/vidya-go-api/internal/models"
	"github.com/noah-isme/vidya-go-api/pkg/ai"
)

// ErrScoreOutOfRange indicates a manual score outside 0-100.
var ErrScoreOutOfRange = errors.New("score out of range")

// ErrMarksOutOfRange indicates manual marks beyond the question's maximum.
var ErrMarksOutOfRange = errors.New("marks out of range")

// ErrTooManyListItems indicates a strengths/weaknesses/suggestions list
// exceeds the configured maximum.
var ErrTooManyListItems = errors.New("too many list items")

const defaultRubric = "Grade the answer for factual accuracy, completeness and clarity. " +
	"Award partial credit for partially correct reasoning."

const fallbackFeedback = "Automatic evaluation was unavailable for this submission. " +
	"The answer has been recorded and will be reviewed."

// EvaluationOutcome is the structured result of scoring one submission.
type EvaluationOutcome struct {
	Score       float64
	Marks       float64
	Strengths   []string
	Weaknesses  []string
	Suggestions []string
	Feedback    string
	Backend     string
	Fallback    bool
}

// ManualEvaluation carries a human evaluator's verdict into validation.
type ManualEvaluation struct {
	Score       float64
	Marks       float64
	Strengths   []string
	Weaknesses  []string
	Suggestions []string
	Feedback    string
}

// EvaluationScorerConfig tunes scoring behaviour.
type EvaluationScorerConfig struct {
	MaxListItems int
}

// EvaluationScorer grades answers: automatically through a text backend in
// auto mode, or by validating a human verdict in manual mode.
type EvaluationScorer interface {
	ScoreAuto(ctx context.Context, question models.Question, texts []string) EvaluationOutcome
	ValidateManual(question models.Question, input ManualEvaluation) error
}

type evaluationScorer struct {
	backend ai.Backend
	cfg     EvaluationScorerConfig
	logger  zerolog.Logger
}

// NewEvaluationScorer constructs the scorer. A nil backend is allowed and
// degrades every auto evaluation to the fallback result.
func NewEvaluationScorer(backend ai.Backend, cfg EvaluationScorerConfig, logger zerolog.Logger) EvaluationScorer {
	if cfg.MaxListItems <= 0 {
		cfg.MaxListItems = 10
	}

	return &evaluationScorer{
		backend: backend,
		cfg:     cfg,
		logger:  logger.With().Str("component", "evaluation_scorer").Logger(),
	}
}

// ScoreAuto builds the grading prompt, invokes the backend and parses its
// reply. It never fails: backend outages and unparseable replies degrade to a
// clearly labeled fallback outcome so the pipeline always terminates with an
// evaluation object.
func (s *evaluationScorer) ScoreAuto(ctx context.Context, question models.Question, texts []string) EvaluationOutcome {
	if s.backend == nil {
		return s.fallback("no scoring backend configured")
	}

	reply, err := s.backend.Complete(ctx, gradingSystemPrompt(), buildGradingPrompt(question, texts))
	if err != nil {
		s.logger.Warn().Err(err).Uint("question_id", question.ID).Msg("scoring backend failed")
		return s.fallback(err.Error())
	}

	outcome, err := s.parseOutcome(reply, question.EffectiveMaxScore())
	if err != nil {
		s.logger.Warn().Err(err).Uint("question_id", question.ID).Msg("could not parse scoring reply")
		return s.fallback(err.Error())
	}

	outcome.Backend = s.backend.Name()
	return outcome
}

// ValidateManual range-checks a human verdict against the question.
func (s *evaluationScorer) ValidateManual(question models.Question, input ManualEvaluation) error {
	if input.Score < 0 || input.Score > 100 {
		return ErrScoreOutOfRange
	}
	if input.Marks < 0 || input.Marks > question.EffectiveMaxScore() {
		return ErrMarksOutOfRange
	}
	for _, list := range [][]string{input.Strengths, input.Weaknesses, input.Suggestions} {
		if len(list) > s.cfg.MaxListItems {
			return ErrTooManyListItems
		}
	}
	return nil
}

func (s *evaluationScorer) fallback(reason string) EvaluationOutcome {
	name := "none"
	if s.backend != nil {
		name = s.backend.Name()
	}
	return EvaluationOutcome{
		Feedback: fmt.Sprintf("%s (%s)", fallbackFeedback, reason),
		Backend:  name,
		Fallback: true,
	}
}

func gradingSystemPrompt() string {
	return "You are an examiner grading a learner's written answer to a subjective question. " +
		"Reply in plain text using exactly these sections, in this order:\n" +
		"ACCURACY: <number 0-100>\n" +
		"MARKS AWARDED: <number, at most the maximum marks>\n" +
		"STRENGTHS:\n- <one strength per line>\n" +
		"WEAKNESSES:\n- <one weakness per line>\n" +
		"SUGGESTIONS:\n- <one suggestion per line>\n" +
		"FEEDBACK:\n<a short paragraph for the learner>"
}

func buildGradingPrompt(question models.Question, texts []string) string {
	guideline := strings.TrimSpace(question.Guideline)
	if guideline == "" {
		guideline = defaultRubric
	}

	builder := strings.Builder{}
	builder.WriteString("# Question\n")
	builder.WriteString(question.Prompt)
	builder.WriteString("\n\n# Grading Guideline\n")
	builder.WriteString(guideline)
	builder.WriteString(fmt.Sprintf("\n\n# Maximum Marks\n%g", question.EffectiveMaxScore()))
	builder.WriteString("\n\n# Learner Answer\n")
	builder.WriteString(strings.TrimSpace(strings.Join(texts, "\n\n")))
	return builder.String()
}

// parseOutcome reads the fixed section-header grammar: a header line starts a
// section, list sections take "- " bullets, FEEDBACK takes free lines until
// the next header. At least one numeric section must parse.
func (s *evaluationScorer) parseOutcome(reply string, maxMarks float64) (EvaluationOutcome, error) {
	outcome := EvaluationOutcome{}
	section := ""
	numericSeen := false

	appendItem := func(list []string, line string) []string {
		item := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(line, "- "), "* "))
		if item == "" || len(list) >= s.cfg.MaxListItems {
			return list
		}
		return append(list, item)
	}

	var feedback []string

	for _, raw := range strings.Split(reply, "\n") {
		line := strings.TrimSpace(raw)
		upper := strings.ToUpper(line)

		switch {
		case strings.HasPrefix(upper, "ACCURACY:"):
			if value, ok := parseLeadingNumber(line[len("ACCURACY:"):]); ok {
				outcome.Score = clamp(value, 0, 100)
				numericSeen = true
			}
			section = ""
		case strings.HasPrefix(upper, "MARKS AWARDED:"):
			if value, ok := parseLeadingNumber(line[len("MARKS AWARDED:"):]); ok {
				outcome.Marks = clamp(value, 0, maxMarks)
				numericSeen = true
			}
			section = ""
		case strings.HasPrefix(upper, "STRENGTHS:"):
			section = "strengths"
		case strings.HasPrefix(upper, "WEAKNESSES:"):
			section = "weaknesses"
		case strings.HasPrefix(upper, "SUGGESTIONS:"):
			section = "suggestions"
		case strings.HasPrefix(upper, "FEEDBACK:"):
			section = "feedback"
			if rest := strings.TrimSpace(line[len("FEEDBACK:"):]); rest != "" {
				feedback = append(feedback, rest)
			}
		default:
			switch section {
			case "strengths":
				outcome.Strengths = appendItem(outcome.Strengths, line)
			case "weaknesses":
				outcome.Weaknesses = appendItem(outcome.Weaknesses, line)
			case "suggestions":
				outcome.Suggestions = appendItem(outcome.Suggestions, line)
			case "feedback":
				if line != "" {
					feedback = append(feedback, line)
				}
			}
		}
	}

	if !numericSeen {
		return EvaluationOutcome{}, fmt.Errorf("no numeric section found in scoring reply")
	}

	outcome.Feedback = strings.Join(feedback, "\n")
	return outcome, nil
}

func parseLeadingNumber(rest string) (float64, bool) {
	fields := strings.Fields(strings.TrimSpace(rest))
	if len(fields) == 0 {
		return 0, false
	}
	token := strings.TrimSuffix(strings.TrimSuffix(fields[0], "%"), "/100")
	value, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func clamp(value, low, high float64) float64 {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
