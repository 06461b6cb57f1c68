package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/vidya-go-api/internal/config"
	"github.com/noah-isme/vidya-go-api/internal/handler"
	"github.com/noah-isme/vidya-go-api/internal/models"
	"github.com/noah-isme/vidya-go-api/internal/repository"
	"github.com/noah-isme/vidya-go-api/internal/router"
	"github.com/noah-isme/vidya-go-api/internal/service"
)

const gradedReply = `ACCURACY: 82
MARKS AWARDED: 8
STRENGTHS:
- Correct definition
FEEDBACK:
Good answer overall.`

type fixedBackend struct {
	reply string
}

func (f *fixedBackend) Name() string { return "fixed" }

func (f *fixedBackend) Complete(ctx context.Context, system, user string) (string, error) {
	return f.reply, nil
}

type testIdentity struct {
	userID uint
	role   string
}

func setupPipelineApp(t *testing.T, identity *testIdentity) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:submission_handler_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Question{},
		&models.Submission{},
		&models.SubmissionStatusHistory{},
	))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	questionRepo := repository.NewQuestionRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	allocator := service.NewAttemptAllocator(submissionRepo, service.AttemptAllocatorConfig{}, logger)
	machine := service.NewStatusMachine(submissionRepo, logger)
	scorer := service.NewEvaluationScorer(&fixedBackend{reply: gradedReply}, service.EvaluationScorerConfig{}, logger)

	submissionService := service.NewSubmissionService(
		submissionRepo, questionRepo, allocator, machine, scorer,
		nil, nil, nil, validate, logger,
		service.SubmissionServiceConfig{PublishThreshold: 40},
	)
	questionService := service.NewQuestionService(questionRepo, validate, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret", SubmitRateLimit: 1000, SubmitRateWindowSeconds: 60}, router.Dependencies{
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, logger),
		QuestionHandler:   handler.NewQuestionHandler(questionService, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			c.Locals("user_id", identity.userID)
			c.Locals("user_role", identity.role)
			return c.Next()
		},
	})

	return app, db
}

func seedQuestion(t *testing.T, db *gorm.DB, mode string) models.Question {
	t.Helper()
	question := models.Question{
		Prompt:   "Explain photosynthesis.",
		MaxScore: 10,
		Mode:     mode,
	}
	require.NoError(t, db.Create(&question).Error)
	return question
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (*http.Response, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	resp.Body.Close()
	return resp, env
}

func TestSubmitEndpointAutoEvaluatesAndPublishes(t *testing.T) {
	identity := &testIdentity{userID: 1, role: "learner"}
	app, db := setupPipelineApp(t, identity)
	question := seedQuestion(t, db, models.EvaluationModeAuto)

	resp, env := doJSON(t, app, http.MethodPost, "/api/v2/answers/submissions", fiber.Map{
		"question_id": question.ID,
		"text":        "Light reactions produce ATP and NADPH.",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.True(t, env.Success)

	var created struct {
		ID               uint    `json:"id"`
		AttemptNumber    int     `json:"attempt_number"`
		MainStatus       string  `json:"main_status"`
		EvaluationStatus string  `json:"evaluation_status"`
		Evaluation       *struct {
			Score *float64 `json:"score"`
		} `json:"evaluation"`
		History []struct {
			Axis string `json:"axis"`
		} `json:"history"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	require.Equal(t, 1, created.AttemptNumber)
	require.Equal(t, models.EvaluationStatusAuto, created.EvaluationStatus)
	require.Equal(t, models.MainStatusPublished, created.MainStatus)
	require.NotNil(t, created.Evaluation)
	require.NotNil(t, created.Evaluation.Score)
	require.InDelta(t, 82, *created.Evaluation.Score, 0.001)
	require.Len(t, created.History, 3)
}

func TestSubmitEndpointRejectsEmptyBody(t *testing.T) {
	identity := &testIdentity{userID: 1, role: "learner"}
	app, db := setupPipelineApp(t, identity)
	question := seedQuestion(t, db, models.EvaluationModeAuto)

	resp, env := doJSON(t, app, http.MethodPost, "/api/v2/answers/submissions", fiber.Map{
		"question_id": question.ID,
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "NO_CONTENT", env.Code)
}

func TestSubmitEndpointUnknownQuestion(t *testing.T) {
	identity := &testIdentity{userID: 1, role: "learner"}
	app, _ := setupPipelineApp(t, identity)

	resp, env := doJSON(t, app, http.MethodPost, "/api/v2/answers/submissions", fiber.Map{
		"question_id": 12345,
		"text":        "answer",
	})
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.Equal(t, "QUESTION_NOT_FOUND", env.Code)
}

func TestSubmitEndpointEnforcesAttemptCap(t *testing.T) {
	identity := &testIdentity{userID: 1, role: "learner"}
	app, db := setupPipelineApp(t, identity)
	question := seedQuestion(t, db, models.EvaluationModeAuto)

	body := fiber.Map{"question_id": question.ID, "text": "try again"}
	for i := 0; i < models.MaxAttempts; i++ {
		resp, _ := doJSON(t, app, http.MethodPost, "/api/v2/answers/submissions", body)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	}

	resp, env := doJSON(t, app, http.MethodPost, "/api/v2/answers/submissions", body)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	require.Equal(t, "LIMIT_EXCEEDED", env.Code)
}

func TestManualEvaluationEndpointRoleGate(t *testing.T) {
	identity := &testIdentity{userID: 2, role: "learner"}
	app, db := setupPipelineApp(t, identity)
	question := seedQuestion(t, db, models.EvaluationModeManual)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v2/answers/submissions", fiber.Map{
		"question_id": question.ID,
		"text":        "an essay",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	// learners may not record verdicts
	resp, _ = doJSON(t, app, http.MethodPost, "/api/v2/answers/submissions/1/evaluation", fiber.Map{
		"score": 70, "marks": 7,
	})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	identity.role = "evaluator"
	resp, env := doJSON(t, app, http.MethodPost, "/api/v2/answers/submissions/1/evaluation", fiber.Map{
		"score": 70, "marks": 7, "publish": true,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var evaluated struct {
		EvaluationStatus string `json:"evaluation_status"`
		MainStatus       string `json:"main_status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &evaluated))
	require.Equal(t, models.EvaluationStatusManual, evaluated.EvaluationStatus)
	require.Equal(t, models.MainStatusPublished, evaluated.MainStatus)

	// a second verdict is rejected
	resp, env = doJSON(t, app, http.MethodPost, "/api/v2/answers/submissions/1/evaluation", fiber.Map{
		"score": 75, "marks": 8,
	})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	require.Equal(t, "ALREADY_EVALUATED", env.Code)
}

func TestTransitionEndpointRequiresAdmin(t *testing.T) {
	identity := &testIdentity{userID: 3, role: "evaluator"}
	app, db := setupPipelineApp(t, identity)
	question := seedQuestion(t, db, models.EvaluationModeManual)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v2/answers/submissions", fiber.Map{
		"question_id": question.ID,
		"text":        "answer",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/v2/answers/submissions/1/transition", fiber.Map{
		"axis": "popularity", "value": "popular",
	})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	identity.role = "admin"
	resp, env := doJSON(t, app, http.MethodPost, "/api/v2/answers/submissions/1/transition", fiber.Map{
		"axis": "popularity", "value": "popular", "reason": "showcase",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var updated struct {
		PopularityStatus string `json:"popularity_status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	require.Equal(t, models.PopularityStatusPopular, updated.PopularityStatus)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/v2/answers/submissions/1/transition", fiber.Map{
		"axis": "popularity", "value": "trending",
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestListEndpointFiltersByQuestion(t *testing.T) {
	identity := &testIdentity{userID: 4, role: "learner"}
	app, db := setupPipelineApp(t, identity)
	first := seedQuestion(t, db, models.EvaluationModeAuto)
	second := seedQuestion(t, db, models.EvaluationModeAuto)

	for _, q := range []models.Question{first, second} {
		resp, _ := doJSON(t, app, http.MethodPost, "/api/v2/answers/submissions", fiber.Map{
			"question_id": q.ID,
			"text":        "answer",
		})
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	}

	resp, env := doJSON(t, app, http.MethodGet, "/api/v2/answers/submissions?question_id="+strconv.Itoa(int(first.ID)), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var listed []struct {
		QuestionID uint `json:"question_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	require.Len(t, listed, 1)
	require.Equal(t, first.ID, listed[0].QuestionID)
}
