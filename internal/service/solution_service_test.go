package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/designhub-api/internal/dto"
	"github.com/noah-isme/designhub-api/internal/models"
	"github.com/noah-isme/designhub-api/internal/repository"
)

type solutionFixture struct {
	db          *gorm.DB
	service     SolutionService
	jobs        repository.EvaluationJobRepository
	notifier    *recordingNotifier
	task        models.Task
	freeProfile models.Profile
	proProfile  models.Profile
}

func newSolutionFixture(t *testing.T) solutionFixture {
	t.Helper()
	db := newServiceTestDB(t)
	validate := newValidator()
	limits := PlanLimits{FreeCharLimit: 40, ProCharLimit: 200}
	notifier := &recordingNotifier{}
	jobs := repository.NewEvaluationJobRepository(db)

	profiles := NewProfileService(repository.NewProfileRepository(db), limits, validate, zerolog.Nop())
	svc := NewSolutionService(
		repository.NewSolutionRepository(db),
		jobs,
		repository.NewTaskRepository(db),
		profiles,
		notifier,
		validate,
		zerolog.Nop(),
		SolutionConfig{Limits: limits, MaxAttempts: 3},
	)

	return solutionFixture{
		db:          db,
		service:     svc,
		jobs:        jobs,
		notifier:    notifier,
		task:        seedServiceTask(t, db),
		freeProfile: seedProfile(t, db, "free@designhub.test", models.PlanFree, models.RoleStudent),
		proProfile:  seedProfile(t, db, "pro@designhub.test", models.PlanPro, models.RoleStudent),
	}
}

func TestSolutionServiceSubmitQueuesEvaluation(t *testing.T) {
	f := newSolutionFixture(t)

	resp, err := f.service.Submit(context.Background(), f.freeProfile.ID, f.task.ID, dto.SolutionSubmitRequest{
		Description:     "I would redesign the onboarding flow...",
		TaskDescription: "Custom brief",
	})
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, models.SolutionStatusPending, resp.Status)
	require.NotZero(t, resp.SolutionID)

	job, err := f.jobs.GetBySolution(context.Background(), resp.SolutionID)
	require.NoError(t, err)
	require.Equal(t, models.EvaluationJobQueued, job.Status)
	require.Equal(t, "Custom brief", job.TaskDescription)
	require.Equal(t, 3, job.MaxAttempts)
}

func TestSolutionServiceSubmitFallsBackToTaskDescription(t *testing.T) {
	f := newSolutionFixture(t)

	resp, err := f.service.Submit(context.Background(), f.freeProfile.ID, f.task.ID, dto.SolutionSubmitRequest{Description: "short answer"})
	require.NoError(t, err)

	job, err := f.jobs.GetBySolution(context.Background(), resp.SolutionID)
	require.NoError(t, err)
	require.Equal(t, f.task.Description, job.TaskDescription)
}

func TestSolutionServiceMentorCheckForProSkipsQueue(t *testing.T) {
	f := newSolutionFixture(t)

	resp, err := f.service.Submit(context.Background(), f.proProfile.ID, f.task.ID, dto.SolutionSubmitRequest{Description: "please review", MentorCheck: true})
	require.NoError(t, err)
	require.Equal(t, models.SolutionStatusMentorReview, resp.Status)

	_, err = f.jobs.GetBySolution(context.Background(), resp.SolutionID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSolutionServiceSubmitGuards(t *testing.T) {
	f := newSolutionFixture(t)
	ctx := context.Background()

	_, err := f.service.Submit(ctx, f.freeProfile.ID, f.task.ID, dto.SolutionSubmitRequest{Description: "review", MentorCheck: true})
	require.ErrorIs(t, err, ErrUpgradeRequired)

	_, err = f.service.Submit(ctx, f.freeProfile.ID, f.task.ID, dto.SolutionSubmitRequest{Description: "этот ответ определённо длиннее сорока символов"})
	require.ErrorIs(t, err, ErrCharLimitExceeded)

	_, err = f.service.Submit(ctx, f.proProfile.ID, f.task.ID, dto.SolutionSubmitRequest{Description: "этот ответ определённо длиннее сорока символов"})
	require.NoError(t, err, "pro plan allows longer answers")

	_, err = f.service.Submit(ctx, 999, f.task.ID, dto.SolutionSubmitRequest{Description: "answer"})
	require.ErrorIs(t, err, ErrProfileNotFound)

	_, err = f.service.Submit(ctx, 0, f.task.ID, dto.SolutionSubmitRequest{Description: "answer"})
	require.ErrorIs(t, err, ErrProfileNotFound)

	_, err = f.service.Submit(ctx, f.freeProfile.ID, 999, dto.SolutionSubmitRequest{Description: "answer"})
	require.ErrorIs(t, err, ErrTaskNotFound)

	_, err = f.service.Submit(ctx, f.freeProfile.ID, f.task.ID, dto.SolutionSubmitRequest{Description: "   "})
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)

	var count int64
	require.NoError(t, f.db.Model(&models.TaskSolution{}).Count(&count).Error)
	require.Equal(t, int64(1), count, "rejected submissions must not be stored")
}

func TestSolutionServiceGetMinePendingHasNoEvaluation(t *testing.T) {
	f := newSolutionFixture(t)
	ctx := context.Background()

	empty, err := f.service.GetMine(ctx, f.task.ID, f.freeProfile.ID)
	require.NoError(t, err)
	require.Nil(t, empty.Solution)

	_, err = f.service.Submit(ctx, f.freeProfile.ID, f.task.ID, dto.SolutionSubmitRequest{Description: "answer"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		mine, err := f.service.GetMine(ctx, f.task.ID, f.freeProfile.ID)
		require.NoError(t, err)
		require.NotNil(t, mine.Solution)
		require.Equal(t, models.SolutionStatusPending, mine.Solution.Status)
		require.Nil(t, mine.Solution.Evaluation)
	}
}

func TestSolutionServiceGetMineReturnsLatestSubmission(t *testing.T) {
	f := newSolutionFixture(t)
	ctx := context.Background()

	first, err := f.service.Submit(ctx, f.freeProfile.ID, f.task.ID, dto.SolutionSubmitRequest{Description: "first try"})
	require.NoError(t, err)
	second, err := f.service.Submit(ctx, f.freeProfile.ID, f.task.ID, dto.SolutionSubmitRequest{Description: "second try"})
	require.NoError(t, err)
	require.NotEqual(t, first.SolutionID, second.SolutionID)

	mine, err := f.service.GetMine(ctx, f.task.ID, f.freeProfile.ID)
	require.NoError(t, err)
	require.Equal(t, second.SolutionID, mine.Solution.ID)
	require.Equal(t, "second try", mine.Solution.Description)

	history, err := f.service.History(ctx, f.task.ID, f.freeProfile.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, second.SolutionID, history[0].ID)
}

func TestSolutionServiceReviewMentorSolution(t *testing.T) {
	f := newSolutionFixture(t)
	ctx := context.Background()
	mentor := seedProfile(t, f.db, "mentor@designhub.test", models.PlanPro, models.RoleMentor)

	submitted, err := f.service.Submit(ctx, f.proProfile.ID, f.task.ID, dto.SolutionSubmitRequest{Description: "review me", MentorCheck: true})
	require.NoError(t, err)

	rating := 88
	reviewed, err := f.service.Review(ctx, submitted.SolutionID, mentor.ID, dto.SolutionReviewRequest{
		Feedback: "<b>Сильная</b> работа <script>alert(1)</script>",
		Rating:   &rating,
	})
	require.NoError(t, err)
	require.Equal(t, models.SolutionStatusReviewed, reviewed.Status)
	require.NotNil(t, reviewed.Evaluation)
	require.Equal(t, "Сильная работа", reviewed.Evaluation.Feedback)
	require.Equal(t, 88, reviewed.Evaluation.Rating)
	require.NotNil(t, reviewed.ReviewedBy)
	require.Equal(t, mentor.ID, *reviewed.ReviewedBy)

	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, models.NotificationSolutionReviewed, sent[0].Type)
	require.Equal(t, f.proProfile.ID, sent[0].UserID)

	_, err = f.service.Review(ctx, submitted.SolutionID, mentor.ID, dto.SolutionReviewRequest{Feedback: "again"})
	require.ErrorIs(t, err, ErrSolutionNotAwaitingReview, "reviewed is terminal")

	_, err = f.service.Review(ctx, 12345, mentor.ID, dto.SolutionReviewRequest{Feedback: "missing"})
	require.ErrorIs(t, err, ErrSolutionNotFound)
}

func TestSolutionServiceReviewRejectsPendingSolution(t *testing.T) {
	f := newSolutionFixture(t)
	ctx := context.Background()

	submitted, err := f.service.Submit(ctx, f.freeProfile.ID, f.task.ID, dto.SolutionSubmitRequest{Description: "answer"})
	require.NoError(t, err)

	_, err = f.service.Review(ctx, submitted.SolutionID, 1, dto.SolutionReviewRequest{Feedback: "nope"})
	require.ErrorIs(t, err, ErrSolutionNotAwaitingReview)
}

func TestSolutionServiceRequeueFailedSolution(t *testing.T) {
	f := newSolutionFixture(t)
	ctx := context.Background()

	submitted, err := f.service.Submit(ctx, f.freeProfile.ID, f.task.ID, dto.SolutionSubmitRequest{Description: "answer"})
	require.NoError(t, err)

	_, err = f.service.Requeue(ctx, submitted.SolutionID)
	require.ErrorIs(t, err, ErrSolutionNotFailed)

	jobs, err := f.jobs.ClaimDue(ctx, time.Now().UTC().Add(time.Second), 1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NoError(t, f.jobs.Bury(ctx, jobs[0], map[string]interface{}{"last_error": "upstream"}))

	requeued, err := f.service.Requeue(ctx, submitted.SolutionID)
	require.NoError(t, err)
	require.Equal(t, models.SolutionStatusPending, requeued.Status)

	_, err = f.service.Requeue(ctx, 4242)
	require.ErrorIs(t, err, ErrSolutionNotFound)
}

func TestSolutionServiceListFiltersByStatus(t *testing.T) {
	f := newSolutionFixture(t)
	ctx := context.Background()

	_, err := f.service.Submit(ctx, f.proProfile.ID, f.task.ID, dto.SolutionSubmitRequest{Description: "mentor please", MentorCheck: true})
	require.NoError(t, err)
	_, err = f.service.Submit(ctx, f.freeProfile.ID, f.task.ID, dto.SolutionSubmitRequest{Description: "ai please"})
	require.NoError(t, err)

	list, err := f.service.List(ctx, dto.SolutionListFilter{Status: models.SolutionStatusMentorReview})
	require.NoError(t, err)
	require.Equal(t, 1, list.Pagination.TotalItems)
	require.Equal(t, "mentor please", list.Items[0].Description)
	require.Equal(t, "Onboarding", list.Items[0].TaskTitle)

	_, err = f.service.List(ctx, dto.SolutionListFilter{Status: "bogus"})
	require.Error(t, err)
}
