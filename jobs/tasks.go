package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/openfreight/linehaul/internal/jobs"
	"github.com/openfreight/linehaul/internal/recon"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeAutoMatch is the task type for the nightly invoice matcher.
	TaskTypeAutoMatch = "recon:auto_match"
)

// AutoMatchPayload describes an auto-match run request.
type AutoMatchPayload struct {
	ActorID int64 `json:"actor_id"`
}

// NewAutoMatchTask constructs an Asynq task.
func NewAutoMatchTask(payload AutoMatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAutoMatch, data), nil
}

// AutoMatchJob runs the batch invoice matcher from the queue.
type AutoMatchJob struct {
	service *recon.Service
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewAutoMatchJob constructs the job.
func NewAutoMatchJob(service *recon.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *AutoMatchJob {
	return &AutoMatchJob{service: service, logger: logger, metrics: metrics}
}

// Handle processes TaskTypeAutoMatch tasks.
func (j *AutoMatchJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload AutoMatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics.Track("auto_match")
	report, err := j.service.AutoMatchAll(ctx, payload.ActorID)
	if err != nil {
		j.logger.Error("auto-match job failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics.AddMatched(report.Matched)
	j.logger.Info("auto-match job finished",
		slog.Int("total", report.TotalCandidates),
		slog.Int("matched", report.Matched),
		slog.Int("unmatched", report.Unmatched))
	return tracker.End(nil)
}
