package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/domain"
	"marketplace/internal/metrics"
	"marketplace/internal/models"
	"marketplace/internal/notify"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// mailPayload is persisted in NotificationTask.Payload as JSON.
type mailPayload struct {
	Text string `json:"text,omitempty"`
	HTML string `json:"html,omitempty"`
}

// NotificationWorker consumes notification_queue tasks and hands them to a
// notify.Sender.
type NotificationWorker struct {
	repo          domain.NotificationRepository
	sender        notify.Sender
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.NotificationTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	sendTimeout   time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

// NewNotificationWorker builds a worker. redisClient may be nil, in which
// case tasks travel through the in-memory channel and the DB poll.
func NewNotificationWorker(repo domain.NotificationRepository, sender notify.Sender, redisClient *redis.Client, cfg config.NotificationConfig, logger *zerolog.Logger) *NotificationWorker {
	queueKey := cfg.QueueKey
	if queueKey == "" {
		queueKey = "notifications:queue"
	}
	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = 5 * time.Second
	}
	sendTimeout := cfg.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = time.Minute
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &NotificationWorker{
		repo:          repo,
		sender:        sender,
		redis:         redisClient,
		retryPolicy:   NewRetryPolicy(cfg),
		queue:         make(chan models.NotificationTask, models.WorkerQueueSize),
		redisQueueKey: queueKey,
		deadLetterKey: queueKey + ":deadletter",
		pollInterval:  pollInterval,
		sendTimeout:   sendTimeout,
		batchSize:     20,
		logger:        logger,
	}
}

// Enqueue persists msg and schedules it via redis or the in-memory queue.
func (w *NotificationWorker) Enqueue(ctx context.Context, msg notify.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(mailPayload{Text: msg.Text, HTML: msg.HTML})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.NotificationTask{
		Recipient: msg.To,
		Subject:   msg.Subject,
		Payload:   string(payload),
		Status:    models.TaskStatusPending,
	}
	if err := w.repo.CreateNotificationTask(ctx, &task); err != nil {
		return fmt.Errorf("persist notification task: %w", err)
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("Redis push failed, falling back to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("Memory queue full, task left to polling")
	}
	return nil
}

// Start runs the delivery loop until ctx is done.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("Notification worker started")
	defer w.logger.Info().Msg("Notification worker stopped")

	if n, err := w.repo.ResetStuckNotificationTasks(ctx); err != nil {
		w.logger.Error().Err(err).Msg("Failed to reset stuck notification tasks")
	} else if n > 0 {
		w.logger.Info().Int64("count", n).Msg("Requeued notification tasks left in processing")
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.repo.GetPendingNotificationTasks(ctx, w.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error().Err(err).Msg("Failed to fetch pending notification tasks")
			w.sleep(ctx)
			continue
		}
		if len(tasks) == 0 {
			w.sleep(ctx)
			continue
		}

		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *NotificationWorker) sleep(ctx context.Context) {
	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case t := <-w.queue:
		w.processTask(ctx, &t)
	case <-timer.C:
	}
}

func (w *NotificationWorker) tryLocalQueue() (models.NotificationTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.NotificationTask{}, false
	}
}

func (w *NotificationWorker) tryRedis(ctx context.Context) (models.NotificationTask, bool) {
	if w.redis == nil {
		return models.NotificationTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return models.NotificationTask{}, false
		}
		w.logger.Error().Err(err).Msg("Redis BRPOP failed")
		return models.NotificationTask{}, false
	}
	if len(res) != 2 {
		return models.NotificationTask{}, false
	}
	var task models.NotificationTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("Failed to decode redis notification task")
		return models.NotificationTask{}, false
	}
	return task, true
}

// processTask claims the task first so the redis and polling paths never
// deliver the same row twice.
func (w *NotificationWorker) processTask(ctx context.Context, task *models.NotificationTask) {
	claimed, err := w.repo.ClaimNotificationTask(ctx, task.ID)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to claim notification task")
		return
	}
	if !claimed {
		return
	}

	payload, err := w.decodePayload(task.Payload)
	if err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	msg := notify.Message{To: task.Recipient, Subject: task.Subject, Text: payload.Text, HTML: payload.HTML}
	if err := w.send(ctx, msg); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	if err := w.repo.UpdateNotificationTaskStatus(ctx, task.ID, models.TaskStatusCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to mark notification completed")
	}
	metrics.IncNotification("sent")
	w.logger.Debug().Int64("task_id", task.ID).Str("to", task.Recipient).Msg("Notification sent")
}

// send bounds a single delivery so a stalled relay cannot hold the loop.
func (w *NotificationWorker) send(ctx context.Context, msg notify.Message) error {
	sendCtx, cancel := context.WithTimeout(ctx, w.sendTimeout)
	defer cancel()
	return w.sender.Send(sendCtx, msg)
}

func (w *NotificationWorker) retryOrFail(ctx context.Context, task *models.NotificationTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.failTask(ctx, task, cause)
		return
	}

	nextTime := time.Now().Add(w.retryPolicy.NextDelay(attempt))
	if err := w.repo.UpdateNotificationTaskStatus(ctx, task.ID, models.TaskStatusRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to schedule notification retry")
	}
	metrics.IncNotification("retry")
	w.logger.Warn().Err(cause).Int64("task_id", task.ID).Int("attempt", attempt).Time("next_retry_at", nextTime).Msg("Notification delivery failed, will retry")
}

func (w *NotificationWorker) failTask(ctx context.Context, task *models.NotificationTask, cause error) {
	if err := w.repo.UpdateNotificationTaskStatus(ctx, task.ID, models.TaskStatusFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to mark notification failed")
	}
	metrics.IncNotification("failed")
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Str("to", task.Recipient).Msg("Notification moved to dead letter")
	w.pushDeadLetter(ctx, task)
}

func (w *NotificationWorker) decodePayload(raw string) (mailPayload, error) {
	var payload mailPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return payload, err
	}
	return payload, nil
}

func (w *NotificationWorker) pushRedis(ctx context.Context, task models.NotificationTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *NotificationWorker) pushDeadLetter(ctx context.Context, task *models.NotificationTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to encode dead letter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to push dead letter")
	}
}
