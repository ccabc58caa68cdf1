package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

type JobType string

const (
	JobImportTasks    JobType = "import_tasks"
	JobImportContacts JobType = "import_contacts"
)

const (
	StateQueued  = "queued"
	StateRunning = "running"
	StateDone    = "done"
	StateFailed  = "failed"
)

var ErrJobNotFound = errors.New("job not found")

type Job struct {
	ID        string    `json:"id"`
	Type      JobType   `json:"type"`
	UserID    uint      `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// JobStatus is what clients poll. Result holds the handler's return value
// once State is done.
type JobStatus struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	UserID    uint            `json:"user_id"`
	State     string          `json:"state"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// JobHandler runs a job once. Jobs are never retried; a failed job is
// parked on the dead queue with its error.
type JobHandler func(ctx context.Context, job *Job) (interface{}, error)

type Queue struct {
	client    *redis.Client
	name      string
	statusTTL time.Duration
}

func NewQueue(client *redis.Client, name string, statusTTL time.Duration) *Queue {
	if statusTTL <= 0 {
		statusTTL = 24 * time.Hour
	}
	return &Queue{client: client, name: name, statusTTL: statusTTL}
}

func (q *Queue) deadName() string {
	return q.name + ":dead"
}

func (q *Queue) statusKey(id string) string {
	return q.name + ":status:" + id
}

func (q *Queue) Enqueue(ctx context.Context, jobType JobType, userID uint) (Job, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return Job{}, fmt.Errorf("failed to generate job id: %w", err)
	}
	job := Job{
		ID:        id.String(),
		Type:      jobType,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}

	if err := q.setStatus(ctx, JobStatus{ID: job.ID, Type: job.Type, UserID: userID, State: StateQueued}); err != nil {
		return Job{}, err
	}
	if err := q.push(ctx, q.name, &job); err != nil {
		return Job{}, err
	}
	return job, nil
}

func (q *Queue) push(ctx context.Context, queue string, job *Job) error {
	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return q.client.RPush(ctx, queue, jobData).Err()
}

func (q *Queue) Status(ctx context.Context, id string) (JobStatus, error) {
	data, err := q.client.Get(ctx, q.statusKey(id)).Bytes()
	if err == redis.Nil {
		return JobStatus{}, ErrJobNotFound
	}
	if err != nil {
		return JobStatus{}, fmt.Errorf("failed to read job status: %w", err)
	}

	var status JobStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return JobStatus{}, fmt.Errorf("failed to unmarshal job status: %w", err)
	}
	return status, nil
}

func (q *Queue) setStatus(ctx context.Context, status JobStatus) error {
	status.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal job status: %w", err)
	}
	return q.client.Set(ctx, q.statusKey(status.ID), data, q.statusTTL).Err()
}

func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.name).Result()
}

func (q *Queue) DeadLen(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.deadName()).Result()
}

type WorkerConfig struct {
	Queue       *Queue
	Concurrency int
	PollTimeout time.Duration
	JobTimeout  time.Duration
}

type Worker struct {
	queue       *Queue
	handlers    map[JobType]JobHandler
	concurrency int
	pollTimeout time.Duration
	jobTimeout  time.Duration
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

func NewWorker(config WorkerConfig) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		queue:       config.Queue,
		handlers:    make(map[JobType]JobHandler),
		concurrency: config.Concurrency,
		pollTimeout: config.PollTimeout,
		jobTimeout:  config.JobTimeout,
		ctx:         ctx,
		cancel:      cancel,
	}
	if w.concurrency <= 0 {
		w.concurrency = 1
	}
	if w.pollTimeout <= 0 {
		w.pollTimeout = 5 * time.Second
	}
	if w.jobTimeout <= 0 {
		w.jobTimeout = 5 * time.Minute
	}
	return w
}

func (w *Worker) RegisterHandler(jobType JobType, handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

func (w *Worker) Start() {
	log.Printf("Starting import worker with %d goroutines", w.concurrency)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop()
	}
}

func (w *Worker) Stop() {
	log.Println("Stopping import worker...")
	w.cancel()
	w.wg.Wait()
	log.Println("Import worker stopped")
}

func (w *Worker) workerLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			if _, err := w.processNext(w.ctx); err != nil && w.ctx.Err() == nil {
				log.Printf("Error processing job: %v", err)
				time.Sleep(time.Second)
			}
		}
	}
}

// processNext pops one job and runs it. It reports whether a job was
// popped.
func (w *Worker) processNext(ctx context.Context) (bool, error) {
	result, err := w.queue.client.BLPop(ctx, w.pollTimeout, w.queue.name).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to pop job: %w", err)
	}

	if len(result) < 2 {
		return false, fmt.Errorf("invalid job result")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return true, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return true, w.executeJob(ctx, &job)
}

func (w *Worker) executeJob(ctx context.Context, job *Job) error {
	w.mu.RLock()
	handler, exists := w.handlers[job.Type]
	w.mu.RUnlock()

	status := JobStatus{ID: job.ID, Type: job.Type, UserID: job.UserID}

	if !exists {
		err := fmt.Errorf("no handler registered for job type: %s", job.Type)
		return w.fail(ctx, job, status, err)
	}

	log.Printf("Processing job %s of type %s", job.ID, job.Type)
	status.State = StateRunning
	if err := w.queue.setStatus(ctx, status); err != nil {
		return err
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	value, err := handler(jobCtx, job)
	if err != nil {
		log.Printf("Job %s failed: %v", job.ID, err)
		return w.fail(ctx, job, status, err)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return w.fail(ctx, job, status, fmt.Errorf("failed to marshal job result: %w", err))
	}
	status.State = StateDone
	status.Result = data

	log.Printf("Job %s completed successfully", job.ID)
	return w.queue.setStatus(ctx, status)
}

func (w *Worker) fail(ctx context.Context, job *Job, status JobStatus, jobErr error) error {
	status.State = StateFailed
	status.Error = jobErr.Error()
	if err := w.queue.setStatus(ctx, status); err != nil {
		return err
	}

	deadJob := map[string]interface{}{
		"original_job": job,
		"error":        jobErr.Error(),
		"failed_at":    time.Now(),
	}

	deadJobData, err := json.Marshal(deadJob)
	if err != nil {
		return fmt.Errorf("failed to marshal dead job: %w", err)
	}

	return w.queue.client.RPush(ctx, w.queue.deadName(), deadJobData).Err()
}
