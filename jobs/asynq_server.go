package jobs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
)

// Worker wraps the Asynq server and optional scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// TaskHandler allows injecting custom Asynq handlers during worker setup.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// CronRegistration wires a cron expression to a prepared task.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Logger      *slog.Logger
	Concurrency int
	Handlers    []TaskHandler
	Cron        []CronRegistration
}

// LedgerHandlers returns the handler registrations for the ledger jobs.
func LedgerHandlers(gl *GLIntegrityJob, kardex *KardexReconcileJob) []TaskHandler {
	var out []TaskHandler
	if gl != nil {
		out = append(out, TaskHandler{Type: TaskGLIntegrity, Handler: gl.Handle})
	}
	if kardex != nil {
		out = append(out, TaskHandler{Type: TaskKardexReconcile, Handler: kardex.Handle})
	}
	return out
}

// LedgerCron schedules both ledger jobs. Empty specs disable the entry.
func LedgerCron(glSpec, kardexSpec string) ([]CronRegistration, error) {
	var out []CronRegistration
	if glSpec != "" {
		task, err := NewGLIntegrityTask(ScheduledPayload{RequestedBy: "scheduler"})
		if err != nil {
			return nil, err
		}
		out = append(out, CronRegistration{Spec: glSpec, Task: task})
	}
	if kardexSpec != "" {
		task, err := NewKardexReconcileTask(ScheduledPayload{RequestedBy: "scheduler"})
		if err != nil {
			return nil, err
		}
		out = append(out, CronRegistration{Spec: kardexSpec, Task: task})
	}
	return out, nil
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})
	mux := asynq.NewServeMux()
	mux.Use(loggingMiddleware(cfg.Logger))
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			continue
		}
		mux.HandleFunc(h.Type, h.Handler)
	}

	var scheduler *asynq.Scheduler
	if len(cfg.Cron) > 0 {
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})
		for _, entry := range cfg.Cron {
			if entry.Spec == "" || entry.Task == nil {
				continue
			}
			if _, err := scheduler.Register(entry.Spec, entry.Task, entry.Options...); err != nil {
				return nil, err
			}
		}
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, logger: cfg.Logger}, nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		return err
	}
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	client := asynq.NewClient(redisOpts)
	return &Client{client: client}, nil
}

// EnqueueGLIntegrity enqueues a ledger integrity check.
func (c *Client) EnqueueGLIntegrity(ctx context.Context, requestedBy string) (*asynq.TaskInfo, error) {
	task, err := NewGLIntegrityTask(ScheduledPayload{ScheduledFor: time.Now().UTC(), RequestedBy: requestedBy})
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// EnqueueKardexReconcile enqueues a Kardex sweep.
func (c *Client) EnqueueKardexReconcile(ctx context.Context, requestedBy string) (*asynq.TaskInfo, error) {
	task, err := NewKardexReconcileTask(ScheduledPayload{ScheduledFor: time.Now().UTC(), RequestedBy: requestedBy})
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// Handler exposes HTTP endpoints for job observability.
type Handler struct {
	inspector *asynq.Inspector
	logger    *slog.Logger
}

// NewHandler constructs an HTTP handler for jobs endpoints.
func NewHandler(inspector *asynq.Inspector, logger *slog.Logger) *Handler {
	return &Handler{inspector: inspector, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"queue":"default","pending":0}`))
		return
	}
	info, err := h.inspector.GetQueueInfo(QueueDefault)
	if err != nil {
		h.logger.Warn("jobs health", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	pending := 0
	queueName := QueueDefault
	if info != nil {
		pending = int(info.Pending)
		queueName = info.Queue
	}
	_, _ = w.Write([]byte(`{"queue":"` + queueName + `","pending":` + itoa(pending) + `}`))
}

func itoa(i int) string {
	return strconv.FormatInt(int64(i), 10)
}

func loggingMiddleware(logger *slog.Logger) asynq.MiddlewareFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			start := time.Now()
			err := next.ProcessTask(ctx, t)
			attrs := []any{slog.String("task", t.Type()), slog.Duration("elapsed", time.Since(start))}
			if err != nil {
				logger.Error("task failed", append(attrs, slog.Any("error", err))...)
				return err
			}
			logger.Debug("task done", attrs...)
			return nil
		})
	}
}
