package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"xengage/pkg/collector"
	"xengage/pkg/logger"
)

// Job names one post to collect engagement for.
type Job struct {
	PostID  string
	PostURL string
}

// JobResult represents the outcome of one post's collection run.
type JobResult struct {
	Job        Job
	Result     *collector.Result
	ExportPath string
	ReportPath string
	Error      error
	Duration   time.Duration
}

// Pipeline runs the per-post stages a worker schedules: collect, export the
// workbook, write the run report. Implementations hand every collection the
// same rate-limit window; the pool itself never touches the API budget.
type Pipeline interface {
	Collect(ctx context.Context, job Job) (*collector.Result, error)
	Export(res *collector.Result) (string, error)
	Report(res *collector.Result, exportPath string) (string, error)
}

// Pool manages concurrent collection workers.
type Pool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan JobResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	pipeline    Pipeline
	logger      logger.Logger
}

// NewPool creates a collection worker pool. Workers inherit ctx, so
// cancelling it aborts in-flight collections between their discrete steps.
func NewPool(ctx context.Context, numWorkers int, pipeline Pipeline, log logger.Logger) *Pool {
	ctx, cancel := context.WithCancel(ctx)

	if log == nil {
		log = logger.GetLogger()
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}

	return &Pool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan JobResult, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		pipeline:    pipeline,
		logger:      log,
	}
}

// Start initializes and starts all workers
func (p *Pool) Start() {
	p.logger.InfoWithFields("starting collection pool", map[string]interface{}{
		"num_workers": p.numWorkers,
	})

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop gracefully shuts down the worker pool
func (p *Pool) Stop() {
	p.logger.Info("stopping collection pool")

	// Close job queue to signal no more jobs will be added
	close(p.jobQueue)

	// Wait for all workers to finish processing remaining jobs
	p.wg.Wait()

	// Close result queue
	close(p.resultQueue)

	// Cancel context
	p.cancel()

	p.logger.Info("collection pool stopped")
}

// Submit adds a new collection job to the queue
func (p *Pool) Submit(job Job) error {
	select {
	case p.jobQueue <- job:
		p.logger.DebugWithFields("job submitted to queue", map[string]interface{}{
			"post_id": job.PostID,
		})
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("collection pool is shutting down")
	}
}

// Results returns the result channel for consuming collection outcomes
func (p *Pool) Results() <-chan JobResult {
	return p.resultQueue
}

// worker is the main worker routine
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	p.logger.DebugWithFields("worker started", map[string]interface{}{
		"worker_id": id,
	})

	for job := range p.jobQueue {
		// Check if context is cancelled
		select {
		case <-p.ctx.Done():
			p.logger.DebugWithFields("worker stopping - context cancelled", map[string]interface{}{
				"worker_id": id,
			})
			return
		default:
		}

		result := p.processJob(job, id)

		select {
		case p.resultQueue <- result:
		case <-p.ctx.Done():
			p.logger.DebugWithFields("worker stopping - context cancelled while sending result", map[string]interface{}{
				"worker_id": id,
			})
			return
		}
	}

	p.logger.DebugWithFields("worker stopping - job queue closed", map[string]interface{}{
		"worker_id": id,
	})
}

// processJob runs one post through the pipeline. A failed collection still
// exports whatever partial data it produced; the error rides along in the
// result so the caller can report both.
func (p *Pool) processJob(job Job, workerID int) JobResult {
	start := time.Now()
	result := JobResult{Job: job}

	p.logger.DebugWithFields("worker processing job", map[string]interface{}{
		"worker_id": workerID,
		"post_id":   job.PostID,
	})

	res, err := p.pipeline.Collect(p.ctx, job)
	result.Result = res
	if err != nil {
		result.Error = fmt.Errorf("collection failed: %w", err)

		p.logger.ErrorWithFields("worker failed to collect post", map[string]interface{}{
			"worker_id": workerID,
			"post_id":   job.PostID,
			"error":     err.Error(),
		})
	}

	if res == nil || res.Empty() {
		result.Duration = time.Since(start)
		return result
	}

	exportPath, err := p.pipeline.Export(res)
	if err != nil {
		if result.Error == nil {
			result.Error = fmt.Errorf("export failed: %w", err)
		}
		result.Duration = time.Since(start)

		p.logger.ErrorWithFields("worker failed to export workbook", map[string]interface{}{
			"worker_id": workerID,
			"post_id":   job.PostID,
			"error":     err.Error(),
		})

		return result
	}
	result.ExportPath = exportPath

	// Report writes are best effort; the workbook already exists.
	reportPath, err := p.pipeline.Report(res, exportPath)
	if err != nil {
		p.logger.WarnWithFields("run report write failed", map[string]interface{}{
			"worker_id": workerID,
			"post_id":   job.PostID,
			"error":     err.Error(),
		})
	} else {
		result.ReportPath = reportPath
	}

	result.Duration = time.Since(start)

	p.logger.DebugWithFields("worker completed job", map[string]interface{}{
		"worker_id": workerID,
		"post_id":   job.PostID,
		"records":   len(res.Combined),
		"duration":  result.Duration,
	})

	return result
}

// GetQueueSize returns the current number of jobs in the queue
func (p *Pool) GetQueueSize() int {
	return len(p.jobQueue)
}

// GetActiveWorkers returns the number of active workers
func (p *Pool) GetActiveWorkers() int {
	return p.numWorkers
}
