package queue

import (
	"context"
	"log"
	"sync"
	"time"
)

// Worker consumes jobs sequentially from a queue. Settlement ordering relies
// on the single consumer goroutine.
type Worker struct {
	dequeuer Dequeuer
	handlers map[JobType]Handler
	mu       sync.RWMutex
	quit     chan struct{}
	wg       sync.WaitGroup
}

// NewWorker creates a new worker
func NewWorker(dequeuer Dequeuer) *Worker {
	return &Worker{
		dequeuer: dequeuer,
		handlers: make(map[JobType]Handler),
		quit:     make(chan struct{}),
	}
}

// RegisterHandler registers a handler for a job type
func (w *Worker) RegisterHandler(jobType JobType, handler Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

// Start begins consuming jobs until Stop is called
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
	log.Println("queue worker started")
}

// Stop stops the worker and waits for the in-flight job to finish
func (w *Worker) Stop() {
	close(w.quit)
	w.wg.Wait()
	log.Println("queue worker stopped")
}

func (w *Worker) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.quit:
			return
		default:
		}

		job, err := w.dequeuer.Dequeue(context.Background(), time.Second)
		if err != nil {
			log.Printf("error dequeueing job: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		w.dispatch(job)
	}
}

func (w *Worker) dispatch(job *Job) {
	w.mu.RLock()
	handler, ok := w.handlers[job.Type]
	w.mu.RUnlock()
	if !ok {
		log.Printf("no handler registered for job type %s, dropping job %s", job.Type, job.ID)
		return
	}

	if err := handler(context.Background(), *job); err != nil {
		log.Printf("job %s (%s) failed: %v", job.ID, job.Type, err)
	}
}
