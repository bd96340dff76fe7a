package progress

import (
	"reflect"
	"sync"
	"time"
)

// Stage represents the current stage of a run
type Stage string

const (
	StageInitializing Stage = "initializing"
	StageSplitting    Stage = "splitting"
	StageConverting   Stage = "converting"
	StageComplete     Stage = "complete"
	StageCancelled    Stage = "cancelled"
	StageError        Stage = "error"
)

// Event represents a progress event
type Event struct {
	Stage      Stage       `json:"stage"`
	Progress   float64     `json:"progress"`
	Message    string      `json:"message"`
	Timestamp  time.Time   `json:"timestamp"`
	JobDetails *JobDetails `json:"job_details,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// JobDetails describes the job an event is about and the run's tally.
type JobDetails struct {
	Source    string `json:"source"`
	Output    string `json:"output,omitempty"`
	State     string `json:"state"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Total     int    `json:"total"`
}

// ProgressTracker manages progress tracking
type ProgressTracker struct {
	mu        sync.RWMutex
	stage     Stage
	progress  float64
	message   string
	completed int
	failed    int
	total     int
	err       error
	listeners []func(Event)
}

// NewProgressTracker creates a new ProgressTracker instance
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		stage:     StageInitializing,
		listeners: make([]func(Event), 0),
	}
}

// AddListener adds a new progress event listener
func (pt *ProgressTracker) AddListener(listener func(Event)) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.listeners = append(pt.listeners, listener)
}

// RemoveListener removes a progress event listener
func (pt *ProgressTracker) RemoveListener(listener func(Event)) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	listenerPtr := reflect.ValueOf(listener).Pointer()
	for i := range pt.listeners {
		if reflect.ValueOf(pt.listeners[i]).Pointer() == listenerPtr {
			pt.listeners = append(pt.listeners[:i], pt.listeners[i+1:]...)
			break
		}
	}
}

// UpdateProgress updates the progress and notifies all listeners
func (pt *ProgressTracker) UpdateProgress(stage Stage, progress float64, message string) {
	pt.mu.Lock()
	pt.stage = stage
	pt.progress = progress
	pt.message = message
	pt.mu.Unlock()

	pt.notifyListeners(Event{
		Stage:     stage,
		Progress:  progress,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// Start resets the tally for a run of total jobs.
func (pt *ProgressTracker) Start(total int) {
	pt.mu.Lock()
	pt.total = total
	pt.completed = 0
	pt.failed = 0
	pt.mu.Unlock()

	pt.UpdateProgress(StageConverting, 0, "Converting")
}

// JobUpdate reports a state change of a running job.
func (pt *ProgressTracker) JobUpdate(source, state string) {
	pt.mu.RLock()
	event := Event{
		Stage:      pt.stage,
		Progress:   pt.progress,
		Message:    pt.message,
		Timestamp:  time.Now(),
		JobDetails: pt.detailsLocked(source, "", state),
	}
	pt.mu.RUnlock()

	pt.notifyListeners(event)
}

// JobFinished records the outcome of a job.
func (pt *ProgressTracker) JobFinished(source, output string, err error) {
	pt.mu.Lock()
	state := "done"
	if err != nil {
		pt.failed++
		state = "failed"
	} else {
		pt.completed++
	}
	if pt.total > 0 {
		pt.progress = float64(pt.completed+pt.failed) / float64(pt.total) * 100
	}
	event := Event{
		Stage:      pt.stage,
		Progress:   pt.progress,
		Message:    pt.message,
		Timestamp:  time.Now(),
		JobDetails: pt.detailsLocked(source, output, state),
	}
	if err != nil {
		event.Error = err.Error()
	}
	pt.mu.Unlock()

	pt.notifyListeners(event)
}

func (pt *ProgressTracker) detailsLocked(source, output, state string) *JobDetails {
	return &JobDetails{
		Source:    source,
		Output:    output,
		State:     state,
		Completed: pt.completed,
		Failed:    pt.failed,
		Total:     pt.total,
	}
}

// SetError sets an error state and notifies all listeners
func (pt *ProgressTracker) SetError(err error) {
	pt.mu.Lock()
	pt.stage = StageError
	pt.err = err
	pt.mu.Unlock()

	pt.notifyListeners(Event{
		Stage:     StageError,
		Progress:  pt.progress,
		Message:   err.Error(),
		Timestamp: time.Now(),
		Error:     err.Error(),
	})
}

// notifyListeners sends an event to all registered listeners
func (pt *ProgressTracker) notifyListeners(event Event) {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	for _, listener := range pt.listeners {
		listener(event)
	}
}

// GetCurrentState returns the current progress state
func (pt *ProgressTracker) GetCurrentState() Event {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	event := Event{
		Stage:     pt.stage,
		Progress:  pt.progress,
		Message:   pt.message,
		Timestamp: time.Now(),
		JobDetails: &JobDetails{
			Completed: pt.completed,
			Failed:    pt.failed,
			Total:     pt.total,
		},
	}
	if pt.err != nil {
		event.Error = pt.err.Error()
	}
	return event
}
