package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"basecamp/internal/screening/lock"
	"basecamp/internal/screening/models"
	"basecamp/pkg/domain"
	dErrors "basecamp/pkg/domain-errors"
)

// task is one running workflow. wake interrupts its poll sleep.
type task struct {
	wake chan struct{}
}

type taskKey struct{}

func withTask(ctx context.Context, t *task) context.Context {
	return context.WithValue(ctx, taskKey{}, t)
}

// wakeChan returns the sleeping task's wake channel, or nil (blocks forever
// in a select) when Run is called outside the supervisor.
func wakeChan(ctx context.Context) <-chan struct{} {
	if t, ok := ctx.Value(taskKey{}).(*task); ok {
		return t.wake
	}
	return nil
}

// Dispatch starts a supervised task for id, detached from the caller's
// context. It reports false when a task for id is already running here or
// holds the lease elsewhere, or the orchestrator is shutting down. req may
// be nil for records past submission.
func (o *Orchestrator) Dispatch(id domain.ScreeningID, req *models.Request) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	if _, running := o.tasks[id]; running {
		o.mu.Unlock()
		return false
	}
	t := &task{wake: make(chan struct{}, 1)}
	o.tasks[id] = t
	o.wg.Add(1)
	o.mu.Unlock()

	lease, ok := o.acquireLease(id)
	if !ok {
		o.mu.Lock()
		delete(o.tasks, id)
		o.mu.Unlock()
		o.wg.Done()
		return false
	}
	go o.supervise(id, req, t, lease)
	return true
}

// acquireLease takes id's task lease. When the lease store is unreachable
// the task runs unleased: its record lock calls fail the same way, so it
// cannot make progress alongside another owner.
func (o *Orchestrator) acquireLease(id domain.ScreeningID) (lock.Lease, bool) {
	ctx, cancel := context.WithTimeout(o.baseCtx, leaseAcquireTimeout)
	defer cancel()
	lease, ok, err := o.leases.Acquire(ctx, id.String())
	switch {
	case err != nil:
		o.logger.WarnContext(ctx, "task lease unavailable; running unleased",
			"record_id", id.String(), "error", err)
		return unleased{}, true
	case !ok:
		o.logger.InfoContext(ctx, "screening task owned by another instance", "record_id", id.String())
		return nil, false
	}
	return lease, true
}

const leaseAcquireTimeout = 5 * time.Second

type unleased struct{}

func (unleased) Lost() <-chan struct{} { return nil }
func (unleased) Release()              {}

func (o *Orchestrator) supervise(id domain.ScreeningID, req *models.Request, t *task, lease lock.Lease) {
	defer o.wg.Done()
	defer func() {
		o.mu.Lock()
		delete(o.tasks, id)
		o.mu.Unlock()
	}()
	defer lease.Release()
	if o.metrics != nil {
		o.metrics.ActiveTasks.Inc()
		defer o.metrics.ActiveTasks.Dec()
	}

	ctx, cancel := context.WithCancel(withTask(o.baseCtx, t))
	defer cancel()
	go func() {
		select {
		case <-lease.Lost():
			o.logger.ErrorContext(ctx, "task lease lost; stopping screening task", "record_id", id.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	err := o.runRecovered(ctx, id, req)
	if err == nil {
		return
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		o.logger.InfoContext(ctx, "screening task interrupted", "record_id", id.String())
		return
	}
	o.persistFailure(context.WithoutCancel(ctx), id, err)
}

// busy reports whether id's task runs here or holds its lease elsewhere.
// An unreachable lease store counts as busy.
func (o *Orchestrator) busy(ctx context.Context, id domain.ScreeningID) (bool, error) {
	if o.Running(id) {
		return true, nil
	}
	held, err := o.leases.Held(ctx, id.String())
	if err != nil {
		return true, err
	}
	return held, nil
}

func (o *Orchestrator) runRecovered(ctx context.Context, id domain.ScreeningID, req *models.Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if o.metrics != nil {
				o.metrics.TaskPanics.Inc()
			}
			o.logger.ErrorContext(ctx, "screening task panicked",
				"record_id", id.String(), "panic", r, "stack", string(debug.Stack()))
			err = dErrors.New(dErrors.CodeInternal, fmt.Sprintf("workflow panic: %v", r))
		}
	}()
	return o.Run(ctx, id, req)
}

// persistFailure records an unexpected task error on the record. The
// status moves to processing_failed where the table allows it, and to
// account_creation_failed for a clear record still awaiting its account.
func (o *Orchestrator) persistFailure(ctx context.Context, id domain.ScreeningID, cause error) {
	unlock, err := o.locker.Lock(ctx, id.String())
	if err != nil {
		o.logger.ErrorContext(ctx, "could not lock record to persist failure",
			"record_id", id.String(), "cause", cause, "error", err)
		return
	}
	defer unlock()

	rec, err := o.store.FindByID(ctx, id)
	if err != nil {
		o.logger.ErrorContext(ctx, "could not load record to persist failure",
			"record_id", id.String(), "cause", cause, "error", err)
		return
	}

	kind := errorKind(cause)
	patch := models.Patch{}
	switch {
	case rec.Status.CanTransitionTo(models.StatusProcessingFailed):
		patch.Status = models.StatusPtr(models.StatusProcessingFailed)
	case rec.Status == models.StatusClear && rec.UserID == nil:
		patch.Status = models.StatusPtr(models.StatusAccountCreationFailed)
		kind = models.ErrorKindAccountProvisioning
	}
	patch.Error = o.recordError(kind, cause.Error())

	if _, err := o.update(ctx, rec, patch); err != nil {
		o.logger.ErrorContext(ctx, "could not persist workflow failure",
			"record_id", id.String(), "cause", cause, "error", err)
		return
	}
	o.logger.ErrorContext(ctx, "screening workflow failed",
		"record_id", id.String(), "status", rec.Status.String(), "kind", string(kind), "error", cause)
}

func errorKind(err error) models.ErrorKind {
	switch dErrors.CodeOf(err, dErrors.CodeInternal) {
	case dErrors.CodeValidation, dErrors.CodeBadRequest:
		return models.ErrorKindValidation
	case dErrors.CodeProviderUnavailable:
		return models.ErrorKindProviderUnavailable
	case dErrors.CodeProviderAPI:
		return models.ErrorKindProviderAPI
	case dErrors.CodePollingExhausted:
		return models.ErrorKindPollingExhausted
	case dErrors.CodeNotificationDelivery:
		return models.ErrorKindNotificationDelivery
	case dErrors.CodeAccountProvisioning:
		return models.ErrorKindAccountProvisioning
	}
	return models.ErrorKindInternal
}

// wake interrupts the poll sleep of id's task. It reports whether a task
// is running in this process.
func (o *Orchestrator) wake(id domain.ScreeningID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.tasks[id]
	if !ok {
		return false
	}
	select {
	case t.wake <- struct{}{}:
	default:
	}
	return true
}

// Running reports whether a task for id is active in this process.
func (o *Orchestrator) Running(id domain.ScreeningID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.tasks[id]
	return ok
}

// Wait blocks until every dispatched task has returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Shutdown stops accepting tasks, interrupts running ones and waits for
// them. Interrupted records keep their status and are picked up by Resume
// on the next start.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.stop()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
