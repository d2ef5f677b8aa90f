package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/set-night/receiptbot/internal/batch"
	"github.com/set-night/receiptbot/internal/domain"
	"github.com/set-night/receiptbot/internal/session"
)

// Options are the intake tunables.
type Options struct {
	Debounce           time.Duration
	MaxAttempts        int
	MinTags            int
	AllowEmptyFinalize bool
	ExtractionTimeout  time.Duration
	// Detach runs the extraction phase of Finalize on its own goroutine so the
	// transport is not blocked while the extractor works.
	Detach bool
}

// Deps contains everything required to construct an Intake.
type Deps struct {
	Store     session.Store
	Locks     *session.KeyedMutex
	Extractor Extractor
	Ledger    Ledger
	Notifier  Notifier
	Journal   Journal
	Options   Options
}

// Intake is the per-user session state machine. Every operation runs under
// the user's lock; only the extraction call itself happens outside it.
type Intake struct {
	store     session.Store
	locks     *session.KeyedMutex
	batches   *batch.Aggregator
	submitter *Submitter
	notifier  Notifier
	opts      Options
	inflight  sync.WaitGroup
	now       func() time.Time
}

func NewIntake(deps Deps) *Intake {
	if deps.Locks == nil {
		deps.Locks = session.NewKeyedMutex()
	}
	if deps.Journal == nil {
		deps.Journal = nopJournal{}
	}
	if deps.Options.MaxAttempts <= 0 {
		deps.Options.MaxAttempts = 3
	}
	if deps.Options.Debounce <= 0 {
		deps.Options.Debounce = 500 * time.Millisecond
	}

	in := &Intake{
		store:    deps.Store,
		locks:    deps.Locks,
		notifier: deps.Notifier,
		opts:     deps.Options,
		now:      time.Now,
	}
	in.submitter = &Submitter{
		store:     deps.Store,
		locks:     deps.Locks,
		extractor: deps.Extractor,
		ledger:    deps.Ledger,
		notifier:  deps.Notifier,
		journal:   deps.Journal,
		opts:      deps.Options,
		now:       in.clock,
	}
	in.batches = batch.NewAggregator(deps.Options.Debounce, deps.Locks, in.flushBatch)
	return in
}

func (in *Intake) clock() time.Time {
	return in.now()
}

// AddPhoto appends a single ungrouped photo.
func (in *Intake) AddPhoto(ctx context.Context, userID string, image []byte, caption string) error {
	unlock := in.locks.Lock(userID)
	defer unlock()

	in.batches.CancelForUser(userID)

	sess := in.store.GetOrCreate(userID)
	if err := in.checkAccepting(ctx, sess, true); err != nil {
		return err
	}

	sess = in.beginSubmission(sess, true)
	idx := sess.AppendImage(image)
	sess.AppendMessage(domain.MessageEntry{
		Role:       domain.RoleUser,
		Content:    strings.TrimSpace(caption),
		HasImage:   true,
		ImageIndex: idx,
		Timestamp:  in.now(),
	})
	transition(sess, domain.StatusAwaitingInput, in.now())

	in.notifier.Notice(ctx, userID, fmt.Sprintf(msgPhotoAdded, len(sess.Images)))
	return nil
}

// AddGroupedPhoto buffers one photo of a media group. The group is appended
// to the session once it settles.
func (in *Intake) AddGroupedPhoto(ctx context.Context, userID, correlationID string, image []byte, caption string) error {
	unlock := in.locks.Lock(userID)
	defer unlock()

	sess := in.store.GetOrCreate(userID)
	if err := in.checkAccepting(ctx, sess, true); err != nil {
		return err
	}

	in.batches.Add(userID, correlationID, image, caption)
	return nil
}

// flushBatch is the aggregator's callback; the user's lock is already held.
func (in *Intake) flushBatch(userID string, images [][]byte, caption string) {
	ctx := context.Background()

	sess := in.store.GetOrCreate(userID)
	if !sess.Status.AcceptsMaterial() && sess.Status != domain.StatusAwaitingConfirmation {
		slog.Warn("dropping media group, session busy", "user_id", userID, "status", sess.Status, "images", len(images))
		in.notifier.Notice(ctx, userID, msgBusy)
		return
	}

	sess = in.beginSubmission(sess, true)
	last := -1
	for _, img := range images {
		last = sess.AppendImage(img)
	}
	if last < 0 {
		return
	}
	sess.AppendMessage(domain.MessageEntry{
		Role:       domain.RoleUser,
		Content:    caption,
		HasImage:   true,
		ImageIndex: last,
		Timestamp:  in.now(),
	})
	transition(sess, domain.StatusAwaitingInput, in.now())

	slog.Info("media group appended", "user_id", userID, "images", len(images), "total", len(sess.Images))
	in.notifier.BatchAck(ctx, userID, len(images), len(sess.Images))
}

// AddText appends a free-text description or refinement comment.
func (in *Intake) AddText(ctx context.Context, userID, text string) error {
	unlock := in.locks.Lock(userID)
	defer unlock()

	in.batches.CancelForUser(userID)

	sess := in.store.GetOrCreate(userID)
	if err := in.checkAccepting(ctx, sess, false); err != nil {
		return err
	}

	sess = in.beginSubmission(sess, false)
	sess.AppendMessage(domain.MessageEntry{
		Role:      domain.RoleUser,
		Content:   text,
		Timestamp: in.now(),
	})
	transition(sess, domain.StatusAwaitingInput, in.now())

	in.notifier.Notice(ctx, userID, msgTextAdded)
	return nil
}

// Finalize checks the accumulated material, moves the session to Processing
// and runs the submission. With Options.Detach the extraction runs in the
// background and Finalize returns once the session is Processing.
func (in *Intake) Finalize(ctx context.Context, userID string) error {
	unlock := in.locks.Lock(userID)
	in.batches.CancelForUser(userID)
	sess := in.store.GetOrCreate(userID)
	job, err := in.submitter.prepare(ctx, sess)
	unlock()
	if err != nil {
		return err
	}

	if !in.opts.Detach {
		in.submitter.execute(ctx, job)
		return nil
	}

	in.inflight.Add(1)
	go func() {
		defer in.inflight.Done()
		in.submitter.execute(ctx, job)
	}()
	return nil
}

// Retry re-runs extraction after a recoverable failure.
func (in *Intake) Retry(ctx context.Context, userID string) error {
	return in.Finalize(ctx, userID)
}

// Refine returns a session awaiting confirmation to input mode. Nothing is
// cleared; the correction is submitted on the next explicit finalize.
func (in *Intake) Refine(ctx context.Context, userID string) error {
	unlock := in.locks.Lock(userID)
	defer unlock()

	sess := in.store.GetOrCreate(userID)
	if sess.Status != domain.StatusAwaitingConfirmation {
		in.notifier.Notice(ctx, userID, msgNothingToConfirm)
		return domain.ErrNotAwaitingConfirm
	}

	transition(sess, domain.StatusAwaitingInput, in.now())
	in.notifier.Notice(ctx, userID, msgRefine)
	return nil
}

// Confirm submits the pending transactions to the ledger.
func (in *Intake) Confirm(ctx context.Context, userID string) error {
	unlock := in.locks.Lock(userID)
	defer unlock()

	in.batches.CancelForUser(userID)
	sess := in.store.GetOrCreate(userID)
	return in.submitter.confirm(ctx, sess)
}

// Cancel unconditionally resets the session. An extraction still in flight
// is discarded when it returns.
func (in *Intake) Cancel(ctx context.Context, userID string) {
	in.reset(userID)
	in.notifier.Notice(ctx, userID, msgCancelled)
}

// Start is the /start command: a full reset plus the greeting.
func (in *Intake) Start(ctx context.Context, userID string) {
	in.reset(userID)
	in.notifier.Notice(ctx, userID, msgStarted)
}

// Status renders the current session state.
func (in *Intake) Status(ctx context.Context, userID string) {
	snap, _ := in.Snapshot(userID)
	if snap.Status == "" {
		snap.Status = domain.StatusIdle
	}

	text := fmt.Sprintf(msgStatus, snap.Status, len(snap.Images), len(snap.Messages),
		snap.ProcessingAttempts, in.opts.MaxAttempts)
	if n := len(snap.Transactions); n > 0 {
		text += fmt.Sprintf(msgStatusTransaction, n)
	}
	if snap.LastError != "" {
		text += fmt.Sprintf(msgStatusLastError, snap.LastError)
	}
	in.notifier.Notice(ctx, userID, text)
}

// Snapshot returns a deep copy of the user's session.
func (in *Intake) Snapshot(userID string) (domain.Session, bool) {
	unlock := in.locks.Lock(userID)
	defer unlock()

	sess, ok := in.store.Get(userID)
	if !ok {
		return domain.Session{}, false
	}
	return sess.Clone(), true
}

// PendingImages reports how many media-group images are still settling.
func (in *Intake) PendingImages(userID string) int {
	return in.batches.Pending(userID)
}

// Wait blocks until detached submissions have finished.
func (in *Intake) Wait() {
	in.inflight.Wait()
}

// Stop drops pending media groups and waits for detached submissions.
func (in *Intake) Stop() {
	in.batches.Stop()
	in.inflight.Wait()
}

func (in *Intake) reset(userID string) {
	unlock := in.locks.Lock(userID)
	defer unlock()

	in.batches.CancelForUser(userID)
	in.store.Reset(userID, false)
}

// checkAccepting rejects new material while a submission is running, and
// text while a result is waiting for a decision.
func (in *Intake) checkAccepting(ctx context.Context, sess *domain.Session, photo bool) error {
	switch sess.Status {
	case domain.StatusProcessing, domain.StatusAwaitingFinalization:
		in.notifier.Notice(ctx, sess.UserID, msgBusy)
		return domain.ErrBusy
	case domain.StatusAwaitingConfirmation:
		if !photo {
			in.notifier.Notice(ctx, sess.UserID, msgAwaitingDecision)
			return domain.ErrAwaitingDecision
		}
	}
	return nil
}

// beginSubmission is the shared "first material after Idle" rule used by the
// photo, media group and text paths. An Idle session is replaced by a fresh
// one. A photo arriving while a result awaits confirmation starts a new
// submission that keeps the earlier photos.
func (in *Intake) beginSubmission(sess *domain.Session, photo bool) *domain.Session {
	switch {
	case sess.Status == domain.StatusIdle:
		return in.store.Reset(sess.UserID, false)
	case photo && sess.Status == domain.StatusAwaitingConfirmation:
		fresh := in.store.Reset(sess.UserID, true)
		if n := len(fresh.Images); n > 0 {
			fresh.AppendMessage(domain.MessageEntry{
				Role:      domain.RoleSystem,
				Content:   fmt.Sprintf(msgCarriedOver, n),
				Timestamp: in.now(),
			})
		}
		transition(fresh, domain.StatusAwaitingInput, in.now())
		return fresh
	default:
		return sess
	}
}
