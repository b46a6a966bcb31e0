// Package session runs the label matching session: it owns the reference
// manifest and the accepted matches, and serializes every command, upload and
// photo through one worker so results keep arrival order.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/liteapi-travel/label-matcher-async/internal/confidence"
	"github.com/liteapi-travel/label-matcher-async/internal/export"
	"github.com/liteapi-travel/label-matcher-async/internal/label"
	"github.com/liteapi-travel/label-matcher-async/internal/manifest"
	"github.com/liteapi-travel/label-matcher-async/internal/recognize"
	"github.com/liteapi-travel/label-matcher-async/internal/reference"
)

// ErrClosed is returned for requests made after Close.
var ErrClosed = errors.New("session: controller closed")

const (
	defaultRecognitionTimeout = 60 * time.Second
	defaultQueueSize          = 64
)

// Options configures a Controller.
type Options struct {
	// Classifier defaults to confidence.DefaultThreshold when nil.
	Classifier         *confidence.Classifier
	Recognizer         recognize.Provider
	RecognitionTimeout time.Duration
	// ExportDir receives transient export files; empty means the system
	// temp dir.
	ExportDir string
	QueueSize int
	Logger    *log.Logger

	Now   func() time.Time
	NewID func() string
}

type job struct {
	ctx     context.Context
	run     func(ctx context.Context) Reply
	started chan struct{}
	result  chan Reply
}

// Controller is the stateful label matching session. Requests are queued and
// executed one at a time, in the order they were queued. A request whose
// context is done by the time it reaches the front of the queue is skipped
// without touching the session. Once a request has started, its caller gets
// the reply even if the context ends meanwhile, so a record appended by a
// late photo is never reported as a failure.
type Controller struct {
	opts Options

	jobs      chan job
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// sess is owned by the worker goroutine.
	sess SessionContext
}

// New starts a controller in state Idle with an empty reference.
func New(opts Options) *Controller {
	if opts.RecognitionTimeout <= 0 {
		opts.RecognitionTimeout = defaultRecognitionTimeout
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	if opts.Classifier == nil {
		classifier, _ := confidence.New(confidence.DefaultThreshold)
		opts.Classifier = &classifier
	}
	c := &Controller{
		opts: opts,
		jobs: make(chan job, opts.QueueSize),
		quit: make(chan struct{}),
		done: make(chan struct{}),
		sess: SessionContext{State: Idle},
	}
	go c.worker()
	return c
}

// Close stops the worker after the request in progress, if any. Requests still
// queued fail with ErrClosed.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() { close(c.quit) })
	<-c.done
	return nil
}

func (c *Controller) worker() {
	defer close(c.done)
	for {
		select {
		case <-c.quit:
			return
		case j := <-c.jobs:
			if j.ctx.Err() != nil {
				close(j.result)
				continue
			}
			close(j.started)
			j.result <- j.run(j.ctx)
		}
	}
}

// enqueue places run at the back of the queue and returns once it is queued.
func (c *Controller) enqueue(ctx context.Context, run func(ctx context.Context) Reply) (job, error) {
	j := job{ctx: ctx, run: run, started: make(chan struct{}), result: make(chan Reply, 1)}
	select {
	case <-c.quit:
		return job{}, ErrClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return job{}, err
	}
	select {
	case c.jobs <- j:
		return j, nil
	case <-c.quit:
		return job{}, ErrClosed
	case <-ctx.Done():
		return job{}, ctx.Err()
	}
}

func (c *Controller) await(ctx context.Context, j job) (Reply, error) {
	select {
	case reply, ok := <-j.result:
		if !ok {
			return Reply{}, ctx.Err()
		}
		return reply, nil
	case <-ctx.Done():
		select {
		case <-j.started:
			// The job sees the same cancelled context and finishes promptly.
			if reply, ok := <-j.result; ok {
				return reply, nil
			}
		default:
		}
		return Reply{}, ctx.Err()
	case <-c.done:
		select {
		case reply, ok := <-j.result:
			if ok {
				return reply, nil
			}
		default:
		}
		return Reply{}, ErrClosed
	}
}

func (c *Controller) do(ctx context.Context, run func(ctx context.Context) Reply) (Reply, error) {
	j, err := c.enqueue(ctx, run)
	if err != nil {
		return Reply{}, err
	}
	return c.await(ctx, j)
}

// Snapshot reports the current state, result count and reference size.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	_, err := c.do(ctx, func(context.Context) Reply {
		snap = Snapshot{
			State:         c.sess.State,
			Results:       len(c.sess.Results),
			ReferenceRows: c.sess.Reference.Len(),
		}
		return Reply{}
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// BeginReference asks for a reference upload.
func (c *Controller) BeginReference(ctx context.Context) (Reply, error) {
	return c.do(ctx, func(context.Context) Reply {
		if c.sess.State == Active {
			return text("A session is in progress. Send the end command before loading a new reference.")
		}
		c.sess.State = AwaitingReference
		c.logf("Awaiting reference upload")
		return text("Send the reference file (CSV or TSV) now.")
	})
}

// LoadReferenceFile parses an uploaded reference file and installs it. It is
// only accepted right after BeginReference; the controller returns to Idle
// whether or not the file could be used.
func (c *Controller) LoadReferenceFile(ctx context.Context, name, mimeType string, data []byte) (Reply, error) {
	return c.do(ctx, func(context.Context) Reply {
		if c.sess.State != AwaitingReference {
			return text("Not expecting a reference file. Send the reference command first.")
		}
		c.sess.State = Idle

		rows, err := manifest.Parse(name, mimeType, data)
		if errors.Is(err, manifest.ErrUnsupportedType) {
			c.logf("Rejected reference upload %q (%s)", name, mimeType)
			return text("Rejected %s: the reference must be a CSV or TSV file.", displayName(name))
		}
		if err != nil {
			c.logf("Failed to parse reference upload %q: %v", name, err)
			return text("Could not read %s: %v. The previous reference is still in use.", displayName(name), err)
		}
		return c.installReference(rows)
	})
}

// SetReference installs already parsed rows. It is refused while a session
// is active and otherwise leaves the controller Idle.
func (c *Controller) SetReference(ctx context.Context, rows []reference.Row) (Reply, error) {
	return c.do(ctx, func(context.Context) Reply {
		if c.sess.State == Active {
			return text("A session is in progress. Send the end command before loading a new reference.")
		}
		c.sess.State = Idle
		return c.installReference(rows)
	})
}

func (c *Controller) installReference(rows []reference.Row) Reply {
	idx, err := reference.Load(rows)
	if err != nil {
		c.logf("Failed to load reference: %v", err)
		return text("Could not load the reference: %v. The previous reference is still in use.", err)
	}
	c.sess.Reference = idx
	c.logf("Loaded reference with %d rows", idx.Len())
	return text("Reference loaded: %d rows.", idx.Len())
}

// StartSession opens a new session, discarding any results not yet exported.
func (c *Controller) StartSession(ctx context.Context) (Reply, error) {
	return c.do(ctx, func(context.Context) Reply {
		restarted := c.sess.State == Active
		c.sess.State = Active
		c.sess.Results = nil
		c.logf("Session started (restart=%v, reference rows=%d)", restarted, c.sess.Reference.Len())

		var b strings.Builder
		if restarted {
			b.WriteString("Session restarted, previous results discarded.")
		} else {
			b.WriteString("Session started.")
		}
		if c.sess.Reference.Len() == 0 {
			b.WriteString(" Warning: no reference loaded, photos will be read back with 0% confidence.")
		} else {
			fmt.Fprintf(&b, " Matching against %d reference rows.", c.sess.Reference.Len())
		}
		return Reply{Text: b.String()}
	})
}

// SubmitImage recognizes the photo and matches the text. The recognition
// call is bounded by the configured timeout and happens inside the session's
// exclusive section, so the next request waits for it.
func (c *Controller) SubmitImage(ctx context.Context, img recognize.Image, caption string) (Reply, error) {
	return c.do(ctx, c.imageJob(img, caption))
}

func (c *Controller) imageJob(img recognize.Image, caption string) func(ctx context.Context) Reply {
	return func(ctx context.Context) Reply {
		if c.sess.State != Active {
			return inactive()
		}
		raw, err := c.recognize(ctx, img)
		if err != nil {
			c.logf("Recognition failed: %v", err)
			return noText()
		}
		return c.match(raw, caption)
	}
}

// SubmitText matches text that was already recognized. Blank text counts as
// a failed recognition.
func (c *Controller) SubmitText(ctx context.Context, recognized, caption string) (Reply, error) {
	return c.do(ctx, func(context.Context) Reply {
		if c.sess.State != Active {
			return inactive()
		}
		if strings.TrimSpace(recognized) == "" {
			return noText()
		}
		return c.match(recognized, caption)
	})
}

func (c *Controller) recognize(ctx context.Context, img recognize.Image) (string, error) {
	if c.opts.Recognizer == nil {
		return "", errors.New("no recognizer configured")
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.RecognitionTimeout)
	defer cancel()

	startTime := time.Now()
	raw, err := c.opts.Recognizer.Recognize(ctx, img)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(raw) == "" {
		return "", recognize.ErrNoText
	}
	c.logf("Recognized %d characters in %v", len(raw), time.Since(startTime))
	return raw, nil
}

func (c *Controller) match(raw, caption string) Reply {
	normalized := label.Normalize(raw)
	row, score, available := c.sess.Reference.BestMatch(normalized)
	outcome := c.opts.Classifier.Decide(confidence.Evidence{
		Row:        row,
		Score:      score,
		Normalized: normalized,
		Raw:        raw,
		Caption:    caption,
	}, available)

	c.logf("Label %q classified %s (score %.4f)", normalized, outcome.Tier, score)
	if outcome.Accept {
		rec := c.sess.appendRecord(MatchRecord{
			Row:        row,
			Caption:    caption,
			Confidence: score,
			Tier:       outcome.Tier,
		})
		c.logf("Appended record %d", rec.Seq)
	}
	return Reply{Text: outcome.Message, Outcome: &outcome}
}

// EndSession closes the session and exports its results. When dst is not nil
// the artifact is written to a transient file, delivered and removed again.
// Results are drained even if delivery fails; the artifact is returned in the
// reply either way.
func (c *Controller) EndSession(ctx context.Context, dst export.Deliverer) (Reply, error) {
	return c.do(ctx, func(ctx context.Context) Reply {
		if c.sess.State != Active {
			return text("No active session to end.")
		}
		records := c.sess.drain()
		c.sess.State = Idle

		artifact := export.New(c.opts.NewID(), c.opts.Now(), exportRecords(records))
		c.logf("Session ended with %d records, artifact %s", len(records), artifact.Name)

		reply := Reply{Records: records, Artifact: &artifact}
		if err := c.deliver(ctx, dst, artifact); err != nil {
			c.logf("Failed to deliver %s: %v", artifact.Name, err)
			reply.Text = fmt.Sprintf("Session ended with %d labels, but %s could not be delivered: %v", len(records), artifact.Name, err)
			return reply
		}
		reply.Text = fmt.Sprintf("Session ended: %d labels exported to %s.", len(records), artifact.Name)
		return reply
	})
}

func (c *Controller) deliver(ctx context.Context, dst export.Deliverer, a export.Artifact) error {
	if dst == nil {
		return nil
	}
	path, err := export.WriteTemp(c.opts.ExportDir, a)
	if err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			c.logf("Failed to remove transient export %s: %v", path, err)
		}
	}()
	return dst.Deliver(ctx, a, path)
}

func inactive() Reply {
	return text("No active session. Send the start command first.")
}

func noText() Reply {
	return text("No text detected in the photo.")
}

func displayName(name string) string {
	if name == "" {
		return "the file"
	}
	return name
}

func (c *Controller) logf(format string, args ...any) {
	if c.opts.Logger != nil {
		c.opts.Logger.Printf(format, args...)
	}
}
