package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vibedocs/internal/checkpoint"
	"vibedocs/internal/documents"
	"vibedocs/internal/pipeline"
	"vibedocs/internal/todo"
)

var (
	ErrInvalidTransition = errors.New("invalid document transition")
	ErrNotComplete       = errors.New("generation has not completed")
)

// Doc is the client view of one document.
type Doc struct {
	Key        documents.Key
	Status     pipeline.JobStatus
	Content    string
	Error      string
	RetryCount int
	MaxRetries int
}

// Machine mirrors a streamed run into per-document state and keeps the
// checkpoint current. It is the only writer of the checkpoint; callers feed
// it events from one goroutine.
type Machine struct {
	store checkpoint.Store
	cp    *checkpoint.Checkpoint
	now   func() time.Time

	docs   map[documents.Key]*Doc
	seeded map[documents.Key]bool
	state  pipeline.RunState
	step   int
	base   int
	total  int

	final  map[documents.Key]string
	todos  []todo.Record
	failed []documents.Key
}

// NewMachine builds a machine for cp. Documents already completed in cp
// start completed.
func NewMachine(store checkpoint.Store, cp *checkpoint.Checkpoint, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	m := &Machine{
		store:  store,
		cp:     cp,
		now:    now,
		docs:   make(map[documents.Key]*Doc, documents.Count),
		seeded: map[documents.Key]bool{},
		state:  pipeline.RunNotStarted,
	}
	for _, k := range documents.Keys() {
		d := &Doc{Key: k, Status: pipeline.JobPending}
		if content, ok := cp.CompletedDocs[k]; ok {
			d.Status = pipeline.JobCompleted
			d.Content = content
			m.seeded[k] = true
		}
		m.docs[k] = d
	}
	return m
}

// Checkpoint returns a copy of the current checkpoint.
func (m *Machine) Checkpoint() *checkpoint.Checkpoint { return m.cp.Clone() }

func (m *Machine) State() pipeline.RunState { return m.state }

// Docs returns every document in registry order.
func (m *Machine) Docs() []Doc {
	out := make([]Doc, 0, documents.Count)
	for _, k := range documents.Keys() {
		out = append(out, *m.docs[k])
	}
	return out
}

func (m *Machine) Doc(k documents.Key) (Doc, bool) {
	d, ok := m.docs[k]
	if !ok {
		return Doc{}, false
	}
	return *d, true
}

// Skipped returns the keys reused from an earlier run.
func (m *Machine) Skipped() []documents.Key {
	return documents.Ordered(m.seeded)
}

func (m *Machine) HasErrors() bool {
	for _, d := range m.docs {
		if d.Status == pipeline.JobError {
			return true
		}
	}
	return false
}

// Progress is the percentage of the current run's steps reached.
func (m *Machine) Progress() int {
	switch {
	case m.state == pipeline.RunCompleted || m.state == pipeline.RunCompletedWithErrors:
		return 100
	case m.total <= 0:
		return 0
	}
	return (m.step - m.base) * 100 / m.total
}

// Start persists the checkpoint before the first event arrives.
func (m *Machine) Start(ctx context.Context) error {
	return m.save(ctx)
}

// Apply folds one stream event into the machine.
func (m *Machine) Apply(ctx context.Context, ev pipeline.Event) error {
	switch ev.Type {
	case pipeline.EventStart:
		if m.finished() {
			return fmt.Errorf("%w: start after complete", ErrInvalidTransition)
		}
		m.state = pipeline.RunStreaming
		m.total = ev.TotalSteps
		m.step, m.base = 0, 0
		return nil
	case pipeline.EventProgress:
		return m.progress(ev)
	case pipeline.EventDocument:
		d, err := m.settle(ev)
		if d == nil || err != nil {
			return err
		}
		d.Status = pipeline.JobCompleted
		d.Content = ev.Content
		d.Error = ""
		if ev.RetryCount != nil {
			d.RetryCount = *ev.RetryCount
		}
		m.cp.MarkCompleted(d.Key, ev.Content, m.now())
		return m.save(ctx)
	case pipeline.EventError:
		d, err := m.settle(ev)
		if d == nil || err != nil {
			return err
		}
		d.Status = pipeline.JobError
		d.Content = ev.Content
		d.Error = ev.Error
		if ev.RetryCount != nil {
			d.RetryCount = *ev.RetryCount
		}
		m.cp.MarkFailed(d.Key, m.now())
		return m.save(ctx)
	case pipeline.EventComplete:
		if m.state != pipeline.RunStreaming {
			return fmt.Errorf("%w: complete while %s", ErrInvalidTransition, m.state)
		}
		return m.complete(ctx, ev)
	}
	return fmt.Errorf("unknown event type %q", ev.Type)
}

func (m *Machine) progress(ev pipeline.Event) error {
	if m.state != pipeline.RunStreaming {
		return fmt.Errorf("%w: progress while %s", ErrInvalidTransition, m.state)
	}
	// A resumed run numbers its first step after the documents it skipped.
	if m.step == 0 && ev.Step > 0 {
		m.base = ev.Step - 1
	}
	if ev.Step > m.step {
		m.step = ev.Step
	}
	if ev.TotalSteps > 0 {
		m.total = ev.TotalSteps
	}
	d, ok := m.docs[ev.DocumentKey]
	if !ok {
		return nil
	}
	switch d.Status {
	case pipeline.JobPending, pipeline.JobGenerating:
	default:
		return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, d.Key, d.Status)
	}
	d.Status = pipeline.JobGenerating
	if ev.IsRetry() {
		d.RetryCount = *ev.RetryCount
		d.MaxRetries = ev.MaxRetries
		d.Error = ev.Error
	}
	return nil
}

// settle returns the document an outcome event refers to. Keys outside the
// registry yield nil without error; the gateway reports them but they have
// no slot to fill.
func (m *Machine) settle(ev pipeline.Event) (*Doc, error) {
	if m.state != pipeline.RunStreaming {
		return nil, fmt.Errorf("%w: %s while %s", ErrInvalidTransition, ev.Type, m.state)
	}
	d, ok := m.docs[ev.DocumentKey]
	if !ok {
		return nil, nil
	}
	if d.Status != pipeline.JobGenerating {
		return nil, fmt.Errorf("%w: %s %s while %s", ErrInvalidTransition, d.Key, ev.Type, d.Status)
	}
	if ev.MaxRetries > 0 {
		d.MaxRetries = ev.MaxRetries
	}
	return d, nil
}

func (m *Machine) complete(ctx context.Context, ev pipeline.Event) error {
	final := make(map[documents.Key]string, documents.Count)
	var failed []documents.Key
	for _, k := range documents.Keys() {
		d := m.docs[k]
		switch d.Status {
		case pipeline.JobCompleted:
			final[k] = d.Content
		case pipeline.JobError:
			failed = append(failed, k)
			final[k] = firstNonEmpty(ev.Documents[k], d.Content)
		default:
			final[k] = ev.Documents[k]
		}
	}
	m.final = final
	m.failed = failed
	if len(ev.Todos) > 0 && !m.seeded[documents.TodoMaster] {
		m.todos = ev.Todos
	} else {
		src := ""
		if m.docs[documents.TodoMaster].Status == pipeline.JobCompleted {
			src = final[documents.TodoMaster]
		}
		m.todos = todo.Extract(src)
	}
	if len(failed) > 0 {
		m.state = pipeline.RunCompletedWithErrors
		return nil
	}
	m.state = pipeline.RunCompleted
	return m.clear(ctx)
}

func (m *Machine) finished() bool {
	return m.state == pipeline.RunCompleted || m.state == pipeline.RunCompletedWithErrors
}

// Outcome is what the caller receives once a run is over.
type Outcome struct {
	// NeedsDecision is set when documents failed and the caller must
	// choose between retrying them and continuing with placeholders.
	NeedsDecision bool
	Documents     map[documents.Key]string
	Todos         []todo.Record
	Failed        []documents.Key
	// Placeholders lists the keys filled by ContinueWithPartial.
	Placeholders []documents.Key
}

func (m *Machine) Outcome() (Outcome, error) {
	if !m.finished() {
		return Outcome{}, ErrNotComplete
	}
	docs := make(map[documents.Key]string, len(m.final))
	for k, v := range m.final {
		docs[k] = v
	}
	return Outcome{
		NeedsDecision: len(m.failed) > 0,
		Documents:     docs,
		Todos:         m.todos,
		Failed:        append([]documents.Key(nil), m.failed...),
	}, nil
}

// ContinueWithPartial fills every failed slot with the placeholder text and
// clears the checkpoint.
func (m *Machine) ContinueWithPartial(ctx context.Context) (Outcome, error) {
	out, err := m.Outcome()
	if err != nil {
		return Outcome{}, err
	}
	for _, k := range out.Failed {
		out.Documents[k] = documents.PartialPlaceholder(k)
	}
	out.Placeholders = out.Failed
	out.NeedsDecision = false
	if err := m.clear(ctx); err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// BeginRetry moves failed documents back to generating for a targeted
// rerun. Only documents in error may be retried.
func (m *Machine) BeginRetry(keys []documents.Key) error {
	if !m.finished() {
		return ErrNotComplete
	}
	if len(keys) == 0 {
		return fmt.Errorf("%w: nothing to retry", ErrInvalidTransition)
	}
	for _, k := range keys {
		d, ok := m.docs[k]
		if !ok || d.Status != pipeline.JobError {
			return fmt.Errorf("%w: %s is not in error", ErrInvalidTransition, k)
		}
	}
	for _, k := range keys {
		d := m.docs[k]
		d.Status = pipeline.JobGenerating
		d.Error = ""
		d.RetryCount = 0
	}
	m.state = pipeline.RunNotStarted
	m.step, m.base, m.total = 0, 0, 0
	return nil
}

// RetryKeys returns the failed keys of a finished run.
func (m *Machine) RetryKeys() []documents.Key {
	return append([]documents.Key(nil), m.failed...)
}

// Existing returns content for every completed document.
func (m *Machine) Existing() map[documents.Key]string {
	out := map[documents.Key]string{}
	for k, d := range m.docs {
		if d.Status == pipeline.JobCompleted {
			out[k] = d.Content
		}
	}
	return out
}

// Discard drops the checkpoint. There is no undo.
func (m *Machine) Discard(ctx context.Context) error {
	return m.clear(ctx)
}

func (m *Machine) save(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	if err := m.store.Save(ctx, m.cp); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (m *Machine) clear(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
