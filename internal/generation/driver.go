package generation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"vibedocs/internal/checkpoint"
	"vibedocs/internal/gateway/api"
	"vibedocs/internal/gatewayclient"
	"vibedocs/internal/pipeline"
)

// Streamer opens generation streams. *gatewayclient.Client satisfies it.
type Streamer interface {
	Generate(ctx context.Context, body api.GenerateBody, fn gatewayclient.Handler) error
	Regenerate(ctx context.Context, body api.RegenerateBody, fn gatewayclient.Handler) error
}

type DriverOptions struct {
	Now    func() time.Time
	Logger *log.Logger
	// OnEvent observes each event after the machine has applied it.
	OnEvent func(m *Machine, ev pipeline.Event)
}

// Driver runs generations against the gateway and keeps the checkpoint in
// step with what arrived.
type Driver struct {
	streamer Streamer
	store    checkpoint.Store
	opts     DriverOptions
}

func NewDriver(streamer Streamer, store checkpoint.Store, opts DriverOptions) *Driver {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Driver{streamer: streamer, store: store, opts: opts}
}

// Pending returns a checkpoint worth resuming, or nil.
func (d *Driver) Pending(ctx context.Context) (*checkpoint.Checkpoint, error) {
	cp, err := d.store.Load(ctx)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !cp.Resumable() {
		return nil, nil
	}
	return cp, nil
}

// Start runs a fresh generation. The returned machine is usable even when
// the stream fails part way: its checkpoint holds what arrived.
func (d *Driver) Start(ctx context.Context, p checkpoint.Params, apiKey string) (*Machine, Outcome, error) {
	cp := checkpoint.New(p, d.opts.Now())
	m := NewMachine(d.store, cp, d.opts.Now)
	if err := m.Start(ctx); err != nil {
		return m, Outcome{}, err
	}
	d.opts.Logger.Printf("[generation] run %s started: %s/%s", cp.RunID, p.Provider, p.Model)
	out, err := d.run(ctx, m, func(ctx context.Context, fn gatewayclient.Handler) error {
		return d.streamer.Generate(ctx, requestBody(p, apiKey), fn)
	})
	return m, out, err
}

// Resume generates only the documents cp has not completed.
func (d *Driver) Resume(ctx context.Context, cp *checkpoint.Checkpoint, apiKey string) (*Machine, Outcome, error) {
	if !cp.Resumable() {
		return nil, Outcome{}, fmt.Errorf("checkpoint has no completed documents")
	}
	m := NewMachine(d.store, cp.Clone(), d.opts.Now)
	body := requestBody(cp.Params(), apiKey)
	body.SkipDocuments = cp.Completed()
	d.opts.Logger.Printf("[generation] run %s resumed: %d completed, %d remaining", cp.RunID, len(cp.CompletedDocs), len(cp.Remaining()))
	out, err := d.run(ctx, m, func(ctx context.Context, fn gatewayclient.Handler) error {
		return d.streamer.Generate(ctx, body, fn)
	})
	return m, out, err
}

// RetryFailed regenerates the failed documents of a finished run.
func (d *Driver) RetryFailed(ctx context.Context, m *Machine, apiKey string) (Outcome, error) {
	keys := m.RetryKeys()
	if err := m.BeginRetry(keys); err != nil {
		return Outcome{}, err
	}
	body := api.RegenerateBody{
		GenerateBody: requestBody(m.cp.Params(), apiKey),
		DocumentKeys: make([]string, 0, len(keys)),
	}
	body.ExistingDocs = m.Existing()
	for _, k := range keys {
		body.DocumentKeys = append(body.DocumentKeys, string(k))
	}
	d.opts.Logger.Printf("[generation] run %s retrying %v", m.cp.RunID, keys)
	return d.run(ctx, m, func(ctx context.Context, fn gatewayclient.Handler) error {
		return d.streamer.Regenerate(ctx, body, fn)
	})
}

// ContinueWithPartial accepts the run with placeholders for failed documents.
func (d *Driver) ContinueWithPartial(ctx context.Context, m *Machine) (Outcome, error) {
	return m.ContinueWithPartial(ctx)
}

// Discard drops any stored checkpoint.
func (d *Driver) Discard(ctx context.Context) error {
	if err := d.store.Clear(ctx); err != nil {
		return fmt.Errorf("discard checkpoint: %w", err)
	}
	return nil
}

func (d *Driver) run(ctx context.Context, m *Machine, open func(context.Context, gatewayclient.Handler) error) (Outcome, error) {
	err := open(ctx, func(ev pipeline.Event) error {
		if err := m.Apply(ctx, ev); err != nil {
			return err
		}
		if d.opts.OnEvent != nil {
			d.opts.OnEvent(m, ev)
		}
		return nil
	})
	if err != nil {
		d.opts.Logger.Printf("[generation] run %s interrupted: %v", m.cp.RunID, err)
		return Outcome{}, err
	}
	out, err := m.Outcome()
	if err != nil {
		return Outcome{}, err
	}
	d.opts.Logger.Printf("[generation] run %s finished: failed=%v", m.cp.RunID, out.Failed)
	return out, nil
}

func requestBody(p checkpoint.Params, apiKey string) api.GenerateBody {
	return api.GenerateBody{
		APIKey:   apiKey,
		Idea:     p.Idea,
		AppType:  p.AppType,
		Template: p.Template,
		Provider: p.Provider,
		Model:    p.Model,
		Language: p.Language,
	}
}
