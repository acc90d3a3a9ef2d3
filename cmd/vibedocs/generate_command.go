package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"vibedocs/internal/checkpoint"
	"vibedocs/internal/documents"
	"vibedocs/internal/generation"
	llmclient "vibedocs/internal/llm/client"
	"vibedocs/internal/pipeline"
	"vibedocs/internal/settings"
)

type outputFlags struct {
	onFailure  string
	maxRetries int
	outDir     string
	zipPath    string
	s3         bool
	design     string
	apiKey     string
	yes        bool
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.onFailure, "on-failure", "ask", "What to do when documents fail: ask, retry, partial or stop")
	cmd.Flags().IntVar(&o.maxRetries, "max-retries", 2, "Retry rounds allowed with --on-failure=retry")
	cmd.Flags().StringVar(&o.outDir, "out", "", "Write the documents into this directory")
	cmd.Flags().StringVar(&o.zipPath, "zip", "", "Write the documents into this zip file")
	cmd.Flags().BoolVar(&o.s3, "s3", false, "Upload the documents to the bucket configured by VIBEDOCS_S3_*")
	cmd.Flags().StringVar(&o.design, "design", "", "Append the design system in this JSON file to the exported documents")
	cmd.Flags().StringVar(&o.apiKey, "api-key", "", "Provider API key (defaults to the stored key)")
	cmd.Flags().BoolVarP(&o.yes, "yes", "y", false, "Answer yes to confirmations")
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var (
		p     checkpoint.Params
		out   outputFlags
		fresh bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate all ten documents for an idea",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(p.Idea) == "" && len(args) > 0 {
				p.Idea = strings.Join(args, " ")
			}
			if strings.TrimSpace(p.Idea) == "" {
				return fmt.Errorf("an idea is required (--idea)")
			}
			r, err := ctx.newRun(cmd, &out)
			if err != nil {
				return err
			}
			pending, err := r.driver.Pending(cmd.Context())
			if err != nil {
				return err
			}
			if pending != nil && !fresh {
				question := fmt.Sprintf("A previous generation has %d of %d documents. Resume it?", len(pending.CompletedDocs), documents.Count)
				if out.yes || promptConfirm(cmd.InOrStdin(), cmd.OutOrStdout(), question) {
					return r.resume(pending)
				}
			}
			params, err := r.fillParams(p)
			if err != nil {
				return err
			}
			return r.start(params)
		},
	}
	cmd.Flags().StringVar(&p.Idea, "idea", "", "The app idea")
	cmd.Flags().StringVar(&p.AppType, "app-type", string(documents.AppTypeWeb), "web, mobile or both")
	cmd.Flags().StringVar(&p.Template, "template", "", "Optional starting template")
	cmd.Flags().StringVar(&p.Provider, "provider", "", "google, openai or anthropic (defaults to settings)")
	cmd.Flags().StringVar(&p.Model, "model", "", "Model id (defaults to settings)")
	cmd.Flags().StringVar(&p.Language, "language", "", "Output language: ko or en (defaults to settings)")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "Ignore a saved checkpoint and start over")
	out.register(cmd)
	return cmd
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	var out outputFlags
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume the saved generation with only the missing documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := ctx.newRun(cmd, &out)
			if err != nil {
				return err
			}
			pending, err := r.driver.Pending(cmd.Context())
			if err != nil {
				return err
			}
			if pending == nil {
				return fmt.Errorf("no generation to resume")
			}
			return r.resume(pending)
		},
	}
	out.register(cmd)
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	var out outputFlags
	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Generate the documents a saved run is missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := ctx.newRun(cmd, &out)
			if err != nil {
				return err
			}
			cp, err := r.store.Load(cmd.Context())
			if errors.Is(err, checkpoint.ErrNotFound) {
				return fmt.Errorf("no saved generation")
			}
			if err != nil {
				return err
			}
			if len(cp.Remaining()) == 0 {
				return fmt.Errorf("nothing to retry")
			}
			if !cp.Resumable() {
				return r.start(cp.Params())
			}
			return r.resume(cp)
		},
	}
	out.register(cmd)
	return cmd
}

// run carries one generation from the first event to written output.
type run struct {
	ctx      context.Context
	stdin    io.Reader
	stdout   io.Writer
	driver   *generation.Driver
	store    checkpoint.Store
	settings *settings.Service
	opts     *outputFlags
	choice   failureChoice
	apiKey   string
}

func (c *commandContext) newRun(cmd *cobra.Command, opts *outputFlags) (*run, error) {
	choice, err := parseFailureChoice(opts.onFailure)
	if err != nil {
		return nil, err
	}
	store, err := c.checkpointStore()
	if err != nil {
		return nil, err
	}
	svc, err := c.settingsService()
	if err != nil {
		return nil, err
	}
	stdout := cmd.OutOrStdout()
	r := &run{
		ctx:      cmd.Context(),
		stdin:    cmd.InOrStdin(),
		stdout:   stdout,
		store:    store,
		settings: svc,
		opts:     opts,
		choice:   choice,
	}
	r.driver = c.driver(store, cmd.ErrOrStderr(), r.onEvent)
	return r, nil
}

// fillParams applies the stored provider, model and language to blank flags.
func (r *run) fillParams(p checkpoint.Params) (checkpoint.Params, error) {
	s := r.settings.Settings()
	if strings.TrimSpace(p.Provider) == "" {
		p.Provider = s.AIProvider
		if strings.TrimSpace(p.Model) == "" {
			p.Model = s.AIModel
		}
	}
	provider, err := llmclient.ParseProvider(p.Provider)
	if err != nil {
		return p, err
	}
	p.Provider = string(provider)
	if strings.TrimSpace(p.Model) == "" {
		p.Model = llmclient.DefaultModel(provider)
	}
	p.Language = firstNonEmpty(p.Language, s.Language, string(documents.DefaultLanguage))
	return p, nil
}

// key returns the API key for provider: the flag, then the stored key.
func (r *run) key(provider string) (string, error) {
	if k := strings.TrimSpace(r.opts.apiKey); k != "" {
		return k, nil
	}
	if k := storedKey(r.settings, provider); k != "" {
		return k, nil
	}
	return "", fmt.Errorf("no API key stored for %s; run `vibedocs settings key %s <key>` or pass --api-key", provider, provider)
}

func storedKey(svc *settings.Service, provider string) string {
	s := svc.Settings()
	if k := s.APIKeys[provider]; k != "" {
		return k
	}
	// The legacy single key only ever held a google key.
	if provider == string(llmclient.ProviderGoogle) && provider == s.AIProvider {
		return svc.ActiveAPIKey()
	}
	return ""
}

func (r *run) start(p checkpoint.Params) error {
	key, err := r.key(p.Provider)
	if err != nil {
		return err
	}
	r.apiKey = key
	fmt.Fprintf(r.stdout, "Generating %d documents with %s/%s\n", documents.Count, p.Provider, p.Model)
	m, out, err := r.driver.Start(r.ctx, p, key)
	if err != nil {
		return r.interrupted(m, err)
	}
	return r.finish(m, out)
}

func (r *run) resume(cp *checkpoint.Checkpoint) error {
	key, err := r.key(cp.Provider)
	if err != nil {
		return err
	}
	r.apiKey = key
	fmt.Fprintf(r.stdout, "Resuming: %d completed, %d to generate\n", len(cp.CompletedDocs), len(cp.Remaining()))
	m, out, err := r.driver.Resume(r.ctx, cp, key)
	if err != nil {
		return r.interrupted(m, err)
	}
	return r.finish(m, out)
}

func (r *run) onEvent(m *generation.Machine, ev pipeline.Event) {
	switch ev.Type {
	case pipeline.EventDocument:
		fmt.Fprintf(r.stdout, "  [%3d%%] done    %s\n", m.Progress(), documents.Title(ev.DocumentKey))
	case pipeline.EventError:
		fmt.Fprintf(r.stdout, "  [%3d%%] failed  %s: %s\n", m.Progress(), documents.Title(ev.DocumentKey), truncate(ev.Error, 80))
	case pipeline.EventProgress:
		if ev.IsRetry() {
			fmt.Fprintf(r.stdout, "         retry   %s (%d/%d)\n", documents.Title(ev.DocumentKey), *ev.RetryCount, ev.MaxRetries)
		}
	}
}

func (r *run) interrupted(m *generation.Machine, err error) error {
	if m == nil {
		return err
	}
	if cp := m.Checkpoint(); cp != nil && len(cp.CompletedDocs) > 0 {
		fmt.Fprintf(r.stdout, "Generation interrupted with %d of %d documents saved. Run `vibedocs resume` to continue.\n",
			len(cp.CompletedDocs), documents.Count)
	}
	return fmt.Errorf("generation interrupted: %w", err)
}

// finish settles failures per the chosen policy, then writes the output.
func (r *run) finish(m *generation.Machine, out generation.Outcome) error {
	rounds := 0
	for out.NeedsDecision {
		fmt.Fprintln(r.stdout, machineTable(m))
		choice, err := r.decide(out.Failed, rounds)
		if err != nil {
			return err
		}
		switch choice {
		case choiceRetry:
			rounds++
			fmt.Fprintf(r.stdout, "Retrying %d document(s)\n", len(out.Failed))
			out, err = r.driver.RetryFailed(r.ctx, m, r.apiKey)
			if err != nil {
				return r.interrupted(m, err)
			}
		case choicePartial:
			out, err = r.driver.ContinueWithPartial(r.ctx, m)
			if err != nil {
				return err
			}
		default:
			fmt.Fprintf(r.stdout, "Stopped with %d failed document(s). The checkpoint is kept; run `vibedocs retry` later.\n", len(out.Failed))
			return nil
		}
	}
	fmt.Fprintln(r.stdout, machineTable(m))
	if len(out.Placeholders) > 0 {
		fmt.Fprintf(r.stdout, "%d document(s) use a placeholder.\n", len(out.Placeholders))
	}
	fmt.Fprintf(r.stdout, "%d TODO item(s) extracted.\n", len(out.Todos))
	return writeOutputs(r.ctx, r.stdout, *r.opts, m.Checkpoint().RunID, out.Documents, generation.Tasks(out.Todos, m.Checkpoint().LastUpdated))
}

func (r *run) decide(failed []documents.Key, rounds int) (failureChoice, error) {
	switch r.choice {
	case choiceRetry:
		if rounds >= r.opts.maxRetries {
			return choiceStop, nil
		}
		return choiceRetry, nil
	case choicePartial, choiceStop:
		return r.choice, nil
	}
	if !isInteractive(r.stdin) {
		return choiceStop, nil
	}
	return promptFailure(r.stdin, r.stdout, failed)
}
