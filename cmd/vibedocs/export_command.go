package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"vibedocs/internal/checkpoint"
	"vibedocs/internal/documents"
	"vibedocs/internal/export"
	"vibedocs/internal/generation"
)

const tasksFile = "tasks.json"

func newExportCommand(ctx *commandContext) *cobra.Command {
	var opts outputFlags
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the documents of the saved generation",
		Long:  "Export writes the completed documents of the saved checkpoint. Documents not generated yet are written as placeholders.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.outDir == "" && opts.zipPath == "" && !opts.s3 {
				return fmt.Errorf("choose at least one of --out, --zip or --s3")
			}
			store, err := ctx.checkpointStore()
			if err != nil {
				return err
			}
			cp, err := store.Load(cmd.Context())
			if errors.Is(err, checkpoint.ErrNotFound) {
				return fmt.Errorf("no saved generation to export")
			}
			if err != nil {
				return err
			}
			return writeOutputs(cmd.Context(), cmd.OutOrStdout(), opts, cp.RunID, cp.CompletedDocs, nil)
		},
	}
	cmd.Flags().StringVar(&opts.outDir, "out", "", "Write the documents into this directory")
	cmd.Flags().StringVar(&opts.zipPath, "zip", "", "Write the documents into this zip file")
	cmd.Flags().BoolVar(&opts.s3, "s3", false, "Upload the documents to the bucket configured by VIBEDOCS_S3_*")
	cmd.Flags().StringVar(&opts.design, "design", "", "Append the design system in this JSON file to the exported documents")
	return cmd
}

// writeOutputs sends docs everywhere the flags ask for. Without any output
// flag the documents go to ./vibedocs-<run>.
func writeOutputs(ctx context.Context, stdout io.Writer, opts outputFlags, runID string, docs map[documents.Key]string, tasks []generation.Task) error {
	if opts.outDir == "" && opts.zipPath == "" && !opts.s3 {
		opts.outDir = "vibedocs-" + shortID(runID)
	}
	if opts.design != "" {
		withDesign, err := applyDesignFile(opts.design, docs)
		if err != nil {
			return err
		}
		docs = withDesign
	}
	if opts.outDir != "" {
		paths, err := export.WriteDir(opts.outDir, docs)
		if err != nil {
			return err
		}
		if len(tasks) > 0 {
			if err := writeTasks(filepath.Join(opts.outDir, tasksFile), tasks); err != nil {
				return err
			}
		}
		fmt.Fprintf(stdout, "Wrote %d files to %s\n", len(paths), opts.outDir)
	}
	if opts.zipPath != "" {
		if err := export.WriteZipFile(opts.zipPath, docs); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Wrote %s\n", opts.zipPath)
	}
	if opts.s3 {
		cfg := export.S3ConfigFromEnv()
		if !cfg.Enabled() {
			return fmt.Errorf("--s3 needs VIBEDOCS_S3_ENDPOINT")
		}
		exp, err := export.NewS3Exporter(cfg)
		if err != nil {
			return err
		}
		keys, err := exp.Upload(ctx, runID, docs)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Uploaded %d objects to s3://%s/%s/\n", len(keys), cfg.Bucket, runID)
	}
	return nil
}

// applyDesignFile returns a copy of docs with the design sections appended.
func applyDesignFile(path string, docs map[documents.Key]string) (map[documents.Key]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read design: %w", err)
	}
	var d documents.DesignSystem
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse design %s: %w", path, err)
	}
	out := make(map[documents.Key]string, len(docs))
	for k, v := range docs {
		out[k] = v
	}
	for k, v := range documents.ApplyDesign(docs, d) {
		out[k] = v
	}
	return out, nil
}

func writeTasks(path string, tasks []generation.Task) error {
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write tasks: %w", err)
	}
	return nil
}

func shortID(runID string) string {
	runID = strings.ReplaceAll(strings.TrimSpace(runID), "-", "")
	if len(runID) > 8 {
		return runID[:8]
	}
	if runID == "" {
		return "run"
	}
	return runID
}
