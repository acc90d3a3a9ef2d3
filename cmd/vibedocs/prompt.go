package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"vibedocs/internal/documents"
)

type failureChoice string

const (
	choiceAsk     failureChoice = "ask"
	choiceRetry   failureChoice = "retry"
	choicePartial failureChoice = "partial"
	choiceStop    failureChoice = "stop"
)

func parseFailureChoice(raw string) (failureChoice, error) {
	switch c := failureChoice(strings.ToLower(strings.TrimSpace(raw))); c {
	case choiceAsk, choiceRetry, choicePartial, choiceStop:
		return c, nil
	case "":
		return choiceAsk, nil
	}
	return "", fmt.Errorf("--on-failure must be ask, retry, partial or stop, got %q", raw)
}

// Test hooks for the interactive prompts.
var (
	promptFailure = defaultPromptFailure
	promptConfirm = defaultPromptConfirm
	isInteractive = defaultIsInteractive
)

func defaultIsInteractive(in io.Reader) bool {
	f, ok := in.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func defaultPromptFailure(in io.Reader, out io.Writer, failed []documents.Key) (failureChoice, error) {
	names := make([]string, 0, len(failed))
	for _, k := range failed {
		names = append(names, documents.Title(k))
	}
	choice := choiceRetry
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[failureChoice]().
				Title(fmt.Sprintf("%d document(s) failed", len(failed))).
				Description(strings.Join(names, ", ")).
				Options(
					huh.NewOption("Retry failed documents", choiceRetry),
					huh.NewOption("Continue with placeholders", choicePartial),
					huh.NewOption("Stop and keep the checkpoint", choiceStop),
				).
				Value(&choice),
		),
	).WithInput(in).WithOutput(out).Run()
	if err != nil {
		return "", err
	}
	return choice, nil
}

func defaultPromptConfirm(in io.Reader, out io.Writer, question string) bool {
	if !isInteractive(in) {
		return false
	}
	var confirmed bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(question).
				Affirmative("Yes").
				Negative("No").
				Value(&confirmed),
		),
	).WithInput(in).WithOutput(out).Run()
	if err != nil {
		return false
	}
	return confirmed
}
