package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	llmclient "vibedocs/internal/llm/client"
	"vibedocs/internal/settings"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change stored preferences",
	}
	cmd.AddCommand(newSettingsShowCommand(ctx))
	cmd.AddCommand(newSettingsProviderCommand(ctx))
	cmd.AddCommand(newSettingsModelCommand(ctx))
	cmd.AddCommand(newSettingsKeyCommand(ctx))
	cmd.AddCommand(newSettingsLanguageCommand(ctx))
	cmd.AddCommand(newSettingsThemeCommand(ctx))
	cmd.AddCommand(newSettingsResetCommand(ctx))
	cmd.AddCommand(newSettingsModelsCommand())
	return cmd
}

func withSettings(ctx *commandContext, fn func(cmd *cobra.Command, svc *settings.Service, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		svc, err := ctx.settingsService()
		if err != nil {
			return err
		}
		return fn(cmd, svc, args)
	}
}

func newSettingsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		RunE: withSettings(ctx, func(cmd *cobra.Command, svc *settings.Service, args []string) error {
			s := svc.Settings()
			rows := [][]string{
				{"provider", s.AIProvider},
				{"model", s.AIModel},
				{"language", s.Language},
				{"theme", string(s.Theme)},
				{"autoSave", yesNo(s.AutoSave)},
			}
			for _, p := range llmclient.Providers() {
				rows = append(rows, []string{"key." + string(p), maskKey(s.APIKeys[string(p)])})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Setting", "Value"}, rows, nil))
			return nil
		}),
	}
}

func newSettingsProviderCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "provider <google|openai|anthropic>",
		Short: "Select the provider; the model resets to its default",
		Args:  cobra.ExactArgs(1),
		RunE: withSettings(ctx, func(cmd *cobra.Command, svc *settings.Service, args []string) error {
			if err := svc.SetAIProvider(args[0]); err != nil {
				return err
			}
			s := svc.Settings()
			fmt.Fprintf(cmd.OutOrStdout(), "Provider set to %s (model %s)\n", s.AIProvider, s.AIModel)
			return nil
		}),
	}
}

func newSettingsModelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "model <model>",
		Short: "Select the model of the current provider",
		Args:  cobra.ExactArgs(1),
		RunE: withSettings(ctx, func(cmd *cobra.Command, svc *settings.Service, args []string) error {
			if err := svc.SetAIModel(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Model set to %s\n", svc.Settings().AIModel)
			return nil
		}),
	}
}

func newSettingsKeyCommand(ctx *commandContext) *cobra.Command {
	var clearKey bool
	cmd := &cobra.Command{
		Use:   "key <provider> [key]",
		Short: "Store or clear the API key of a provider",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withSettings(ctx, func(cmd *cobra.Command, svc *settings.Service, args []string) error {
			if clearKey {
				if err := svc.ClearProviderAPIKey(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Key for %s cleared\n", args[0])
				return nil
			}
			if len(args) < 2 || strings.TrimSpace(args[1]) == "" {
				return fmt.Errorf("a key is required (or pass --clear)")
			}
			if err := svc.SetProviderAPIKey(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Key for %s stored (%s)\n", args[0], maskKey(args[1]))
			return nil
		}),
	}
	cmd.Flags().BoolVar(&clearKey, "clear", false, "Remove the stored key")
	return cmd
}

func newSettingsLanguageCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "language <ko|en>",
		Short: "Select the output language of generated documents",
		Args:  cobra.ExactArgs(1),
		RunE: withSettings(ctx, func(cmd *cobra.Command, svc *settings.Service, args []string) error {
			return svc.SetLanguage(args[0])
		}),
	}
}

func newSettingsThemeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "theme <light|dark|system>",
		Short: "Select the display theme",
		Args:  cobra.ExactArgs(1),
		RunE: withSettings(ctx, func(cmd *cobra.Command, svc *settings.Service, args []string) error {
			return svc.SetTheme(settings.Theme(strings.ToLower(strings.TrimSpace(args[0]))))
		}),
	}
}

func newSettingsResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore the default settings",
		RunE: withSettings(ctx, func(cmd *cobra.Command, svc *settings.Service, args []string) error {
			return svc.Reset()
		}),
	}
}

func newSettingsModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models of every provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			var rows [][]string
			for _, info := range llmclient.Catalog() {
				for _, m := range info.Models {
					def := ""
					if m.ID == info.DefaultModel {
						def = "default"
					}
					rows = append(rows, []string{string(info.Provider), m.ID, string(m.Level), fmt.Sprint(m.ContextWindow), def})
				}
			}
			headers := []string{"Provider", "Model", "Level", "Context", ""}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight}))
			return nil
		},
	}
}

func maskKey(key string) string {
	key = strings.TrimSpace(key)
	switch {
	case key == "":
		return "-"
	case len(key) <= 8:
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", 4) + key[len(key)-4:]
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
