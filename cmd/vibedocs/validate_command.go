package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vibedocs/internal/gateway/api"
	llmclient "vibedocs/internal/llm/client"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var key, model string
	cmd := &cobra.Command{
		Use:   "validate [provider]",
		Short: "Check an API key against the provider",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.settingsService()
			if err != nil {
				return err
			}
			s := svc.Settings()
			provider := s.AIProvider
			if len(args) == 1 {
				provider = args[0]
			}
			p, err := llmclient.ParseProvider(provider)
			if err != nil {
				return err
			}
			activeProvider := string(p) == s.AIProvider
			if key == "" {
				key = storedKey(svc, string(p))
			}
			if key == "" {
				return fmt.Errorf("no API key stored for %s; pass --key", p)
			}

			res, err := ctx.client().Validate(cmd.Context(), api.ValidateBody{Provider: string(p), APIKey: key, Model: model})
			if err != nil {
				return err
			}
			if activeProvider {
				valid := res.Valid
				svc.SetAPIKeyValid(&valid)
			}
			out := cmd.OutOrStdout()
			if !res.Valid {
				if res.Hint != "" {
					fmt.Fprintf(out, "Get a key at %s\n", res.Hint)
				}
				return fmt.Errorf("%s key rejected: %s", p, firstNonEmpty(res.Error, "invalid API key"))
			}
			fmt.Fprintf(out, "%s key is valid (model %s)\n", p, firstNonEmpty(res.Model, "-"))
			if res.Warning != "" {
				fmt.Fprintf(out, "Warning: %s\n", res.Warning)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "Key to check instead of the stored one")
	cmd.Flags().StringVar(&model, "model", "", "Probe this model only")
	return cmd
}
