package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/zulandar/crewdesk/internal/webhook"
)

func newWebhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Workflow webhook commands",
	}

	cmd.AddCommand(newWebhookTestCmd())
	return cmd
}

func newWebhookTestCmd() *cobra.Command {
	var (
		configPath string
		url        string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Send a test message to the workflow webhook",
		Long:  "Posts a fixed test payload to the configured webhook and checks that it answers with a response field. No session is touched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWebhookTest(cmd, configPath, url, asJSON)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to crewdesk config file")
	cmd.Flags().StringVar(&url, "url", "", "webhook URL (overrides webhook.url)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw result as JSON")
	return cmd
}

func runWebhookTest(cmd *cobra.Command, configPath, url string, asJSON bool) error {
	out := cmd.OutOrStdout()
	cfg, err := loadConfig(configPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if url == "" {
		url = cfg.Webhook.URL
	}
	client, err := webhook.NewClient(webhook.ClientOpts{
		HTTP:         &http.Client{},
		URL:          url,
		APIKey:       cfg.Webhook.APIKey,
		APIKeyHeader: cfg.Webhook.APIKeyHeader,
		UserID:       cfg.Webhook.UserID,
		Timeout:      cfg.Webhook.Timeout,
	})
	if err != nil {
		return err
	}

	res := client.TestConnection(cmd.Context())
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "Webhook:  %s (API key: %v)\n", res.WebhookURL, res.HasAPIKey)
		fmt.Fprintf(out, "Time:     %dms\n", res.ResponseTime)
		if res.Success {
			fmt.Fprintf(out, "Result:   %s\n", res.Message)
			fmt.Fprintf(out, "Response: %s\n", res.Response)
		} else {
			fmt.Fprintf(out, "Error:    %s\n", res.Error)
			if res.Details != "" {
				fmt.Fprintf(out, "Details:  %s\n", res.Details)
			}
		}
	}
	if !res.Success {
		return fmt.Errorf("webhook test failed: %s", res.Error)
	}
	return nil
}
