package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/StanHuanng/anthropo-reader/internal/app"
	"github.com/StanHuanng/anthropo-reader/internal/ingest"
)

var summarizeBindings = bindings{
	"llm.api_key": "llm-api-key",
	"llm.model":   "model",
}

func newSummarizeCmd(opts *rootOptions) *cobra.Command {
	var (
		test    bool
		content string
		hint    string
	)
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Summarize one piece of content, or check the LLM key with --test",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd.Flags(), summarizeBindings)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			a := app.New(cfg, nil, logger)
			defer a.Close()
			client, err := a.Summarizer()
			if err != nil {
				return err
			}
			if test {
				if err := client.Ping(cmd.Context()); err != nil {
					return err
				}
				_, err := fmt.Fprintln(opts.stdout, "ok")
				return err
			}

			h, err := parseHint(hint)
			if err != nil {
				return err
			}
			if content == "" || content == "-" {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read content: %w", err)
				}
				content = string(raw)
			}
			if strings.TrimSpace(content) == "" {
				return fmt.Errorf("no content to summarize")
			}
			summary, err := client.Summarize(cmd.Context(), content, h)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(opts.stdout, summary)
			return err
		},
	}
	f := cmd.Flags()
	f.BoolVar(&test, "test", false, "send a short request and report whether the endpoint answers")
	f.StringVar(&content, "content", "", "text to summarize (default: read stdin)")
	f.StringVar(&hint, "type", string(ingest.HintNotice), "content type: notice, github-project, news or news-foreign")
	f.String("llm-api-key", "", "API key of the summary endpoint (env SILICONFLOW_API_KEY)")
	f.String("model", "", "model name override")
	return cmd
}

func parseHint(s string) (ingest.ContentHint, error) {
	switch h := ingest.ContentHint(strings.TrimSpace(s)); h {
	case ingest.HintNotice, ingest.HintGitHubProject, ingest.HintNews, ingest.HintNewsForeign:
		return h, nil
	default:
		return "", fmt.Errorf("unknown content type %q", s)
	}
}
