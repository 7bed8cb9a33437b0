package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/config"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/llm"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/prompt"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/response"
)

const defaultTryTimeout = 2 * time.Minute

type tryOptions struct {
	version   string
	vars      []string
	provider  string
	model     string
	maxTokens int
	output    string
}

func newTryCmd(st *cliState) *cobra.Command {
	var opts tryOptions

	cmd := &cobra.Command{
		Use:   "try <prompt>",
		Short: "Render one prompt version, invoke its provider, and print the normalized response",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(st.configPath)
			if err != nil {
				return err
			}
			st.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTry(cmd, st, &opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.version, "version", "", "prompt version (defaults to latest)")
	cmd.Flags().StringArrayVar(&opts.vars, "var", nil, "template variable as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "provider name (defaults to the version's provider)")
	cmd.Flags().StringVar(&opts.model, "model", "", "model override")
	cmd.Flags().IntVar(&opts.maxTokens, "max-tokens", 0, "max output tokens (overrides config)")
	cmd.Flags().StringVar(&opts.output, "output", "text", "output format: text|json")

	return cmd
}

type tryResult struct {
	Prompt       string              `json:"prompt"`
	Version      string              `json:"version"`
	Provider     string              `json:"provider"`
	API          string              `json:"api"`
	Model        string              `json:"model,omitempty"`
	LatencyMs    int64               `json:"latency_ms"`
	InputTokens  int                 `json:"input_tokens,omitempty"`
	OutputTokens int                 `json:"output_tokens,omitempty"`
	Text         string              `json:"text"`
	ToolCalls    []response.ToolCall `json:"tool_calls,omitempty"`
}

func runTry(cmd *cobra.Command, st *cliState, opts *tryOptions, promptName string) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("try: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("try: nil options")
	}

	outFmt := strings.ToLower(strings.TrimSpace(opts.output))
	if outFmt == "" {
		outFmt = "text"
	}
	if outFmt != "text" && outFmt != "json" {
		return fmt.Errorf("try: invalid --output %q (expected text|json)", opts.output)
	}

	promptName = strings.TrimSpace(promptName)
	if promptName == "" {
		return fmt.Errorf("try: missing prompt name")
	}

	prompts, err := prompt.LoadFromDir(st.cfg.Paths.Prompts)
	if err != nil {
		return err
	}
	index, err := prompt.Index(prompts)
	if err != nil {
		return err
	}
	p, ok := index[promptName]
	if !ok {
		return fmt.Errorf("try: prompt %q not found", promptName)
	}
	version, err := p.FindVersion(opts.version)
	if err != nil {
		return err
	}

	vars, err := parseVarFlags(opts.vars)
	if err != nil {
		return err
	}

	inv, err := buildTryInvocation(st.cfg, version, vars, opts)
	if err != nil {
		return err
	}

	providers, err := llm.NewRegistryFromConfig(st.cfg)
	if err != nil {
		return err
	}
	provider, api, err := resolveTryProvider(providers, opts.provider, version)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	timeout := st.cfg.Runner.Timeout
	if timeout <= 0 {
		timeout = defaultTryTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := provider.Invoke(ctx, inv)
	if err != nil {
		return fmt.Errorf("try: %w", err)
	}
	single := response.ForAPI(api).Single(res.Payload)

	result := tryResult{
		Prompt:       p.Name,
		Version:      version.Version,
		Provider:     provider.Name(),
		API:          string(api),
		Model:        inv.Model,
		LatencyMs:    res.LatencyMs,
		InputTokens:  res.InputTokens,
		OutputTokens: res.OutputTokens,
		Text:         single.Text,
		ToolCalls:    single.ToolCalls,
	}

	if outFmt == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("try: marshal output: %w", err)
		}
		return nil
	}

	printTryText(cmd, result)
	return nil
}

// buildTryInvocation mirrors how the harness assembles a provider
// call, minus the dataset row: the rendered template is the user
// message. Model settings resolve config default, then prompt version,
// then flag override.
func buildTryInvocation(cfg *config.Config, version *prompt.Version, vars map[string]any, opts *tryOptions) (*llm.Invocation, error) {
	rendered, err := prompt.Render(version, vars)
	if err != nil {
		return nil, err
	}
	system, err := prompt.RenderSystem(version, vars)
	if err != nil {
		return nil, err
	}

	inv := &llm.Invocation{
		Model:     version.Model,
		System:    system,
		Messages:  []llm.Message{{Role: response.RoleUser, Content: rendered}},
		MaxTokens: cfg.Runner.MaxTokens,
	}
	if len(version.Tools) > 0 {
		inv.Tools = make([]llm.ToolDefinition, 0, len(version.Tools))
		for _, t := range version.Tools {
			inv.Tools = append(inv.Tools, llm.ToolDefinition{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: t.InputSchema,
			})
		}
	}

	switch v := version.ModelConfig["temperature"].(type) {
	case float64:
		inv.Temperature = v
	case int:
		inv.Temperature = float64(v)
	}
	switch v := version.ModelConfig["max_tokens"].(type) {
	case int:
		if v > 0 {
			inv.MaxTokens = v
		}
	case float64:
		if v > 0 {
			inv.MaxTokens = int(v)
		}
	}

	if strings.TrimSpace(opts.model) != "" {
		inv.Model = strings.TrimSpace(opts.model)
	}
	if opts.maxTokens > 0 {
		inv.MaxTokens = opts.maxTokens
	}
	return inv, nil
}

func resolveTryProvider(reg *llm.Registry, flagName string, version *prompt.Version) (llm.Provider, response.APIType, error) {
	if name := strings.TrimSpace(flagName); name != "" {
		p, ok := reg.Get(name)
		if !ok {
			return nil, "", fmt.Errorf("try: provider %q not configured", name)
		}
		return p, p.APIType(), nil
	}

	api := response.Classify(response.Target{Provider: version.Provider, API: version.API})
	p, ok := reg.ForAPI(api)
	if !ok {
		return nil, "", fmt.Errorf("try: no provider registered for api %q", api)
	}
	return p, api, nil
}

func parseVarFlags(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("try: invalid --var %q (expected key=value)", pair)
		}
		out[key] = value
	}
	return out, nil
}

func printTryText(cmd *cobra.Command, result tryResult) {
	out := cmd.OutOrStdout()

	_, _ = fmt.Fprintf(out, "Prompt: %s version=%s\n", result.Prompt, result.Version)
	line := fmt.Sprintf("Provider: %s api=%s", result.Provider, result.API)
	if result.Model != "" {
		line += " model=" + result.Model
	}
	_, _ = fmt.Fprintln(out, line)
	_, _ = fmt.Fprintf(out, "Latency: %dms tokens_in=%d tokens_out=%d\n\n", result.LatencyMs, result.InputTokens, result.OutputTokens)

	if result.Text != "" {
		_, _ = fmt.Fprintln(out, result.Text)
	}
	if len(result.ToolCalls) > 0 {
		_, _ = fmt.Fprintln(out, "Tool calls:")
		for _, tc := range result.ToolCalls {
			args, _ := json.Marshal(tc.Arguments)
			_, _ = fmt.Fprintf(out, "  %s %s\n", tc.Name, string(args))
		}
	}
	if result.Text == "" && len(result.ToolCalls) == 0 {
		_, _ = fmt.Fprintln(out, "(empty response)")
	}
}
