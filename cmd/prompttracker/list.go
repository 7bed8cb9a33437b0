package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/config"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/dataset"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/prompt"
	"github.com/DavidGeismarLtd/PromptTracker-sub004/internal/testdef"
)

func newListCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List prompts, datasets, or tests",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(st.configPath)
			if err != nil {
				return err
			}
			st.cfg = cfg
			return nil
		},
	}

	cmd.AddCommand(newListPromptsCmd(st))
	cmd.AddCommand(newListDatasetsCmd(st))
	cmd.AddCommand(newListTestsCmd(st))
	return cmd
}

func newListPromptsCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "prompts",
		Short: "List available prompts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if st == nil || st.cfg == nil {
				return fmt.Errorf("list: missing config (internal error)")
			}

			prompts, err := prompt.LoadFromDir(st.cfg.Paths.Prompts)
			if err != nil {
				return err
			}
			sort.Slice(prompts, func(i, j int) bool {
				return strings.ToLower(prompts[i].Name) < strings.ToLower(prompts[j].Name)
			})

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tVERSIONS\tLATEST\tDESCRIPTION")
			for _, p := range prompts {
				latest := ""
				if v := p.Latest(); v != nil {
					latest = v.Version
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", p.Name, len(p.Versions), latest, p.Description)
			}
			return tw.Flush()
		},
	}
}

func newListDatasetsCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "datasets",
		Short: "List available datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if st == nil || st.cfg == nil {
				return fmt.Errorf("list: missing config (internal error)")
			}

			datasets, err := dataset.LoadFromDir(st.cfg.Paths.Datasets)
			if err != nil {
				return err
			}
			sort.Slice(datasets, func(i, j int) bool {
				return strings.ToLower(datasets[i].Name) < strings.ToLower(datasets[j].Name)
			})

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tROWS\tDESCRIPTION")
			for _, d := range datasets {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", d.Name, len(d.Rows), d.Description)
			}
			return tw.Flush()
		},
	}
}

func newListTestsCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "tests",
		Short: "List available test definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if st == nil || st.cfg == nil {
				return fmt.Errorf("list: missing config (internal error)")
			}

			tests, err := testdef.LoadFromDir(st.cfg.Paths.Tests)
			if err != nil {
				return err
			}
			sort.Slice(tests, func(i, j int) bool {
				return strings.ToLower(tests[i].ID) < strings.ToLower(tests[j].ID)
			})

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tMODE\tAPI\tDATASET\tEVALUATORS")
			for _, t := range tests {
				keys := make([]string, 0, len(t.Evaluators))
				for _, e := range t.EnabledEvaluators() {
					keys = append(keys, e.Key)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					t.ID, t.Mode, t.Testable.APIType(), t.Dataset, strings.Join(keys, ","))
			}
			return tw.Flush()
		},
	}
}
