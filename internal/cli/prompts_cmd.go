package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/cellbench/internal/prompts"
)

var promptsComplexity string

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Inspect the evaluation prompt corpus",
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the prompt corpus in evaluation order",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-5s %-8s %-28s %s\n", "ID", "LEVEL", "DESCRIPTION", "ROBOT")
		for _, p := range prompts.All() {
			if promptsComplexity != "" && p.Complexity != promptsComplexity {
				continue
			}
			fmt.Fprintf(w, "%-5s %-8s %-28s %s\n", p.ID, p.Complexity, p.Description, p.ExpectedRobot)
		}
		return nil
	},
}

var promptsShowCmd = &cobra.Command{
	Use:   "show <prompt-id>",
	Short: "Show one prompt in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, ok := prompts.ByID(args[0])
		if !ok {
			return fmt.Errorf("unknown prompt %q", args[0])
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "ID:          %s\n", p.ID)
		fmt.Fprintf(w, "Complexity:  %s\n", p.Complexity)
		fmt.Fprintf(w, "Description: %s\n", p.Description)
		fmt.Fprintf(w, "Robot:       %s\n", p.ExpectedRobot)
		fmt.Fprintf(w, "Components:  %v\n", p.ExpectedComponents)
		fmt.Fprintf(w, "\n%s\n", p.Prompt)
		return nil
	},
}

func init() {
	promptsListCmd.Flags().StringVar(&promptsComplexity, "complexity", "", "filter by complexity (low, medium, high)")
	promptsCmd.AddCommand(promptsListCmd)
	promptsCmd.AddCommand(promptsShowCmd)
}
