package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "file-validator",
	Short: "Validate data files against declarative schemas",
	Long: `File Validator - checks CSV, PSV, JSON and Excel files against a JSON or
YAML schema of column rules and writes summary and detailed reports.

Commands:
  validate    - Validate a file and write its reports
  rules       - List the rule keys a schema can use
  history     - Show recorded validation runs
  completion  - Generate shell completion scripts

Workflow:
  1. Write a schema: file-validator rules
  2. Validate: file-validator validate --file data.csv --schema schema.json --output csv,xlsx`,
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Print a completion script for the given shell to stdout.

  bash:        source <(file-validator completion bash)
  zsh:         file-validator completion zsh > "${fpath[1]}/_file-validator"
  fish:        file-validator completion fish > ~/.config/fish/completions/file-validator.fish
  powershell:  file-validator completion powershell | Out-String | Invoke-Expression

Start a new shell after installing a script so it is picked up.`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeCompletion(cmd.Root(), args[0], cmd.OutOrStdout())
	},
}

func writeCompletion(root *cobra.Command, shell string, w io.Writer) error {
	var err error
	switch shell {
	case "bash":
		err = root.GenBashCompletion(w)
	case "zsh":
		err = root.GenZshCompletion(w)
	case "fish":
		err = root.GenFishCompletion(w, true)
	case "powershell":
		err = root.GenPowerShellCompletionWithDesc(w)
	default:
		err = fmt.Errorf("unsupported shell %q", shell)
	}
	if err != nil {
		return fmt.Errorf("failed to generate %s completion: %w", shell, err)
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(completionCmd)
}
