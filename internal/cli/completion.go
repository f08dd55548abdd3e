package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for evolayout.

To load completions:

Bash:
  $ source <(evolayout completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ evolayout completion bash > /etc/bash_completion.d/evolayout
  # macOS:
  $ evolayout completion bash > $(brew --prefix)/etc/bash_completion.d/evolayout

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ evolayout completion zsh > "${fpath[1]}/_evolayout"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ evolayout completion fish | source

  # To load completions for each session, execute once:
  $ evolayout completion fish > ~/.config/fish/completions/evolayout.fish

PowerShell:
  PS> evolayout completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> evolayout completion powershell > evolayout.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}

	return cmd
}
