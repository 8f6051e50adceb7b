package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/codeassist/internal/version"
)

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "codeassist",
		Short: "codeassist - LLM code analysis proxy",
		Long: `codeassist accepts source code, multi-file bundles and chat messages,
builds analysis prompts, and forwards them to OpenAI, Anthropic, Azure OpenAI,
Ollama or any OpenAI-compatible endpoint.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(newServeCmd(), newMCPCmd(), newProvidersCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return err
		},
	}
}
