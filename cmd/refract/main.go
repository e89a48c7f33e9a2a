// Package main provides the refract CLI binary.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/refract-dev/refract/internal/cli/conventions"
	"github.com/refract-dev/refract/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "refract",
		Short:         "Refract - calling-convention tooling for the decompiler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(conventions.NewConventionsCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("Refract version %s\n", version.Version)
			cmd.Printf("Git commit: %s\n", version.GitCommit)
			cmd.Printf("Build date: %s\n", version.BuildDate)
			cmd.Printf("Go version: %s\n", version.GoVersion)
		},
	}
}
