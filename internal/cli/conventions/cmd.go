// Package conventions implements the "refract conventions" command group.
package conventions

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/refract-dev/refract/internal/calling"
	"github.com/refract-dev/refract/internal/cli/helpers"
	"github.com/refract-dev/refract/internal/config"
	"github.com/refract-dev/refract/internal/logging"
)

// NewConventionsCmd returns the "conventions" command group.
func NewConventionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conventions",
		Short: "Inspect and validate calling-convention definitions",
	}
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newValidateCmd())
	return cmd
}

func newListCmd() *cobra.Command {
	var logFlags helpers.LogFlags
	var file string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List builtin conventions, plus any from a definition file",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewWithComponent(logFlags.Config(), "cli")

			defs := calling.Builtins()
			if file != "" {
				loaded, err := config.LoadDefinitions(logger, file)
				if err != nil {
					return err
				}
				defs = append(defs, loaded...)
			}

			for _, def := range defs {
				printDefinition(cmd, def)
			}
			return nil
		},
	}
	logFlags.AddFlags(cmd.Flags())
	cmd.Flags().StringVarP(&file, "file", "f", "", "Convention definition file (YAML)")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var logFlags helpers.LogFlags

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a convention definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewWithComponent(logFlags.Config(), "cli")

			defs, err := config.LoadDefinitions(logger, args[0])
			if err != nil {
				return err
			}
			cmd.Printf("%s: %d convention(s) OK\n", args[0], len(defs))
			return nil
		},
	}
	logFlags.AddFlags(cmd.Flags())
	return cmd
}

func printDefinition(cmd *cobra.Command, def calling.Definition) {
	args := make([]string, 0, len(def.ArgRegs))
	for _, r := range def.ArgRegs {
		args = append(args, strings.ToLower(r.String()))
	}
	argList := strings.Join(args, ", ")
	if argList == "" {
		argList = "stack only"
	}
	cleanup := "caller"
	if def.CalleeCleanup {
		cleanup = "callee"
	}
	ret := "none"
	if def.RetReg != 0 {
		ret = strings.ToLower(def.RetReg.String())
	}
	cmd.Println(fmt.Sprintf("%-12s args: %-28s ret: %-5s cleanup: %-7s word: %d align: %d shadow: %d",
		def.Name, argList, ret, cleanup, def.WordSize, def.StackAlign, def.ShadowSpace))
}
