package commands

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/statweave/statweave/internal/modules"
)

// NewModulesCommand creates the modules listing command.
func NewModulesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List registered extraction modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listModules(cmd.OutOrStdout())
		},
	}
}

func listModules(out io.Writer) error {
	registry, err := modules.Builtin()
	if err != nil {
		return err
	}

	w := table.NewWriter()
	w.SetOutputMirror(out)
	w.AppendHeader(table.Row{"ID", "Description"})

	for _, desc := range registry.All() {
		w.AppendRow(table.Row{desc.ID, desc.Description})
	}

	w.Render()

	return nil
}
