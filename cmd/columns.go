package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// newColumnsCmd prints the dataset's column order, one per line.
func newColumnsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "columns",
		Short: "Print the persisted dataset's column order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			d, err := appInstance.Store().Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load dataset: %w", err)
			}
			columns := d.Columns()
			if len(columns) == 0 {
				return nil
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(columns, "\n"))
			return err
		},
	}
}
