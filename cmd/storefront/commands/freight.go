package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"storefront-bff/internal/freight"
)

func freightCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "freight",
		Short: "Mount a package from a JSON item list (file or stdin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			var items []freight.Item
			if err := json.NewDecoder(in).Decode(&items); err != nil {
				return fmt.Errorf("decode items: %w", err)
			}
			if len(items) == 0 {
				return fmt.Errorf("no items given")
			}
			if err := freight.Check(items); err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(freight.Mount(items))
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "items JSON file (default stdin)")
	return cmd
}
