package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/tagc/internal/version"
)

func newVersionCmd() *cobra.Command {
	var (
		format   string
		detailed bool
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display the tagc version, commit, build time, Go version and platform.

Examples:
  tagc version
  tagc version --detailed
  tagc version --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()
			out := cmd.OutOrStdout()

			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			case "text":
				if detailed {
					_, err := fmt.Fprintln(out, info.Detailed())
					return err
				}
				_, err := fmt.Fprintln(out, info.String())
				return err
			default:
				return fmt.Errorf("unsupported format: %s (supported: text, json)", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text, json)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "show detailed version information")
	return cmd
}
