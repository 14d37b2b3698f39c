package cmds

import (
	"encoding/json"
	"os"

	"github.com/go-go-golems/parley/pkg/history"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var exportFormat string
var exportOutput string

var ExportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Re-emit a stored chat session as JSON or YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		record, err := history.LoadFile(args[0])
		if err != nil {
			return err
		}

		var b []byte
		switch exportFormat {
		case "json":
			b, err = json.MarshalIndent(record, "", "  ")
		case "yaml":
			b, err = yaml.Marshal(record)
		default:
			return errors.Errorf("unsupported export format %s", exportFormat)
		}
		if err != nil {
			return errors.Wrap(err, "could not marshal transcript record")
		}

		if exportOutput == "" {
			_, err = cmd.OutOrStdout().Write(b)
			return err
		}
		return os.WriteFile(exportOutput, b, 0644)
	},
}

func init() {
	ExportCmd.Flags().StringVar(&exportFormat, "format", "json", "Export format (json, yaml)")
	ExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
}
