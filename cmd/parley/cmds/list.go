package cmds

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/go-go-golems/parley/pkg/history"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored chat sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := history.NewStore(historyDir())
		entries, err := store.List(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tTITLE\tINTERACTIONS\tPATH")
		for _, entry := range entries {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", entry.ID, entry.Title, entry.Interactions, entry.Path)
		}
		return w.Flush()
	},
}

func historyDir() string {
	if dir := viper.GetString("history-dir"); dir != "" {
		return dir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".parley", "history")
}
