package cli

import (
	"github.com/spf13/cobra"

	"github.com/lucasnoah/cellbench/internal/db"
)

var dbPathFlag string

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the SQLite evidence mirror",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the mirror schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := mirrorPath()
		if err != nil {
			return err
		}
		database, err := db.Open(path)
		if err != nil {
			return err
		}
		defer database.Close()
		if err := database.Migrate(); err != nil {
			return err
		}
		cmd.Printf("Schema applied: %s\n", path)
		return nil
	},
}

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop and recreate the mirror (destructive!)",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := mirrorPath()
		if err != nil {
			return err
		}
		database, err := db.Open(path)
		if err != nil {
			return err
		}
		defer database.Close()
		if err := database.Reset(); err != nil {
			return err
		}
		cmd.Printf("Mirror reset: %s\n", path)
		return nil
	},
}

func init() {
	dbCmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "path to the SQLite mirror")
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbResetCmd)
}
