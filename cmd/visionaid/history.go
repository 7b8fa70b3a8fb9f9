package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Rajvardhan-Desai/vision-aid/internal/config"
	"github.com/Rajvardhan-Desai/vision-aid/internal/history"
)

func newHistoryCmd() *cobra.Command {
	var configPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent announcements",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = config.DefaultConfigPath()
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			store, err := history.NewStore(cfg.History.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Recent(limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No announcements recorded.")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s  [%s]  %s\n", e.SpokenAt.Format("2006-01-02 15:04:05"), e.Category, e.Text)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path (default ~/.visionaid/config.yaml)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	return cmd
}
