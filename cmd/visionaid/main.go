package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "visionaid",
		Short: "Spoken environment awareness for visually impaired users",
		Long:  `VisionAid turns camera, ranging, and face recognition input into prioritized spoken announcements, controlled by voice commands.`,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newSimCmd(),
		newHistoryCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show VisionAid version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("VisionAid v%s\n", version)
		},
	}
}
