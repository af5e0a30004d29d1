package main

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

var (
	BuildName = "suitectl"
	BuildTag  string
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the version",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), version())

		return err
	},
}

func init() {
	if info, ok := debug.ReadBuildInfo(); ok && BuildTag == "" {
		BuildTag = info.Main.Version
	}

	rootCmd.AddCommand(versionCmd)
}

func version() string {
	return fmt.Sprintf("%s version %s %s/%s", BuildName, strings.TrimPrefix(BuildTag, "v"), runtime.GOOS, runtime.GOARCH)
}
