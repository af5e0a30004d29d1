package main

import (
	"github.com/spf13/cobra"
)

func init() {
	reportCmd.Flags().Bool("strict", false, "fail when the report cannot be mailed")
	reportCmd.Flags().StringP("input", "i", "", "artifact directory: -i reports")
	reportCmd.Flags().String("merged", "", "merged report path: --merged reports/merged-report.json")
	reportCmd.Flags().String("html-dir", "", "html report directory")
	reportCmd.Flags().Bool("mail", true, "mail the html report")

	mustBind("report.strict", reportCmd.Flags().Lookup("strict"))
	mustBind("report.artifact_dir", reportCmd.Flags().Lookup("input"))
	mustBind("report.merged_path", reportCmd.Flags().Lookup("merged"))
	mustBind("report.html_dir", reportCmd.Flags().Lookup("html-dir"))
	mustBind("mail.enabled", reportCmd.Flags().Lookup("mail"))

	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "merge, render and mail the report",
	Long:  "Merge the result artifacts, render the html report and mail it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd)
	},
}
