/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "misspelling-platform",
	Short: "Misspelling analysis platform API server",
	Long: `Misspelling Platform is a REST API server for analyzing spelling
variants of words over time. It resolves misspelling variants, pulls
historical word frequencies from external sources with a content-addressed
cache, and runs asynchronous analysis and simulation tasks.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// GetRootCmd 返回根命令（用于测试）
func GetRootCmd() *cobra.Command {
	return rootCmd
}
