package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "comicshrink",
	Short: "comicshrink - recompress the images inside comic book archives",
	Long: `comicshrink rebuilds .cbz archives with their JPEG pages re-encoded under a
visual difference bound. Everything else in the archive is copied unchanged.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
