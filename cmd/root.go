// Package cmd provides the command-line interface for courseview.
//
// Configuration Sources (highest priority first):
//
//  1. Command-line flags (--port, --store, ...)
//  2. COURSEVIEW_* environment variables (COURSEVIEW_STORE_DRIVER=redis)
//  3. The configuration file: --config, else COURSEVIEW_CONFIG_FILE, else
//     .courseview.yml in the working directory
//  4. Built-in defaults
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/courseview/internal/config"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "courseview",
	Short: "Serve a markdown course with lesson progress tracking",
	Long: `courseview serves a course written as one markdown file per module.

Modules are listed in a navigation menu; opening one renders its markdown with
syntax highlighting and a completion checkbox per lesson. Progress and the
light/dark theme are kept in a local store.

Quick Start:
  courseview serve                 Serve ./markdown on http://localhost:8080
  courseview list                  List the course modules
  courseview render modulo1        Print a module as HTML
  courseview progress modulo1      Show lesson completion for a module`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is .courseview.yml, can also use COURSEVIEW_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig points viper at the configuration file and environment.
func initConfig() {
	readConfig(viper.GetViper(), cfgFile, os.Getenv("COURSEVIEW_CONFIG_FILE"), os.Stderr)
}

func readConfig(v *viper.Viper, flagFile, envFile string, stderr io.Writer) {
	switch {
	case flagFile != "":
		v.SetConfigFile(flagFile)
	case envFile != "":
		v.SetConfigFile(envFile)
	default:
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(config.FileName)
	}

	config.ConfigureEnv(v)

	// A missing file is fine; defaults apply.
	if err := v.ReadInConfig(); err == nil {
		fmt.Fprintln(stderr, "Using config file:", v.ConfigFileUsed())
	} else if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && (flagFile != "" || envFile != "") {
		fmt.Fprintln(stderr, "Warning: cannot read config file:", err)
	}
}
