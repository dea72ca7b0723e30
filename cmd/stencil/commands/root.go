// Package commands implements the CLI commands for stencil.
package commands

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "stencil",
	Short: "Template compiler for grammar-constrained text generation",
	Long: `Stencil compiles templates with typed placeholders into KBNF grammars
that a constrained decoding engine can enforce, and decomposes generated
output back into named captures.

Examples:
  # Compile a template into a grammar
  stencil compile -f template.yaml

  # Recover captures from already generated text
  stencil decompose -f template.yaml -i generated.txt

  # Decompose several outputs into one JSONL stream
  stencil decompose -f template.yaml -i a.txt -i b.txt --format jsonl`,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.stencil.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".stencil")
		viper.SetConfigType("yaml")
	}

	// Environment variables
	viper.SetEnvPrefix("STENCIL")
	viper.AutomaticEnv()

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
