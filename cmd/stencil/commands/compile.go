package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stencildev/stencil/internal/logger"
	"github.com/stencildev/stencil/internal/output"
	"github.com/stencildev/stencil/internal/templatefile"
	"github.com/stencildev/stencil/pkg/formatter"
	"github.com/stencildev/stencil/pkg/grammargen"
)

// compiledTemplate is the structured form of a compile result.
type compiledTemplate struct {
	Name     string   `json:"name,omitempty" yaml:"name,omitempty"`
	Grammar  string   `json:"grammar" yaml:"grammar"`
	Captures []string `json:"captures" yaml:"captures"`
}

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile a template into a KBNF grammar",
	Long: `Compile a template definition into the grammar text a constrained
decoding engine enforces during generation.

By default the raw grammar is printed; with --format the grammar is
wrapped together with the template name and capture names.

Examples:
  # Print the grammar
  stencil compile -f template.yaml

  # Write the grammar with metadata as JSON
  stencil compile -f template.yaml --format json -o grammar.json`,
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)

	flags := compileCmd.Flags()
	flags.StringP("file", "f", "", "path to template definition file (required)")
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "", "output format: json, yaml (default: raw grammar text)")

	_ = compileCmd.MarkFlagRequired("file")
}

func runCompile(cmd *cobra.Command, args []string) error {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
	})

	tmplPath, _ := cmd.Flags().GetString("file")
	logger.Debug("loading template", "path", tmplPath)
	def, err := templatefile.Load(tmplPath)
	if err != nil {
		logger.Error("failed to load template", "error", err)
		return err
	}

	b := formatter.NewBuilder()
	if err := def.Apply(b, grammargen.NewJSONGenerator()); err != nil {
		logger.Error("failed to compile template", "error", err)
		return err
	}

	grammar, err := b.Grammar()
	if err != nil {
		logger.Error("failed to compile grammar", "error", err)
		return err
	}

	var captures []string
	for _, ext := range b.Extractors() {
		if name := ext.CaptureName(); name != "" {
			captures = append(captures, name)
		}
	}
	logger.Debug("template compiled", "captures", len(captures), "grammar_size", len(grammar))

	outFile := os.Stdout
	if outPath, _ := cmd.Flags().GetString("output"); outPath != "" {
		f, err := os.Create(outPath) //#nosec G304 -- CLI tool writes to user-specified output file
		if err != nil {
			logger.Error("failed to create output file", "path", outPath, "error", err)
			return err
		}
		defer func() { _ = f.Close() }()
		outFile = f
	}

	formatStr, _ := cmd.Flags().GetString("format")
	if formatStr == "" {
		_, err := fmt.Fprintln(outFile, grammar)
		return err
	}

	writer, err := output.NewWriter(outFile, output.Format(formatStr))
	if err != nil {
		logger.Error("failed to create output writer", "format", formatStr, "error", err)
		return err
	}
	defer func() { _ = writer.Close() }()

	return writer.Write(compiledTemplate{
		Name:     def.Name,
		Grammar:  grammar,
		Captures: captures,
	})
}
