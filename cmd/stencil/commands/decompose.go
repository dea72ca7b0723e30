package commands

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stencildev/stencil/internal/logger"
	"github.com/stencildev/stencil/internal/output"
	"github.com/stencildev/stencil/internal/templatefile"
	"github.com/stencildev/stencil/pkg/formatter"
	"github.com/stencildev/stencil/pkg/grammargen"
)

// decomposedResult pairs the captures recovered from one input with its
// source.
type decomposedResult struct {
	Source   string         `json:"source" yaml:"source"`
	Captures map[string]any `json:"captures" yaml:"captures"`
}

var decomposeCmd = &cobra.Command{
	Use:   "decompose",
	Short: "Recover captures from generated text",
	Long: `Run the extraction pass of a template over already generated text and
print the named captures.

The text must match the template's grammar exactly, the way an engine
constrained by it would have produced it.

Examples:
  # Decompose one output
  stencil decompose -f template.yaml -i generated.txt

  # Decompose from stdin
  cat generated.txt | stencil decompose -f template.yaml

  # Several outputs as a JSONL stream
  stencil decompose -f template.yaml -i a.txt -i b.txt --format jsonl`,
	RunE: runDecompose,
}

func init() {
	rootCmd.AddCommand(decomposeCmd)

	flags := decomposeCmd.Flags()
	flags.StringP("file", "f", "", "path to template definition file (required)")
	flags.StringSliceP("input", "i", nil, "generated text file(s) (default: stdin)")
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "json", "output format: json, jsonl, yaml")

	_ = decomposeCmd.MarkFlagRequired("file")
}

func runDecompose(cmd *cobra.Command, args []string) error {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
	})

	tmplPath, _ := cmd.Flags().GetString("file")
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
	writer, err := output.NewWriter(outFile, output.Format(formatStr))
	if err != nil {
		logger.Error("failed to create output writer", "format", formatStr, "error", err)
		return err
	}
	defer func() { _ = writer.Close() }()

	inputs, _ := cmd.Flags().GetStringSlice("input")

	// No input files means one document from stdin.
	if len(inputs) == 0 {
		text, err := io.ReadAll(os.Stdin)
		if err != nil {
			logger.Error("failed to read stdin", "error", err)
			return err
		}
		return decomposeOne(b, writer, "stdin", string(text))
	}

	count := 0
	errorCount := 0
	for _, path := range inputs {
		text, err := os.ReadFile(path) //#nosec G304 -- CLI tool reads user-specified input files
		if err != nil {
			logger.Error("failed to read input", "path", path, "error", err)
			errorCount++
			continue
		}
		if err := decomposeOne(b, writer, path, string(text)); err != nil {
			errorCount++
			continue
		}
		count++
	}

	logger.Info("decompose complete", "decomposed", count, "errors", errorCount)
	return nil
}

// decomposeOne runs the extraction pass over one document and writes its
// captures.
func decomposeOne(b *formatter.Builder, writer output.Writer, source, text string) error {
	captures, err := b.Decompose(text)
	if err != nil {
		logger.Error("text does not match template", "source", source, "error", err)
		return err
	}

	return writer.Write(decomposedResult{
		Source:   source,
		Captures: captures.Flatten(),
	})
}
