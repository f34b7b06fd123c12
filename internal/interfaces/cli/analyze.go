package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/medtext/reportiq/internal/domain/report"
	"github.com/medtext/reportiq/internal/infrastructure/monitoring/logging"
	"github.com/medtext/reportiq/internal/infrastructure/textextract"
	"github.com/medtext/reportiq/internal/intelligence/medextract"
)

// AnalyzeOptions holds flags for the analyze command.
type AnalyzeOptions struct {
	ExtractorURL string
	IncludeRaw   bool
	Sex          string
}

// NewAnalyzeCmd creates the analyze subcommand. It runs the extraction
// pipeline locally on one report file and prints the interpretation.
func NewAnalyzeCmd(root *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyze one medical report file and print the interpretation",
		Long:  "Reads a report file (or stdin with \"-\"), extracts patient fields and lab\nresults, interprets them against reference ranges, and prints the summary.\nPDF and scanned reports need --extractor-url pointing at a text extraction\nservice.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args[0], root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.ExtractorURL, "extractor-url", "", "base URL of the remote text extraction service")
	cmd.Flags().BoolVar(&opts.IncludeRaw, "include-raw", false, "include the normalized report text in JSON output")
	cmd.Flags().StringVar(&opts.Sex, "sex", "", "override the patient sex for range selection (M or F)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, path string, root *RootOptions, opts *AnalyzeOptions) error {
	logger, err := logging.NewLogger(logging.LogConfig{
		Level:       root.LogLevel,
		Format:      "console",
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	filename, data, err := readInput(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}
	contentType := detectContentType(filename, data)

	extractors := []textextract.TextExtractor{textextract.NewPlainTextExtractor()}
	if opts.ExtractorURL != "" {
		extractors = append(extractors, textextract.NewRemoteExtractor(opts.ExtractorURL, 0, logger))
	}
	router := textextract.NewRouter(extractors...)

	doc, err := router.Extract(cmd.Context(), filename, contentType, data)
	if err != nil {
		return err
	}

	if opts.Sex != "" {
		if report.ResolveSex(opts.Sex) == report.SexUnspecified {
			return fmt.Errorf("invalid --sex value %q: want M or F", opts.Sex)
		}
		// The field extractor keeps the first sex token it sees, so a line
		// prepended to the document wins over whatever the report states.
		doc.Text = "Sex : " + opts.Sex + "\n" + doc.Text
	}

	cfg := medextract.DefaultPipelineConfig()
	cfg.IncludeRawText = opts.IncludeRaw
	pipeline, err := medextract.NewPipeline(medextract.DefaultRangeTable(), cfg, nil, logger)
	if err != nil {
		return err
	}

	result, err := pipeline.Analyze(cmd.Context(), *doc)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if root.OutputFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintln(out, result.Summary)
	return nil
}

// readInput loads the report bytes from a file path or stdin when path
// is "-".
func readInput(stdin io.Reader, path string) (string, []byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", nil, fmt.Errorf("read stdin: %w", err)
		}
		return "report.txt", data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	return filepath.Base(path), data, nil
}

// detectContentType prefers the file extension and falls back to content
// sniffing.
func detectContentType(filename string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
