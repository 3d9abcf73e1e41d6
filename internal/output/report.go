package output

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/torosent/volley/internal/config"
	"github.com/torosent/volley/internal/metrics"
)

// WriteReport renders the summary in the requested format.
func WriteReport(w io.Writer, format config.ReportFormat, summary metrics.Summary) error {
	switch format {
	case config.ReportFormatJSON:
		return PrintJSONReport(w, summary)
	case config.ReportFormatYAML:
		return PrintYAMLReport(w, summary)
	case config.ReportFormatText, "":
		PrintReport(w, summary)
		return nil
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, s metrics.Summary) {
	fmt.Fprintln(w, "\n--- Batch Summary ---")
	if s.RunID != "" {
		fmt.Fprintf(w, "Run ID:            %s\n", s.RunID)
	}
	fmt.Fprintf(w, "Total Items:       %d\n", s.Total)
	fmt.Fprintf(w, "Succeeded:         %d\n", s.Succeeded)
	fmt.Fprintf(w, "Failed:            %d\n", s.Failed)
	fmt.Fprintf(w, "Not Attempted:     %d\n", s.NotAttempted)
	fmt.Fprintf(w, "Retries:           %d\n", s.Retries)
	if s.Interrupted > 0 {
		fmt.Fprintf(w, "Interrupted:       %d\n", s.Interrupted)
	}
	if s.ArtifactErrors > 0 {
		fmt.Fprintf(w, "Artifact Errors:   %d\n", s.ArtifactErrors)
	}
	fmt.Fprintf(w, "Duration:          %s\n", s.Duration)
	fmt.Fprintf(w, "Items/sec:         %.2f\n", s.ItemsPerSec)
	fmt.Fprintln(w, "\nLatency (per item, retries included):")
	fmt.Fprintf(w, "  Min:             %s\n", s.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", s.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", s.MeanLatency)
	fmt.Fprintf(w, "  P50:             %s\n", s.P50Latency)
	fmt.Fprintf(w, "  P90:             %s\n", s.P90Latency)
	fmt.Fprintf(w, "  P99:             %s\n", s.P99Latency)
	if len(s.StatusCodes) > 0 {
		fmt.Fprintln(w, "\nStatus Codes:")
		writeBuckets(w, s.StatusCodes, "  ")
	}
	if len(s.ErrorKinds) > 0 {
		fmt.Fprintln(w, "\nError Kinds:")
		writeBuckets(w, s.ErrorKinds, "  ")
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, s metrics.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, s metrics.Summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}

func writeBuckets(w io.Writer, counts map[string]int, indent string) {
	for _, row := range metrics.FlattenBuckets(counts) {
		fmt.Fprintf(w, "%s%s: %d\n", indent, row.Key, row.Count)
	}
}
