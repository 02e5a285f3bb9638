package evaluation

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

// Report aggregates the results of an evaluation run
type Report struct {
	Provider       string    `yaml:"provider"`
	Model          string    `yaml:"model"`
	Dataset        string    `yaml:"dataset"`
	EvaluationDate time.Time `yaml:"evaluation_date"`

	Shelves      int `yaml:"shelves"`
	SuccessCount int `yaml:"success_count"`
	FailureCount int `yaml:"failure_count"`

	TotalExpected int `yaml:"total_expected"`
	TotalDetected int `yaml:"total_detected"`
	TotalMatched  int `yaml:"total_matched"`

	Precision      float64 `yaml:"precision"`
	Recall         float64 `yaml:"recall"`
	MeanConfidence float64 `yaml:"mean_confidence"`

	AverageProcessingTime time.Duration `yaml:"average_processing_time"`
	TotalProcessingTime   time.Duration `yaml:"total_processing_time"`

	Results []ShelfResult `yaml:"results"`
}

// Aggregate computes precision, recall and mean confidence over the shelves
// that were recognized. Failed shelves only count as failures.
func Aggregate(results []ShelfResult, provider, model, dataset string) *Report {
	report := &Report{
		Provider:       provider,
		Model:          model,
		Dataset:        dataset,
		EvaluationDate: time.Now(),
		Shelves:        len(results),
		Results:        results,
	}

	var successDuration time.Duration
	var confidences []float64
	for _, r := range results {
		report.TotalProcessingTime += r.ProcessingTime
		if r.Error != "" {
			report.FailureCount++
			continue
		}
		report.SuccessCount++
		successDuration += r.ProcessingTime
		report.TotalExpected += r.Expected
		report.TotalDetected += r.Detected
		report.TotalMatched += r.Matched
		confidences = append(confidences, r.confidences...)
	}

	if report.TotalDetected > 0 {
		report.Precision = float64(report.TotalMatched) / float64(report.TotalDetected)
	}
	if report.TotalExpected > 0 {
		report.Recall = float64(report.TotalMatched) / float64(report.TotalExpected)
	}
	report.MeanConfidence = calculateAverage(confidences)
	if report.SuccessCount > 0 {
		report.AverageProcessingTime = successDuration / time.Duration(report.SuccessCount)
	}
	return report
}

func calculateAverage(scores []float64) float64 {
	if len(scores) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, score := range scores {
		sum += score
	}
	return sum / float64(len(scores))
}

// PrintSummary writes a per-shelf table followed by the totals
func (r *Report) PrintSummary(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("Recognition evaluation: %s / %s", r.Provider, r.Model))
	t.AppendHeader(table.Row{"Shelf", "Expected", "Detected", "Matched", "Time", "Error"})
	for _, s := range r.Results {
		t.AppendRow(table.Row{filepath.Base(s.Image), s.Expected, s.Detected, s.Matched, s.ProcessingTime.Round(time.Millisecond), s.Error})
	}
	t.AppendFooter(table.Row{"Total", r.TotalExpected, r.TotalDetected, r.TotalMatched, r.TotalProcessingTime.Round(time.Millisecond), fmt.Sprintf("%d failed", r.FailureCount)})
	t.Render()

	fmt.Fprintf(w, "Precision:       %.1f%%\n", r.Precision*100)
	fmt.Fprintf(w, "Recall:          %.1f%%\n", r.Recall*100)
	fmt.Fprintf(w, "Mean confidence: %.3f\n", r.MeanConfidence)
}

// SaveYAML writes the report to path, creating its directory
func (r *Report) SaveYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	return nil
}
