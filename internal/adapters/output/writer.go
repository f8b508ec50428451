// Package output writes the artifacts of a finished run.
// Clean Architecture: Adapter implementing ports.ArtifactWriter.
package output

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/0xcro3dile/oqgen/internal/domain/entities"
)

// Artifact file names inside a run directory.
const (
	CategorizationFile = "categorization.json"
	SuiteJSONFile      = "oq_suite.json"
	SuiteYAMLFile      = "oq_suite.yaml"
	SuiteXLSXFile      = "oq_suite.xlsx"
	RunFile            = "run.json"
)

const (
	testsSheet        = "OQ Tests"
	traceabilitySheet = "Traceability"
)

// FileWriter writes each run into <baseDir>/<run_id>/. Run directories are
// never overwritten.
type FileWriter struct {
	baseDir string
	logger  *zap.Logger
}

// NewFileWriter creates a writer rooted at baseDir.
func NewFileWriter(baseDir string, logger *zap.Logger) *FileWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileWriter{baseDir: baseDir, logger: logger.With(zap.String("component", "output"))}
}

// Write persists all artifacts and returns their paths.
func (w *FileWriter) Write(ctx context.Context, result *entities.RunResult) ([]string, error) {
	if result == nil || result.Suite == nil || result.Categorization == nil {
		return nil, errors.New("run result is incomplete")
	}
	if result.RunID == "" || strings.ContainsAny(result.RunID, `/\`) || result.RunID == "." || result.RunID == ".." {
		return nil, fmt.Errorf("invalid run ID %q", result.RunID)
	}

	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	dir := filepath.Join(w.baseDir, result.RunID)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}

	writers := []struct {
		name  string
		write func(path string) error
	}{
		{CategorizationFile, func(p string) error { return writeJSON(p, result.Categorization) }},
		{SuiteJSONFile, func(p string) error { return writeJSON(p, result.Suite) }},
		{SuiteYAMLFile, func(p string) error { return writeYAML(p, result.Suite) }},
		{SuiteXLSXFile, func(p string) error { return writeWorkbook(p, result) }},
	}

	paths := make([]string, 0, len(writers)+1)
	for _, wr := range writers {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		path := filepath.Join(dir, wr.name)
		if err := wr.write(path); err != nil {
			return paths, fmt.Errorf("writing %s: %w", wr.name, err)
		}
		paths = append(paths, path)
	}

	// run.json lists the other artifacts, so it goes last.
	runPath := filepath.Join(dir, RunFile)
	snapshot := *result
	snapshot.Artifacts = append(append([]string(nil), paths...), runPath)
	if err := writeJSON(runPath, &snapshot); err != nil {
		return paths, fmt.Errorf("writing %s: %w", RunFile, err)
	}
	paths = append(paths, runPath)

	w.logger.Info("Artifacts written", zap.String("run_id", result.RunID), zap.String("dir", dir), zap.Int("files", len(paths)))
	return paths, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func writeYAML(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeWorkbook(path string, result *entities.RunResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", testsSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(traceabilitySheet); err != nil {
		return err
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	wrap, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}})
	if err != nil {
		return err
	}

	if err := writeTestsSheet(f, result.Suite, header, wrap); err != nil {
		return err
	}
	if err := writeTraceabilitySheet(f, result, header); err != nil {
		return err
	}
	return f.SaveAs(path)
}

func writeTestsSheet(f *excelize.File, suite *entities.OQSuite, header, wrap int) error {
	cols := []interface{}{"ID", "Title", "Objective", "Prerequisites", "Steps", "Expected Result", "Requirements", "Risk"}
	if err := f.SetSheetRow(testsSheet, "A1", &cols); err != nil {
		return err
	}
	if err := f.SetCellStyle(testsSheet, "A1", "H1", header); err != nil {
		return err
	}

	for i, tc := range suite.Tests {
		steps := make([]string, len(tc.Steps))
		for j, s := range tc.Steps {
			steps[j] = fmt.Sprintf("%d. %s -> %s", s.Number, s.Action, s.Expected)
		}
		row := []interface{}{
			tc.ID,
			tc.Title,
			tc.Objective,
			strings.Join(tc.Prerequisites, "\n"),
			strings.Join(steps, "\n"),
			tc.ExpectedResult,
			strings.Join(tc.RequirementIDs, ", "),
			tc.Risk,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(testsSheet, cell, &row); err != nil {
			return err
		}
	}

	if n := len(suite.Tests); n > 0 {
		last, _ := excelize.CoordinatesToCellName(8, n+1)
		if err := f.SetCellStyle(testsSheet, "A2", last, wrap); err != nil {
			return err
		}
	}
	for _, w := range []struct {
		col   string
		width float64
	}{{"A", 10}, {"B", 36}, {"C", 48}, {"D", 32}, {"E", 64}, {"F", 48}, {"G", 18}, {"H", 8}} {
		if err := f.SetColWidth(testsSheet, w.col, w.col, w.width); err != nil {
			return err
		}
	}
	return f.SetPanes(testsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

// writeTraceabilitySheet lists every URS requirement with the tests that
// cover it. Without extracted requirements it lists the IDs the tests cite.
func writeTraceabilitySheet(f *excelize.File, result *entities.RunResult, header int) error {
	cols := []interface{}{"Requirement", "Text", "Tests", "Covered"}
	if err := f.SetSheetRow(traceabilitySheet, "A1", &cols); err != nil {
		return err
	}
	if err := f.SetCellStyle(traceabilitySheet, "A1", "D1", header); err != nil {
		return err
	}

	testsByReq := make(map[string][]string)
	var cited []entities.Requirement
	for _, tc := range result.Suite.Tests {
		for _, id := range tc.RequirementIDs {
			if _, seen := testsByReq[id]; !seen {
				cited = append(cited, entities.Requirement{ID: id})
			}
			testsByReq[id] = append(testsByReq[id], tc.ID)
		}
	}

	reqs := result.Requirements
	if len(reqs) == 0 {
		reqs = cited
	}
	for i, req := range reqs {
		covered := "No"
		if len(testsByReq[req.ID]) > 0 {
			covered = "Yes"
		}
		row := []interface{}{req.ID, req.Text, strings.Join(testsByReq[req.ID], ", "), covered}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(traceabilitySheet, cell, &row); err != nil {
			return err
		}
	}

	summaryRow := len(reqs) + 3
	cell, _ := excelize.CoordinatesToCellName(1, summaryRow)
	summary := []interface{}{"Coverage", fmt.Sprintf("%.0f%%", result.Suite.Coverage.Ratio*100)}
	if err := f.SetSheetRow(traceabilitySheet, cell, &summary); err != nil {
		return err
	}
	if err := f.SetCellStyle(traceabilitySheet, cell, cell, header); err != nil {
		return err
	}
	return f.SetColWidth(traceabilitySheet, "B", "B", 60)
}
