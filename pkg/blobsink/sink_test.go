package blobsink

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// sampleRows 构造一页的核对行
func sampleRows(page int) []Row {
	return []Row{
		{Page: page, Field: "Customer Name", Result: ResultFound, Output: "ACME Corp"},
		{Page: page, Field: "Part Number", Result: ResultMissing, Output: ""},
		{Page: page, Field: "Test Result", Result: ResultFound, Output: "PASS, all checks"},
	}
}

// TestLocalSink 测试本地产物存储实现
func TestLocalSink(t *testing.T) {
	sink, err := NewLocalSink(Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("Failed to create local sink: %v", err)
	}

	t.Run("SegmentRoundTrip", func(t *testing.T) {
		rows := sampleRows(1)
		locator, err := sink.WriteSegment("job-1", 0, rows)
		if err != nil {
			t.Fatalf("Failed to write segment: %v", err)
		}
		if locator != "job-1_segment_0_validation_summary.csv" {
			t.Errorf("Unexpected segment locator: %s", locator)
		}

		got, err := sink.ReadSegment(locator)
		if err != nil {
			t.Fatalf("Failed to read segment: %v", err)
		}
		if len(got) != len(rows) {
			t.Fatalf("Expected %d rows, got %d", len(rows), len(got))
		}
		for i, row := range rows {
			if got[i] != row {
				t.Errorf("Row %d mismatch, expected %+v, got %+v", i, row, got[i])
			}
		}
	})

	t.Run("DeleteSegment", func(t *testing.T) {
		locator, err := sink.WriteSegment("job-2", 0, sampleRows(1))
		if err != nil {
			t.Fatalf("Failed to write segment: %v", err)
		}

		if err := sink.DeleteSegment(locator); err != nil {
			t.Fatalf("Failed to delete segment: %v", err)
		}

		exists, err := sink.Exists(locator)
		if err != nil {
			t.Fatalf("Failed to check existence: %v", err)
		}
		if exists {
			t.Error("Segment should not exist after deletion")
		}
	})

	t.Run("FinalArtifactFormat", func(t *testing.T) {
		locator, err := sink.WriteFinalArtifact("job-3", sampleRows(1))
		if err != nil {
			t.Fatalf("Failed to write final artifact: %v", err)
		}
		if locator != "job-3_validation_summary.csv" {
			t.Errorf("Unexpected final artifact locator: %s", locator)
		}

		data, err := os.ReadFile(filepath.Join(sink.Dir(), locator))
		if err != nil {
			t.Fatalf("Failed to read artifact file: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if lines[0] != "Page,Field,Result,Output" {
			t.Errorf("Unexpected header: %s", lines[0])
		}
		if len(lines) != 4 {
			t.Errorf("Expected header plus 3 data rows, got %d lines", len(lines))
		}
		// Missing行的Output为空
		if lines[2] != "1,Part Number,Missing," {
			t.Errorf("Unexpected missing row: %s", lines[2])
		}
	})

	t.Run("SummaryArtifactFormat", func(t *testing.T) {
		rows := []SummaryRow{
			{Field: "Part Number", Status: "Found", Output: "PN-1; PN-1"},
			{Field: "DPA", Status: "Not found", Output: "Not found"},
		}
		locator, err := sink.WriteSummaryArtifact("job-4", rows)
		if err != nil {
			t.Fatalf("Failed to write summary artifact: %v", err)
		}

		data, err := os.ReadFile(filepath.Join(sink.Dir(), locator))
		if err != nil {
			t.Fatalf("Failed to read summary file: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if lines[0] != "Field,Status,Output" {
			t.Errorf("Unexpected summary header: %s", lines[0])
		}
		if len(lines) != 3 {
			t.Errorf("Expected header plus 2 data rows, got %d lines", len(lines))
		}
	})

	t.Run("ErrorArtifactFormat", func(t *testing.T) {
		locator, err := sink.WriteErrorArtifact("job-5", "something broke", []string{"frame 1", "frame 2"})
		if err != nil {
			t.Fatalf("Failed to write error artifact: %v", err)
		}
		if locator != "job-5_error_summary.csv" {
			t.Errorf("Unexpected error artifact locator: %s", locator)
		}

		reader, err := sink.Open(locator)
		if err != nil {
			t.Fatalf("Failed to open error artifact: %v", err)
		}
		defer reader.Close()

		data, err := io.ReadAll(reader)
		if err != nil {
			t.Fatalf("Failed to read error artifact: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		expected := []string{"Error", "something broke", "Traceback:", "frame 1", "frame 2"}
		if len(lines) != len(expected) {
			t.Fatalf("Expected %d lines, got %d: %v", len(expected), len(lines), lines)
		}
		for i, want := range expected {
			if lines[i] != want {
				t.Errorf("Line %d mismatch, expected %q, got %q", i, want, lines[i])
			}
		}
	})

	t.Run("AnomalyWorkbook", func(t *testing.T) {
		anomalies := []AnomalyRow{
			{Page: "1", Field: "Resistance", Issue: "Out of range: 110"},
			{Page: "All Pages", Field: "Part Number", Issue: "Inconsistent values"},
		}
		locator, err := sink.WriteAnomalyWorkbook("job-6", anomalies)
		if err != nil {
			t.Fatalf("Failed to write anomaly workbook: %v", err)
		}
		if locator != "job-6_validation_summary.xlsx" {
			t.Errorf("Unexpected workbook locator: %s", locator)
		}

		exists, err := sink.Exists(locator)
		if err != nil {
			t.Fatalf("Failed to check workbook existence: %v", err)
		}
		if !exists {
			t.Error("Workbook file should exist")
		}
	})

	t.Run("ExistsUnknown", func(t *testing.T) {
		exists, err := sink.Exists("no-such-artifact.csv")
		if err != nil {
			t.Fatalf("Exists should not fail for unknown locator: %v", err)
		}
		if exists {
			t.Error("Unknown locator should not exist")
		}
	})
}

// TestEncodeRowsQuoting CSV编码正确处理包含逗号的值
func TestEncodeRowsQuoting(t *testing.T) {
	rows := []Row{{Page: 1, Field: "Test Result", Result: ResultFound, Output: "PASS, all checks"}}
	data, err := encodeRows(rows)
	if err != nil {
		t.Fatalf("Failed to encode rows: %v", err)
	}

	decoded, err := decodeRows(data)
	if err != nil {
		t.Fatalf("Failed to decode rows: %v", err)
	}
	if decoded[0].Output != "PASS, all checks" {
		t.Errorf("Quoted value corrupted: %q", decoded[0].Output)
	}
}
