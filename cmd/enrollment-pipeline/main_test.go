package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/enrollment-pipeline/internal/models"
	"github.com/noah-isme/enrollment-pipeline/internal/service"
	"github.com/noah-isme/enrollment-pipeline/pkg/config"
)

func TestApplyOverrides(t *testing.T) {
	dst := config.PipelineConfig{InputPath: "data/raw.csv", OutputPath: "data/clean.csv", VisualsDir: "visuals"}
	applyOverrides(&dst, config.PipelineConfig{InputPath: "exports/raw.xlsx", InputSheet: "Sheet2"})

	assert.Equal(t, "exports/raw.xlsx", dst.InputPath)
	assert.Equal(t, "Sheet2", dst.InputSheet)
	assert.Equal(t, "data/clean.csv", dst.OutputPath)
	assert.Equal(t, "visuals", dst.VisualsDir)
}

func TestPrintOutputs(t *testing.T) {
	var buf bytes.Buffer
	printCounts(&buf, &models.PipelineResult{RunID: "run-1", RawCount: 6, CleanCount: 4})
	assert.Equal(t, "run run-1: raw rows 6, canonical records 4, dropped 2\n", buf.String())

	buf.Reset()
	first := time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC)
	printMetrics(&buf, []models.CityMetrics{
		{City: "Austin", TotalEnrollments: 3, RepeatEnrollments: 1, FirstEnrollment: &first, LastEnrollment: &first},
		{City: "Reno", TotalEnrollments: 1},
	})
	out := buf.String()
	assert.Contains(t, out, "CITY")
	assert.Contains(t, out, "2023-01-05")
	assert.Contains(t, out, "Reno")
	assert.Contains(t, out, "-")

	buf.Reset()
	printUploads(&buf, []*service.UploadReport{nil, {Table: "Cities", Records: 2, Batches: 1, Succeeded: 1}})
	assert.Equal(t, "upload Cities: 2 records in 1 batches, 1 succeeded, 0 failed\n", buf.String())
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	names := []string{}
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	assert.Subset(t, names, []string{"clean", "analyze", "visualize", "upload", "run"})
	assert.NotNil(t, root.PersistentFlags().Lookup("input"))
}
