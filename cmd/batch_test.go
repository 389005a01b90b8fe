package main

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/parts-cli/internal/model"
)

func writeTestCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parts.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadBatchFileSkipsHeader(t *testing.T) {
	path := writeTestCSV(t, "description,make,model,year\nBowl Lift Motor,Hobart,A200,1998\nDoor Gasket,True,T-49\n")

	queries, err := readBatchFile(path)
	require.NoError(t, err)
	require.Len(t, queries, 2)
	assert.Equal(t, model.PartQuery{
		Description: "Bowl Lift Motor", Make: "Hobart", Model: "A200", Year: "1998",
	}, queries[0])
	assert.Equal(t, "Door Gasket", queries[1].Description)
	assert.Empty(t, queries[1].Year)
}

func TestReadBatchFileWithoutHeader(t *testing.T) {
	path := writeTestCSV(t, "Bowl Lift Motor,Hobart\n,skipped blank description\n")

	queries, err := readBatchFile(path)
	require.NoError(t, err)
	require.Len(t, queries, 1)
	assert.Equal(t, "Bowl Lift Motor", queries[0].Description)
	assert.Equal(t, "Hobart", queries[0].Make)
}

func TestReadBatchFileUnsupportedType(t *testing.T) {
	_, err := readBatchFile("parts.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported batch file type")
}

func TestProcessBatch(t *testing.T) {
	queries := []model.PartQuery{
		{Description: "Bowl Lift Motor"},
		{Description: "Door Gasket"},
		{Description: "Drain Valve"},
	}

	var calls atomic.Int32
	results, err := processBatch(context.Background(), queries, 0, 2,
		func(ctx context.Context, q model.PartQuery) *model.ResolutionResponse {
			calls.Add(1)
			return &model.ResolutionResponse{Query: q}
		})
	require.NoError(t, err)

	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, results, 3)
	// Results keep the input order regardless of completion order.
	for i, q := range queries {
		assert.Equal(t, q, results[i].Query)
	}
}

func TestProcessBatchLimit(t *testing.T) {
	queries := []model.PartQuery{
		{Description: "one"}, {Description: "two"}, {Description: "three"},
	}

	results, err := processBatch(context.Background(), queries, 2, 1,
		func(ctx context.Context, q model.PartQuery) *model.ResolutionResponse {
			return &model.ResolutionResponse{Query: q}
		})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestProcessBatchEmpty(t *testing.T) {
	results, err := processBatch(context.Background(), nil, 0, 4, nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestWriteBatchResultsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	results := []*model.ResolutionResponse{{Query: model.PartQuery{Description: "motor"}}}

	require.NoError(t, writeBatchResults(results, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"motor"`)
}
