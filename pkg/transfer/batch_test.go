package transfer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeDescriptors(t *testing.T, n int) []TransferDescriptor {
	t.Helper()
	sources := make([]SourceSpec, 0, n)
	for i := 0; i < n; i++ {
		sources = append(sources, SourceSpec{Raw: fmt.Sprintf("s3://src/data/file%03d.bin", i), SizeHint: 100})
	}
	descriptors, err := BuildDescriptors(sources, "s3://dst/backup")
	require.NoError(t, err)
	return descriptors
}

func TestBuildCommandDocumentsChunking(t *testing.T) {
	descriptors := makeDescriptors(t, 7)
	indices := []int{0, 1, 2, 3, 4, 5, 6}

	docs := BuildCommandDocuments(descriptors, indices, GeneratorConfig{MaxBatchSize: 3, PartSizeMB: 50})
	require.Len(t, docs, 3)
	assert.Equal(t, []int{0, 1, 2}, docs[0].Order)
	assert.Equal(t, []int{3, 4, 5}, docs[1].Order)
	assert.Equal(t, []int{6}, docs[2].Order)

	total := 0
	for _, doc := range docs {
		assert.Len(t, doc.Lines, len(doc.Order))
		total += len(doc.Lines)
	}
	assert.Equal(t, 7, total)
}

func TestBuildCommandDocumentsSubset(t *testing.T) {
	descriptors := makeDescriptors(t, 5)

	docs := BuildCommandDocuments(descriptors, []int{4, 1}, GeneratorConfig{MaxBatchSize: 100})
	require.Len(t, docs, 1)
	assert.Equal(t, []int{4, 1}, docs[0].Order)
	assert.Contains(t, docs[0].Lines[0], "file004.bin")
	assert.Contains(t, docs[0].Lines[1], "file001.bin")
}

func TestRenderCopyDirective(t *testing.T) {
	descriptors := makeDescriptors(t, 1)

	line := renderCopyDirective(descriptors[0], GeneratorConfig{
		Conditional:  true,
		PartSizeMB:   50,
		SourceRegion: "ap-southeast-1",
	})
	assert.Equal(t,
		"cp -n -s -u -p 50 --source-region ap-southeast-1 s3://src/data/file000.bin s3://dst/backup/data/file000.bin",
		line)

	bare := renderCopyDirective(descriptors[0], GeneratorConfig{})
	assert.Equal(t, "cp s3://src/data/file000.bin s3://dst/backup/data/file000.bin", bare)
}

func TestRenderCopyDirectiveUsesURLRegionHint(t *testing.T) {
	descriptors, err := BuildDescriptors([]SourceSpec{
		{Raw: "https://bkt.s3.eu-central-1.amazonaws.com/obj.bin"},
	}, "s3://dst/backup")
	require.NoError(t, err)

	line := renderCopyDirective(descriptors[0], GeneratorConfig{})
	assert.Contains(t, line, "--source-region eu-central-1")
}

func TestRenderCopyDirectiveQuotesSpaces(t *testing.T) {
	descriptors, err := BuildDescriptors([]SourceSpec{
		{Raw: "s3://src/my file.bin"},
	}, "s3://dst/backup")
	require.NoError(t, err)

	line := renderCopyDirective(descriptors[0], GeneratorConfig{})
	assert.Contains(t, line, `"s3://src/my file.bin"`)
	assert.Contains(t, line, `"s3://dst/backup/my file.bin"`)
}

func TestNewBatchPreRendersDirectSyncDocuments(t *testing.T) {
	descriptors := makeDescriptors(t, 4)

	direct := NewBatch(descriptors, ModeDirectSync, GeneratorConfig{MaxBatchSize: 2})
	assert.Equal(t, StateModeSelected, direct.State)
	require.Len(t, direct.Documents, 2)
	assert.False(t, direct.Escalated)

	traditional := NewBatch(descriptors, ModeTraditional, GeneratorConfig{MaxBatchSize: 2})
	assert.Empty(t, traditional.Documents)
}

func TestCommandDocumentBody(t *testing.T) {
	doc := CommandDocument{Lines: []string{"cp a b", "cp c d"}}
	body := doc.Body()
	assert.True(t, strings.HasSuffix(body, "\n"))
	assert.Equal(t, []string{"cp a b", "cp c d"}, strings.Split(strings.TrimSpace(body), "\n"))
}
