package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockstudio/internal/asset"
	"stockstudio/internal/meta"
)

func TestWriteCSV_FiltersToCompletedAssets(t *testing.T) {
	assets := []asset.Asset{
		{
			Name:   "filename.jpg",
			Status: asset.StatusCompleted,
			Metadata: &meta.Record{
				Title:       "Sunset",
				Description: "A sunset",
				Keywords:    []string{"sky", "orange"},
			},
		},
		{Name: "failed.jpg", Status: asset.StatusError, Error: "boom"},
		{Name: "pending.jpg", Status: asset.StatusProcessing},
	}

	var buf strings.Builder
	require.NoError(t, WriteCSV(&buf, assets))

	assert.Equal(t,
		"Filename,Title,Description,Keywords\n"+
			`filename.jpg,"Sunset","A sunset","sky, orange"`+"\n",
		buf.String())
}

func TestWriteCSV_EscapesEmbeddedQuotes(t *testing.T) {
	assets := []asset.Asset{
		{
			Name:   "a.jpg",
			Status: asset.StatusCompleted,
			Metadata: &meta.Record{
				Title:       `He said "hi"`,
				Description: "Plain",
				Keywords:    []string{`big "air"`},
			},
		},
	}

	var buf strings.Builder
	require.NoError(t, WriteCSV(&buf, assets))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `a.jpg,"He said ""hi""","Plain","big ""air"""`, lines[1])
}

func TestWriteCSV_EmptySetIsHeaderOnly(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "Filename,Title,Description,Keywords\n", buf.String())
}

func TestWriteCSV_PreservesCollectionOrder(t *testing.T) {
	assets := []asset.Asset{
		{Name: "new.jpg", Status: asset.StatusCompleted, Metadata: &meta.Record{Title: "New", Description: "n"}},
		{Name: "old.jpg", Status: asset.StatusCompleted, Metadata: &meta.Record{Title: "Old", Description: "o"}},
	}

	var buf strings.Builder
	require.NoError(t, WriteCSV(&buf, assets))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "new.jpg,"))
	assert.True(t, strings.HasPrefix(lines[2], "old.jpg,"))
}
