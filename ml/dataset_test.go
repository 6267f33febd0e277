package ml

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDatasetSample(t *testing.T) {
	ds, err := LoadDataset(filepath.Join("testdata", "heart_sample.csv"), DefaultTargetColumn)
	require.NoError(t, err)

	require.Equal(t, 24, ds.Len())
	assert.Equal(t, []float64{63, 1, 3, 145, 233, 1, 0, 150, 0, 2.3, 0, 0, 1}, ds.Features[0])
	assert.Equal(t, LabelDisease, ds.Labels[0])
	assert.Equal(t, map[int]int{LabelDisease: 16, LabelNoDisease: 8}, ds.ClassCounts())
}

func TestReadDatasetColumnOrderAndBOM(t *testing.T) {
	input := "\ufefftarget,thal,ca,slope,oldpeak,exang,thalach,restecg,fbs,chol,trestbps,cp,sex,age\n" +
		"0, 3, 2, 1, 2.6, 1, 129, 0, 0, 229, 120, 0, 1, 67\n"

	ds, err := ReadDataset(strings.NewReader(input), "")
	require.NoError(t, err)
	require.Equal(t, 1, ds.Len())
	assert.Equal(t, []float64{67, 1, 0, 120, 229, 0, 0, 129, 1, 2.6, 1, 2, 3}, ds.Features[0])
	assert.Equal(t, LabelNoDisease, ds.Labels[0])
}

func TestReadDatasetErrors(t *testing.T) {
	header := "age,sex,cp,trestbps,chol,fbs,restecg,thalach,exang,oldpeak,slope,ca,thal,target\n"
	cases := map[string]string{
		"empty":          "",
		"no rows":        header,
		"missing column": "age,sex,target\n63,1,1\n",
		"non numeric":    header + "abc,1,3,145,233,1,0,150,0,2.3,0,0,1,1\n",
		"bad target":     header + "63,1,3,145,233,1,0,150,0,2.3,0,0,1,2\n",
		"ragged row":     header + "63,1,3\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadDataset(strings.NewReader(input), DefaultTargetColumn)
			assert.Error(t, err)
		})
	}
}

func TestLoadDatasetMissingFile(t *testing.T) {
	_, err := LoadDataset(filepath.Join(t.TempDir(), "missing.csv"), DefaultTargetColumn)
	assert.Error(t, err)
}
