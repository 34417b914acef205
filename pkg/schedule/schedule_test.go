package schedule_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrixci/matrixci/pkg/matrix"
	"github.com/matrixci/matrixci/pkg/schedule"
)

func names(wave []matrix.Job) []string {
	ret := make([]string, 0, len(wave))
	for _, job := range wave {
		ret = append(ret, job.Name)
	}
	return ret
}

func TestOrder(t *testing.T) {
	t.Parallel()

	jobs := []matrix.Job{
		{Name: "test", Index: 0},
		{Name: "lint", Index: 1},
		{Name: "package", Index: 2, Needs: []string{"test", "lint"}},
		{Name: "publish", Index: 3, Needs: []string{"package"}},
	}
	waves, err := schedule.Order(jobs)
	require.NoError(t, err)
	require.Len(t, waves, 3)
	assert.Equal(t, []string{"test", "lint"}, names(waves[0]))
	assert.Equal(t, []string{"package"}, names(waves[1]))
	assert.Equal(t, []string{"publish"}, names(waves[2]))
}

func TestOrderNoNeeds(t *testing.T) {
	t.Parallel()

	jobs := []matrix.Job{
		{Name: "CONFIG=TEST"},
		{Name: "CONFIG=PEP8"},
	}
	waves, err := schedule.Order(jobs)
	require.NoError(t, err)
	require.Len(t, waves, 1)
	assert.Equal(t, []string{"CONFIG=TEST", "CONFIG=PEP8"}, names(waves[0]))
}

func TestOrderUnknownNeed(t *testing.T) {
	t.Parallel()

	jobs := []matrix.Job{
		{Name: "a", Needs: []string{"ghost"}},
	}
	_, err := schedule.Order(jobs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown job")
}

func TestOrderCycle(t *testing.T) {
	t.Parallel()

	jobs := []matrix.Job{
		{Name: "a", Needs: []string{"b"}},
		{Name: "b", Needs: []string{"a"}},
	}
	_, err := schedule.Order(jobs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestOrderDuplicateNeeds(t *testing.T) {
	t.Parallel()

	jobs := []matrix.Job{
		{Name: "a"},
		{Name: "b", Needs: []string{"a", "a"}},
	}
	waves, err := schedule.Order(jobs)
	require.NoError(t, err)
	require.Len(t, waves, 2)
	assert.Equal(t, []string{"b"}, names(waves[1]))
}
