package matrix_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrixci/matrixci/pkg/config"
	"github.com/matrixci/matrixci/pkg/matrix"
)

func mustParse(t *testing.T, doc string) *config.Pipeline {
	t.Helper()
	pipeline, err := config.Parse([]byte(doc))
	require.NoError(t, err)
	return pipeline
}

func TestExpand(t *testing.T) {
	t.Parallel()

	pipeline := mustParse(t, `
env:
  global:
    - PIP_DISABLE_PIP_VERSION_CHECK=1
  matrix:
    - CONFIG=TEST
    - CONFIG=PEP8
script:
  - ./ci.sh
matrix:
  allow_failures:
    - env: CONFIG=PEP8
`)
	jobs, err := matrix.Expand(pipeline)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, "CONFIG=TEST", jobs[0].Name)
	assert.Equal(t, 0, jobs[0].Index)
	assert.False(t, jobs[0].AllowFailure)
	val, ok := jobs[0].Env.Lookup("CONFIG")
	assert.True(t, ok)
	assert.Equal(t, "TEST", val)
	val, ok = jobs[0].Env.Lookup("PIP_DISABLE_PIP_VERSION_CHECK")
	assert.True(t, ok)
	assert.Equal(t, "1", val)

	assert.Equal(t, "CONFIG=PEP8", jobs[1].Name)
	assert.Equal(t, 1, jobs[1].Index)
	assert.True(t, jobs[1].AllowFailure, "the PEP8 axis is an allowed failure")
}

func TestExpandDefaultJob(t *testing.T) {
	t.Parallel()

	pipeline := mustParse(t, `
env:
  global:
    - VERBOSE=1
script:
  - make test
`)
	jobs, err := matrix.Expand(pipeline)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "default", jobs[0].Name)
	assert.Equal(t, []string{"VERBOSE=1"}, jobs[0].Env.Strings())
	assert.False(t, jobs[0].AllowFailure)
}

func TestExpandExclude(t *testing.T) {
	t.Parallel()

	pipeline := mustParse(t, `
env:
  matrix:
    - CONFIG=TEST PYTHON=3.8
    - CONFIG=TEST PYTHON=3.9
    - CONFIG=PEP8 PYTHON=3.9
script:
  - ./ci.sh
matrix:
  exclude:
    - env: CONFIG=TEST PYTHON=3.8
`)
	jobs, err := matrix.Expand(pipeline)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "CONFIG=TEST PYTHON=3.9", jobs[0].Name)
	assert.Equal(t, "CONFIG=PEP8 PYTHON=3.9", jobs[1].Name)
}

func TestExpandInclude(t *testing.T) {
	t.Parallel()

	pipeline := mustParse(t, `
env:
  matrix:
    - CONFIG=TEST
script:
  - ./ci.sh
matrix:
  include:
    - name: docs
      env: CONFIG=DOCS
      allow_failure: true
      script:
        - make docs
`)
	jobs, err := matrix.Expand(pipeline)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	docs := jobs[1]
	assert.Equal(t, "docs", docs.Name)
	assert.True(t, docs.AllowFailure)
	assert.Equal(t, []string{"make docs"}, docs.Script)
	val, ok := docs.Env.Lookup("CONFIG")
	assert.True(t, ok)
	assert.Equal(t, "DOCS", val)
}

func TestExpandJobsWithNeeds(t *testing.T) {
	t.Parallel()

	pipeline := mustParse(t, `
script:
  - ./ci.sh
jobs:
  - name: build
  - name: publish
    needs: [build]
`)
	jobs, err := matrix.Expand(pipeline)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Empty(t, jobs[0].Needs)
	assert.Equal(t, []string{"build"}, jobs[1].Needs)
}

func TestExpandAllowFailuresMatchSubset(t *testing.T) {
	t.Parallel()

	// An allow_failures entry matches when all of its pairs are present,
	// regardless of extra axes on the job.
	pipeline := mustParse(t, `
env:
  matrix:
    - CONFIG=PEP8 PYTHON=3.9
    - CONFIG=TEST PYTHON=3.9
script:
  - ./ci.sh
matrix:
  allow_failures:
    - env: CONFIG=PEP8
`)
	jobs, err := matrix.Expand(pipeline)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.True(t, jobs[0].AllowFailure)
	assert.False(t, jobs[1].AllowFailure)
}

func TestExpandBadMatcher(t *testing.T) {
	t.Parallel()

	// A matcher that does not parse as KEY=VALUE pairs is an error, not a
	// silent non-match.
	for tcName, tcDoc := range map[string]string{
		"allow_failures": `
env:
  matrix:
    - CONFIG=TEST
script:
  - ./ci.sh
matrix:
  allow_failures:
    - env: not-an-assignment
`,
		"exclude": `
env:
  matrix:
    - CONFIG=TEST
script:
  - ./ci.sh
matrix:
  exclude:
    - env: not-an-assignment
`,
		"include": `
script:
  - ./ci.sh
matrix:
  allow_failures:
    - env: not-an-assignment
  include:
    - name: docs
      script:
        - make docs
`,
	} {
		tcDoc := tcDoc
		t.Run(tcName, func(t *testing.T) {
			t.Parallel()
			pipeline := mustParse(t, tcDoc)
			_, err := matrix.Expand(pipeline)
			assert.Error(t, err)
		})
	}
}

func TestFilter(t *testing.T) {
	t.Parallel()

	pipeline := mustParse(t, `
env:
  matrix:
    - CONFIG=TEST
    - CONFIG=PEP8
script:
  - ./ci.sh
`)
	jobs, err := matrix.Expand(pipeline)
	require.NoError(t, err)

	filtered, err := matrix.Filter(jobs, []string{"CONFIG=PEP8"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "CONFIG=PEP8", filtered[0].Name)

	all, err := matrix.Filter(jobs, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = matrix.Filter(jobs, []string{"CONFIG=NOPE"})
	assert.Error(t, err)
}
