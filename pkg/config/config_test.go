package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrixci/matrixci/pkg/config"
)

// pipelineDoc is a complete pipeline of the shape this tool exists for: a
// test axis and a style-check axis, the style check allowed to fail, plus a
// fixture repository exported through an env var.
const pipelineDoc = `
env:
  global:
    - PIP_DISABLE_PIP_VERSION_CHECK=1
  matrix:
    - CONFIG=TEST
    - CONFIG=PEP8
clone:
  - repo: https://github.com/atmtools/typhon-testfiles.git
    env: TYPHONTESTFILES
before_install:
  - pip install --upgrade pip
install:
  - pip install numba
  - pip install --editable ".[tests]"
script:
  - if [ "$CONFIG" = "TEST" ]; then pytest --pyargs typhon; fi
  - if [ "$CONFIG" = "PEP8" ]; then pip install flake8 && flake8 --statistics typhon; fi
matrix:
  fast_finish: true
  allow_failures:
    - env: CONFIG=PEP8
timeout: 30m
`

func TestParse(t *testing.T) {
	t.Parallel()

	pipeline, err := config.Parse([]byte(pipelineDoc))
	require.NoError(t, err)
	require.NoError(t, pipeline.Validate())

	assert.Equal(t, []string{"PIP_DISABLE_PIP_VERSION_CHECK=1"}, pipeline.Env.Global)
	assert.Equal(t, []string{"CONFIG=TEST", "CONFIG=PEP8"}, pipeline.Env.Matrix)
	require.Len(t, pipeline.Clone, 1)
	assert.Equal(t, "TYPHONTESTFILES", pipeline.Clone[0].Env)
	assert.True(t, pipeline.Matrix.FastFinish)
	require.Len(t, pipeline.Matrix.AllowFailures, 1)
	assert.Equal(t, "CONFIG=PEP8", pipeline.Matrix.AllowFailures[0].Env)
	assert.Equal(t, 30*time.Minute, time.Duration(pipeline.Timeout))
	assert.Len(t, pipeline.Script, 2)
}

func TestParseUnknownField(t *testing.T) {
	t.Parallel()

	_, err := config.Parse([]byte("scripts:\n  - true\n"))
	assert.Error(t, err, "a typoed key must not be silently ignored")
}

func TestLoad(t *testing.T) {
	t.Parallel()
	tmpdir := t.TempDir()

	path := filepath.Join(tmpdir, config.DefaultFilename)
	require.NoError(t, os.WriteFile(path, []byte(pipelineDoc), 0644))

	pipeline, err := config.Load(path)
	require.NoError(t, err)
	assert.Len(t, pipeline.Env.Matrix, 2)

	_, err = config.Load(filepath.Join(tmpdir, "missing.yml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	testcases := map[string]struct {
		Doc    string
		ExpErr string
	}{
		"no-jobs": {
			Doc:    "env: {}\n",
			ExpErr: "no script phase",
		},
		"script-only": {
			Doc: "script: [\"true\"]\n",
		},
		"bad-global": {
			Doc:    "script: [\"true\"]\nenv:\n  global:\n    - NOT_AN_ASSIGNMENT\n",
			ExpErr: "env.global",
		},
		"bad-matrix-entry": {
			Doc:    "script: [\"true\"]\nenv:\n  matrix:\n    - \"=oops\"\n",
			ExpErr: "env.matrix",
		},
		"clone-missing-env": {
			Doc:    "script: [\"true\"]\nclone:\n  - repo: https://example.com/x.git\n",
			ExpErr: "missing env",
		},
		"clone-missing-repo": {
			Doc:    "script: [\"true\"]\nclone:\n  - env: FIXTURES\n",
			ExpErr: "missing repo",
		},
		"duplicate-job-names": {
			Doc:    "script: [\"true\"]\njobs:\n  - name: a\n  - name: a\n",
			ExpErr: "duplicate job name",
		},
		"unknown-need": {
			Doc:    "script: [\"true\"]\njobs:\n  - name: a\n    needs: [nope]\n",
			ExpErr: "unknown job",
		},
		"job-script-standalone": {
			Doc: "jobs:\n  - name: a\n    script: [\"true\"]\n",
		},
		"job-without-any-script": {
			Doc:    "jobs:\n  - name: a\n",
			ExpErr: "no script",
		},
	}
	for tcName, tcData := range testcases {
		tcData := tcData
		t.Run(tcName, func(t *testing.T) {
			t.Parallel()
			pipeline, err := config.Parse([]byte(tcData.Doc))
			require.NoError(t, err)
			err = pipeline.Validate()
			if tcData.ExpErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tcData.ExpErr)
			}
		})
	}
}

func TestParseEnvEntry(t *testing.T) {
	t.Parallel()
	testcases := map[string]struct {
		Input  string
		Exp    []string
		ExpErr bool
	}{
		"single":      {Input: "CONFIG=TEST", Exp: []string{"CONFIG=TEST"}},
		"multi":       {Input: "CONFIG=TEST PYTHON=3.9", Exp: []string{"CONFIG=TEST", "PYTHON=3.9"}},
		"quoted":      {Input: `MSG="hello world" N=1`, Exp: []string{"MSG=hello world", "N=1"}},
		"single-q":    {Input: "MSG='a b'", Exp: []string{"MSG=a b"}},
		"empty":       {Input: "", ExpErr: true},
		"not-a-var":   {Input: "JUSTAWORD", ExpErr: true},
		"open-quote":  {Input: `MSG="oops`, ExpErr: true},
		"tabs-spaces": {Input: "A=1\tB=2  C=3", Exp: []string{"A=1", "B=2", "C=3"}},
	}
	for tcName, tcData := range testcases {
		tcData := tcData
		t.Run(tcName, func(t *testing.T) {
			t.Parallel()
			env, err := config.ParseEnvEntry(tcData.Input)
			if tcData.ExpErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tcData.Exp, env.Strings())
			}
		})
	}
}

func TestDuration(t *testing.T) {
	t.Parallel()

	pipeline, err := config.Parse([]byte("script: [\"true\"]\ntimeout: 90s\n"))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, time.Duration(pipeline.Timeout))

	_, err = config.Parse([]byte("script: [\"true\"]\ntimeout: soon\n"))
	assert.Error(t, err)
}
