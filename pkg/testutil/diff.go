package testutil

import (
	"fmt"
	"strings"
	"testing"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/matrixci/matrixci/pkg/report"
)

var spewConfig = spew.ConfigState{
	Indent:                  "  ",
	DisableMethods:          true,
	DisableCapacities:       true,
	DisablePointerAddresses: true,
	SortKeys:                true,
}

// Dump renders an arbitrary value in a stable, diffable form.
func Dump(val interface{}) string {
	return spewConfig.Sdump(val)
}

// DumpRunListing renders a run as the flat step listing a human would want to
// eyeball in a test failure: one line per step, job-prefixed.
func DumpRunListing(run *report.Run) (string, error) {
	ret := new(strings.Builder)

	table := tabwriter.NewWriter(
		ret, // output
		0,   // minwidth
		1,   // tabwidth
		1,   // padding
		' ', // padchar
		0)   // flags
	for _, job := range run.Jobs {
		if _, err := fmt.Fprintln(table, strings.Join([]string{
			"",
			job.Name,
			string(job.Status),
			"",
		}, "\t")); err != nil {
			return "", err
		}
		for _, step := range job.Steps {
			if _, err := fmt.Fprintln(table, strings.Join([]string{
				"",
				job.Name,
				fmt.Sprintf("%s[%d]", step.Phase, step.ExitCode),
				step.Command,
			}, "\t")); err != nil {
				return "", err
			}
		}
	}
	if err := table.Flush(); err != nil {
		return "", err
	}

	return ret.String(), nil
}

// AssertEqualDump compares two values via their Dump representations,
// reporting a unified diff on mismatch.
func AssertEqualDump(t *testing.T, exp, act interface{}) bool {
	t.Helper()

	expStr := Dump(exp)
	actStr := Dump(act)
	if expStr == actStr {
		return true
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expStr),
		B:        difflib.SplitLines(actStr),
		FromFile: "Expected",
		FromDate: "",
		ToFile:   "Actual",
		ToDate:   "",
		Context:  1,
	})
	t.Errorf("Dump diff:\n%s", diff)
	return false
}
