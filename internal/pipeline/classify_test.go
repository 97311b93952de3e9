package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		key  string
		want Branch
	}{
		{"inputs/case1.json", BranchSubmission},
		{"inputs/nested/case2.json", BranchSubmission},
		{"inputs/readme.txt", BranchUnmatched},
		{"async-out/4f7c9a.out", BranchReport},
		{"async-out/4f7c9a.out.json", BranchUnmatched},
		{"compared/block-7.png", BranchRouting},
		{"compared/", BranchRouting},
		{"other/ignored.txt", BranchUnmatched},
		{"images/a.png", BranchUnmatched},
		{"payload/9c1d.json", BranchUnmatched},
		{"markdown/report.md", BranchUnmatched},
		{"", BranchUnmatched},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.key), "key %q", tc.key)
	}
}

func TestBranchString(t *testing.T) {
	assert.Equal(t, "submission", BranchSubmission.String())
	assert.Equal(t, "report", BranchReport.String())
	assert.Equal(t, "routing", BranchRouting.String())
	assert.Equal(t, "unmatched", BranchUnmatched.String())
	assert.Equal(t, "unmatched", Branch(99).String())
}
