package main

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestCGPA(t *testing.T) {
	history := `[
		{"level":"100","semester":"First","courses":[{"courseCode":"CSC101","score":72,"unit":3},{"courseCode":"MTH101","score":"55","unit":2}]},
		{"level":"100","semester":"Second","courses":[{"courseCode":"CSC102","score":40,"unit":3}]}
	]`

	out, err := execute(t, "cgpa", "X1", encode(history))
	require.NoError(t, err)
	assert.Equal(t, "2.63\n", out)
}

func TestCGPA_EmptyHistory(t *testing.T) {
	out, err := execute(t, "cgpa", "X1", encode("[]"))
	require.NoError(t, err)
	assert.Equal(t, "0.00\n", out)
}

func TestCGPA_BadInputFails(t *testing.T) {
	tests := map[string]string{
		"not base64": "%%%",
		"not json":   encode("{oops"),
	}
	for name, arg := range tests {
		t.Run(name, func(t *testing.T) {
			out, err := execute(t, "cgpa", "X1", arg)
			require.Error(t, err)
			assert.ErrorIs(t, err, errBadHistory)
			assert.Empty(t, out)
		})
	}
}

func TestCGPA_RequiresTwoArgs(t *testing.T) {
	_, err := execute(t, "cgpa", "X1")
	assert.Error(t, err)
}

func TestGPA(t *testing.T) {
	out, err := execute(t, "gpa", "--course", "CSC101:72:3", "-c", "MTH101:55:2")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "GPA 4.20", lines[0])
	assert.Equal(t, []string{"CSC101", "72", "3", "A"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"MTH101", "55", "2", "C"}, strings.Fields(lines[2]))
}

func TestGPA_Errors(t *testing.T) {
	_, err := execute(t, "gpa")
	assert.Error(t, err)

	_, err = execute(t, "gpa", "--course", "CSC101:72")
	assert.ErrorContains(t, err, "CODE:SCORE:UNIT")
}

func TestPoints(t *testing.T) {
	tests := []struct {
		score string
		want  string
	}{
		{"70", "A 5\n"},
		{"69.5", "B 4\n"},
		{"50", "C 3\n"},
		{"45", "D 2\n"},
		{"44", "F 0\n"},
	}
	for _, tt := range tests {
		out, err := execute(t, "points", tt.score)
		require.NoError(t, err)
		assert.Equal(t, tt.want, out, "score %s", tt.score)
	}

	_, err := execute(t, "points", "abc")
	assert.Error(t, err)
}

func TestParseCourse(t *testing.T) {
	c, err := parseCourse(" PHY101 : 61 : 4 ")
	require.NoError(t, err)
	assert.Equal(t, "PHY101", c.Code)
	assert.Equal(t, "61", c.Score.Raw())
	assert.Equal(t, "4", c.Unit.Raw())

	_, err = parseCourse(":61:4")
	assert.Error(t, err)
}
