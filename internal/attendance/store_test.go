package attendance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFixture(t, dir, StudentsFile, "Name,Registration Number\nalice Smith,1001.0\nBob Jones,1002\n carol ,2001\n")
	writeFixture(t, dir, VerifiedFile, "Registration Number\n1001.0\n2001\n\n")
	return dir
}

func TestNormalizeRegistration(t *testing.T) {
	tests := map[string]string{
		"1001.0": "1001",
		" 1002 ": "1002",
		"ABC":    "ABC",
		"":       "",
		"12.5.0": "12",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeRegistration(in), "input %q", in)
	}
}

func TestStats(t *testing.T) {
	stats, err := NewStore(fixtureDir(t)).Stats()
	require.NoError(t, err)
	assert.Equal(t, Stats{PresentStudents: []string{"1001", "2001"}, Total: 3, Present: 2, Absent: 1}, stats)
}

func TestStatsRequiresBothFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := NewStore(dir).Stats()
	assert.ErrorIs(t, err, ErrStudentListMissing)

	writeFixture(t, dir, StudentsFile, "Name,Registration Number\na,1\n")
	_, err = NewStore(dir).Stats()
	assert.ErrorIs(t, err, ErrVerifiedListMissing)
}

func TestStudents(t *testing.T) {
	students, present, err := NewStore(fixtureDir(t)).Students()
	require.NoError(t, err)
	require.Len(t, students, 3)
	assert.Equal(t, Student{Name: "alice Smith", RegistrationNumber: "1001", IsPresent: true, Initial: "A"}, students[0])
	assert.Equal(t, Student{Name: "Bob Jones", RegistrationNumber: "1002", IsPresent: false, Initial: "B"}, students[1])
	assert.Equal(t, "carol", students[2].Name)
	assert.Equal(t, []string{"1001", "2001"}, present)
}

func TestStudentsWithoutVerifiedFile(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, StudentsFile, "Name,Registration Number\nDan,7\n")
	students, present, err := NewStore(dir).Students()
	require.NoError(t, err)
	assert.Empty(t, present)
	assert.False(t, students[0].IsPresent)
}

func TestSearch(t *testing.T) {
	store := NewStore(fixtureDir(t))

	byName, err := store.Search("JONES")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "1002", byName[0].RegistrationNumber)

	byReg, err := store.Search("100")
	require.NoError(t, err)
	assert.Len(t, byReg, 2)

	none, err := store.Search("zzz")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLookup(t *testing.T) {
	store := NewStore(fixtureDir(t))

	student, found, err := store.Lookup("1001")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, student.IsPresent)

	_, found, err = store.Lookup("9999")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidFormat(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, StudentsFile, "Full Name,Id\nx,1\n")
	_, _, err := NewStore(dir).Students()
	assert.ErrorIs(t, err, ErrInvalidFormat)
}
