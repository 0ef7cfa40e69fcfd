// Package attendance serves the read-only student and attendance views the
// load generator is usually aimed at. Data lives in two CSV files that are
// re-read on every request and never modified here.
package attendance

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	StudentsFile = "user_data.csv"
	VerifiedFile = "verified_ids.csv"

	nameColumn         = "Name"
	registrationColumn = "Registration Number"
)

var (
	// ErrStudentListMissing is returned when the student list file does not exist.
	ErrStudentListMissing = errors.New("student list not found")
	// ErrVerifiedListMissing is returned when the verified id file does not exist.
	ErrVerifiedListMissing = errors.New("verified id list not found")
	// ErrInvalidFormat is returned when a file lacks a required column.
	ErrInvalidFormat = errors.New("invalid CSV format")
)

// Student is one row of the student list joined with attendance.
type Student struct {
	Name               string `json:"name"`
	RegistrationNumber string `json:"registrationNumber"`
	IsPresent          bool   `json:"isPresent"`
	Initial            string `json:"initial"`
}

// Stats summarises attendance.
type Stats struct {
	PresentStudents []string `json:"PresentStudents"`
	Total           int      `json:"total"`
	Present         int      `json:"present"`
	Absent          int      `json:"absent"`
}

// Store reads attendance data from a directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = "."
	}
	return &Store{dir: dir}
}

// NormalizeRegistration trims a registration number and drops any decimal
// suffix left by spreadsheet exports ("1234.0" becomes "1234").
func NormalizeRegistration(raw string) string {
	reg := strings.TrimSpace(raw)
	if i := strings.IndexByte(reg, '.'); i >= 0 {
		reg = reg[:i]
	}
	return reg
}

type row struct {
	name string
	reg  string // raw value
}

// Stats reports how many listed students have been verified.
func (s *Store) Stats() (Stats, error) {
	rows, err := s.readStudents()
	if err != nil {
		return Stats{}, err
	}
	present, err := s.readPresent()
	if err != nil {
		return Stats{}, err
	}
	if present == nil {
		return Stats{}, ErrVerifiedListMissing
	}

	ids := sortedKeys(present)
	return Stats{
		PresentStudents: ids,
		Total:           len(rows),
		Present:         len(ids),
		Absent:          len(rows) - len(ids),
	}, nil
}

// Students returns every listed student and the verified registration numbers.
// A missing verified file means nobody is present yet.
func (s *Store) Students() ([]Student, []string, error) {
	rows, err := s.readStudents()
	if err != nil {
		return nil, nil, err
	}
	present, err := s.readPresent()
	if err != nil {
		return nil, nil, err
	}
	return join(rows, present), sortedKeys(present), nil
}

// Search returns students whose name or registration number contains query,
// case-insensitively.
func (s *Store) Search(query string) ([]Student, error) {
	rows, err := s.readStudents()
	if err != nil {
		return nil, err
	}
	present, err := s.readPresent()
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	matched := make([]row, 0, len(rows))
	for _, r := range rows {
		if strings.Contains(strings.ToLower(r.name), q) || strings.Contains(strings.ToLower(r.reg), q) {
			matched = append(matched, r)
		}
	}
	return join(matched, present), nil
}

// Lookup finds a student by registration number. found is false when no row
// matches.
func (s *Store) Lookup(id string) (student Student, found bool, err error) {
	rows, err := s.readStudents()
	if err != nil {
		return Student{}, false, err
	}
	present, err := s.readPresent()
	if err != nil {
		return Student{}, false, err
	}

	want := NormalizeRegistration(id)
	for _, r := range rows {
		if NormalizeRegistration(r.reg) == want {
			return toStudent(r, present), true, nil
		}
	}
	return Student{}, false, nil
}

func join(rows []row, present map[string]struct{}) []Student {
	out := make([]Student, 0, len(rows))
	for _, r := range rows {
		out = append(out, toStudent(r, present))
	}
	return out
}

func toStudent(r row, present map[string]struct{}) Student {
	reg := NormalizeRegistration(r.reg)
	name := strings.TrimSpace(r.name)
	initial := "?"
	if name != "" {
		initial = strings.ToUpper(string([]rune(name)[0]))
	}
	_, ok := present[reg]
	return Student{Name: name, RegistrationNumber: reg, IsPresent: ok, Initial: initial}
}

func (s *Store) readStudents() ([]row, error) {
	records, header, err := readCSV(filepath.Join(s.dir, StudentsFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrStudentListMissing
	}
	if err != nil {
		return nil, err
	}
	nameIdx, ok := header[nameColumn]
	if !ok {
		return nil, fmt.Errorf("%s: missing %q column: %w", StudentsFile, nameColumn, ErrInvalidFormat)
	}
	regIdx, ok := header[registrationColumn]
	if !ok {
		return nil, fmt.Errorf("%s: missing %q column: %w", StudentsFile, registrationColumn, ErrInvalidFormat)
	}

	rows := make([]row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, row{name: field(rec, nameIdx), reg: field(rec, regIdx)})
	}
	return rows, nil
}

// readPresent returns the verified registration numbers, or nil when the
// verified file does not exist.
func (s *Store) readPresent() (map[string]struct{}, error) {
	records, header, err := readCSV(filepath.Join(s.dir, VerifiedFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	regIdx, ok := header[registrationColumn]
	if !ok {
		return nil, fmt.Errorf("%s: missing %q column: %w", VerifiedFile, registrationColumn, ErrInvalidFormat)
	}

	present := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if reg := NormalizeRegistration(field(rec, regIdx)); reg != "" {
			present[reg] = struct{}{}
		}
	}
	return present, nil
}

func readCSV(path string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	first, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, map[string]int{}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	header := make(map[string]int, len(first))
	for i, col := range first {
		header[strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))] = i
	}

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return records, header, nil
}

func field(rec []string, idx int) string {
	if idx < len(rec) {
		return rec[idx]
	}
	return ""
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
