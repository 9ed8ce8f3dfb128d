package datasets

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	// DefaultNumClasses is the number of classes in the released dataset.
	DefaultNumClasses = 200

	// DefaultClassFile holds one class name per line.
	DefaultClassFile = "classes.txt"
)

// ClassTable is the ordered list of class names and its reverse mapping.
type ClassTable struct {
	Names []string
	Index map[string]int
}

// NewClassTable builds a table from names, which must be unique.
func NewClassTable(names []string) (*ClassTable, error) {
	ct := &ClassTable{
		Names: names,
		Index: make(map[string]int, len(names)),
	}
	for i, name := range names {
		if prev, ok := ct.Index[name]; ok {
			return nil, errors.Wrapf(ErrConfiguration, "class %q listed at lines %d and %d", name, prev+1, i+1)
		}
		ct.Index[name] = i
	}
	return ct, nil
}

// LoadClassTable reads root/file and checks it lists exactly expected classes.
// Lines are trimmed and blank lines are ignored.
func LoadClassTable(root, file string, expected int) (*ClassTable, error) {
	if file == "" {
		file = DefaultClassFile
	}
	path := filepath.Join(expandHome(root), file)
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open class file %s", path)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read class file %s", path)
	}

	if len(names) != expected {
		return nil, errors.Wrapf(ErrConfiguration, "number of classes is expected to be %d, got %d in %s",
			expected, len(names), path)
	}
	return NewClassTable(names)
}

// Len returns the number of classes.
func (ct *ClassTable) Len() int {
	return len(ct.Names)
}

// Name returns the class name for index i, or "" if i is out of range.
func (ct *ClassTable) Name(i int) string {
	if i < 0 || i >= len(ct.Names) {
		return ""
	}
	return ct.Names[i]
}

// Lookup returns the index of a class name.
func (ct *ClassTable) Lookup(name string) (int, bool) {
	i, ok := ct.Index[name]
	return i, ok
}
