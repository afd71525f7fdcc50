package contexts

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/jmin-pingu/ihcl/internal/types"
)

// DefaultDelimiter separates description and path in delimited declaration files.
const DefaultDelimiter = ","

// DefaultRunName names the single run of a declaration without variable sets.
const DefaultRunName = "default"

// Declaration lists context entries: the fixed set applies to every run and each
// variable set is combined with it to form one independent run.
type Declaration struct {
	Fixed    []types.Entry            `yaml:"fixed" toml:"fixed"`
	Variable map[string][]types.Entry `yaml:"variable" toml:"variable"`
}

// Run is one independent unit of work: a name and the entries to build.
type Run struct {
	Name    string
	Entries []types.Entry
}

// Runs expands the declaration into runs ordered by variable set name.
// Without variable sets there is a single run named DefaultRunName.
func (d *Declaration) Runs() []Run {
	if len(d.Variable) == 0 {
		return []Run{{Name: DefaultRunName, Entries: append([]types.Entry(nil), d.Fixed...)}}
	}

	names := make([]string, 0, len(d.Variable))
	for name := range d.Variable {
		names = append(names, name)
	}
	sort.Strings(names)

	runs := make([]Run, 0, len(names))
	for _, name := range names {
		entries := make([]types.Entry, 0, len(d.Fixed)+len(d.Variable[name]))
		entries = append(entries, d.Fixed...)
		entries = append(entries, d.Variable[name]...)
		runs = append(runs, Run{Name: name, Entries: entries})
	}
	return runs
}

// LoadDeclaration reads a declaration file. .yaml, .yml and .toml files use the
// structured form; anything else is a delimited file with one
// "DESCRIPTION DELIMITER PATH" entry per line.
func LoadDeclaration(path, delimiter string) (*Declaration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open context declaration: %w", err)
	}
	defer func() { _ = f.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return decodeYAML(f, path)
	case ".toml":
		return decodeTOML(f, path)
	default:
		entries, err := ParseDelimited(f, path, delimiter)
		if err != nil {
			return nil, err
		}
		return &Declaration{Fixed: entries}, nil
	}
}

// ParseDelimited reads one entry per non-blank line. Each line must split on
// delimiter into exactly two non-empty fields; surrounding whitespace is trimmed.
func ParseDelimited(r io.Reader, source, delimiter string) ([]types.Entry, error) {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}

	var entries []types.Entry
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Split(line, delimiter)
		if len(fields) != 2 {
			return nil, &MalformedInputError{
				Source:   source,
				Line:     lineNo,
				Expected: ExpectedShape,
				Got:      line,
				Reason:   fmt.Sprintf("line has %d fields", len(fields)),
			}
		}

		entry := types.Entry{Description: strings.TrimSpace(fields[0]), Path: strings.TrimSpace(fields[1])}
		if err := checkEntry(entry, source, lineNo); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read context declaration %s: %w", source, err)
	}

	if len(entries) == 0 {
		return nil, &MalformedInputError{Source: source, Expected: ExpectedShape, Reason: "declaration has no entries"}
	}
	return entries, nil
}

func decodeYAML(r io.Reader, source string) (*Declaration, error) {
	var d Declaration
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&d); err != nil && err != io.EOF {
		return nil, &MalformedInputError{Source: source, Expected: ExpectedShape, Reason: err.Error()}
	}
	if err := d.validate(source); err != nil {
		return nil, err
	}
	return &d, nil
}

func decodeTOML(r io.Reader, source string) (*Declaration, error) {
	var d Declaration
	decoder := toml.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&d); err != nil {
		return nil, &MalformedInputError{Source: source, Expected: ExpectedShape, Reason: err.Error()}
	}
	if err := d.validate(source); err != nil {
		return nil, err
	}
	return &d, nil
}

// validate checks the fixed set, which every run shares. Variable-set entries
// are checked when their run builds, so one bad set fails only its own run.
func (d *Declaration) validate(source string) error {
	total := len(d.Fixed)
	for i, e := range d.Fixed {
		if err := checkEntry(e, source+" fixed", i+1); err != nil {
			return err
		}
	}
	for _, set := range d.Variable {
		total += len(set)
	}
	if total == 0 {
		return &MalformedInputError{Source: source, Expected: ExpectedShape, Reason: "declaration has no entries"}
	}
	return nil
}

// ValidateEntries checks every in-memory entry has both fields.
func ValidateEntries(entries []types.Entry) error {
	for i, e := range entries {
		if err := checkEntry(e, "entries", i+1); err != nil {
			return err
		}
	}
	return nil
}

func checkEntry(e types.Entry, source string, line int) error {
	if strings.TrimSpace(e.Description) != "" && strings.TrimSpace(e.Path) != "" {
		return nil
	}
	return &MalformedInputError{
		Source:   source,
		Line:     line,
		Expected: ExpectedShape,
		Got:      fmt.Sprintf("%s, %s", e.Description, e.Path),
		Reason:   "description and path must both be non-empty",
	}
}
