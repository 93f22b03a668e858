package catalog

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

var ErrInvalidRule = errors.New("invalid category rule")

// fileCatalog is the YAML shape of a catalog override file.
type fileCatalog struct {
	ReplaceDefaults bool                `yaml:"replaceDefaults"`
	Formats         []fileFormat        `yaml:"formats"`
	GlobalAliases   map[string][]string `yaml:"globalAliases"`
	CategoryRules   []fileRule          `yaml:"categoryRules"`
}

type fileFormat struct {
	Name          string              `yaml:"name"`
	Separator     string              `yaml:"separator"`
	Encoding      string              `yaml:"encoding"`
	DateFormat    string              `yaml:"dateFormat"`
	SkipLines     int                 `yaml:"skipLines"`
	Quoted        bool                `yaml:"quoted"`
	HeaderAliases map[string][]string `yaml:"headerAliases"`
}

type fileRule struct {
	Pattern  string `yaml:"pattern"`
	Category string `yaml:"category"`
}

// LoadFile reads a YAML catalog file and overlays it on Default.
func LoadFile(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog %s: %w", path, err)
	}
	cat, err := Parse(data)
	if err != nil {
		return Catalog{}, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

// Parse decodes a YAML catalog. Formats and rules from the document are
// tried before the built-in ones and global aliases are prepended per field,
// unless replaceDefaults is set, in which case the document stands alone.
func Parse(data []byte) (Catalog, error) {
	var fc fileCatalog
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Catalog{}, fmt.Errorf("decode yaml: %w", err)
	}

	base := Default()
	if fc.ReplaceDefaults {
		base = Catalog{GlobalAliases: AliasTable{}}
	}

	formats := make([]FormatDescriptor, 0, len(fc.Formats)+len(base.Formats))
	for _, f := range fc.Formats {
		desc, err := f.descriptor()
		if err != nil {
			return Catalog{}, err
		}
		formats = append(formats, desc)
	}
	formats = append(formats, base.Formats...)

	aliases, err := toAliasTable(fc.GlobalAliases)
	if err != nil {
		return Catalog{}, fmt.Errorf("global aliases: %w", err)
	}
	for field, spellings := range base.GlobalAliases {
		aliases[field] = append(aliases[field], spellings...)
	}

	rules := make([]CategoryRule, 0, len(fc.CategoryRules)+len(base.CategoryRules))
	for i, r := range fc.CategoryRules {
		if r.Category == "" {
			return Catalog{}, fmt.Errorf("rule %d: %w: empty category", i, ErrInvalidRule)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return Catalog{}, fmt.Errorf("rule %d: %w: %v", i, ErrInvalidRule, err)
		}
		rules = append(rules, CategoryRule{Pattern: re, Category: r.Category})
	}
	rules = append(rules, base.CategoryRules...)

	cat := Catalog{Formats: formats, GlobalAliases: aliases, CategoryRules: rules}
	if err := cat.Validate(); err != nil {
		return Catalog{}, err
	}
	return cat, nil
}

func (f fileFormat) descriptor() (FormatDescriptor, error) {
	sep, err := parseSeparator(f.Separator)
	if err != nil {
		return FormatDescriptor{}, fmt.Errorf("format %q: %w", f.Name, err)
	}
	aliases, err := toAliasTable(f.HeaderAliases)
	if err != nil {
		return FormatDescriptor{}, fmt.Errorf("format %q: %w", f.Name, err)
	}
	dateFormat := f.DateFormat
	if dateFormat == "" {
		dateFormat = LayoutDMYSlash
	}
	return FormatDescriptor{
		Name:          f.Name,
		Separator:     sep,
		Encoding:      f.Encoding,
		DateFormat:    dateFormat,
		HeaderAliases: aliases,
		SkipLines:     f.SkipLines,
		Quoted:        f.Quoted,
	}, nil
}

func parseSeparator(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "tab", `\t`:
		return '\t', nil
	case "":
		return ';', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || !IsSeparator(r) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSeparator, s)
	}
	return r, nil
}

func toAliasTable(in map[string][]string) (AliasTable, error) {
	out := make(AliasTable, len(in))
	for name, spellings := range in {
		field := Field(name)
		if !IsField(field) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
		}
		if len(spellings) == 0 {
			return nil, fmt.Errorf("field %s: %w", name, ErrEmptyAliasList)
		}
		out[field] = append([]string(nil), spellings...)
	}
	return out, nil
}
