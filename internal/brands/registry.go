package brands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/jonathan/cashback-scout/internal/logging"
	"github.com/jonathan/cashback-scout/internal/schemas"
)

// Record is one supported brand.
type Record struct {
	CanonicalName   string  `json:"name"`
	NormalizedKey   string  `json:"key"`
	CashbackPercent float64 `json:"cashback_percent"`
}

// Registry maps normalized keys to records. Keys keep the order in which they
// were first seen in the payload; that order is also the vote tie-break order.
// A Registry is never mutated after it is built.
type Registry struct {
	records map[string]Record
	keys    []string
}

// Empty returns a registry with no brands. Detection against it always
// reports "not supported".
func Empty() *Registry {
	return &Registry{records: map[string]Record{}}
}

// NewRegistry builds a registry from records. Records whose name normalizes to
// the empty string are skipped; the first record for a key wins.
func NewRegistry(records []Record) *Registry {
	r := &Registry{
		records: make(map[string]Record, len(records)),
		keys:    make([]string, 0, len(records)),
	}
	for _, rec := range records {
		r.add(rec.CanonicalName, rec.CashbackPercent)
	}
	return r
}

func (r *Registry) add(name string, cashback float64) bool {
	name = strings.TrimSpace(name)
	key := Normalize(name)
	if key == "" {
		return false
	}
	if _, exists := r.records[key]; exists {
		return false
	}
	r.records[key] = Record{
		CanonicalName:   name,
		NormalizedKey:   key,
		CashbackPercent: cashback,
	}
	r.keys = append(r.keys, key)
	return true
}

// Len returns the number of brands.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Keys returns the normalized keys in insertion order.
func (r *Registry) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Records returns every record in insertion order.
func (r *Registry) Records() []Record {
	if r == nil {
		return nil
	}
	out := make([]Record, 0, len(r.keys))
	for _, k := range r.keys {
		out = append(out, r.records[k])
	}
	return out
}

// Get returns the record stored under an already-normalized key.
func (r *Registry) Get(key string) (Record, bool) {
	if r == nil {
		return Record{}, false
	}
	rec, ok := r.records[key]
	return rec, ok
}

// Lookup normalizes name and returns the matching record.
func (r *Registry) Lookup(name string) (Record, bool) {
	return r.Get(Normalize(name))
}

// Search returns records whose key contains the normalized query, sorted by name.
func (r *Registry) Search(query string) []Record {
	q := Normalize(query)
	if q == "" || r == nil {
		return nil
	}
	var out []Record
	for _, k := range r.keys {
		if strings.Contains(k, q) {
			out = append(out, r.records[k])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CanonicalName < out[j].CanonicalName
	})
	return out
}

// Load parses a brand-list payload, choosing JSON when the payload starts with
// '[' and CSV otherwise.
func Load(payload []byte) (*Registry, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(payload, []byte("\xef\xbb\xbf")))
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return LoadJSON(trimmed)
	}
	return LoadCSV(trimmed)
}

// LoadOrEmpty is Load that fails closed: any load error is logged and the
// empty registry is returned instead.
func LoadOrEmpty(payload []byte, logger logging.Logger) *Registry {
	reg, err := Load(payload)
	if err != nil {
		if logger != nil {
			logger.Log(logging.LevelWarn, "registry", "brand list unusable, using empty registry", map[string]any{
				"error": err.Error(),
			})
		}
		return Empty()
	}
	return reg
}

// LoadCSV parses rows of "name,cashbackPercent". A first row whose second
// column is not numeric is treated as a header. Rows that cannot be parsed are
// skipped; a payload with no usable rows is an error. There is no comment
// syntax, so names may start with '#'.
func LoadCSV(payload []byte) (*Registry, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, &RegistryLoadError{Message: "brand list is empty"}
	}

	reader := csv.NewReader(bytes.NewReader(payload))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	reg := &Registry{records: map[string]Record{}}
	row := 0
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				row++
				continue
			}
			return nil, &RegistryLoadError{Message: "failed to read brand list", Cause: err}
		}
		row++

		if len(fields) < 2 {
			continue
		}
		cashback, err := parseCashback(fields[1])
		if err != nil {
			continue
		}
		reg.add(fields[0], cashback)
	}

	if reg.Len() == 0 {
		return nil, &RegistryLoadError{Message: fmt.Sprintf("no usable brand rows in %d rows", row)}
	}
	return reg, nil
}

type jsonBrand struct {
	Name     string  `json:"name"`
	Cashback float64 `json:"cashback"`
}

// LoadJSON parses a JSON array of {"name", "cashback"} objects after
// validating it against the brand-list schema.
func LoadJSON(payload []byte) (*Registry, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, &RegistryLoadError{Message: "brand list is empty"}
	}
	if err := schemas.ValidateBrandList(payload); err != nil {
		return nil, &RegistryLoadError{Message: "brand list failed schema validation", Cause: err}
	}

	var rows []jsonBrand
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, &RegistryLoadError{Message: "failed to decode brand list", Cause: err}
	}

	reg := &Registry{records: make(map[string]Record, len(rows))}
	for _, row := range rows {
		reg.add(row.Name, row.Cashback)
	}
	if reg.Len() == 0 {
		return nil, &RegistryLoadError{Message: "no usable brand rows"}
	}
	return reg, nil
}

func parseCashback(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(raw, "%")
	raw = strings.TrimSpace(raw)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative cashback %v", v)
	}
	return v, nil
}
