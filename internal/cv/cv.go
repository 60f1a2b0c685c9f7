// Package cv holds the CV document model: schema validation for incoming
// payloads and the static per-country preset catalog.
package cv

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON []byte

//go:embed presets/*.json
var presetFS embed.FS

// ErrInvalidDocument signals a CV payload that does not satisfy the
// schema. The wrapped message lists the violations.
var ErrInvalidDocument = errors.New("invalid cv document")

// Preset is the static template description for one country.
type Preset struct {
	Country        string   `json:"country"`
	Name           string   `json:"name"`
	Sections       []string `json:"sections"`
	PersonalFields []string `json:"personalFields"`
	DateFormat     string   `json:"dateFormat"`
	Paper          string   `json:"paper"`
	Notes          string   `json:"notes,omitempty"`
}

var (
	schema  *gojsonschema.Schema
	presets map[string]Preset
)

func init() {
	var err error
	schema, err = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("cv: cannot compile schema: %v", err))
	}

	presets = make(map[string]Preset)
	entries, err := presetFS.ReadDir("presets")
	if err != nil {
		panic(fmt.Sprintf("cv: cannot read presets: %v", err))
	}
	for _, e := range entries {
		data, err := presetFS.ReadFile("presets/" + e.Name())
		if err != nil {
			panic(fmt.Sprintf("cv: cannot read preset %s: %v", e.Name(), err))
		}
		var p Preset
		if err := json.Unmarshal(data, &p); err != nil {
			panic(fmt.Sprintf("cv: cannot parse preset %s: %v", e.Name(), err))
		}
		presets[p.Country] = p
	}
}

// Document is the parsed form of a stored CV payload, used by the
// preview renderer. Fields mirror schema.json.
type Document struct {
	Personal struct {
		FullName  string `json:"fullName"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
		Address   string `json:"address"`
		BirthDate string `json:"birthDate"`
		PhotoURL  string `json:"photoUrl"`
	} `json:"personal"`
	Summary    string `json:"summary"`
	Experience []struct {
		Title       string `json:"title"`
		Company     string `json:"company"`
		Location    string `json:"location"`
		StartDate   string `json:"startDate"`
		EndDate     string `json:"endDate"`
		Description string `json:"description"`
	} `json:"experience"`
	Education []struct {
		Degree    string `json:"degree"`
		School    string `json:"school"`
		Location  string `json:"location"`
		StartDate string `json:"startDate"`
		EndDate   string `json:"endDate"`
	} `json:"education"`
	Skills    []string `json:"skills"`
	Languages []struct {
		Name  string `json:"name"`
		Level string `json:"level"`
	} `json:"languages"`
}

// ParseDocument validates and decodes a stored payload.
func ParseDocument(data []byte) (Document, error) {
	var doc Document
	if err := Validate(data); err != nil {
		return doc, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return doc, nil
}

// Validate checks a CV payload against the schema.
func Validate(data []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
}

// Presets returns the catalog sorted by country code.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Country < out[j].Country })
	return out
}

// PresetByCountry looks up one preset by its ISO country code.
func PresetByCountry(code string) (Preset, bool) {
	p, ok := presets[strings.ToLower(code)]
	return p, ok
}
