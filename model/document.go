package model

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Document is the persisted envelope shared by every suite of a
// repository. Its JSON shape is consumed verbatim by the chart frontend.
type Document struct {
	LastUpdate int64    `json:"lastUpdate"`
	RepoURL    string   `json:"repoUrl"`
	Entries    SuiteMap `json:"entries"`
}

// NewDocument returns an empty document for the repository.
func NewDocument(repoURL string) *Document {
	return &Document{RepoURL: repoURL, Entries: SuiteMap{}}
}

// SuiteMap maps suite names to their entries while remembering the order
// in which suites were first added; the chart frontend renders suites in
// document order.
type SuiteMap struct {
	names  []string
	suites map[string][]Entry
}

// Names returns the suite names in document order.
func (m *SuiteMap) Names() []string {
	return append([]string{}, m.names...)
}

// Len returns the number of suites.
func (m *SuiteMap) Len() int { return len(m.names) }

// Get returns the entries of a suite.
func (m *SuiteMap) Get(suite string) ([]Entry, bool) {
	entries, ok := m.suites[suite]
	return entries, ok
}

// Set replaces the entries of a suite, appending the suite name if it is
// new.
func (m *SuiteMap) Set(suite string, entries []Entry) {
	if m.suites == nil {
		m.suites = map[string][]Entry{}
	}
	if _, ok := m.suites[suite]; !ok {
		m.names = append(m.names, suite)
	}
	if entries == nil {
		entries = []Entry{}
	}
	m.suites[suite] = entries
}

// MarshalJSON writes suites in document order.
func (m SuiteMap) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for idx, name := range m.names {
		if idx > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalNoEscape(name)
		if err != nil {
			return nil, errors.Wrapf(err, "encoding suite name '%s'", name)
		}
		buf.Write(key)
		buf.WriteByte(':')

		entries, err := marshalNoEscape(m.suites[name])
		if err != nil {
			return nil, errors.Wrapf(err, "encoding entries of suite '%s'", name)
		}
		buf.Write(entries)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// UnmarshalJSON reads suites, keeping the order they appear in.
func (m *SuiteMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return errors.WithStack(err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.Errorf("expected an object of suites, found %v", tok)
	}

	out := SuiteMap{suites: map[string][]Entry{}}
	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return errors.WithStack(err)
		}
		name, ok := tok.(string)
		if !ok {
			return errors.Errorf("expected a suite name, found %v", tok)
		}

		var entries []Entry
		if err = dec.Decode(&entries); err != nil {
			return errors.Wrapf(err, "decoding entries of suite '%s'", name)
		}
		out.Set(name, entries)
	}

	if _, err = dec.Token(); err != nil {
		return errors.WithStack(err)
	}

	*m = out
	return nil
}

// Encode renders the document in the given format: two-space indentation
// and no HTML escaping, matching the frontend's own writer.
func (d *Document) Encode(format DocumentFormat) ([]byte, error) {
	if err := format.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}

	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return nil, errors.Wrap(err, "encoding benchmark document")
	}

	return format.wrap(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// DecodeDocument parses a document in either format and checks every
// suite for structural and ordering violations.
func DecodeDocument(data []byte) (*Document, error) {
	payload := unwrapDocument(data)
	if len(payload) == 0 {
		return nil, &CorruptStoreError{Reason: "document is empty"}
	}
	if bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		return nil, &CorruptStoreError{Reason: "document is null"}
	}

	doc := &Document{}
	if err := json.Unmarshal(payload, doc); err != nil {
		return nil, &CorruptStoreError{Reason: err.Error()}
	}

	for _, name := range doc.Entries.Names() {
		entries, _ := doc.Entries.Get(name)
		for _, e := range entries {
			if err := e.validateStructure(); err != nil {
				return nil, &CorruptStoreError{Suite: name, Reason: err.Error()}
			}
		}
		if err := (&HistoryStore{Suite: name, Entries: entries}).checkOrder(); err != nil {
			return nil, err
		}
	}

	return doc, nil
}

func marshalNoEscape(v interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
