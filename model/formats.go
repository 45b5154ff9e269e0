package model

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
)

// DocumentFormat names the on-disk representation of a benchmark document.
type DocumentFormat string

const (
	// FormatJSON is the bare JSON document.
	FormatJSON DocumentFormat = "json"
	// FormatJS is the script form loaded by the chart frontend, which
	// assigns the document to a global.
	FormatJS DocumentFormat = "js"
)

const scriptPrefix = "window.BENCHMARK_DATA = "

func (ff DocumentFormat) Validate() error {
	switch ff {
	case FormatJSON, FormatJS:
		return nil
	default:
		return errors.Errorf("invalid document format '%s'", ff)
	}
}

// FormatForPath picks the format from a file name, defaulting to JSON.
func FormatForPath(path string) DocumentFormat {
	if strings.HasSuffix(path, ".js") {
		return FormatJS
	}
	return FormatJSON
}

// wrap frames an encoded JSON document in the given format.
func (ff DocumentFormat) wrap(doc []byte) []byte {
	switch ff {
	case FormatJS:
		out := make([]byte, 0, len(scriptPrefix)+len(doc))
		out = append(out, scriptPrefix...)
		return append(out, doc...)
	default:
		return append(doc, '\n')
	}
}

// unwrapDocument strips the script assignment, if any, returning the bare
// JSON payload. Both formats are accepted regardless of configuration.
func unwrapDocument(data []byte) []byte {
	data = bytes.TrimSpace(data)
	if !bytes.HasPrefix(data, []byte("window.")) {
		return data
	}

	idx := bytes.IndexByte(data, '=')
	if idx < 0 {
		return data
	}
	data = bytes.TrimSpace(data[idx+1:])
	return bytes.TrimSpace(bytes.TrimSuffix(data, []byte(";")))
}
