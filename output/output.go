// Package output writes translated rows as JSON, one array of objects per
// (file, target language) pair under output/<lang>/.
//
// Field order inside each object follows the source CSV header order, and
// writing is all-or-nothing: the file is assembled in a temp file and
// renamed into place, so a failure never truncates a previous output.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/localekit/csvtrans/batch"
)

// WriteError reports a failed output write. It is fatal for that file's
// output only; other files are unaffected.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string { return fmt.Sprintf("writing %s: %v", e.Path, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// Path returns the output location for a (file, target language) pair:
// <dir>/<lang>/<file>.json.
func Path(dir, targetLang, fileID string) string {
	name := strings.TrimSuffix(fileID, filepath.Ext(fileID)) + ".json"
	return filepath.Join(dir, targetLang, name)
}

// Write emits the translated rows for one file and returns the output
// location.
func Write(dir, targetLang, fileID string, header []string, rows []batch.TranslatedRow) (string, error) {
	path := Path(dir, targetLang, fileID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", &WriteError{Path: path, Err: err}
	}

	data := Marshal(header, rows)

	// Assemble next to the final location, then rename. Rename within one
	// directory is atomic, so a crash mid-write cannot leave a truncated
	// file under the final name.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".csvtrans-*")
	if err != nil {
		return "", &WriteError{Path: path, Err: err}
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", &WriteError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", &WriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", &WriteError{Path: path, Err: err}
	}

	return path, nil
}

// Marshal renders rows as a JSON array of objects with 2-space indentation.
// encoding/json maps do not preserve order, so objects are emitted by hand
// with fields in header order.
func Marshal(header []string, rows []batch.TranslatedRow) []byte {
	var b strings.Builder
	b.WriteString("[\n")

	for i, row := range rows {
		b.WriteString("  {\n")
		first := true
		for _, field := range header {
			value, ok := row.Fields[field]
			if !ok {
				continue
			}
			if !first {
				b.WriteString(",\n")
			}
			first = false
			b.WriteString(fmt.Sprintf("    %s: %s", jsonString(field), jsonString(value)))
		}
		b.WriteString("\n  }")
		if i < len(rows)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}

	b.WriteString("]\n")
	return []byte(b.String())
}

// jsonString encodes s as a JSON string literal without escaping non-ASCII
// text — translated output should stay human-readable.
func jsonString(s string) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		data, _ := json.Marshal(s)
		return string(data)
	}
	return strings.TrimRight(b.String(), "\n")
}
