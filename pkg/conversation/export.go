package conversation

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type ExportFormat string

const (
	ExportFormatJSON ExportFormat = "json"
	ExportFormatYAML ExportFormat = "yaml"
)

// ExportFormatFromFilename picks the format from the file extension. Anything
// that is not .yaml or .yml is written as JSON.
func ExportFormatFromFilename(filename string) ExportFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return ExportFormatYAML
	default:
		return ExportFormatJSON
	}
}

// WriteTranscript writes one session, title and messages included.
// Nothing reads these files back; they are for the user.
func WriteTranscript(w io.Writer, session ChatSession, format ExportFormat) error {
	switch format {
	case ExportFormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(session); err != nil {
			return errors.Wrap(err, "could not encode transcript as yaml")
		}
		return encoder.Close()
	case ExportFormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(session); err != nil {
			return errors.Wrap(err, "could not encode transcript as json")
		}
		return nil
	default:
		return errors.Errorf("unknown export format %q", format)
	}
}

// SaveTranscriptToFile writes session to filename, creating parent directories.
func SaveTranscriptToFile(filename string, session ChatSession) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return errors.Wrap(err, "could not create export directory")
	}
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "could not create export file")
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	return WriteTranscript(f, session, ExportFormatFromFilename(filename))
}
