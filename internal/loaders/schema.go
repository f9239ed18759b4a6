package loaders

import (
	"fmt"
	"os"

	"file-validator-service/internal/logging"
	"file-validator-service/internal/records"
	"file-validator-service/internal/schema"
)

// ReadSchemaDocument reads a JSON or YAML schema document, picked by
// extension. It always returns a document: the invalid sentinel when the
// file is missing or cannot be parsed.
func ReadSchemaDocument(path string) (bool, *records.Stream, *schema.Document) {
	log := logging.Component("reader")
	stream := records.NewStream()

	if !fileExists(path) {
		msg := fmt.Sprintf(msgExistsFailed, path)
		log.Info().Str("file", path).Msg(msg)
		stream.Add(path, msg, false)
		return false, stream, schema.InvalidDocument(msg)
	}
	stream.Add(path, fmt.Sprintf(msgExistsPassed, path), true)

	data, err := os.ReadFile(path)
	if err != nil {
		msg := fmt.Sprintf(msgReadFailed, path, err)
		stream.Add(path, msg, false)
		return false, stream, schema.InvalidDocument(msg)
	}

	return ParseSchemaDocument(path, data, stream)
}

// ParseSchemaDocument parses schema bytes fetched from anywhere; path only
// picks the format and names the records.
func ParseSchemaDocument(path string, data []byte, stream *records.Stream) (bool, *records.Stream, *schema.Document) {
	if stream == nil {
		stream = records.NewStream()
	}
	doc := schema.ParseDocument(data, schema.FormatFromPath(path))
	if doc.Invalid {
		msg := fmt.Sprintf(msgReadFailed, path, doc.Messages)
		log := logging.Component("reader")
		log.Error().Str("file", path).Strs("errors", doc.Messages).Msg("invalid schema document")
		stream.Add(path, msg, false)
		return false, stream, doc
	}
	stream.Add(path, fmt.Sprintf(msgReadPassed, path), true)
	return true, stream, doc
}
