package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/errors"
)

// ExportFileName is the attachment name used for exports.
const ExportFileName = "qa_data.json"

// maxImportBytes bounds the import body.
const maxImportBytes = 16 << 20

// Decode reads an import document: a JSON array of objects whose "question"
// and "answer" are strings with visible text, within the same length limits
// as Validate. Values are kept untrimmed. Any other shape yields an error
// wrapping ErrInvalidImport.
func Decode(r io.Reader) ([]QARecord, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxImportBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading import: %w", err)
	}
	if len(data) > maxImportBytes {
		return nil, invalidImport("import exceeds %d bytes", maxImportBytes)
	}

	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, invalidImport("expected a JSON array of objects")
	}
	if raw == nil {
		return nil, invalidImport("expected a JSON array of objects")
	}

	records := make([]QARecord, 0, len(raw))
	for i, item := range raw {
		question, ok := stringField(item, "question")
		if !ok {
			return nil, invalidImport("item %d: question must be a non-empty string", i)
		}
		if len(question) > maxQuestionLength {
			return nil, invalidImport("item %d: question must be at most %d characters", i, maxQuestionLength)
		}
		answer, ok := stringField(item, "answer")
		if !ok {
			return nil, invalidImport("item %d: answer must be a non-empty string", i)
		}
		if len(answer) > maxAnswerLength {
			return nil, invalidImport("item %d: answer must be at most %d characters", i, maxAnswerLength)
		}
		records = append(records, QARecord{Question: question, Answer: answer})
	}
	return records, nil
}

// Encode writes records as a two-space indented JSON array.
func Encode(w io.Writer, records []QARecord) error {
	if records == nil {
		records = []QARecord{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encoding corpus: %w", err)
	}
	// drop the encoder's trailing newline
	out := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("writing corpus: %w", err)
	}
	return nil
}

func stringField(item map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := item[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, strings.TrimSpace(s) != ""
}

func invalidImport(format string, args ...any) error {
	return apperrors.Newf(apperrors.ErrInvalidImport, http.StatusBadRequest, format, args...)
}
