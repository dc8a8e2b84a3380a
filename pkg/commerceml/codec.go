package commerceml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// encoding/xml writes numeric references for quotes; exchange consumers
// expect the predefined entities.
var entityNormalizer = strings.NewReplacer(
	"&#34;", "&quot;",
	"&#39;", "&apos;",
)

// Marshal renders doc as an indented UTF-8 document with an XML declaration.
func Marshal(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("commerceml: nil document")
	}
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("commerceml: marshal: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(len(xml.Header) + len(body) + 1)
	buf.WriteString(xml.Header)
	buf.WriteString(entityNormalizer.Replace(string(body)))
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Decode reads a document from r. UTF-8 and windows-1251 inputs are accepted.
func Decode(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("commerceml: decode: %w", err)
	}
	return &doc, nil
}

// Unmarshal parses a document held in memory.
func Unmarshal(data []byte) (*Document, error) {
	return Decode(bytes.NewReader(data))
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "windows-1251", "cp1251":
		return charmap.Windows1251.NewDecoder().Reader(input), nil
	}
	return nil, fmt.Errorf("commerceml: unsupported charset %q", label)
}
