package spec

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	yamlv3 "gopkg.in/yaml.v3"
)

// Supported schema versions. punit-spec-1 files predate per-file timestamps
// in the naming convention but carry the same integrity contract.
const (
	SchemaV1 = "punit-spec-1"
	SchemaV2 = "punit-spec-2"

	CurrentSchemaVersion = SchemaV2
)

var supportedSchemaVersions = map[string]bool{
	SchemaV1: true,
	SchemaV2: true,
}

const (
	schemaVersionField      = "schemaVersion"
	contentFingerprintField = "contentFingerprint"
)

// Integrity errors. Loading fails closed: any of them means the file was
// edited outside the approval workflow (or never went through it) and the
// run must stop as a configuration problem, not a statistical failure.
// All of them match errors.Is(err, ErrIntegrity).
var (
	ErrIntegrity = errors.New("specification integrity")

	ErrMissingSchemaVersion     = fmt.Errorf("%w: missing schemaVersion", ErrIntegrity)
	ErrUnsupportedSchemaVersion = fmt.Errorf("%w: unsupported schemaVersion", ErrIntegrity)
	ErrMissingFingerprint       = fmt.Errorf("%w: missing contentFingerprint", ErrIntegrity)
	ErrFingerprintMismatch      = fmt.Errorf("%w: contentFingerprint mismatch", ErrIntegrity)
)

// Encode renders the tamper-evident on-disk form: the record body, then the
// schemaVersion line, then the contentFingerprint line computed over every
// byte that precedes it. The fingerprint line is always last so that the
// digest covers the entire document through the schemaVersion line.
func Encode(s *Specification) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("encode specification: %w", err)
	}

	body := *s
	body.SchemaVersion = ""
	body.ContentFingerprint = ""
	doc, err := yamlv3.Marshal(&body)
	if err != nil {
		return nil, fmt.Errorf("marshal specification: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(doc)
	fmt.Fprintf(&buf, "%s: %s\n", schemaVersionField, CurrentSchemaVersion)
	sum := sha256.Sum256(buf.Bytes())
	fmt.Fprintf(&buf, "%s: %s\n", contentFingerprintField, hex.EncodeToString(sum[:]))
	return buf.Bytes(), nil
}

// Decode validates integrity and parses a specification. Check order:
// schema version present, schema version supported, fingerprint present,
// fingerprint matches the digest of the content preceding it. Only then is
// the document decoded and validated.
func Decode(data []byte) (*Specification, error) {
	version, ok := schemaVersionIn(data)
	if !ok {
		return nil, ErrMissingSchemaVersion
	}
	if !supportedSchemaVersions[version] {
		return nil, fmt.Errorf("%w: %q (supported: %s, %s)", ErrUnsupportedSchemaVersion, version, SchemaV1, SchemaV2)
	}

	content, declared, ok := fingerprintBoundary(data)
	if !ok || declared == "" {
		return nil, ErrMissingFingerprint
	}
	sum := sha256.Sum256(content)
	if computed := hex.EncodeToString(sum[:]); !strings.EqualFold(declared, computed) {
		return nil, fmt.Errorf("%w: declared %s, computed %s", ErrFingerprintMismatch, declared, computed)
	}

	var s Specification
	dec := yamlv3.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse specification: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid specification: %w", err)
	}
	return &s, nil
}

// ContentBeforeFingerprint returns every byte strictly before the first
// top-level contentFingerprint line. This boundary is the integrity
// contract: the fingerprint is the SHA-256 of exactly these bytes. ok is
// false when the document has no fingerprint line.
func ContentBeforeFingerprint(data []byte) ([]byte, bool) {
	content, _, ok := fingerprintBoundary(data)
	return content, ok
}

// Fingerprint computes the digest Encode would embed for the given
// pre-boundary content.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// fingerprintBoundary locates the first line starting at column zero with
// the contentFingerprint key and splits the document there.
func fingerprintBoundary(data []byte) (content []byte, declared string, ok bool) {
	offset := 0
	for offset <= len(data) {
		line, next := nextLine(data, offset)
		if rest, found := strings.CutPrefix(line, contentFingerprintField+":"); found {
			return data[:offset], strings.TrimSpace(rest), true
		}
		if next <= offset {
			break
		}
		offset = next
	}
	return nil, "", false
}

// schemaVersionIn extracts the value of the first top-level schemaVersion
// line.
func schemaVersionIn(data []byte) (string, bool) {
	offset := 0
	for offset <= len(data) {
		line, next := nextLine(data, offset)
		if rest, found := strings.CutPrefix(line, schemaVersionField+":"); found {
			v := strings.TrimSpace(rest)
			if v != "" {
				return v, true
			}
		}
		if next <= offset {
			break
		}
		offset = next
	}
	return "", false
}

// nextLine returns the line starting at offset (without its newline) and
// the offset of the following line.
func nextLine(data []byte, offset int) (string, int) {
	if offset >= len(data) {
		return "", offset
	}
	end := bytes.IndexByte(data[offset:], '\n')
	if end < 0 {
		return string(data[offset:]), len(data) + 1
	}
	return string(data[offset : offset+end]), offset + end + 1
}
