// Package fixture implements the canonical scenario fixture record (§6 of
// the kernel's external-interfaces contract): its JSON and BIN encodings,
// and the semantic-key function that must agree bitwise across both codecs.
package fixture

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/cespare/xxhash/v2"
)

// CodecKind selects the wire encoding a Fixture was captured with. It is
// the one field the semantic key excludes.
type CodecKind uint8

const (
	CodecJSON CodecKind = iota
	CodecBIN
)

func (c CodecKind) String() string {
	switch c {
	case CodecJSON:
		return "JSON"
	case CodecBIN:
		return "BIN"
	default:
		return "UNKNOWN"
	}
}

// Provenance records where a fixture's expected values were captured.
type Provenance struct {
	BaselineCommit    string `json:"baseline_commit"`
	ToolchainIdentity string `json:"toolchain_identity"`
	CaptureRunID      string `json:"capture_run_id"`
}

// Fixture is the canonical scenario record. Payload fields are opaque JSON
// blobs (the scenario DSL and expected-event/snapshot/error shapes are
// owned by the external scenario language, not this package) carried
// verbatim through both codecs.
type Fixture struct {
	ScenarioID            string          `json:"scenario_id"`
	FixtureSchemaVersion  int             `json:"fixture_schema_version"`
	ScenarioDSLVersion    int             `json:"scenario_dsl_version"`
	Profile               string          `json:"profile"`
	CodecKind             CodecKind       `json:"codec_kind"`
	Seed                  int64           `json:"seed"`
	Input                 json.RawMessage `json:"input"`
	ExpectedEvents        json.RawMessage `json:"expected_events"`
	ExpectedFinalSnapshot json.RawMessage `json:"expected_final_snapshot"`
	ExpectedErrorCodes    json.RawMessage `json:"expected_error_codes"`
	SemanticDigest        string          `json:"semantic_digest"`
	Provenance            Provenance      `json:"provenance"`
}

var digestPattern = regexp.MustCompile(`^sha256:[0-9a-f]{64}$`)

// ErrMissingField and ErrMalformedDigest are the two decoder-rejection
// classes §6 names explicitly.
var (
	ErrMissingField    = errors.New("fixture: missing required field")
	ErrMalformedDigest = errors.New("fixture: malformed semantic_digest")
)

// validate enforces the required-field and digest-format rules every
// decoder must apply regardless of codec.
func (f *Fixture) validate() error {
	if f.ScenarioID == "" {
		return fmt.Errorf("%w: scenario_id", ErrMissingField)
	}
	if f.FixtureSchemaVersion == 0 {
		return fmt.Errorf("%w: fixture_schema_version", ErrMissingField)
	}
	if f.ScenarioDSLVersion == 0 {
		return fmt.Errorf("%w: scenario_dsl_version", ErrMissingField)
	}
	if f.Profile == "" {
		return fmt.Errorf("%w: profile", ErrMissingField)
	}
	if len(f.Input) == 0 {
		return fmt.Errorf("%w: input", ErrMissingField)
	}
	if !digestPattern.MatchString(f.SemanticDigest) {
		return fmt.Errorf("%w: %q", ErrMalformedDigest, f.SemanticDigest)
	}
	return nil
}

// EncodeJSON marshals f to its canonical JSON encoding.
func EncodeJSON(f *Fixture) ([]byte, error) {
	g := *f
	g.CodecKind = CodecJSON
	return json.Marshal(&g)
}

// DecodeJSON unmarshals and validates a JSON-encoded fixture.
func DecodeJSON(data []byte) (*Fixture, error) {
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// writeBinField big-endian length-prefixes one byte string: a uint32 length
// followed by the bytes themselves.
func writeBinField(buf *bytes.Buffer, b []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf.Write(lenBuf[:])
	buf.Write(b)
}

func readBinField(r *bytes.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	out := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// EncodeBIN serializes f as a sequence of big-endian length-prefixed
// frames (one per field, in canonical field order — see binFields)
// with a trailing xxhash64 checksum over everything preceding it.
func EncodeBIN(f *Fixture) ([]byte, error) {
	var buf bytes.Buffer
	for _, field := range binFields(f, CodecBIN) {
		writeBinField(&buf, field)
	}
	sum := xxhash.Sum64(buf.Bytes())
	var sumBuf [8]byte
	binary.BigEndian.PutUint64(sumBuf[:], sum)
	buf.Write(sumBuf[:])
	return buf.Bytes(), nil
}

// DecodeBIN parses the frame format EncodeBIN produces, verifying the
// trailing checksum before field extraction.
func DecodeBIN(data []byte) (*Fixture, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: truncated BIN fixture", ErrMissingField)
	}
	body, trailer := data[:len(data)-8], data[len(data)-8:]
	want := binary.BigEndian.Uint64(trailer)
	if got := xxhash.Sum64(body); got != want {
		return nil, fmt.Errorf("fixture: BIN checksum mismatch: got %x want %x", got, want)
	}
	r := bytes.NewReader(body)
	fields := make([][]byte, 0, binFieldCount)
	for i := 0; i < binFieldCount; i++ {
		field, err := readBinField(r)
		if err != nil {
			return nil, fmt.Errorf("fixture: BIN frame %d: %w", i, err)
		}
		fields = append(fields, field)
	}
	f, err := fixtureFromBinFields(fields)
	if err != nil {
		return nil, err
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

const binFieldCount = 12

// binFields returns f's fields as raw byte strings in the fixed canonical
// order the BIN codec and semantic key both use. codecOverride replaces
// the codec_kind field so SemanticKey can force it to a neutral value.
func binFields(f *Fixture, codecOverride CodecKind) [][]byte {
	var seedBuf, schemaBuf, dslBuf [8]byte
	binary.BigEndian.PutUint64(seedBuf[:], uint64(f.Seed))
	binary.BigEndian.PutUint64(schemaBuf[:], uint64(f.FixtureSchemaVersion))
	binary.BigEndian.PutUint64(dslBuf[:], uint64(f.ScenarioDSLVersion))
	return [][]byte{
		[]byte(f.ScenarioID),
		schemaBuf[:],
		dslBuf[:],
		[]byte(f.Profile),
		{byte(codecOverride)},
		seedBuf[:],
		[]byte(f.Input),
		[]byte(f.ExpectedEvents),
		[]byte(f.ExpectedFinalSnapshot),
		[]byte(f.ExpectedErrorCodes),
		[]byte(f.SemanticDigest),
		provenanceBytes(f.Provenance),
	}
}

func provenanceBytes(p Provenance) []byte {
	b, _ := json.Marshal(p)
	return b
}

func fixtureFromBinFields(fields [][]byte) (*Fixture, error) {
	if len(fields) != binFieldCount {
		return nil, fmt.Errorf("fixture: expected %d BIN fields, got %d", binFieldCount, len(fields))
	}
	f := &Fixture{
		ScenarioID:            string(fields[0]),
		FixtureSchemaVersion:  int(binary.BigEndian.Uint64(pad8(fields[1]))),
		ScenarioDSLVersion:    int(binary.BigEndian.Uint64(pad8(fields[2]))),
		Profile:               string(fields[3]),
		CodecKind:             CodecKind(fields[4][0]),
		Seed:                  int64(binary.BigEndian.Uint64(pad8(fields[5]))),
		Input:                 json.RawMessage(fields[6]),
		ExpectedEvents:        json.RawMessage(fields[7]),
		ExpectedFinalSnapshot: json.RawMessage(fields[8]),
		ExpectedErrorCodes:    json.RawMessage(fields[9]),
		SemanticDigest:        string(fields[10]),
	}
	if len(fields[11]) > 0 {
		_ = json.Unmarshal(fields[11], &f.Provenance)
	}
	return f, nil
}

func pad8(b []byte) []byte {
	if len(b) >= 8 {
		return b[len(b)-8:]
	}
	var out [8]byte
	copy(out[8-len(b):], b)
	return out[:]
}

// SemanticKey returns the canonical serialization of f with codec_kind
// forced to a neutral value, so the JSON and BIN codecs of the same
// scenario always produce bitwise-identical keys (§6, §8 property #8).
func SemanticKey(f *Fixture) []byte {
	var buf bytes.Buffer
	for _, field := range binFields(f, 0) {
		writeBinField(&buf, field)
	}
	return buf.Bytes()
}

// Equal reports whether a and b are field-wise equal, ignoring CodecKind —
// the codec-equivalence property's definition of "semantically equal."
func Equal(a, b *Fixture) bool {
	return bytes.Equal(SemanticKey(a), SemanticKey(b))
}
