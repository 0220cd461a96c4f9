// Package caffe checks that Caffe model files are well formed before they are
// handed to OpenCV.
//
// OpenCV reports malformed Caffe files by throwing, and gocv does not catch
// the exception, so a bad file would abort the process instead of returning
// an error. The checks here only cover the file syntax: a syntactically valid
// file with a broken network definition still reaches the engine.
package caffe

import (
	"bytes"
	"unicode/utf8"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// NetParameter fields holding layers: "layer" and the legacy "layers".
const (
	fieldLayer   protowire.Number = 100
	fieldLayerV1 protowire.Number = 2
)

// CheckPrototxt checks that data is a protobuf text format message with
// balanced blocks and at least one top-level layer.
func CheckPrototxt(data []byte) error {
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return errors.New("prototxt is not a text file")
	}

	var (
		depth  int
		layers int
		last   string
	)

	for i := 0; i < len(data); i++ {
		c := data[i]
		switch {
		case c == '#':
			for i < len(data) && data[i] != '\n' {
				i++
			}
		case c == '"' || c == '\'':
			end := closingQuote(data, i)
			if end < 0 {
				return errors.Errorf("prototxt has unterminated string at offset %d", i)
			}
			i = end
			last = ""
		case c == '{':
			if depth == 0 && (last == "layer" || last == "layers") {
				layers++
			}
			depth++
			last = ""
		case c == '}':
			depth--
			if depth < 0 {
				return errors.Errorf("prototxt has unexpected '}' at offset %d", i)
			}
			last = ""
		case isTokenByte(c):
			start := i
			for i+1 < len(data) && isTokenByte(data[i+1]) {
				i++
			}
			last = string(data[start : i+1])
		case c == ':' || c == ' ' || c == '\t' || c == '\r' || c == '\n':
		default:
			last = ""
		}
	}

	if depth != 0 {
		return errors.Errorf("prototxt has %d unclosed blocks", depth)
	}
	if layers == 0 {
		return errors.New("prototxt has no layers")
	}
	return nil
}

func closingQuote(data []byte, start int) int {
	q := data[start]
	for i := start + 1; i < len(data); i++ {
		switch data[i] {
		case '\\':
			i++
		case q:
			return i
		case '\n':
			return -1
		}
	}
	return -1
}

func isTokenByte(c byte) bool {
	return c == '_' || c == '.' || c == '-' || c == '+' ||
		'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9'
}

// CheckWeights checks that data is a binary protobuf message with at least one
// layer field.
func CheckWeights(data []byte) error {
	var fields, layers int

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeField(data)
		if n < 0 {
			return errors.Wrapf(protowire.ParseError(n), "weights are malformed after %d fields", fields)
		}
		if typ == protowire.BytesType && (num == fieldLayer || num == fieldLayerV1) {
			layers++
		}
		fields++
		data = data[n:]
	}

	if layers == 0 {
		return errors.New("weights have no layers")
	}
	return nil
}
