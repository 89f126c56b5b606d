package preamble

import (
	"strconv"
	"strings"

	"github.com/crosswire/fetch"
	"github.com/crosswire/fetch/errors"
)

// StatusKey is the synthetic header under which the parsed status code is
// folded into the header map, in string form. Preamble.Status carries the
// same value first-class; the key exists for callers that want the flat
// map shape.
const StatusKey = ":status"

// Preamble is the parsed status line and header block of a response,
// prior to the body.
type Preamble struct {
	Proto   string
	Status  int
	Reason  string
	Headers fetch.Headers
}

// Parse converts a raw response preamble into a Preamble. The input is the
// full preamble as received from the transport, lines separated by '\n'.
//
// The first line must split into exactly three parts on the first two
// spaces: protocol version, status code, reason phrase. Anything else
// fails with a malformed-status-line error carrying the line.
//
// Every later line is trimmed; an empty line is skipped, and any other
// line must split into exactly two parts on the first ": " occurrence,
// becoming a (name, value) header entry. A line that does not split fails
// with a malformed-header-line error carrying the line. Later duplicates
// of a name overwrite earlier ones.
//
// Parse is a pure function of its input and never mutates shared state.
func Parse(raw string) (*Preamble, error) {
	lines := strings.Split(raw, "\n")

	status := strings.TrimSpace(lines[0])
	parts := strings.SplitN(status, " ", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, errors.MalformedStatusLine(lines[0])
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, errors.MalformedStatusLine(lines[0])
	}

	h := fetch.Headers{StatusKey: parts[1]}
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, value, found := strings.Cut(line, ": ")
		if !found {
			return nil, errors.MalformedHeaderLine(line)
		}
		h[name] = value
	}

	return &Preamble{
		Proto:   parts[0],
		Status:  code,
		Reason:  parts[2],
		Headers: h,
	}, nil
}
