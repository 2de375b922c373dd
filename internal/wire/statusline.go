package wire

import (
	"strconv"
	"strings"

	"github.com/WhileEndless/httpcore/internal/errors"
)

// StatusLine is the parsed `HTTP/<major>.<minor> <code> <reason>` line,
// including the legacy `ICY 200 <reason>` alias treated as HTTP/1.0.
type StatusLine struct {
	Major  int
	Minor  int
	Code   int
	Reason string
}

// ParseStatusLine parses the first line of an HTTP response.
func ParseStatusLine(line string) (*StatusLine, error) {
	line = strings.TrimRight(line, "\r\n")
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return nil, errors.NewProtocolError("malformed status line: "+line, nil)
	}

	proto := parts[0]
	var major, minor int
	if proto == "ICY" {
		major, minor = 1, 0
	} else {
		if !strings.HasPrefix(proto, "HTTP/") {
			return nil, errors.NewProtocolError("not an HTTP status line: "+line, nil)
		}
		ver := strings.TrimPrefix(proto, "HTTP/")
		dot := strings.IndexByte(ver, '.')
		if dot < 0 {
			return nil, errors.NewProtocolError("malformed HTTP version: "+proto, nil)
		}
		var err error
		major, err = strconv.Atoi(ver[:dot])
		if err != nil || major != 1 {
			return nil, errors.NewProtocolError("unsupported HTTP major version: "+proto, nil)
		}
		minor, err = strconv.Atoi(ver[dot+1:])
		if err != nil {
			return nil, errors.NewProtocolError("malformed HTTP minor version: "+proto, nil)
		}
	}

	codeStr := parts[1]
	if len(codeStr) != 3 {
		return nil, errors.NewProtocolError("status code must be 3 digits: "+codeStr, nil)
	}
	code, err := strconv.Atoi(codeStr)
	if err != nil {
		return nil, errors.NewProtocolError("non-numeric status code: "+codeStr, nil)
	}

	reason := ""
	if len(parts) == 3 {
		reason = parts[2]
	}

	return &StatusLine{Major: major, Minor: minor, Code: code, Reason: reason}, nil
}

// String renders the status line as "HTTP/<major>.<minor> <code> <reason>".
func (s *StatusLine) String() string {
	r := s.Reason
	return "HTTP/" + strconv.Itoa(s.Major) + "." + strconv.Itoa(s.Minor) + " " + strconv.Itoa(s.Code) + " " + r
}

// Protocol returns "HTTP/1.1" or "HTTP/1.0"-shaped string for Response.
func (s *StatusLine) Protocol() string {
	return "HTTP/" + strconv.Itoa(s.Major) + "." + strconv.Itoa(s.Minor)
}
