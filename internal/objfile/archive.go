package objfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/blakesmith/ar"
)

const arMagic = "!<arch>\n"

func isArchive(data []byte) bool {
	return bytes.HasPrefix(data, []byte(arMagic))
}

type member struct {
	name string
	data []byte
}

// readArchive returns the file members of a GNU or BSD archive with
// long names resolved. Symbol index members are skipped.
func readArchive(data []byte) ([]member, error) {
	rd := ar.NewReader(bytes.NewReader(data))
	var (
		out       []member
		longNames []byte
	)
	for {
		hdr, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("objfile: archive header: %w", err)
		}
		body, err := io.ReadAll(rd)
		if err != nil {
			return nil, fmt.Errorf("objfile: archive member %s: %w", hdr.Name, err)
		}
		switch hdr.Name {
		case "//":
			longNames = body
			continue
		case "/", "/SYM64/", "__.SYMDEF", "__.SYMDEF SORTED":
			continue
		}
		name, body, err := memberName(hdr.Name, longNames, body)
		if err != nil {
			return nil, err
		}
		out = append(out, member{name: name, data: body})
	}
	return out, nil
}

// memberName decodes the three naming schemes: GNU short names ending in
// "/", GNU "/N" offsets into the long name table, and BSD "#1/N" names
// stored at the start of the member body.
func memberName(raw string, longNames, body []byte) (string, []byte, error) {
	switch {
	case strings.HasPrefix(raw, "#1/"):
		n, err := strconv.Atoi(strings.TrimSpace(raw[3:]))
		if err != nil || n > len(body) {
			return "", nil, fmt.Errorf("objfile: bad BSD member name %q", raw)
		}
		return strings.TrimRight(string(body[:n]), "\x00"), body[n:], nil
	case len(raw) > 1 && raw[0] == '/':
		off, err := strconv.Atoi(strings.TrimSpace(raw[1:]))
		if err != nil || off >= len(longNames) {
			return "", nil, fmt.Errorf("objfile: bad GNU member name %q", raw)
		}
		name := longNames[off:]
		if i := bytes.IndexByte(name, '\n'); i >= 0 {
			name = name[:i]
		}
		return strings.TrimSuffix(string(name), "/"), body, nil
	}
	return strings.TrimSuffix(raw, "/"), body, nil
}
