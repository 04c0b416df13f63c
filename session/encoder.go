package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// CurrentSchemaVersion is the leading format byte written by [Encode].
const CurrentSchemaVersion = 1

const flagAutoLogin byte = 1 << 0

// Encode serializes a session. The token itself is not stored; it is the key.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}

	var buf bytes.Buffer
	buf.Grow(2 + len(s.SubjectID) + 1 + len(s.Role) + 1 + 8)

	buf.WriteByte(CurrentSchemaVersion)

	if len(s.SubjectID) > 255 {
		return nil, errors.New("subjectID too long")
	}
	buf.WriteByte(byte(len(s.SubjectID)))
	buf.WriteString(s.SubjectID)

	if len(s.Role) > 255 {
		return nil, errors.New("role too long")
	}
	buf.WriteByte(byte(len(s.Role)))
	buf.WriteString(s.Role)

	var flags byte
	if s.AutoLogin {
		flags |= flagAutoLogin
	}
	buf.WriteByte(flags)

	if err := binary.Write(&buf, binary.BigEndian, s.IssuedAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a blob produced by [Encode]. Token is left empty.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != CurrentSchemaVersion {
		return nil, fmt.Errorf("unsupported session schema version %d", version)
	}

	s := &Session{}

	if s.SubjectID, err = readShortString(reader); err != nil {
		return nil, err
	}
	if s.SubjectID == "" {
		return nil, errors.New("empty subjectID")
	}
	if s.Role, err = readShortString(reader); err != nil {
		return nil, err
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if flags&^flagAutoLogin != 0 {
		return nil, errors.New("unknown session flags")
	}
	s.AutoLogin = flags&flagAutoLogin != 0

	if err := binary.Read(reader, binary.BigEndian, &s.IssuedAt); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in session blob")
	}

	return s, nil
}

func readShortString(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}
