package testutil

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"testing"
)

// peHeaderOffset is where the fake images put their "PE\0\0" signature.
const peHeaderOffset = 0x80

// PEBytes returns a minimal PE image with the given COFF machine type and no
// optional header or sections. It is enough for debug/pe to parse.
func PEBytes(t *testing.T, machine uint16) []byte {
	t.Helper()

	image := make([]byte, peHeaderOffset)
	copy(image, "MZ")
	binary.LittleEndian.PutUint32(image[0x3c:], peHeaderOffset)

	var buf bytes.Buffer
	buf.Write(image)
	buf.WriteString("PE\x00\x00")
	header := pe.FileHeader{
		Machine:         machine,
		Characteristics: pe.IMAGE_FILE_EXECUTABLE_IMAGE,
	}
	if err := binary.Write(&buf, binary.LittleEndian, &header); err != nil {
		t.Fatalf("failed to encode PE header: %v", err)
	}
	return buf.Bytes()
}
