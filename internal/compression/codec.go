// Package compression frames and compresses variable-length payloads,
// used by the write-ahead log for record bodies.
package compression

// Codec compresses and decompresses payloads.
type Codec interface {
	// MethodByte returns the single-byte codec identifier stored in the
	// frame header.
	MethodByte() byte
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte, decompressedSize int) ([]byte, error)
}

// Method byte constants.
const (
	MethodNone byte = 0x02
	MethodLZ4  byte = 0x82
)
