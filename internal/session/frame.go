package session

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Codec frames and deframes messages over a byte stream, implementing the
// "framed protocol contract" of spec.md §4.8: line-delimited JSON or
// length-prefixed binary depending on the simulator.
type Codec interface {
	// Encode wraps payload in its wire framing.
	Encode(payload []byte) []byte
	// Decode reads exactly one frame from r, or returns ErrFrameTooLarge
	// if the declared/observed size exceeds MaxFrameBytes.
	Decode(r *bufio.Reader) ([]byte, error)
}

// LineJSONCodec frames one JSON object per newline-terminated line, used
// by the BeamNG transport.
type LineJSONCodec struct{}

func (LineJSONCodec) Encode(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+1)
	out = append(out, payload...)
	out = append(out, '\n')
	return out
}

func (LineJSONCodec) Decode(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	if len(line) > MaxFrameBytes {
		return nil, ErrFrameTooLarge
	}
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	return line, nil
}

// simConnectHeaderSize is the 16-byte {size,version,id,index} header,
// spec.md §6.
const simConnectHeaderSize = 16

// LengthPrefixedCodec frames payload with SimConnect's 16-byte
// little-endian header: {size u32, version u32, id u32, index u32}. size
// is the total frame length including the header.
type LengthPrefixedCodec struct {
	Version uint32
	nextID  uint32
}

func (c *LengthPrefixedCodec) Encode(payload []byte) []byte {
	c.nextID++
	total := simConnectHeaderSize + len(payload)
	buf := make([]byte, total)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(total))
	binary.LittleEndian.PutUint32(buf[4:8], c.Version)
	binary.LittleEndian.PutUint32(buf[8:12], c.nextID)
	binary.LittleEndian.PutUint32(buf[12:16], 0)
	copy(buf[simConnectHeaderSize:], payload)
	return buf
}

func (c *LengthPrefixedCodec) Decode(r *bufio.Reader) ([]byte, error) {
	header := make([]byte, simConnectHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(header[0:4])
	if size < simConnectHeaderSize || size > MaxFrameBytes {
		return nil, ErrFrameTooLarge
	}
	body := make([]byte, size-simConnectHeaderSize)
	if len(body) > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, err
		}
	}
	full := make([]byte, 0, size)
	full = append(full, header...)
	full = append(full, body...)
	return full, nil
}

// simConnectMessageID identifies a SimConnect message type, spec.md §6.
type simConnectMessageID uint32

const (
	simConnectOpen                    simConnectMessageID = 0x01
	simConnectException                simConnectMessageID = 0x02
	simConnectSimObjectData             simConnectMessageID = 0x03
	simConnectQuit                      simConnectMessageID = 0x04
	simConnectMapClientEventToSimEvent  simConnectMessageID = 0x05
	simConnectTransmitClientEvent       simConnectMessageID = 0x06
	simConnectDataDefinition            simConnectMessageID = 0x07
	simConnectDataRequest               simConnectMessageID = 0x08
)

func (id simConnectMessageID) String() string {
	switch id {
	case simConnectOpen:
		return "OPEN"
	case simConnectException:
		return "EXCEPTION"
	case simConnectSimObjectData:
		return "SIMOBJECT_DATA"
	case simConnectQuit:
		return "QUIT"
	case simConnectMapClientEventToSimEvent:
		return "MAP_CLIENT_EVENT_TO_SIM_EVENT"
	case simConnectTransmitClientEvent:
		return "TRANSMIT_CLIENT_EVENT"
	case simConnectDataDefinition:
		return "DATA_DEFINITION"
	case simConnectDataRequest:
		return "DATA_REQUEST"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", uint32(id))
	}
}
