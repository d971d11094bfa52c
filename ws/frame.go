package ws

import (
	"fmt"
	"io"

	gws "github.com/gobwas/ws"
)

// frameKind classifies an inbound frame by opcode and FIN bit. Fragmented
// messages are visible as their individual frames; reassembly is the
// session's job.
type frameKind int

const (
	kindBinary frameKind = iota
	kindFragStart
	kindFragContinue
	kindFragEnd
	kindText
	kindPing
	kindPong
	kindClose
)

func (k frameKind) String() string {
	switch k {
	case kindBinary:
		return "binary"
	case kindFragStart:
		return "fragment_start"
	case kindFragContinue:
		return "fragment_continue"
	case kindFragEnd:
		return "fragment_end"
	case kindText:
		return "text"
	case kindPing:
		return "ping"
	case kindPong:
		return "pong"
	case kindClose:
		return "close"
	default:
		return "unknown"
	}
}

// frame is one parsed wire frame with its payload unmasked.
type frame struct {
	kind    frameKind
	payload []byte
}

// errFrameTooLarge reports a frame exceeding the configured payload cap.
type errFrameTooLarge struct {
	size, limit int64
}

func (e *errFrameTooLarge) Error() string {
	return fmt.Sprintf("ws: frame of %d bytes exceeds limit of %d", e.size, e.limit)
}

// readFrame reads and classifies the next frame from the peer.
func readFrame(r io.Reader, maxSize int64) (frame, error) {
	header, err := gws.ReadHeader(r)
	if err != nil {
		return frame{}, err
	}
	if header.Length > maxSize {
		return frame{}, &errFrameTooLarge{size: header.Length, limit: maxSize}
	}

	payload := make([]byte, header.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return frame{}, err
	}
	if header.Masked {
		gws.Cipher(payload, header.Mask, 0)
	}

	kind, err := classify(header)
	if err != nil {
		return frame{}, err
	}
	return frame{kind: kind, payload: payload}, nil
}

func classify(header gws.Header) (frameKind, error) {
	switch header.OpCode {
	case gws.OpBinary:
		if header.Fin {
			return kindBinary, nil
		}
		return kindFragStart, nil
	case gws.OpContinuation:
		if header.Fin {
			return kindFragEnd, nil
		}
		return kindFragContinue, nil
	case gws.OpText:
		return kindText, nil
	case gws.OpPing:
		return kindPing, nil
	case gws.OpPong:
		return kindPong, nil
	case gws.OpClose:
		return kindClose, nil
	default:
		return 0, fmt.Errorf("ws: unexpected opcode %v", header.OpCode)
	}
}
