package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Framer 从任意分段到达的字节流中重组带长度前缀的帧
type Framer struct {
	max     int
	buf     []byte
	discard int // 超长帧剩余待丢弃的字节
}

func NewFramer(maxFrameSize int) *Framer {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &Framer{max: maxFrameSize}
}

// Feed 追加字节并返回所有已完整的帧体。
// 超长帧边到达边丢弃，通过 errs 报告，之后的流仍然对齐。
func (f *Framer) Feed(b []byte) (frames [][]byte, errs []error) {
	if f.discard > 0 {
		n := min(f.discard, len(b))
		f.discard -= n
		b = b[n:]
	}
	f.buf = append(f.buf, b...)

	off := 0
	for len(f.buf)-off >= FrameHeaderSize {
		size := int(binary.BigEndian.Uint32(f.buf[off:]))
		if size > f.max {
			errs = append(errs, fmt.Errorf("frame of %d bytes (limit %d): %w", size, f.max, ErrFrameTooLarge))
			off += FrameHeaderSize
			avail := len(f.buf) - off
			if avail >= size {
				off += size
				continue
			}
			f.discard = size - avail
			off = len(f.buf)
			break
		}
		if len(f.buf)-off < FrameHeaderSize+size {
			break
		}
		start := off + FrameHeaderSize
		frames = append(frames, append([]byte(nil), f.buf[start:start+size]...))
		off = start + size
	}

	rest := copy(f.buf, f.buf[off:])
	f.buf = f.buf[:rest]
	return frames, errs
}

// Buffered 未完整帧已缓存的字节数
func (f *Framer) Buffered() int { return len(f.buf) }

// ReadPacket 从 r 读取并解析一帧，供阻塞式客户端使用（服务端用 Framer）
func ReadPacket(r io.Reader, maxFrameSize int) (Packet, error) {
	var hdr [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Packet{}, err
	}
	size := int(binary.BigEndian.Uint32(hdr[:]))
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	if size > maxFrameSize {
		return Packet{}, ErrFrameTooLarge
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return Packet{}, err
	}
	return Parse(body)
}

// WritePacket 编码并写出一帧
func WritePacket(w io.Writer, p Packet) error {
	b, err := Serialize(p)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
