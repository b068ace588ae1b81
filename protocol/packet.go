// Package protocol 区域的线上格式：带长度前缀的帧，帧内是带类别的包，
// 以及每个类别对应的包体。
package protocol

import (
	"encoding"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// FrameHeaderSize 帧头：uint32 长度
	FrameHeaderSize = 4
	// PacketHeaderSize 包头：uint16 类别
	PacketHeaderSize = 2
	// DefaultMaxFrameSize 单帧长度上限
	DefaultMaxFrameSize = 64 << 10
)

// Category 决定包体如何解码
type Category uint16

const (
	CategoryUnknown Category = iota
	LoginResult
	LoginNotification
	LogoutRequest
	LogoutResponse
	LogoutNotification
	SyncTransform
	ChatSend
	ChatReceive

	categoryMax
)

var categoryNames = [...]string{
	CategoryUnknown:    "unknown",
	LoginResult:        "login.result",
	LoginNotification:  "login.notification",
	LogoutRequest:      "logout.request",
	LogoutResponse:     "logout.response",
	LogoutNotification: "logout.notification",
	SyncTransform:      "sync.transform",
	ChatSend:           "text.send",
	ChatReceive:        "text.receive",
}

func (c Category) String() string {
	if c < categoryMax {
		return categoryNames[c]
	}
	return fmt.Sprintf("category(%d)", uint16(c))
}

// Known 是否为本包定义的类别
func (c Category) Known() bool {
	return c > CategoryUnknown && c < categoryMax
}

var (
	ErrShortPacket     = errors.New("protocol: packet shorter than header")
	ErrUnknownCategory = errors.New("protocol: unknown category")
	ErrFrameTooLarge   = errors.New("protocol: frame exceeds size limit")
	ErrTrailingBytes   = errors.New("protocol: trailing bytes after body")
)

// DecodeError 包体无法按类别解码
type DecodeError struct {
	Category Category
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Category, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

type Body interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// Packet 与客户端交换的包；匹配 Category 之前 Payload 不解析
type Packet struct {
	Category Category
	Payload  []byte
}

// New 编码 body 生成包，body 为 nil 时包体为空
func New(c Category, body Body) (Packet, error) {
	p := Packet{Category: c}
	if body == nil {
		return p, nil
	}
	b, err := body.MarshalBinary()
	if err != nil {
		return Packet{}, fmt.Errorf("marshal %s: %w", c, err)
	}
	p.Payload = b
	return p, nil
}

// MustNew 用于编码不会失败的包体
func MustNew(c Category, body Body) Packet {
	p, err := New(c, body)
	if err != nil {
		panic(err)
	}
	return p
}

func Decode(p Packet, body Body) error {
	if err := body.UnmarshalBinary(p.Payload); err != nil {
		return &DecodeError{Category: p.Category, Err: err}
	}
	return nil
}

// Parse 解析帧体（长度前缀之后的部分）。未知类别也能解析，由调用方决定如何处理。
func Parse(b []byte) (Packet, error) {
	if len(b) < PacketHeaderSize {
		return Packet{}, ErrShortPacket
	}
	p := Packet{Category: Category(binary.BigEndian.Uint16(b))}
	if len(b) > PacketHeaderSize {
		p.Payload = append([]byte(nil), b[PacketHeaderSize:]...)
	}
	return p, nil
}

// Serialize 编码为完整的帧（含长度前缀）
func Serialize(p Packet) ([]byte, error) {
	n := PacketHeaderSize + len(p.Payload)
	if n > DefaultMaxFrameSize {
		return nil, fmt.Errorf("serialize %s (%d bytes): %w", p.Category, n, ErrFrameTooLarge)
	}
	out := make([]byte, 0, FrameHeaderSize+n)
	out = binary.BigEndian.AppendUint32(out, uint32(n))
	out = binary.BigEndian.AppendUint16(out, uint16(p.Category))
	return append(out, p.Payload...), nil
}
