package protocol

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	_ Body = (*LoginResultBody)(nil)
	_ Body = (*LoginNotificationBody)(nil)
	_ Body = (*LogoutRequestBody)(nil)
	_ Body = (*LogoutResponseBody)(nil)
	_ Body = (*LogoutNotificationBody)(nil)
	_ Body = (*TransformSyncBody)(nil)
	_ Body = (*ChatSendBody)(nil)
	_ Body = (*ChatReceiveBody)(nil)
)

var errStringTooLong = errors.New("string longer than 65535 bytes")

type LoginResultBody struct {
	UserID uint64
}

func (b *LoginResultBody) MarshalBinary() ([]byte, error) {
	return binary.BigEndian.AppendUint64(nil, b.UserID), nil
}

func (b *LoginResultBody) UnmarshalBinary(data []byte) error {
	r := reader{buf: data}
	b.UserID = r.u64()
	return r.done()
}

type LoginNotificationBody struct {
	UserID   uint64
	Username string
}

func (b *LoginNotificationBody) MarshalBinary() ([]byte, error) {
	out := binary.BigEndian.AppendUint64(nil, b.UserID)
	return appendString(out, b.Username)
}

func (b *LoginNotificationBody) UnmarshalBinary(data []byte) error {
	r := reader{buf: data}
	b.UserID = r.u64()
	b.Username = r.str()
	return r.done()
}

// LogoutRequestBody 无字段
type LogoutRequestBody struct{}

func (b *LogoutRequestBody) MarshalBinary() ([]byte, error) { return nil, nil }

func (b *LogoutRequestBody) UnmarshalBinary(data []byte) error {
	r := reader{buf: data}
	return r.done()
}

type LogoutResponseBody struct {
	Success bool
}

func (b *LogoutResponseBody) MarshalBinary() ([]byte, error) {
	if b.Success {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}

func (b *LogoutResponseBody) UnmarshalBinary(data []byte) error {
	r := reader{buf: data}
	b.Success = r.u8() != 0
	return r.done()
}

type LogoutNotificationBody struct {
	UserID uint64
}

func (b *LogoutNotificationBody) MarshalBinary() ([]byte, error) {
	return binary.BigEndian.AppendUint64(nil, b.UserID), nil
}

func (b *LogoutNotificationBody) UnmarshalBinary(data []byte) error {
	r := reader{buf: data}
	b.UserID = r.u64()
	return r.done()
}

// TransformSyncBody 客户端上报的自身玩家位置与朝向
type TransformSyncBody struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
}

func (b *TransformSyncBody) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, 7*4)
	for _, f := range b.Position {
		out = appendFloat32(out, f)
	}
	out = appendFloat32(out, b.Rotation.W)
	for _, f := range b.Rotation.V {
		out = appendFloat32(out, f)
	}
	return out, nil
}

func (b *TransformSyncBody) UnmarshalBinary(data []byte) error {
	r := reader{buf: data}
	for i := range b.Position {
		b.Position[i] = r.f32()
	}
	b.Rotation.W = r.f32()
	for i := range b.Rotation.V {
		b.Rotation.V[i] = r.f32()
	}
	return r.done()
}

type ChatSendBody struct {
	Text string
}

func (b *ChatSendBody) MarshalBinary() ([]byte, error) {
	return appendString(nil, b.Text)
}

func (b *ChatSendBody) UnmarshalBinary(data []byte) error {
	r := reader{buf: data}
	b.Text = r.str()
	return r.done()
}

type ChatReceiveBody struct {
	UserID uint64
	Text   string
}

func (b *ChatReceiveBody) MarshalBinary() ([]byte, error) {
	out := binary.BigEndian.AppendUint64(nil, b.UserID)
	return appendString(out, b.Text)
}

func (b *ChatReceiveBody) UnmarshalBinary(data []byte) error {
	r := reader{buf: data}
	b.UserID = r.u64()
	b.Text = r.str()
	return r.done()
}

func appendFloat32(out []byte, f float32) []byte {
	return binary.BigEndian.AppendUint32(out, math.Float32bits(f))
}

func appendString(out []byte, s string) ([]byte, error) {
	if len(s) > math.MaxUint16 {
		return nil, errStringTooLong
	}
	out = binary.BigEndian.AppendUint16(out, uint16(len(s)))
	return append(out, s...), nil
}

// reader 顺序读取包体；第一次读越界后保持错误，由 done 返回
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.buf)-r.off < n {
		r.err = ErrShortPacket
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() byte {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) u16() uint16 {
	if b := r.take(2); b != nil {
		return binary.BigEndian.Uint16(b)
	}
	return 0
}

func (r *reader) u64() uint64 {
	if b := r.take(8); b != nil {
		return binary.BigEndian.Uint64(b)
	}
	return 0
}

func (r *reader) f32() float32 {
	if b := r.take(4); b != nil {
		return math.Float32frombits(binary.BigEndian.Uint32(b))
	}
	return 0
}

func (r *reader) str() string {
	n := int(r.u16())
	if b := r.take(n); b != nil {
		return string(b)
	}
	return ""
}

func (r *reader) done() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.buf) {
		return ErrTrailingBytes
	}
	return nil
}
