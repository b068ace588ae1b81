package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func frameOf(t *testing.T, p Packet) []byte {
	t.Helper()
	b, err := Serialize(p)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	return b
}

func TestSerializeParse(t *testing.T) {
	in := MustNew(SyncTransform, &TransformSyncBody{
		Position: mgl32.Vec3{1, 2, 3},
		Rotation: mgl32.QuatIdent(),
	})
	frame := frameOf(t, in)
	if got := binary.BigEndian.Uint32(frame); int(got) != len(frame)-FrameHeaderSize {
		t.Fatalf("length prefix = %d, want %d", got, len(frame)-FrameHeaderSize)
	}

	out, err := Parse(frame[FrameHeaderSize:])
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if out.Category != SyncTransform {
		t.Fatalf("category = %v", out.Category)
	}
	var body TransformSyncBody
	if err := Decode(out, &body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Position != (mgl32.Vec3{1, 2, 3}) {
		t.Fatalf("position = %v", body.Position)
	}
	if body.Rotation != mgl32.QuatIdent() {
		t.Fatalf("rotation = %v", body.Rotation)
	}
}

func TestParseShort(t *testing.T) {
	if _, err := Parse([]byte{1}); !errors.Is(err, ErrShortPacket) {
		t.Fatalf("err = %v, want ErrShortPacket", err)
	}
}

func TestParseKeepsUnknownCategory(t *testing.T) {
	p, err := Parse([]byte{0xff, 0x00, 7})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Category.Known() {
		t.Fatalf("category %v reported as known", p.Category)
	}
	if !strings.HasPrefix(p.Category.String(), "category(") {
		t.Fatalf("String = %q", p.Category.String())
	}
}

func TestDecodeError(t *testing.T) {
	p := Packet{Category: ChatSend, Payload: []byte{0, 10, 'h'}}
	var body ChatSendBody
	err := Decode(p, &body)
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want *DecodeError", err)
	}
	if de.Category != ChatSend || !errors.Is(err, ErrShortPacket) {
		t.Fatalf("unexpected decode error %v", err)
	}

	p = Packet{Category: LogoutNotification, Payload: make([]byte, 9)}
	var n LogoutNotificationBody
	if err := Decode(p, &n); !errors.Is(err, ErrTrailingBytes) {
		t.Fatalf("err = %v, want ErrTrailingBytes", err)
	}
}

func TestSerializeTooLarge(t *testing.T) {
	p := Packet{Category: ChatReceive, Payload: make([]byte, DefaultMaxFrameSize)}
	if _, err := Serialize(p); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("err = %v, want ErrFrameTooLarge", err)
	}
}

func TestFramerSplitsAndJoins(t *testing.T) {
	a := frameOf(t, MustNew(ChatSend, &ChatSendBody{Text: "hello"}))
	b := frameOf(t, MustNew(LogoutRequest, nil))
	stream := append(append([]byte(nil), a...), b...)

	f := NewFramer(0)
	var got [][]byte
	for i := 0; i < len(stream); i += 3 {
		end := min(i+3, len(stream))
		frames, errs := f.Feed(stream[i:end])
		if len(errs) != 0 {
			t.Fatalf("unexpected errors %v", errs)
		}
		got = append(got, frames...)
	}
	if len(got) != 2 {
		t.Fatalf("frames = %d, want 2", len(got))
	}
	if !bytes.Equal(got[0], a[FrameHeaderSize:]) || !bytes.Equal(got[1], b[FrameHeaderSize:]) {
		t.Fatalf("frame contents differ")
	}
	if f.Buffered() != 0 {
		t.Fatalf("buffered = %d", f.Buffered())
	}
}

func TestFramerSkipsOversized(t *testing.T) {
	f := NewFramer(8)
	big := binary.BigEndian.AppendUint32(nil, 20)
	big = append(big, make([]byte, 20)...)
	good := frameOf(t, MustNew(LogoutRequest, nil))

	frames, errs := f.Feed(big[:10])
	if len(frames) != 0 || len(errs) != 1 || !errors.Is(errs[0], ErrFrameTooLarge) {
		t.Fatalf("first feed: frames=%d errs=%v", len(frames), errs)
	}
	frames, errs = f.Feed(append(append([]byte(nil), big[10:]...), good...))
	if len(errs) != 0 {
		t.Fatalf("second feed errs = %v", errs)
	}
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(frames))
	}
	p, err := Parse(frames[0])
	if err != nil || p.Category != LogoutRequest {
		t.Fatalf("parsed %v, %v", p, err)
	}
}

func TestReadWritePacket(t *testing.T) {
	var buf bytes.Buffer
	in := MustNew(ChatReceive, &ChatReceiveBody{UserID: 7, Text: "hi"})
	if err := WritePacket(&buf, in); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	out, err := ReadPacket(&buf, 0)
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	var body ChatReceiveBody
	if err := Decode(out, &body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.UserID != 7 || body.Text != "hi" {
		t.Fatalf("body = %+v", body)
	}
}
