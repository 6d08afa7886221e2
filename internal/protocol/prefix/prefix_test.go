package prefix

import (
	"bytes"
	"testing"

	"github.com/danmuck/vrc20/internal/testutil/testlog"
)

func TestEncodeIsLittleEndian128(t *testing.T) {
	testlog.Start(t)
	got := New(1).Encode()
	want := make([]byte, TagLen)
	want[0] = 1
	if !bytes.Equal(got, want) {
		t.Fatalf("got=%x want=%x", got, want)
	}

	wide := Tag{Lo: 0x0807060504030201, Hi: 0x100f0e0d0c0b0a09}.Encode()
	for i, b := range wide {
		if b != byte(i+1) {
			t.Fatalf("byte %d got=%x want=%x", i, b, i+1)
		}
	}
}

func TestEncodeWithDiscriminantAndPayload(t *testing.T) {
	testlog.Start(t)
	tag := New(1)
	head := tag.EncodeWithDiscriminant(7)
	if len(head) != PayloadOffset || head[DiscriminantOffset] != 7 {
		t.Fatalf("unexpected head %x", head)
	}
	full := tag.EncodeWithDiscriminantAndPayload(7, []byte{0xaa, 0xbb})
	if !bytes.Equal(full[:PayloadOffset], head) {
		t.Fatalf("head mismatch %x", full)
	}
	if !bytes.Equal(full[PayloadOffset:], []byte{0xaa, 0xbb}) {
		t.Fatalf("payload mismatch %x", full)
	}
	empty := tag.EncodeWithDiscriminantAndPayload(7, nil)
	if !bytes.Equal(empty, head) {
		t.Fatalf("empty payload should equal discriminant-only encoding")
	}
}

func TestMatch(t *testing.T) {
	testlog.Start(t)
	tag := New(1)
	if !tag.Match(tag.EncodeWithDiscriminant(1)) {
		t.Fatalf("expected match")
	}
	if tag.Match(New(2).EncodeWithDiscriminant(1)) {
		t.Fatalf("expected mismatch for foreign tag")
	}
	if tag.Match([]byte{1, 0, 0}) {
		t.Fatalf("expected mismatch for short buffer")
	}
	if tag.Match(nil) {
		t.Fatalf("expected mismatch for nil buffer")
	}
}
