package ospf

import "testing"

func TestEncodePacket_DecodeHeader_RoundTrip(t *testing.T) {
	h := PacketHeader{RouterID: 0x01010101, AreaID: 0, AuType: AuTypeNone}
	hello := EncodeHello(HelloPacket{NetworkMask: 0xFFFFFF00, HelloInterval: 10, RouterDeadInterval: 40})
	h.Type = PacketTypeHello
	framed := EncodePacket(h, hello)

	got, err := DecodeHeader(framed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Type != PacketTypeHello || got.RouterID != h.RouterID {
		t.Fatalf("got %+v", got)
	}
	if int(got.Length) != len(framed) {
		t.Fatalf("length = %d, want %d", got.Length, len(framed))
	}
}

func TestDecodeHeader_WrongVersion(t *testing.T) {
	h := PacketHeader{RouterID: 1}
	buf := EncodeHeader(h, 0)
	buf[0] = 3
	if _, err := DecodeHeader(buf); err == nil {
		t.Fatal("expected version error")
	}
}

func TestDecodeHeader_Truncated(t *testing.T) {
	if _, err := DecodeHeader(make([]byte, 10)); err == nil {
		t.Fatal("expected truncation error")
	}
}
