package ospf

import "testing"

func TestHello_RoundTrip(t *testing.T) {
	h := HelloPacket{
		NetworkMask:            0xFFFFFF00,
		HelloInterval:          10,
		Options:                OptionE,
		RouterPriority:         1,
		RouterDeadInterval:     40,
		DesignatedRouter:       0x01010101,
		BackupDesignatedRouter: 0,
		Neighbors:              []uint32{0x02020202, 0x03030303},
	}
	enc := EncodeHello(h)
	got, err := DecodeHello(enc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.HelloInterval != h.HelloInterval || got.RouterDeadInterval != h.RouterDeadInterval {
		t.Fatalf("got %+v", got)
	}
	if !got.HasNeighbor(0x02020202) || got.HasNeighbor(0x09090909) {
		t.Fatalf("neighbor membership wrong: %+v", got.Neighbors)
	}
}

func TestDecodeHello_Truncated(t *testing.T) {
	if _, err := DecodeHello(make([]byte, 5)); err == nil {
		t.Fatal("expected truncation error")
	}
}

func TestDecodeHello_PartialNeighborEntry(t *testing.T) {
	data := EncodeHello(HelloPacket{})
	data = append(data, 1, 2, 3)
	if _, err := DecodeHello(data); err == nil {
		t.Fatal("expected partial-entry error")
	}
}
