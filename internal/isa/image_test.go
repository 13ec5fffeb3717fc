package isa

import "testing"

func TestImageHdrRoundTrip(t *testing.T) {
	want := ImageHdr{
		DataOffset:   HeaderSize,
		DataSize:     16,
		StringOffset: 0,
		StringSize:   0,
		CodeOffset:   HeaderSize + 16,
		CodeSize:     8,
		MainFunction: 3,
	}
	buf := want.Encode()
	if len(buf) != HeaderSize {
		t.Fatalf("Encode: got %d bytes, want %d", len(buf), HeaderSize)
	}
	got, err := DecodeImageHdr(buf)
	if err != nil {
		t.Fatalf("DecodeImageHdr: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestDecodeImageHdrShort(t *testing.T) {
	if _, err := DecodeImageHdr(make([]byte, HeaderSize-1)); err == nil {
		t.Fatal("expected an error decoding a short header")
	}
}

func TestImageRoundTrip(t *testing.T) {
	img := Image{
		Hdr: ImageHdr{
			DataOffset:   HeaderSize,
			DataSize:     4,
			StringOffset: 0,
			StringSize:   0,
			CodeOffset:   HeaderSize + 4,
			CodeSize:     2,
			MainFunction: 0,
		},
		Data: []byte{1, 2, 3, 4},
		Code: []byte{byte(HALT), byte(HALT)},
	}
	buf := img.Bytes()

	got, err := DecodeImage(buf)
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	if got.Hdr != img.Hdr {
		t.Fatalf("header mismatch: got %+v, want %+v", got.Hdr, img.Hdr)
	}
	if string(got.Data) != string(img.Data) {
		t.Fatalf("data mismatch: got %v, want %v", got.Data, img.Data)
	}
	if len(got.String) != 0 {
		t.Fatalf("expected an empty string segment, got %v", got.String)
	}
	if string(got.Code) != string(img.Code) {
		t.Fatalf("code mismatch: got %v, want %v", got.Code, img.Code)
	}
}

func TestBranchAndLitEncoding(t *testing.T) {
	buf := make([]byte, 2)
	PutBranch16(buf, -5)
	if got := Branch16(buf); got != -5 {
		t.Fatalf("Branch16: got %d, want -5", got)
	}

	lit := make([]byte, 4)
	PutLit32(lit, -123456)
	if got := Lit32(lit); got != -123456 {
		t.Fatalf("Lit32: got %d, want -123456", got)
	}
}

func TestOperandWidths(t *testing.T) {
	cases := []struct {
		op    Op
		width int
	}{
		{HALT, 0},
		{BR, 2},
		{TRY, 2},
		{LIT, 4},
		{DADDR, 4},
		{SLIT, 1},
		{LADDR, 1},
		{FRAME, 1},
		{CALL, 1},
		{SEND, 1},
		{TRAP, 1},
		{RETURN, 0},
	}
	for _, tc := range cases {
		if got := Width(tc.op); got != tc.width {
			t.Errorf("Width(%v) = %d, want %d", tc.op, got, tc.width)
		}
	}
}
