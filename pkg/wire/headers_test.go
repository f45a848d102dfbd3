package wire

import (
	"strings"
	"testing"
)

func TestWriteHeadersSortedOrder(t *testing.T) {
	headers := map[string]string{
		"Zebra": "1",
		"Alpha": "2",
		"Mango": "3",
	}
	var buf strings.Builder
	writeHeaders(&buf, headers)
	out := buf.String()

	alphaIdx := strings.Index(out, "Alpha")
	mangoIdx := strings.Index(out, "Mango")
	zebraIdx := strings.Index(out, "Zebra")
	if !(alphaIdx < mangoIdx && mangoIdx < zebraIdx) {
		t.Fatalf("expected alphabetical header order, got %q", out)
	}
}

func TestContentLengthMissing(t *testing.T) {
	_, present, err := contentLength(map[string]string{})
	if err != nil || present {
		t.Fatalf("expected absent Content-Length, got present=%v err=%v", present, err)
	}
}

func TestContentLengthNegative(t *testing.T) {
	_, _, err := contentLength(map[string]string{"Content-Length": "-5"})
	if err == nil {
		t.Fatal("expected error for negative Content-Length")
	}
}

func TestIsChunkedCaseInsensitive(t *testing.T) {
	if !isChunked(map[string]string{"Transfer-Encoding": "CHUNKED"}) {
		t.Fatal("expected case-insensitive chunked match")
	}
	if isChunked(map[string]string{"Transfer-Encoding": "gzip"}) {
		t.Fatal("expected no match for gzip")
	}
}

func TestConnectionClose(t *testing.T) {
	if !connectionClose(map[string]string{"Connection": "close"}) {
		t.Fatal("expected close token match")
	}
	if connectionClose(map[string]string{"Connection": "keep-alive"}) {
		t.Fatal("expected no match for keep-alive")
	}
}
