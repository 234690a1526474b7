package datauri

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		wantMIME string
		wantData string
		wantErr  bool
	}{
		{name: "png", uri: "data:image/png;base64,iVBORw0KGgo=", wantMIME: "image/png", wantData: "iVBORw0KGgo="},
		{name: "jpeg", uri: "data:image/jpeg;base64,/9j/4AAQ", wantMIME: "image/jpeg", wantData: "/9j/4AAQ"},
		{name: "no comma", uri: "data:image/png;base64", wantErr: true},
		{name: "two commas", uri: "data:image/png;base64,AAA,BBB", wantErr: true},
		{name: "no mime section", uri: "data:image/png,AAAA", wantErr: true},
		{name: "empty", uri: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.uri)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Fatalf("err = %v, want ErrMalformed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if got.MIMEType != tt.wantMIME || got.Data != tt.wantData {
				t.Errorf("Parse = %+v, want mime %q data %q", got, tt.wantMIME, tt.wantData)
			}
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G', 0, 1, 2}
	uri := Encode("image/png", payload)
	mime, data, err := Decode(uri)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if mime != "image/png" || string(data) != string(payload) {
		t.Errorf("Decode = %q %v", mime, data)
	}
}

func TestDecodeBadBase64(t *testing.T) {
	if _, _, err := Decode("data:image/png;base64,@@@"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestIsImage(t *testing.T) {
	if !IsImage("data:image/webp;base64,AAAA") {
		t.Error("webp not recognised as image")
	}
	if IsImage("data:application/pdf;base64,AAAA") {
		t.Error("pdf recognised as image")
	}
	if IsImage("not a uri") {
		t.Error("garbage recognised as image")
	}
}
