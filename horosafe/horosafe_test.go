package horosafe

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr error
	}{
		{"https://93.184.216.34/page", nil},
		{"ftp://93.184.216.34/data", ErrUnsafeScheme},
		{"javascript:alert(1)", ErrUnsafeScheme},
		{"http://127.0.0.1/admin", ErrSSRF},
		{"http://0.0.0.0/", ErrSSRF},
		{"http://10.0.0.1/internal", ErrSSRF},
		{"http://192.168.1.1/api", ErrSSRF},
		{"http://172.16.0.1/secret", ErrSSRF},
		{"http://100.64.1.1/cgnat", ErrSSRF},
		{"http://[::1]/api", ErrSSRF},
		{"http://[fd00::1]/ula", ErrSSRF},
	}
	for _, tt := range tests {
		err := ValidateURL(tt.url)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("ValidateURL(%q) = %v, want %v", tt.url, err, tt.wantErr)
		}
	}
	if err := ValidateURL("http:///nohost"); err == nil {
		t.Error("URL without host accepted")
	}
}

func TestValidateIdentifier(t *testing.T) {
	for _, ok := range []string{"home", "page-1", "shop_v2.checkout"} {
		if err := ValidateIdentifier(ok); err != nil {
			t.Errorf("ValidateIdentifier(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "a/b", "x y", "<script>", strings.Repeat("a", 129)} {
		if err := ValidateIdentifier(bad); err == nil {
			t.Errorf("ValidateIdentifier(%q) accepted", bad)
		}
	}
}

func TestLimitedReadAll(t *testing.T) {
	data, err := LimitedReadAll(strings.NewReader("hello"), 5)
	if err != nil || string(data) != "hello" {
		t.Fatalf("at limit: %q, %v", data, err)
	}
	if _, err := LimitedReadAll(strings.NewReader("hello!"), 5); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("over limit: %v", err)
	}
}
