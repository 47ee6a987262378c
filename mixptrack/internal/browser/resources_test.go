package browser

import "testing"

func TestShouldBlock(t *testing.T) {
	set := map[string]bool{"images": true, "fonts": true, "script": true, "ping": true}

	cases := map[string]bool{
		"Image":      true,
		"Font":       true,
		"Media":      false,
		"Stylesheet": false,
		"Script":     false, // never blocked, even when listed
		"XHR":        false,
		"Ping":       true,
	}
	for typ, want := range cases {
		if got := shouldBlock(set, typ); got != want {
			t.Errorf("shouldBlock(%q): got %v, want %v", typ, got, want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.defaults()
	if c.MemoryLimit != 1<<30 || c.NavTimeout.Seconds() != 30 || c.Logger == nil {
		t.Errorf("defaults: %+v", c)
	}
}
