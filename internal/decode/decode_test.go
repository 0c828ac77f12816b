package decode

import "testing"

func TestExtension(t *testing.T) {
	cases := map[string]string{
		"/tmp/a.wav":       "wav",
		"/tmp/a.WAV":       "wav",
		"/tmp/archive.tar": "tar",
		"noext":            "",
		"trailing.":        "",
		"/a/b/c.MKV":       "mkv",
	}
	for path, want := range cases {
		if got := Extension(path); got != want {
			t.Errorf("Extension(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestSupportedExtensionsAreLowerCase(t *testing.T) {
	for _, ext := range SupportedExtensions {
		if Extension("file."+ext) != ext {
			t.Errorf("extension %q is not already lower-case normal form", ext)
		}
	}
}
