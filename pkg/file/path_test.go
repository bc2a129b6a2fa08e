package file

import "testing"

func TestWithSuffix(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		suffix string
		ext    string
		want   string
	}{
		{name: "keep ext", path: "data/book.txt", suffix: "_fr", ext: "", want: "data/book_fr.txt"},
		{name: "swap ext", path: "data/book.txt", suffix: "_fr", ext: "json", want: "data/book_fr.json"},
		{name: "dotted ext arg", path: "book.txt", suffix: "_es", ext: ".json", want: "book_es.json"},
		{name: "no ext", path: "book", suffix: "_de", ext: "txt", want: "book_de.txt"},
		{name: "empty path", path: "", suffix: "_fr", ext: "txt", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WithSuffix(tt.path, tt.suffix, tt.ext); got != tt.want {
				t.Fatalf("WithSuffix(%q, %q, %q)=%q, want %q", tt.path, tt.suffix, tt.ext, got, tt.want)
			}
		})
	}
}
