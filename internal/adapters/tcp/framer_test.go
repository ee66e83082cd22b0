package tcp

import (
	"errors"
	"io"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

// chunkReader delivers at most n bytes per Read call.
type chunkReader struct {
	data []byte
	n    int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := c.n
	if n > len(c.data) {
		n = len(c.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

func frameAll(t *testing.T, r io.Reader) []string {
	t.Helper()
	f := NewFramer(r)
	var out []string
	for {
		line, err := f.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("unexpected framing error: %v", err)
		}
		out = append(out, line)
	}
}

func TestFramerLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"single line", "49.0\n", []string{"49.0"}},
		{"several lines in one read", "49.0\n48.5\n48.0\n", []string{"49.0", "48.5", "48.0"}},
		{"crlf endings", "49.0\r\n48.5\r\n", []string{"49.0", "48.5"}},
		{"blank lines skipped", "\n\n49.0\n  \n48.5\n", []string{"49.0", "48.5"}},
		{"whitespace trimmed", "  49.0  \n\t48.5\t\n", []string{"49.0", "48.5"}},
		{"control line", "subject 7\n49.0\n", []string{"subject 7", "49.0"}},
		{"trailing partial dropped", "49.0\n48.5", []string{"49.0"}},
		{"no newline at all", "49.0", nil},
		{"empty stream", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := frameAll(t, strings.NewReader(tt.input))
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("line %d: got %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFramerChunkingInvariance(t *testing.T) {
	Convey("Given a stream of readings", t, func() {
		input := "49.0\n48.5\nsubject 12\n\n48.0\r\n  47.5\n47.0"

		Convey("Framing is identical for every chunk size", func() {
			want := frameAll(t, strings.NewReader(input))
			So(want, ShouldResemble, []string{"49.0", "48.5", "subject 12", "48.0", "47.5"})

			for _, size := range []int{1, 2, 3, 5, 7, 64} {
				got := frameAll(t, &chunkReader{data: []byte(input), n: size})
				So(got, ShouldResemble, want)
			}
		})
	})
}

func TestFramerLineTooLong(t *testing.T) {
	Convey("Given a peer that never sends a newline", t, func() {
		f := NewFramer(strings.NewReader(strings.Repeat("9", MaxLineBytes+600)))

		Convey("The framer gives up with ErrLineTooLong", func() {
			_, err := f.Next()
			So(errors.Is(err, ErrLineTooLong), ShouldBeTrue)
		})
	})
}

func TestFramerSurfacesTransportError(t *testing.T) {
	boom := errors.New("reset by peer")
	f := NewFramer(io.MultiReader(strings.NewReader("49.0\n48.5\n"), &failReader{err: boom}))

	for _, want := range []string{"49.0", "48.5"} {
		line, err := f.Next()
		if err != nil || line != want {
			t.Fatalf("got (%q, %v), want (%q, nil)", line, err, want)
		}
	}
	if _, err := f.Next(); !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
}

type failReader struct{ err error }

func (f *failReader) Read([]byte) (int, error) { return 0, f.err }
