package mpd

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Writer encodes request lines onto the daemon byte stream. It is not safe
// for concurrent use; the connection serializes access through its writer
// lock.
type Writer struct {
	w *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteCommand emits one request line: the command name followed by each
// argument double-quoted, with embedded quote and backslash characters
// escaped. A newline inside an argument would desynchronize the line-oriented
// stream, so it is rejected rather than transmitted.
func (w *Writer) WriteCommand(cmd string, args ...string) error {
	var line strings.Builder
	line.WriteString(cmd)

	for _, arg := range args {
		line.WriteByte(' ')
		line.WriteByte('"')
		for _, c := range arg {
			switch c {
			case '"', '\\':
				line.WriteByte('\\')
				line.WriteRune(c)
			case '\n':
				return fmt.Errorf("newline in argument to command %s", cmd)
			default:
				line.WriteRune(c)
			}
		}
		line.WriteByte('"')
	}
	line.WriteByte('\n')

	if _, err := w.w.WriteString(line.String()); err != nil {
		return err
	}
	return w.w.Flush()
}
