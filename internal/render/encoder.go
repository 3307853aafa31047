package render

import (
	"strconv"

	"github.com/furrysalamander/ansicraft/internal/capture"
)

// lowerHalfBlock is U+2584. Each character cell carries two vertical pixels:
// the top pixel as the background color, the bottom as the foreground color
// of the lower half block.
var lowerHalfBlock = []byte("▄")

// Encoder paints packed RGB24 frames as truecolor half-block escape
// sequences. One Encode call produces one complete terminal repaint.
type Encoder struct {
	offsetX int
	offsetY int
}

// NewEncoder creates an encoder painting at the terminal origin.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode renders a frame of the given geometry. The output buffer is sized up
// front to the worst case (13 + rows/2*(cols*41+8) bytes) so a repaint is
// built without growing mid-frame.
func (e *Encoder) Encode(frame []byte, size capture.Size) []byte {
	cols, rows := size.Cols, size.Rows
	if len(frame) < size.FrameBytes() || cols < 1 || rows < 2 {
		return nil
	}

	buf := make([]byte, 0, 13+rows/2*(cols*41+8))

	// Home the cursor at the paint origin.
	buf = append(buf, 0x1b, '[')
	buf = strconv.AppendInt(buf, int64(e.offsetY+1), 10)
	buf = append(buf, ';')
	buf = strconv.AppendInt(buf, int64(e.offsetX+1), 10)
	buf = append(buf, 'H')

	for row := 0; row+1 < rows; row += 2 {
		top := frame[row*cols*3 : (row+1)*cols*3]
		bot := frame[(row+1)*cols*3 : (row+2)*cols*3]
		for col := 0; col < cols; col++ {
			o := col * 3
			buf = appendColor(buf, 48, top[o], top[o+1], top[o+2])
			buf = appendColor(buf, 38, bot[o], bot[o+1], bot[o+2])
			buf = append(buf, lowerHalfBlock...)
		}
		// Cursor down one line, back to the starting column.
		buf = append(buf, 0x1b, '[', 'B', 0x1b, '[')
		buf = strconv.AppendInt(buf, int64(cols), 10)
		buf = append(buf, 'D')
	}

	// Reset colors.
	buf = append(buf, 0x1b, '[', 'm')
	return buf
}

// appendColor appends an SGR truecolor sequence: ESC [ plane ;2; r;g;b m
// where plane is 48 (background) or 38 (foreground).
func appendColor(buf []byte, plane int, r, g, b byte) []byte {
	buf = append(buf, 0x1b, '[')
	buf = strconv.AppendInt(buf, int64(plane), 10)
	buf = append(buf, ';', '2', ';')
	buf = strconv.AppendInt(buf, int64(r), 10)
	buf = append(buf, ';')
	buf = strconv.AppendInt(buf, int64(g), 10)
	buf = append(buf, ';')
	buf = strconv.AppendInt(buf, int64(b), 10)
	buf = append(buf, 'm')
	return buf
}
