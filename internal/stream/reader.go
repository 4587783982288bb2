package stream

import (
	"bufio"
	"errors"
	"io"
)

// Reader yields the events of one SSE response body. It is not safe for
// concurrent use and cannot be restarted once exhausted.
//
//	r := stream.NewReader(resp.Body)
//	for r.Next() {
//		handle(r.Current())
//	}
//	if err := r.Err(); err != nil { ... }
type Reader struct {
	br   *bufio.Reader
	line []byte
	max  int
	cur  Event
	err  error
	eof  bool
}

// MaxLineSize bounds one line of the body. A longer line is dropped whole and
// reading resumes after its newline.
const MaxLineSize = 4 << 20

func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 64*1024), max: MaxLineSize}
}

// Next blocks until the next event is decoded or the stream ends. Lines that
// carry no event are skipped.
func (r *Reader) Next() bool {
	r.cur = nil
	for !r.eof {
		line, err := r.readLine()
		if err != nil {
			r.eof = true
			if !errors.Is(err, io.EOF) {
				// A line cut short by a transport error is never rendered.
				r.err = err
				return false
			}
		}
		if ev, ok := ParseFrame(line); ok {
			r.cur = ev
			return true
		}
	}
	return false
}

// readLine returns the next line including its newline. The slice is reused
// by the following call. Oversized lines come back empty.
func (r *Reader) readLine() ([]byte, error) {
	r.line = r.line[:0]
	skipping := false
	for {
		chunk, err := r.br.ReadSlice('\n')
		if !skipping {
			if len(r.line)+len(chunk) > r.max {
				skipping = true
				r.line = r.line[:0]
			} else {
				r.line = append(r.line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return r.line, err
	}
}

func (r *Reader) Current() Event {
	return r.cur
}

// Err returns the read error that ended the stream, or nil if the body closed
// cleanly.
func (r *Reader) Err() error {
	return r.err
}
