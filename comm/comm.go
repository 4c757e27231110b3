/*Package comm provides the serial connection plumbing shared by the protocol
layer: connection makers, open-with-backoff, and carriage-return line framing.

A connection is owned exclusively by whoever opened it.  There is no pooling
and no hand-off between goroutines; one board, one owner, for the life of the
session.
*/
package comm

import (
	"bufio"
	"errors"
	"io"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"
)

const (
	// TxTerminator ends every line sent to the board.
	TxTerminator = '\r'

	// RxTerminator ends every line the board sends back (preceded by an
	// optional carriage return, which is also swallowed).
	RxTerminator = '\n'
)

// ErrNotConnected is generated when an operation is attempted on a closed
// connection.
var ErrNotConnected = errors.New("conn is nil, not connected to remote")

// CreationFunc returns a new connection to something.  A closure should be
// used to encapsulate the address and options needed.
type CreationFunc func() (io.ReadWriteCloser, error)

// SerialConnMaker returns a CreationFunc for an RS232/USB-CDC port.  The
// read timeout is what turns a dead board into bounded empty reads instead
// of an infinite wait.
func SerialConnMaker(name string, baud int, readTimeout time.Duration) CreationFunc {
	return func() (io.ReadWriteCloser, error) {
		return serial.OpenPort(&serial.Config{
			Name:        name,
			Baud:        baud,
			Size:        8,
			Parity:      serial.ParityNone,
			StopBits:    serial.Stop1,
			ReadTimeout: readTimeout,
		})
	}
}

// OpenBackingOff opens a connection with exponential backoff.  Boards that
// were just replugged do not like being connection thrashed.
func OpenBackingOff(maker CreationFunc) (io.ReadWriteCloser, error) {
	var conn io.ReadWriteCloser
	op := func() error {
		var err error
		conn, err = maker()
		return err
	}
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// LineConn frames an io.ReadWriteCloser into CR-terminated command lines and
// newline-terminated response lines.
type LineConn struct {
	conn io.ReadWriteCloser
	r    *bufio.Reader
}

// NewLineConn wraps an open connection.
func NewLineConn(conn io.ReadWriteCloser) *LineConn {
	return &LineConn{conn: conn, r: bufio.NewReader(conn)}
}

// SendLine writes s with the Tx terminator appended, in a single Write call
// so a command line is never split on the wire.
func (l *LineConn) SendLine(s string) error {
	if l == nil || l.conn == nil {
		return ErrNotConnected
	}
	buf := make([]byte, 0, len(s)+1)
	buf = append(buf, s...)
	buf = append(buf, TxTerminator)
	_, err := l.conn.Write(buf)
	return err
}

// RecvLine reads one response line, stripping CR/LF.  A read timeout with
// nothing buffered comes back as an empty line with a nil error; the
// protocol layer treats empty lines as retryable.  Hard I/O errors are
// returned as-is.
func (l *LineConn) RecvLine() (string, error) {
	if l == nil || l.conn == nil {
		return "", ErrNotConnected
	}
	buf := make([]byte, 0, 64)
	for {
		b, err := l.r.ReadByte()
		if err != nil {
			if err == io.ErrNoProgress {
				// serial read timeout surfaced through bufio
				return string(buf), nil
			}
			return string(buf), err
		}
		if b == RxTerminator {
			break
		}
		if b == TxTerminator {
			// CR half of a CRLF pair; the LF (if any) will come back as
			// an empty line, which callers already retry past
			break
		}
		buf = append(buf, b)
	}
	return string(buf), nil
}

// Close closes the underlying connection.
func (l *LineConn) Close() error {
	if l == nil || l.conn == nil {
		return ErrNotConnected
	}
	err := l.conn.Close()
	if err == nil {
		l.conn = nil
	}
	return err
}
