// Package file implements a file/stdout transport, optionally
// gzip-compressing its output.
package file

import (
	"flag"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/klauspost/compress/gzip"

	"github.com/flowbridge/flowdecode/transport"
)

// FileDriver writes formatted messages to stdout or a file, gzipping the
// stream when the destination is configured to do so.
type FileDriver struct {
	fileDestination string
	lineSeparator   string
	gzipOutput      bool

	w    io.Writer
	gz   *gzip.Writer
	file *os.File
	lock *sync.RWMutex
	q    chan bool
}

// Prepare registers flags for file transport configuration.
func (d *FileDriver) Prepare() error {
	flag.StringVar(&d.fileDestination, "transport.file", "", "File/console output (empty for stdout)")
	flag.StringVar(&d.lineSeparator, "transport.file.sep", "\n", "Line separator")
	flag.BoolVar(&d.gzipOutput, "transport.file.gzip", false, "Gzip-compress file output")
	return nil
}

func (d *FileDriver) openFile() error {
	file, err := os.OpenFile(d.fileDestination, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	d.file = file
	d.w = d.wrap(file)
	return nil
}

// wrap layers a new gzip.Writer over w when gzip output is enabled. It
// does not close a previous gzip.Writer; closeCurrent does that before a
// reopen.
func (d *FileDriver) wrap(w io.Writer) io.Writer {
	if !d.gzipOutput {
		return w
	}
	d.gz = gzip.NewWriter(w)
	return d.gz
}

// Init initializes the output destination and reload handling.
func (d *FileDriver) Init() error {
	d.q = make(chan bool, 1)

	if d.fileDestination == "" {
		d.w = d.wrap(os.Stdout)
	} else {
		var err error

		d.lock.Lock()
		err = d.openFile()
		d.lock.Unlock()
		if err != nil {
			return err
		}

		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGHUP)
		go func() {
			for {
				select {
				case <-c:
					file, err := os.OpenFile(d.fileDestination, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
					if err != nil {
						continue // if there is an error, keeps using the old file
					}
					d.lock.Lock()
					d.closeCurrent()
					d.file = file
					d.w = d.wrap(file)
					d.lock.Unlock()
				case <-d.q:
					return
				}
			}
		}()
	}
	return nil
}

// closeCurrent flushes and closes the active gzip stream (if any) and the
// underlying file. Caller holds d.lock.
func (d *FileDriver) closeCurrent() {
	if d.gz != nil {
		d.gz.Close()
		d.gz = nil
	}
	if d.file != nil {
		d.file.Close()
	}
}

// Send writes a formatted message and separator to the destination.
func (d *FileDriver) Send(key, data []byte) error {
	d.lock.RLock()
	w := d.w
	d.lock.RUnlock()
	if len(data) > 0 {
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	if d.lineSeparator == "" {
		return nil
	}
	_, err := w.Write([]byte(d.lineSeparator))
	return err
}

// Close closes the output file and stops reload handling.
func (d *FileDriver) Close() error {
	var closeErr error
	if d.fileDestination != "" {
		d.lock.Lock()
		if d.gz != nil {
			if err := d.gz.Close(); err != nil {
				closeErr = err
			}
			d.gz = nil
		}
		if err := d.file.Close(); err != nil && closeErr == nil {
			closeErr = err
		}
		d.lock.Unlock()
		signal.Ignore(syscall.SIGHUP)
	} else if d.gz != nil {
		closeErr = d.gz.Close()
		d.gz = nil
	}
	close(d.q)
	return closeErr
}

func init() {
	d := &FileDriver{
		lock: &sync.RWMutex{},
	}
	transport.RegisterTransportDriver("file", d)
}
