package log

import (
	"errors"
	"io"
	"sync/atomic"
)

// closer releases all logging resources as one unit. The hook is shut
// down before the files so no entry can be written to a closed file,
// and Close is safe to call more than once.
type closer struct {
	closers []io.Closer

	hook *hook

	closed int32
}

func (c *closer) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}

	if c.hook != nil {
		c.hook.Close()
	}

	// Keep closing the remaining files even when one of them fails.
	var errs error
	for _, closer := range c.closers {
		if closer != nil {
			if s, ok := closer.(interface{ Sync() error }); ok {
				_ = s.Sync()
			}

			if err := closer.Close(); err != nil {
				errs = errors.Join(errs, err)
			}
		}
	}

	return errs
}
