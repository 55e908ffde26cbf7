package fs

import (
	"errors"
	iofs "io/fs"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
)

// ChaosConfig controls fault injection probabilities.
// Each rate is a float64 from 0.0 (never) to 1.0 (always).
//
// The zero value disables all fault injection.
type ChaosConfig struct {
	// ReadFailRate controls how often File.Read and FS.ReadFile fail with EIO.
	ReadFailRate float64

	// PartialReadRate controls how often File.Read returns a short read
	// (n < len(buf), err == nil). This is legal io.Reader behavior and tests
	// that callers loop until EOF.
	PartialReadRate float64

	// WriteFailRate controls how often File.Write fails without writing,
	// returning EIO, ENOSPC, EDQUOT or EROFS.
	WriteFailRate float64

	// PartialWriteRate controls how often File.Write writes a prefix of the
	// data and then fails with one of the WriteFailRate errnos.
	PartialWriteRate float64

	// SyncFailRate controls how often File.Sync fails.
	SyncFailRate float64

	// CloseFailRate controls how often File.Close reports an error. The
	// descriptor is always closed.
	CloseFailRate float64

	// OpenFailRate controls how often FS.Open, FS.Create and FS.OpenFile fail.
	OpenFailRate float64

	// RemoveFailRate controls how often FS.Remove and FS.RemoveAll fail.
	RemoveFailRate float64

	// RenameFailRate controls how often FS.Rename fails with an *os.LinkError.
	RenameFailRate float64

	// StatFailRate controls how often FS.Stat, FS.Exists and File.Stat fail.
	StatFailRate float64

	// MkdirAllFailRate controls how often FS.MkdirAll fails.
	MkdirAllFailRate float64

	// ReadDirFailRate controls how often FS.ReadDir fails.
	ReadDirFailRate float64
}

// ChaosMode controls how [Chaos] behaves.
type ChaosMode uint8

const (
	// ChaosModeActive enables fault-rate injection.
	// This is the default mode for a new [Chaos].
	ChaosModeActive ChaosMode = iota

	// ChaosModeNoOp passes every operation directly to the underlying FS.
	ChaosModeNoOp
)

// ChaosStats contains counts of injected faults.
type ChaosStats struct {
	OpenFails     int64
	ReadFails     int64
	PartialReads  int64
	WriteFails    int64
	PartialWrites int64
	SyncFails     int64
	CloseFails    int64
	RemoveFails   int64
	RenameFails   int64
	StatFails     int64
	MkdirAllFails int64
	ReadDirFails  int64
}

// Total returns the sum of all counters.
func (s ChaosStats) Total() int64 {
	return s.OpenFails + s.ReadFails + s.PartialReads + s.WriteFails +
		s.PartialWrites + s.SyncFails + s.CloseFails + s.RemoveFails +
		s.RenameFails + s.StatFails + s.MkdirAllFails + s.ReadDirFails
}

// chaosError marks an error as injected by [Chaos]. It wraps the underlying
// error so errors.Is/As and os.IsPermission keep working.
type chaosError struct {
	Err error
}

func (e *chaosError) Error() string {
	return "chaos: " + e.Err.Error()
}

func (e *chaosError) Unwrap() error {
	return e.Err
}

// IsChaosErr reports whether err (or any wrapped error) was injected by [Chaos].
func IsChaosErr(err error) bool {
	var injected *chaosError

	return errors.As(err, &injected)
}

// Chaos wraps an [FS] and injects random failures for testing.
//
// Injected errors are [*iofs.PathError] values (or [*os.LinkError] for rename)
// carrying a real [syscall.Errno], marked so [IsChaosErr] can tell them apart
// from genuine OS errors. Chaos never injects ENOENT: a missing path always
// comes from the wrapped FS.
//
// Files opened through Chaos consult the mode on every call, so a test can
// open a file with injection disabled and switch it on just around the
// operation under test.
type Chaos struct {
	fs     FS
	config ChaosConfig
	mode   atomic.Uint32

	rngMu sync.Mutex
	rng   *rand.Rand

	openFails     atomic.Int64
	readFails     atomic.Int64
	partialReads  atomic.Int64
	writeFails    atomic.Int64
	partialWrites atomic.Int64
	syncFails     atomic.Int64
	closeFails    atomic.Int64
	removeFails   atomic.Int64
	renameFails   atomic.Int64
	statFails     atomic.Int64
	mkdirAllFails atomic.Int64
	readDirFails  atomic.Int64
}

// NewChaos creates a new [Chaos] filesystem wrapping the given [FS].
// The seed makes fault injection reproducible.
// Panics if underlying is nil.
func NewChaos(underlying FS, seed int64, config ChaosConfig) *Chaos {
	if underlying == nil {
		panic("underlying fs is nil")
	}

	return &Chaos{
		fs:     underlying,
		config: config,
		rng:    rand.New(rand.NewPCG(uint64(seed), uint64(seed))),
	}
}

// SetMode switches between [ChaosModeActive] and [ChaosModeNoOp].
// Safe to call concurrently with filesystem operations.
func (c *Chaos) SetMode(m ChaosMode) { c.mode.Store(uint32(m)) }

// Stats returns the current fault injection counts.
func (c *Chaos) Stats() ChaosStats {
	return ChaosStats{
		OpenFails:     c.openFails.Load(),
		ReadFails:     c.readFails.Load(),
		PartialReads:  c.partialReads.Load(),
		WriteFails:    c.writeFails.Load(),
		PartialWrites: c.partialWrites.Load(),
		SyncFails:     c.syncFails.Load(),
		CloseFails:    c.closeFails.Load(),
		RemoveFails:   c.removeFails.Load(),
		RenameFails:   c.renameFails.Load(),
		StatFails:     c.statFails.Load(),
		MkdirAllFails: c.mkdirAllFails.Load(),
		ReadDirFails:  c.readDirFails.Load(),
	}
}

var (
	openErrnos   = []syscall.Errno{syscall.EACCES, syscall.EIO, syscall.EMFILE, syscall.ENFILE}
	createErrnos = []syscall.Errno{syscall.EACCES, syscall.EIO, syscall.ENOSPC, syscall.EDQUOT, syscall.EROFS, syscall.EMFILE}
	writeErrnos  = []syscall.Errno{syscall.EIO, syscall.ENOSPC, syscall.EDQUOT, syscall.EROFS}
	removeErrnos = []syscall.Errno{syscall.EACCES, syscall.EPERM, syscall.EBUSY, syscall.EIO, syscall.EROFS}
	renameErrnos = []syscall.Errno{syscall.EACCES, syscall.EIO, syscall.ENOSPC, syscall.EXDEV, syscall.EROFS, syscall.EPERM}
	statErrnos   = []syscall.Errno{syscall.EACCES, syscall.EIO}
	mkdirErrnos  = []syscall.Errno{syscall.EACCES, syscall.EIO, syscall.ENOSPC, syscall.EROFS, syscall.ENOTDIR}
	eioOnly      = []syscall.Errno{syscall.EIO}
)

func (c *Chaos) Open(path string) (File, error) {
	return c.open(path, openErrnos, func() (File, error) { return c.fs.Open(path) })
}

func (c *Chaos) Create(path string) (File, error) {
	return c.open(path, createErrnos, func() (File, error) { return c.fs.Create(path) })
}

func (c *Chaos) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	errnos := openErrnos
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) != 0 {
		errnos = createErrnos
	}

	return c.open(path, errnos, func() (File, error) { return c.fs.OpenFile(path, flag, perm) })
}

func (c *Chaos) ReadFile(path string) ([]byte, error) {
	if err := c.inject("read", path, c.config.ReadFailRate, &c.readFails, eioOnly); err != nil {
		return nil, err
	}

	return c.fs.ReadFile(path)
}

func (c *Chaos) ReadDir(path string) ([]os.DirEntry, error) {
	if err := c.inject("readdir", path, c.config.ReadDirFailRate, &c.readDirFails, openErrnos); err != nil {
		return nil, err
	}

	return c.fs.ReadDir(path)
}

func (c *Chaos) MkdirAll(path string, perm os.FileMode) error {
	if err := c.inject("mkdirall", path, c.config.MkdirAllFailRate, &c.mkdirAllFails, mkdirErrnos); err != nil {
		return err
	}

	return c.fs.MkdirAll(path, perm)
}

func (c *Chaos) Stat(path string) (os.FileInfo, error) {
	if err := c.inject("stat", path, c.config.StatFailRate, &c.statFails, statErrnos); err != nil {
		return nil, err
	}

	return c.fs.Stat(path)
}

func (c *Chaos) Exists(path string) (bool, error) {
	if err := c.inject("stat", path, c.config.StatFailRate, &c.statFails, statErrnos); err != nil {
		return false, err
	}

	return c.fs.Exists(path)
}

func (c *Chaos) Remove(path string) error {
	if err := c.inject("remove", path, c.config.RemoveFailRate, &c.removeFails, removeErrnos); err != nil {
		return err
	}

	return c.fs.Remove(path)
}

func (c *Chaos) RemoveAll(path string) error {
	if err := c.inject("removeall", path, c.config.RemoveFailRate, &c.removeFails, removeErrnos); err != nil {
		return err
	}

	return c.fs.RemoveAll(path)
}

func (c *Chaos) Rename(oldpath, newpath string) error {
	if c.should(c.config.RenameFailRate) {
		c.renameFails.Add(1)

		return &chaosError{Err: &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: c.pick(renameErrnos)}}
	}

	return c.fs.Rename(oldpath, newpath)
}

func (c *Chaos) open(path string, errnos []syscall.Errno, openFn func() (File, error)) (File, error) {
	if err := c.inject("open", path, c.config.OpenFailRate, &c.openFails, errnos); err != nil {
		return nil, err
	}

	f, err := openFn()
	if err != nil {
		return nil, err
	}

	return &chaosFile{f: f, chaos: c, path: path}, nil
}

// inject returns an injected error with probability rate, nil otherwise.
func (c *Chaos) inject(op, path string, rate float64, counter *atomic.Int64, errnos []syscall.Errno) error {
	if !c.should(rate) {
		return nil
	}

	counter.Add(1)

	return &chaosError{Err: &iofs.PathError{Op: op, Path: path, Err: c.pick(errnos)}}
}

func (c *Chaos) should(rate float64) bool {
	if ChaosMode(c.mode.Load()) != ChaosModeActive || rate <= 0 {
		return false
	}

	return c.randFloat() < rate
}

func (c *Chaos) randFloat() float64 {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	return c.rng.Float64()
}

func (c *Chaos) randIntn(n int) int {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	return c.rng.IntN(n)
}

func (c *Chaos) pick(errnos []syscall.Errno) syscall.Errno {
	return errnos[c.randIntn(len(errnos))]
}

var _ FS = (*Chaos)(nil)

// chaosFile wraps a [File] and injects faults on its methods.
type chaosFile struct {
	f     File
	chaos *Chaos
	path  string
}

var _ File = (*chaosFile)(nil)

func (cf *chaosFile) Read(buf []byte) (int, error) {
	c := cf.chaos

	if err := c.inject("read", cf.path, c.config.ReadFailRate, &c.readFails, eioOnly); err != nil {
		return 0, err
	}

	// Limit the underlying read so the offset never advances past what is
	// returned.
	if len(buf) > 1 && c.should(c.config.PartialReadRate) {
		c.partialReads.Add(1)

		return cf.f.Read(buf[:c.randIntn(len(buf)-1)+1])
	}

	return cf.f.Read(buf)
}

func (cf *chaosFile) Write(data []byte) (int, error) {
	c := cf.chaos

	if err := c.inject("write", cf.path, c.config.WriteFailRate, &c.writeFails, writeErrnos); err != nil {
		return 0, err
	}

	if len(data) > 1 && c.should(c.config.PartialWriteRate) {
		c.partialWrites.Add(1)

		n, err := cf.f.Write(data[:c.randIntn(len(data)-1)+1])
		if err != nil {
			return n, err
		}

		return n, &chaosError{Err: &iofs.PathError{Op: "write", Path: cf.path, Err: c.pick(writeErrnos)}}
	}

	return cf.f.Write(data)
}

func (cf *chaosFile) Close() error {
	c := cf.chaos
	inject := c.should(c.config.CloseFailRate)

	err := cf.f.Close()
	if err != nil {
		return err
	}

	if inject {
		c.closeFails.Add(1)

		return &chaosError{Err: &iofs.PathError{Op: "close", Path: cf.path, Err: syscall.EIO}}
	}

	return nil
}

func (cf *chaosFile) Seek(offset int64, whence int) (int64, error) {
	return cf.f.Seek(offset, whence)
}

func (cf *chaosFile) Fd() uintptr {
	return cf.f.Fd()
}

func (cf *chaosFile) Stat() (os.FileInfo, error) {
	c := cf.chaos

	if err := c.inject("stat", cf.path, c.config.StatFailRate, &c.statFails, eioOnly); err != nil {
		return nil, err
	}

	return cf.f.Stat()
}

func (cf *chaosFile) Sync() error {
	c := cf.chaos

	if err := c.inject("sync", cf.path, c.config.SyncFailRate, &c.syncFails, writeErrnos); err != nil {
		return err
	}

	return cf.f.Sync()
}
