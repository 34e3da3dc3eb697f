// Package artifact - keeps a model file available on local disk, downloading
// it on first use.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofrs/flock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	// lockRetryDelay is how often a waiting Ensure polls the lock file.
	lockRetryDelay = 100 * time.Millisecond
	// sniffLen is how much of the payload is kept to identify its type.
	sniffLen = 3072
)

// Artifact is a model file present on local disk.
type Artifact struct {
	// Path is the local file.
	Path string `json:"path"`
	// Locator identifies the remote source.
	Locator string `json:"locator"`
	// Size is the file size in bytes.
	Size int64 `json:"size"`
	// Downloaded is true when this call fetched the file.
	Downloaded bool `json:"downloaded"`
}

// Options configures a Cache.
type Options struct {
	// SHA256 is the expected hex digest. When set, downloads are verified and
	// an existing file with a different digest is fetched again.
	SHA256 string
	// LockWait bounds how long Ensure waits for another download of the same
	// path (0 = until the context is done).
	LockWait time.Duration
	// Logger receives cache hits and download progress; no-op when nil.
	Logger *zap.Logger
}

// Cache makes artifacts available locally through a Fetcher.
type Cache struct {
	fetcher Fetcher
	opts    Options
	logger  *zap.Logger
}

// New returns a Cache that downloads through fetcher.
func New(fetcher Fetcher, opts Options) *Cache {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.SHA256 = strings.ToLower(strings.TrimSpace(opts.SHA256))
	return &Cache{fetcher: fetcher, opts: opts, logger: logger}
}

// Ensure returns the artifact at localPath, downloading it from locator if
// the file does not exist yet.
//
// An existing file is returned without any network access. Otherwise the
// payload is streamed into a temporary file next to localPath, synced, checked
// and renamed into place, so localPath only ever holds a complete download.
// Concurrent callers, in this process or another, are serialized with a lock
// file at localPath + ".lock"; whoever comes second finds the file present.
//
// Arguments:
//   - ctx: Bounds the lock wait and the download.
//   - localPath: Where the artifact lives.
//   - locator: The remote identifier handed to the Fetcher.
//
// Returns:
//   - Artifact: The local artifact.
//   - error: A *DownloadError if the artifact is absent and could not be fetched.
func (c *Cache) Ensure(ctx context.Context, localPath, locator string) (Artifact, error) {
	fail := func(err error) (Artifact, error) {
		return Artifact{}, &DownloadError{Locator: locator, Err: err}
	}

	if art, ok, err := c.lookup(localPath, locator); err != nil {
		return fail(err)
	} else if ok {
		c.logger.Debug("artifact cached", zap.String("path", localPath))
		return art, nil
	}

	dir := filepath.Dir(localPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(errors.Wrapf(err, "failed to create %s", dir))
	}

	unlock, err := c.lock(ctx, localPath)
	if err != nil {
		return fail(err)
	}
	defer unlock()

	// Another caller may have finished while we waited for the lock.
	if art, ok, err := c.lookup(localPath, locator); err != nil {
		return fail(err)
	} else if ok {
		return art, nil
	}

	c.logger.Info("downloading artifact",
		zap.String("locator", locator),
		zap.String("path", localPath))

	size, err := c.download(ctx, localPath, locator)
	if err != nil {
		return fail(err)
	}

	return Artifact{
		Path:       localPath,
		Locator:    locator,
		Size:       size,
		Downloaded: true,
	}, nil
}

// lookup reports whether a usable file is already at path.
func (c *Cache) lookup(path, locator string) (Artifact, bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Artifact{}, false, nil
	}
	if err != nil {
		return Artifact{}, false, err
	}
	if !info.Mode().IsRegular() {
		return Artifact{}, false, errors.Errorf("%s exists and is not a regular file", path)
	}

	if c.opts.SHA256 != "" {
		sum, err := fileSHA256(path)
		if err != nil {
			return Artifact{}, false, err
		}
		if sum != c.opts.SHA256 {
			c.logger.Warn("cached artifact checksum mismatch, fetching again",
				zap.String("path", path),
				zap.String("sha256", sum))
			return Artifact{}, false, nil
		}
	}

	return Artifact{Path: path, Locator: locator, Size: info.Size()}, true, nil
}

func (c *Cache) lock(ctx context.Context, path string) (func(), error) {
	if c.opts.LockWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.LockWait)
		defer cancel()
	}

	fl := flock.New(path + ".lock")
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire download lock")
	}
	if !locked {
		return nil, errors.New("failed to acquire download lock")
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			c.logger.Warn("failed to release download lock", zap.Error(err))
		}
	}, nil
}

// download fetches locator into a temporary file and renames it onto path.
func (c *Cache) download(ctx context.Context, path, locator string) (size int64, err error) {
	id, err := uuid.NewV4()
	if err != nil {
		return 0, errors.Wrap(err, "failed to generate temp name")
	}
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+id.String()+".part")

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create temp file")
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	sink := newPayloadSink(f)
	if _, err = c.fetcher.Fetch(ctx, locator, sink); err != nil {
		return 0, err
	}
	if err = sink.validate(c.opts.SHA256); err != nil {
		return 0, err
	}

	if err = f.Sync(); err != nil {
		return 0, errors.Wrap(err, "failed to sync temp file")
	}
	if err = f.Close(); err != nil {
		return 0, errors.Wrap(err, "failed to close temp file")
	}
	if err = os.Rename(tmp, path); err != nil {
		return 0, errors.Wrap(err, "failed to move download into place")
	}

	return sink.n, nil
}

// payloadSink writes to a file while hashing, counting and keeping the head
// of the payload.
type payloadSink struct {
	w    io.Writer
	hash hash.Hash
	head []byte
	n    int64
}

func newPayloadSink(w io.Writer) *payloadSink {
	return &payloadSink{w: w, hash: sha256.New(), head: make([]byte, 0, sniffLen)}
}

func (s *payloadSink) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	s.hash.Write(p[:n])
	s.n += int64(n)
	if room := sniffLen - len(s.head); room > 0 {
		s.head = append(s.head, p[:min(room, n)]...)
	}
	return n, err
}

// validate rejects payloads that cannot be a model file.
func (s *payloadSink) validate(want string) error {
	if s.n == 0 {
		return errors.New("empty payload")
	}

	mtype := mimetype.Detect(s.head)
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/html") || m.Is("text/plain") {
			return errors.Errorf("payload is %s, not a model file", mtype.String())
		}
	}

	if want != "" {
		if got := hex.EncodeToString(s.hash.Sum(nil)); got != want {
			return errors.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrapf(err, "failed to hash %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
