/*
Copyright 2024 The kaniko-remote Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package transfer

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/kballard/go-shellquote"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"k8s.io/client-go/tools/remotecommand"

	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/constants"
	kerrors "github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/errors"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/output/log"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/util"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/walk"
)

// Executor runs a command in a container of a pod.
type Executor interface {
	Exec(ctx context.Context, pod, container string, command []string, streams remotecommand.StreamOptions) error
}

// Uploader copies local files into a running container through an exec'd
// shell. It only needs `sh`, `cat`, `base64`, `tar` and `mv` in the container.
type Uploader struct {
	Exec Executor
	// PacketSize is the number of archive bytes sent per line.
	PacketSize int
	// Progress draws a progress bar for uploads that have a label.
	Progress bool
}

// Result summarises an upload.
type Result struct {
	Files int
	Bytes int64
}

func (r Result) String() string {
	return fmt.Sprintf("%d files (%s)", r.Files, humanize.Bytes(uint64(r.Bytes)))
}

// UploadLocalFiles archives the files yielded by the walker and extracts them
// under remotePath. Archive entries are named relative to relativeRoot.
func (u *Uploader) UploadLocalFiles(ctx context.Context, pod, container string, files walk.Walker, remotePath, relativeRoot, progressLabel string) (Result, error) {
	archive, err := os.CreateTemp("", "kaniko-remote-*.tar.gz")
	if err != nil {
		return Result{}, fmt.Errorf("creating archive: %w", err)
	}
	defer os.Remove(archive.Name())
	defer archive.Close()

	names, err := util.CreateTarGz(archive, relativeRoot, files)
	if err != nil {
		return Result{}, &kerrors.ContextError{Path: relativeRoot, Msg: fmt.Sprintf("archiving files: %v", err)}
	}
	size, err := archive.Seek(0, io.SeekCurrent)
	if err != nil {
		return Result{}, err
	}
	if _, err := archive.Seek(0, io.SeekStart); err != nil {
		return Result{}, err
	}

	result := Result{Files: len(names), Bytes: size}
	log.Entry(ctx).Infof("Including %s in transfer to pod", result)

	if err := u.upload(ctx, pod, container, archive, size, topLevel(names), remotePath, progressLabel); err != nil {
		return result, err
	}
	return result, nil
}

// UploadFile copies a single file into remotePath, keeping its base name.
func (u *Uploader) UploadFile(ctx context.Context, pod, container, localPath, remotePath string) error {
	_, err := u.UploadLocalFiles(ctx, pod, container, walk.From(localPath), remotePath, filepath.Dir(localPath), "")
	return err
}

// upload extracts the archive into a staging directory on the same volume
// as remotePath and then renames its entries into place, so that a file
// appears under remotePath only once it is complete. The setup container
// exits as soon as the docker config shows up, which may end the session
// before the shell does: once the script has reported completion, that is
// not an error.
func (u *Uploader) upload(ctx context.Context, pod, container string, archive io.Reader, size int64, entries []string, remotePath, label string) error {
	packetSize := u.packetSize()
	packets := int((size + int64(packetSize) - 1) / int64(packetSize))

	bar := noProgress
	if u.Progress && label != "" {
		bar = newProgressBar(label, packets+4)
	}
	defer bar.Stop()

	id := uuid.New().String()
	s := script{
		encoded:    "/tmp/" + id + ".tar.gz.b64",
		archive:    "/tmp/" + id + ".tar.gz",
		staging:    path.Join(remotePath, ".incoming-"+id),
		remotePath: remotePath,
		entries:    entries,
		marker:     "transfer-complete-" + id,
	}

	output := log.Entry(ctx).WriterLevel(logrus.DebugLevel)
	defer output.Close()
	done := newCompletion(s.marker)

	stdinR, stdinW := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := u.Exec.Exec(gctx, pod, container, []string{"sh"}, remotecommand.StreamOptions{
			Stdin:  stdinR,
			Stdout: io.MultiWriter(output, done),
			Stderr: output,
		})
		if err != nil && done.Reached() {
			log.Entry(ctx).Debugf("Shell session ended after the files were in place: %v", err)
			err = nil
		}
		if err == nil {
			err = io.ErrClosedPipe
		}
		stdinR.CloseWithError(err)
		if errors.Is(err, io.ErrClosedPipe) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		err := s.write(gctx, stdinW, archive, packetSize, bar)
		if err != nil && done.Reached() {
			err = nil
		}
		stdinW.CloseWithError(err)
		return err
	})

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("uploading to %s/%s:%s: %w", pod, container, remotePath, err)
	}
	return nil
}

// topLevel returns the distinct first path elements of the archive entries.
func topLevel(names []string) []string {
	var entries []string
	seen := map[string]bool{}
	for _, name := range names {
		first, _, _ := strings.Cut(name, "/")
		if !seen[first] {
			seen[first] = true
			entries = append(entries, first)
		}
	}
	return entries
}

// completion watches the shell output for the marker printed once every
// file has been moved into place.
type completion struct {
	marker []byte

	mu      sync.Mutex
	tail    []byte
	reached atomic.Bool
}

func newCompletion(marker string) *completion {
	return &completion{marker: []byte(marker)}
}

func (c *completion) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reached.Load() {
		return len(p), nil
	}
	c.tail = append(c.tail, p...)
	if bytes.Contains(c.tail, c.marker) {
		c.reached.Store(true)
		c.tail = nil
	} else if keep := len(c.marker); len(c.tail) > keep {
		c.tail = c.tail[len(c.tail)-keep:]
	}
	return len(p), nil
}

func (c *completion) Reached() bool {
	return c.reached.Load()
}

// packetSize is kept a multiple of three so that no line but the last
// carries base64 padding.
func (u *Uploader) packetSize() int {
	size := u.PacketSize
	if size <= 0 {
		size = constants.DefaultTransferPacketSize
	}
	if size < 3 {
		return 3
	}
	return size - size%3
}

type script struct {
	encoded    string
	archive    string
	staging    string
	remotePath string
	entries    []string
	marker     string
}

func (s script) write(ctx context.Context, w io.Writer, archive io.Reader, packetSize int, bar progress) error {
	send := func(line string, counted bool) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		logrus.Tracef("sending: %.80s", line)
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
		if counted {
			bar.Increment()
		}
		return nil
	}

	if err := send("set -e", false); err != nil {
		return err
	}
	if err := send("cat <<'EOF' > "+shellquote.Join(s.encoded), true); err != nil {
		return err
	}

	buf := make([]byte, packetSize)
	for {
		n, err := io.ReadFull(archive, buf)
		if n > 0 {
			if err := send(base64.StdEncoding.EncodeToString(buf[:n]), true); err != nil {
				return err
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return err
		}
	}

	type command struct {
		line    string
		counted bool
	}
	commands := []command{
		{"EOF", true},
		{shellquote.Join("base64", "-d", s.encoded) + " >> " + shellquote.Join(s.archive), true},
		{shellquote.Join("mkdir", "-p", s.staging), false},
		{shellquote.Join("tar", "xzf", s.archive, "-C", s.staging), true},
		{shellquote.Join("rm", "-f", s.encoded, s.archive), false},
	}
	if len(s.entries) > 0 {
		mv := []string{"mv", "-f"}
		for _, e := range s.entries {
			mv = append(mv, path.Join(s.staging, e))
		}
		commands = append(commands, command{shellquote.Join(append(mv, s.remotePath)...), false})
	}
	commands = append(commands,
		command{shellquote.Join("echo", s.marker), false},
		command{shellquote.Join("rmdir", s.staging), false},
		command{"exit", false},
	)
	for _, c := range commands {
		if err := send(c.line, c.counted); err != nil {
			return err
		}
	}
	return nil
}
