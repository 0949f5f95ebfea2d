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

package util

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/walk"
)

// CreateTarGz writes a gzipped tar of every file the walker yields. Entry
// names are relative to root. It returns the names of the entries written.
func CreateTarGz(w io.Writer, root string, files walk.Walker) ([]string, error) {
	gw := gzip.NewWriter(w)
	tw := tar.NewWriter(gw)

	var names []string
	err := files.Do(func(path string, _ walk.Dirent) error {
		name, err := addFileToTar(root, path, tw)
		if name != "" {
			logrus.Tracef("Including %s in the archive", path)
			names = append(names, name)
		}
		return err
	})
	if err != nil {
		return names, err
	}

	if err := tw.Close(); err != nil {
		return names, err
	}
	return names, gw.Close()
}

// addFileToTar returns the entry name, or "" when src was skipped.
func addFileToTar(root string, src string, tw *tar.Writer) (string, error) {
	fi, err := os.Lstat(src)
	if err != nil {
		return "", err
	}

	mode := fi.Mode()
	if mode&os.ModeSocket != 0 {
		return "", nil
	}

	var header *tar.Header
	if mode&os.ModeSymlink != 0 {
		target, err := os.Readlink(src)
		if err != nil {
			return "", err
		}

		if filepath.IsAbs(target) {
			logrus.Warnf("Skipping %s. Only relative symlinks are supported.", src)
			return "", nil
		}

		header, err = tar.FileInfoHeader(fi, target)
		if err != nil {
			return "", err
		}
	} else {
		header, err = tar.FileInfoHeader(fi, "")
		if err != nil {
			return "", err
		}
	}

	tarPath, err := filepath.Rel(root, src)
	if err != nil {
		return "", err
	}
	header.Name = filepath.ToSlash(tarPath)
	header.Uname = ""
	header.Gname = ""

	// Code copied from https://github.com/moby/moby/blob/master/pkg/archive/archive_windows.go
	if runtime.GOOS == "windows" {
		header.Mode = int64(chmodTarEntry(os.FileMode(header.Mode)))
	}
	if err := tw.WriteHeader(header); err != nil {
		return "", err
	}

	if mode.IsRegular() {
		f, err := os.Open(src)
		if err != nil {
			return "", err
		}
		defer f.Close()

		if _, err := io.Copy(tw, f); err != nil {
			return "", fmt.Errorf("writing real file %q: %w", src, err)
		}
	}

	return header.Name, nil
}

// Code copied from https://github.com/moby/moby/blob/master/pkg/archive/archive_windows.go
func chmodTarEntry(perm os.FileMode) os.FileMode {
	permPart := perm & os.ModePerm
	noPermPart := perm &^ os.ModePerm
	// Add the x bit: make everything +x from windows
	permPart |= 0111
	permPart &= 0755

	return noPermPart | permPart
}
