// Zaparoo Core
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later

package roots

import (
	"context"
	"crypto/sha1" //nolint:gosec // SHA-1 is the manifest's content-addressing hash, not a security boundary
	"fmt"
	"io"
	"net"

	"github.com/cloudsoda/go-smb2"
	"github.com/rs/zerolog/log"
)

// SMBCredentials authenticates an SMB session. Empty values fall back to
// anonymous/guest access, same as the teacher's installer package when no
// stored credential matches the target.
type SMBCredentials struct {
	Username string
	Password string
}

// SMBShare is a mounted SMB share, scoped to one root. Callers get one from
// DialShare and Close it when done: pkg/scanner dials one per SMB scan
// candidate and pkg/restore one per restoration target it checks; neither
// caches it.
type SMBShare struct {
	session *smb2.Session
	share   *smb2.Share
}

// DialShare connects to target.Server and mounts target.ShareName.
func DialShare(ctx context.Context, target SMBTarget, creds SMBCredentials) (*SMBShare, error) {
	server := target.Server
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "445")
	}

	dialer := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{
			User:     creds.Username,
			Password: creds.Password,
		},
	}

	session, err := dialer.Dial(ctx, server)
	if err != nil {
		return nil, fmt.Errorf("dial SMB server %s: %w", server, err)
	}

	share, err := session.Mount(target.ShareName)
	if err != nil {
		if logoffErr := session.Logoff(); logoffErr != nil {
			log.Warn().Err(logoffErr).Msg("error logging off SMB session after failed mount")
		}
		return nil, fmt.Errorf("mount SMB share %s: %w", target.ShareName, err)
	}

	return &SMBShare{session: session, share: share}, nil
}

// Open returns a read handle to a file on the share, relative to its root.
func (s *SMBShare) Open(path string) (*smb2.File, error) {
	f, err := s.share.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open SMB path %s: %w", path, err)
	}
	return f, nil
}

// ReadDir lists entries under path, relative to the share root.
func (s *SMBShare) ReadDir(path string) ([]fileInfo, error) {
	entries, err := s.share.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read SMB dir %s: %w", path, err)
	}
	out := make([]fileInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, fileInfo{name: e.Name(), isDir: e.IsDir(), size: e.Size()})
	}
	return out, nil
}

type fileInfo struct {
	name  string
	isDir bool
	size  int64
}

func (f fileInfo) Name() string { return f.name }
func (f fileInfo) IsDir() bool  { return f.isDir }
func (f fileInfo) Size() int64  { return f.size }

// Stat returns metadata for a file or directory on the share, relative to
// its root.
func (s *SMBShare) Stat(path string) (fileInfo, error) {
	info, err := s.share.Stat(path)
	if err != nil {
		return fileInfo{}, fmt.Errorf("stat SMB path %s: %w", path, err)
	}
	return fileInfo{name: info.Name(), isDir: info.IsDir(), size: info.Size()}, nil
}

// Sha1 streams a remote file and returns its lowercase hex SHA-1 digest and
// size, the SMB-backed counterpart to strictpath.StrictPath.Sha1.
func (s *SMBShare) Sha1(path string) (hash string, size int64, err error) {
	f, err := s.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = f.Close() }()

	h := sha1.New() //nolint:gosec // content-addressing, not a security boundary
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hash SMB path %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), n, nil
}

// WalkFiles recursively lists every regular file under path on the share,
// bounded to maxDepth levels, the SMB-backed counterpart to pkg/scanner's
// local walkDir. Never returns an error: an unreadable subdirectory is
// logged and skipped rather than failing the whole walk.
func (s *SMBShare) WalkFiles(path string, maxDepth int) []string {
	if maxDepth < 0 {
		return nil
	}
	entries, err := s.ReadDir(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("skipping unreadable SMB directory during scan walk")
		return nil
	}
	var out []string
	for _, e := range entries {
		full := path + "/" + e.Name()
		if e.IsDir() {
			out = append(out, s.WalkFiles(full, maxDepth-1)...)
			continue
		}
		out = append(out, full)
	}
	return out
}

// Close unmounts the share and logs off the session.
func (s *SMBShare) Close() error {
	if err := s.share.Umount(); err != nil {
		log.Warn().Err(err).Msg("error unmounting SMB share")
	}
	if err := s.session.Logoff(); err != nil {
		return fmt.Errorf("logoff SMB session: %w", err)
	}
	return nil
}
