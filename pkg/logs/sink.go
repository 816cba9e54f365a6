/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package logs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/ehudso7/vrux-observe/pkg/clock"
	"github.com/ehudso7/vrux-observe/pkg/logger"
	"github.com/ehudso7/vrux-observe/pkg/models"
)

const (
	defaultLogDir        = "./logs"
	defaultFilePrefix    = "app"
	defaultMaxFileSize   = 50 * 1024 * 1024
	defaultRetentionDays = 30
	defaultSearchLimit   = 100

	dateLayout = "2006-01-02"

	logDirPerm  = 0o755
	logFilePerm = 0o644

	maxLineBytes = 1024 * 1024
)

var errSinkClosed = errors.New("log sink is closed")

// FileSink appends JSON-lines log records to date-named files in a
// directory, rotating within a day once the current file exceeds the
// size limit. A parallel gzip stream archives each day's records, and
// Sweep removes files past the retention window.
type FileSink struct {
	mu sync.Mutex

	dir           string
	prefix        string
	maxSize       int64
	retentionDays int
	archive       bool

	clock  clock.Clock
	logger logger.Logger

	file     *os.File
	fileDate string
	fileSize int64

	gzFile   *os.File
	gzWriter *gzip.Writer

	closed bool
}

var _ Sink = (*FileSink)(nil)

// NewFileSink builds a sink from the pipeline config, applying defaults
// for unset fields.
func NewFileSink(cfg *models.LogPipelineConfig, clk clock.Clock, log logger.Logger) *FileSink {
	dir := defaultLogDir
	prefix := defaultFilePrefix
	maxSize := int64(defaultMaxFileSize)
	retention := defaultRetentionDays
	archive := true

	if cfg != nil {
		if cfg.LogDir != "" {
			dir = cfg.LogDir
		}

		if cfg.FilePrefix != "" {
			prefix = cfg.FilePrefix
		}

		if cfg.MaxFileSize > 0 {
			maxSize = cfg.MaxFileSize
		}

		if cfg.RetentionDays > 0 {
			retention = cfg.RetentionDays
		}

		if cfg.Archive != nil {
			archive = *cfg.Archive
		}
	}

	if clk == nil {
		clk = clock.New()
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	return &FileSink{
		dir:           dir,
		prefix:        prefix,
		maxSize:       maxSize,
		retentionDays: retention,
		archive:       archive,
		clock:         clk,
		logger:        log,
	}
}

// Write appends the batch as JSON lines, preserving batch order.
func (s *FileSink) Write(_ context.Context, batch []*models.LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSinkClosed
	}

	for _, rec := range batch {
		line, err := json.Marshal(rec)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Skipping unserializable log record")
			continue
		}

		line = append(line, '\n')

		if err := s.ensureFile(); err != nil {
			return err
		}

		if s.fileSize >= s.maxSize {
			if err := s.rotate(); err != nil {
				return err
			}
		}

		n, err := s.file.Write(line)
		if err != nil {
			return fmt.Errorf("failed to append log file: %w", err)
		}

		s.fileSize += int64(n)

		if s.gzWriter != nil {
			if _, err := s.gzWriter.Write(line); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to write log archive stream")
			}
		}
	}

	return nil
}

// ensureFile opens the current day's file, switching files on a date
// change. Caller holds the lock.
func (s *FileSink) ensureFile() error {
	date := s.clock.Now().Format(dateLayout)
	if s.file != nil && s.fileDate == date {
		return nil
	}

	s.closeCurrent()

	if err := os.MkdirAll(s.dir, logDirPerm); err != nil {
		return fmt.Errorf("failed to create log directory '%s': %w", s.dir, err)
	}

	path := s.currentPath(date)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePerm)
	if err != nil {
		return fmt.Errorf("failed to open log file '%s': %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to stat log file '%s': %w", path, err)
	}

	s.file = f
	s.fileDate = date
	s.fileSize = info.Size()

	if s.archive {
		gzPath := path + ".gz"

		// Appending opens a fresh gzip member; concatenated members
		// decompress to the concatenated stream.
		gzFile, err := os.OpenFile(gzPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePerm)
		if err != nil {
			s.logger.Warn().Err(err).Str("path", gzPath).Msg("Failed to open log archive stream")
		} else {
			s.gzFile = gzFile
			s.gzWriter = gzip.NewWriter(gzFile)
		}
	}

	return nil
}

// rotate renames the current file to the next free indexed name and
// starts a fresh one. The archive stream continues uninterrupted; it is
// one stream per day. Caller holds the lock.
func (s *FileSink) rotate() error {
	date := s.fileDate
	current := s.currentPath(date)

	_ = s.file.Close()
	s.file = nil

	base := filepath.Join(s.dir, s.prefix+"-"+date)

	idx := 1
	for {
		candidate := fmt.Sprintf("%s.%d.log", base, idx)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			if err := os.Rename(current, candidate); err != nil {
				return fmt.Errorf("failed to rotate log file: %w", err)
			}

			break
		}

		idx++
	}

	f, err := os.OpenFile(current, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePerm)
	if err != nil {
		return fmt.Errorf("failed to open log file '%s': %w", current, err)
	}

	s.file = f
	s.fileSize = 0

	s.logger.Info().Str("rotated_to", fmt.Sprintf("%s.%d.log", base, idx)).Msg("Rotated log file")

	return nil
}

func (s *FileSink) currentPath(date string) string {
	return filepath.Join(s.dir, s.prefix+"-"+date+".log")
}

// closeCurrent closes the open plain and archive files. Caller holds
// the lock.
func (s *FileSink) closeCurrent() {
	if s.gzWriter != nil {
		_ = s.gzWriter.Close()
		s.gzWriter = nil
	}

	if s.gzFile != nil {
		_ = s.gzFile.Close()
		s.gzFile = nil
	}

	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}

	s.fileDate = ""
	s.fileSize = 0
}

// Sweep deletes log files, including archives, whose date is past the
// retention window. A retention of zero disables deletion.
func (s *FileSink) Sweep(_ context.Context) error {
	if s.retentionDays <= 0 {
		return nil
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("failed to read log directory '%s': %w", s.dir, err)
	}

	cutoff := s.clock.Now().AddDate(0, 0, -s.retentionDays)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		date, ok := s.fileDateOf(entry.Name())
		if !ok {
			continue
		}

		if !date.Before(cutoff) {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("Failed to remove expired log file")
			continue
		}

		removed++
	}

	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("Swept expired log files")
	}

	return nil
}

// fileDateOf parses the date out of a sink-owned file name. Foreign
// files in the directory are left alone.
func (s *FileSink) fileDateOf(name string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(name, s.prefix+"-")
	if !ok || len(rest) < len(dateLayout)+1 {
		return time.Time{}, false
	}

	if !strings.HasSuffix(rest, ".log") && !strings.HasSuffix(rest, ".log.gz") {
		return time.Time{}, false
	}

	date, err := time.Parse(dateLayout, rest[:len(dateLayout)])
	if err != nil {
		return time.Time{}, false
	}

	return date, true
}

// Search scans on-disk files newest first and returns records matching
// the query, newest records first, up to the limit. Malformed lines are
// skipped. The scan is best-effort; it reads files without locking out
// concurrent writes, so a torn final line simply does not match.
func (s *FileSink) Search(ctx context.Context, q models.LogQuery) ([]models.LogRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	files, err := s.searchFiles()
	if err != nil {
		return nil, err
	}

	out := make([]models.LogRecord, 0, limit)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		matches, err := s.scanFile(path, q)
		if err != nil {
			s.logger.Debug().Err(err).Str("path", path).Msg("Skipping unreadable log file")
			continue
		}

		// Records within a file are chronological; reverse for
		// newest-first results.
		for i := len(matches) - 1; i >= 0; i-- {
			out = append(out, matches[i])
			if len(out) >= limit {
				return out, nil
			}
		}
	}

	return out, nil
}

// searchFiles lists plain log files newest first: most recent date
// first, and within a date the live file ahead of rotated segments in
// descending index order.
func (s *FileSink) searchFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read log directory '%s': %w", s.dir, err)
	}

	type logFile struct {
		name  string
		date  string
		index int // live file sorts above every rotated segment
	}

	const liveIndex = math.MaxInt

	files := make([]logFile, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasSuffix(name, ".gz") {
			continue
		}

		rest, ok := strings.CutPrefix(name, s.prefix+"-")
		if !ok || !strings.HasSuffix(rest, ".log") || len(rest) < len(dateLayout)+4 {
			continue
		}

		date := rest[:len(dateLayout)]
		if _, err := time.Parse(dateLayout, date); err != nil {
			continue
		}

		middle := strings.TrimSuffix(rest[len(dateLayout):], ".log")

		index := liveIndex

		if middle != "" {
			n, err := strconv.Atoi(strings.TrimPrefix(middle, "."))
			if err != nil {
				continue
			}

			index = n
		}

		files = append(files, logFile{name: name, date: date, index: index})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].date != files[j].date {
			return files[i].date > files[j].date
		}

		return files[i].index > files[j].index
	})

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = filepath.Join(s.dir, f.name)
	}

	return paths, nil
}

func (s *FileSink) scanFile(path string, q models.LogQuery) ([]models.LogRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var matches []models.LogRecord

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		var rec models.LogRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}

		if matchesQuery(&rec, &q) {
			matches = append(matches, rec)
		}
	}

	return matches, scanner.Err()
}

func matchesQuery(rec *models.LogRecord, q *models.LogQuery) bool {
	if q.Level != "" && rec.Level != q.Level {
		return false
	}

	if q.UserID != "" && rec.UserID != q.UserID {
		return false
	}

	if q.RequestID != "" && rec.RequestID != q.RequestID {
		return false
	}

	if q.Contains != "" && !strings.Contains(rec.Message, q.Contains) {
		return false
	}

	if !q.Since.IsZero() && rec.Timestamp.Before(q.Since) {
		return false
	}

	if !q.Until.IsZero() && rec.Timestamp.After(q.Until) {
		return false
	}

	return true
}

// Close finalizes the archive stream and closes open files.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closeCurrent()
	s.closed = true

	return nil
}
