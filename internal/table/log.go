package table

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/tidelake/tide/internal/metrics"
	"github.com/tidelake/tide/internal/rows"
	"github.com/tidelake/tide/pkg/objectstore"
)

var (
	// ErrCommitConflict is returned when another writer committed the
	// target version first. The losing operation fails cleanly; retrying
	// is the caller's decision.
	ErrCommitConflict = errors.New("commit conflict: table version already written")

	// ErrTableExists is returned by Create when the log already has a
	// version 0.
	ErrTableExists = errors.New("table already exists")

	// ErrTableNotFound is returned when the log has no entries.
	ErrTableNotFound = errors.New("table not found")

	// ErrCorruptLog is returned when a log entry cannot be decoded.
	ErrCorruptLog = errors.New("corrupt log entry")
)

const (
	logDir            = "_log"
	checkpointDir     = "_log/checkpoints"
	lastCheckpointKey = "_log/_last_checkpoint"

	// DefaultCheckpointInterval controls how often a folded checkpoint is
	// written so snapshot loads don't replay the whole log.
	DefaultCheckpointInterval = 10
)

// Log is a handle to one table's transaction log in an object store.
// Log entries are immutable JSON objects named by zero-padded version;
// commit atomicity comes from PutIfAbsent on the next version's key.
type Log struct {
	store              objectstore.Store
	prefix             string
	CheckpointInterval int64
}

// Open returns a handle to an existing (or future) table log under prefix.
func Open(store objectstore.Store, prefix string) *Log {
	return &Log{store: store, prefix: strings.TrimSuffix(prefix, "/"), CheckpointInterval: DefaultCheckpointInterval}
}

// Create initializes a new table: version 0 carries the metadata action.
func Create(ctx context.Context, store objectstore.Store, prefix, name string, schema *rows.Schema, partitionColumns []string) (*Log, error) {
	l := Open(store, prefix)

	meta := Metadata{
		ID:               uuid.NewString(),
		Name:             name,
		Schema:           schema,
		PartitionColumns: partitionColumns,
		CreatedAt:        time.Now().UTC(),
	}
	actions := []Action{
		{Commit: &CommitInfo{Operation: "CREATE TABLE", Timestamp: meta.CreatedAt}},
		{Metadata: &meta},
	}

	data, err := encodeEntry(actions)
	if err != nil {
		return nil, err
	}
	_, err = store.PutIfAbsent(ctx, l.entryKey(0), bytes.NewReader(data), int64(len(data)),
		&objectstore.PutOptions{ContentType: "application/json"})
	if err != nil {
		if objectstore.IsConflict(err) {
			return nil, ErrTableExists
		}
		return nil, fmt.Errorf("failed to write table metadata: %w", err)
	}
	return l, nil
}

// Store exposes the underlying object store for data file IO.
func (l *Log) Store() objectstore.Store { return l.store }

// Prefix returns the table's key prefix in the object store.
func (l *Log) Prefix() string { return l.prefix }

// DataPrefix returns the key prefix for data files.
func (l *Log) DataPrefix() string { return l.prefix + "/data" }

func (l *Log) entryKey(version int64) string {
	return fmt.Sprintf("%s/%s/%020d.json", l.prefix, logDir, version)
}

func (l *Log) checkpointKey(version int64) string {
	return fmt.Sprintf("%s/%s/%020d.ckpt.zst", l.prefix, checkpointDir, version)
}

// Snapshot folds the log into the current table state. It starts from
// the most recent checkpoint when one exists and replays the tail.
func (l *Log) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap, err := l.loadCheckpoint(ctx)
	if err != nil {
		return nil, err
	}

	startAfter := int64(-1)
	if snap != nil {
		startAfter = snap.Version
	} else {
		snap = &Snapshot{Version: -1, Files: make(map[string]AddFile)}
	}

	versions, err := l.listVersions(ctx, startAfter)
	if err != nil {
		return nil, err
	}
	if snap.Version < 0 && len(versions) == 0 {
		return nil, ErrTableNotFound
	}

	for _, v := range versions {
		actions, err := l.readEntry(ctx, v)
		if err != nil {
			return nil, err
		}
		snap.apply(actions)
		snap.Version = v
	}

	if snap.Metadata.Schema == nil {
		return nil, fmt.Errorf("%w: no table metadata in log", ErrCorruptLog)
	}
	return snap, nil
}

// Commit writes the next log entry on top of the given snapshot. The
// conditional put makes the commit atomic: if any other writer claimed
// version snap.Version+1 first, the commit fails with ErrCommitConflict
// and nothing is applied.
func (l *Log) Commit(ctx context.Context, snap *Snapshot, actions []Action, info CommitInfo) (*Snapshot, error) {
	start := time.Now()
	version := snap.Version + 1

	if info.Timestamp.IsZero() {
		info.Timestamp = time.Now().UTC()
	}
	entry := make([]Action, 0, len(actions)+1)
	entry = append(entry, Action{Commit: &info})
	entry = append(entry, actions...)

	data, err := encodeEntry(entry)
	if err != nil {
		metrics.CommitsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	_, err = l.store.PutIfAbsent(ctx, l.entryKey(version), bytes.NewReader(data), int64(len(data)),
		&objectstore.PutOptions{ContentType: "application/json"})
	if err != nil {
		if objectstore.IsConflict(err) {
			metrics.CommitsTotal.WithLabelValues("conflict").Inc()
			return nil, fmt.Errorf("%w: version %d", ErrCommitConflict, version)
		}
		metrics.CommitsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to write log entry %d: %w", version, err)
	}

	next := snap.clone()
	next.apply(entry)
	next.Version = version

	if l.CheckpointInterval > 0 && version > 0 && version%l.CheckpointInterval == 0 {
		// Checkpoints are an optimization; a failed write never fails
		// the commit that was already durable.
		_ = l.writeCheckpoint(ctx, next)
	}

	metrics.CommitsTotal.WithLabelValues("success").Inc()
	metrics.CommitLatency.Observe(time.Since(start).Seconds())
	return next, nil
}

// History returns the commit info of the most recent entries, newest
// first, up to limit (0 = all).
func (l *Log) History(ctx context.Context, limit int) ([]CommitInfo, error) {
	versions, err := l.listVersions(ctx, -1)
	if err != nil {
		return nil, err
	}
	var out []CommitInfo
	for i := len(versions) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		actions, err := l.readEntry(ctx, versions[i])
		if err != nil {
			return nil, err
		}
		for _, a := range actions {
			if a.Commit != nil {
				out = append(out, *a.Commit)
				break
			}
		}
	}
	return out, nil
}

func (l *Log) listVersions(ctx context.Context, after int64) ([]int64, error) {
	prefix := l.prefix + "/" + logDir + "/"
	var versions []int64
	marker := ""
	for {
		res, err := l.store.List(ctx, &objectstore.ListOptions{Prefix: prefix, Marker: marker})
		if err != nil {
			return nil, fmt.Errorf("failed to list log entries: %w", err)
		}
		for _, obj := range res.Objects {
			name := path.Base(obj.Key)
			if !strings.HasSuffix(name, ".json") {
				continue
			}
			v, err := strconv.ParseInt(strings.TrimSuffix(name, ".json"), 10, 64)
			if err != nil {
				continue
			}
			if v > after {
				versions = append(versions, v)
			}
		}
		if !res.IsTruncated {
			break
		}
		marker = res.NextMarker
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

func (l *Log) readEntry(ctx context.Context, version int64) ([]Action, error) {
	rc, _, err := l.store.Get(ctx, l.entryKey(version))
	if err != nil {
		return nil, fmt.Errorf("failed to read log entry %d: %w", version, err)
	}
	defer rc.Close()

	var actions []Action
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var a Action
		if err := json.Unmarshal(line, &a); err != nil {
			return nil, fmt.Errorf("%w: version %d: %v", ErrCorruptLog, version, err)
		}
		actions = append(actions, a)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan log entry %d: %w", version, err)
	}
	return actions, nil
}

func encodeEntry(actions []Action) ([]byte, error) {
	var buf bytes.Buffer
	for _, a := range actions {
		line, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("failed to encode log action: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

type checkpoint struct {
	Version  int64     `json:"version"`
	Metadata Metadata  `json:"metadata"`
	Files    []AddFile `json:"files"`
}

type lastCheckpoint struct {
	Version int64 `json:"version"`
}

func (l *Log) writeCheckpoint(ctx context.Context, snap *Snapshot) error {
	ckpt := checkpoint{Version: snap.Version, Metadata: snap.Metadata, Files: snap.FileList()}
	raw, err := json.Marshal(ckpt)
	if err != nil {
		return err
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return err
	}
	compressed := enc.EncodeAll(raw, nil)
	enc.Close()

	key := l.checkpointKey(snap.Version)
	if _, err := l.store.Put(ctx, key, bytes.NewReader(compressed), int64(len(compressed)), nil); err != nil {
		return err
	}

	pointer, err := json.Marshal(lastCheckpoint{Version: snap.Version})
	if err != nil {
		return err
	}
	_, err = l.store.Put(ctx, l.prefix+"/"+lastCheckpointKey, bytes.NewReader(pointer), int64(len(pointer)),
		&objectstore.PutOptions{ContentType: "application/json"})
	return err
}

func (l *Log) loadCheckpoint(ctx context.Context) (*Snapshot, error) {
	rc, _, err := l.store.Get(ctx, l.prefix+"/"+lastCheckpointKey)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var pointer lastCheckpoint
	decodeErr := json.NewDecoder(rc).Decode(&pointer)
	rc.Close()
	if decodeErr != nil {
		return nil, nil // unreadable pointer, fall back to full replay
	}

	rc, _, err = l.store.Get(ctx, l.checkpointKey(pointer.Version))
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer rc.Close()

	compressed := new(bytes.Buffer)
	if _, err := compressed.ReadFrom(rc); err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(compressed.Bytes(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: checkpoint %d: %v", ErrCorruptLog, pointer.Version, err)
	}

	var ckpt checkpoint
	if err := json.Unmarshal(raw, &ckpt); err != nil {
		return nil, fmt.Errorf("%w: checkpoint %d: %v", ErrCorruptLog, pointer.Version, err)
	}

	snap := &Snapshot{Version: ckpt.Version, Metadata: ckpt.Metadata, Files: make(map[string]AddFile, len(ckpt.Files))}
	for _, f := range ckpt.Files {
		snap.Files[f.ID] = f
	}
	return snap, nil
}
