package table

import "sort"

// Snapshot is an immutable view of the table at one log version: its
// metadata and the set of live data files. A merge reads one snapshot
// for its whole duration and commits a new version; it never mutates
// the snapshot it read.
type Snapshot struct {
	Version  int64
	Metadata Metadata
	Files    map[string]AddFile // keyed by file ID
}

// SchemaHash returns the digest of the snapshot's schema, used to detect
// drift between analysis and transaction start.
func (s *Snapshot) SchemaHash() string {
	return s.Metadata.Schema.Hash()
}

// NumFiles returns the number of live data files.
func (s *Snapshot) NumFiles() int {
	return len(s.Files)
}

// TotalBytes returns the byte size of the live file set.
func (s *Snapshot) TotalBytes() int64 {
	var total int64
	for _, f := range s.Files {
		total += f.Size
	}
	return total
}

// FileList returns the live files ordered by path for deterministic
// iteration.
func (s *Snapshot) FileList() []AddFile {
	files := make([]AddFile, 0, len(s.Files))
	for _, f := range s.Files {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}

// NumPartitions returns the number of distinct partition value
// combinations among the given files.
func NumPartitions(files []AddFile) int {
	seen := make(map[string]struct{})
	for _, f := range files {
		seen[partitionKey(f.PartitionValues)] = struct{}{}
	}
	return len(seen)
}

func (s *Snapshot) clone() *Snapshot {
	files := make(map[string]AddFile, len(s.Files))
	for id, f := range s.Files {
		files[id] = f
	}
	return &Snapshot{Version: s.Version, Metadata: s.Metadata, Files: files}
}

func (s *Snapshot) apply(actions []Action) {
	for _, a := range actions {
		switch {
		case a.Metadata != nil:
			s.Metadata = *a.Metadata
		case a.Add != nil:
			s.Files[a.Add.ID] = *a.Add
		case a.Remove != nil:
			delete(s.Files, a.Remove.ID)
		}
	}
}
