package staging

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"reel-go/internal/reel"
)

// queueVersion is bumped when the queue file layout changes.
const queueVersion = 1

// fileStore keeps the queue in a JSON file inside the staging directory.
//
// Directory structure:
//
//	<staging_dir>/
//	  queue.json    (ordered list of staged commands)
type fileStore struct {
	queuePath string
}

type queueFile struct {
	Version  int                `json:"version"`
	Commands []*stagedOperation `json:"commands"`
}

// NewFileSystemStagingArea creates a new filesystem-based staging area.
// maxCommands bounds the queue length; must be positive.
func NewFileSystemStagingArea(stagingDir string, maxCommands int) (reel.StagingArea, error) {
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	return &stagingArea{
		store:       &fileStore{queuePath: filepath.Join(stagingDir, "queue.json")},
		maxCommands: maxCommands,
	}, nil
}

func (f *fileStore) Load() ([]*stagedOperation, error) {
	data, err := os.ReadFile(f.queuePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading queue file: %w", err)
	}

	var q queueFile
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("parsing queue file: %w", err)
	}
	if q.Version != queueVersion {
		return nil, fmt.Errorf("queue file version %d not supported (want %d)", q.Version, queueVersion)
	}
	sort.SliceStable(q.Commands, func(i, j int) bool { return q.Commands[i].Position < q.Commands[j].Position })
	return q.Commands, nil
}

// Save writes the queue atomically: write to a temp file in the same
// directory, sync, then rename over queue.json.
func (f *fileStore) Save(ops []*stagedOperation) error {
	if ops == nil {
		ops = []*stagedOperation{}
	}
	data, err := json.MarshalIndent(queueFile{Version: queueVersion, Commands: ops}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding queue: %w", err)
	}

	dir := filepath.Dir(f.queuePath)
	tmp, err := os.CreateTemp(dir, ".queue.json.tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp queue file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp queue file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp queue file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp queue file: %w", err)
	}
	if err := os.Rename(tmpName, f.queuePath); err != nil {
		return fmt.Errorf("renaming queue file: %w", err)
	}
	return nil
}
