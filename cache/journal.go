package cache

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/WhileEndless/httpcore/internal/errors"
)

const (
	journalMagic   = "httpcore.cache"
	journalVersion = "1"

	opDirty  = "DIRTY"
	opClean  = "CLEAN"
	opRead   = "READ"
	opRemove = "REMOVE"
)

const journalFileName = "journal"
const journalTmpFileName = "journal.tmp"
const journalBkpFileName = "journal.bkp"

// journal is the cache directory's append-only operation log: it
// exists purely to let a freshly opened Cache replay which keys are
// CLEAN (committed, with known stream sizes), DIRTY (mid-edit, to be
// discarded), or REMOVEd, without needing a directory listing.
type journal struct {
	dir  string
	file *os.File
	w    *bufio.Writer

	lineCount int // non-header lines since last rebuild; a cold open starts it at the replayed key count
}

// replayResult is what a cold-start replay needs from each journal line.
type replayResult struct {
	clean map[string][2]int64 // key -> committed stream sizes
	dirty map[string]bool     // key -> was mid-edit (discard)
}

// openJournal reads dir/journal if present, replaying it into entries. If
// the file is missing or malformed it starts a fresh one; any malformed
// line clears the whole directory.
func openJournal(dir string, valueCount int) (*journal, *replayResult, error) {
	path := filepath.Join(dir, journalFileName)
	res := &replayResult{clean: map[string][2]int64{}, dirty: map[string]bool{}}

	j := &journal{dir: dir}

	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, nil, errors.NewCacheError("open journal", err)
		}
		if err := j.rewrite(res); err != nil {
			return nil, nil, err
		}
		return j, res, nil
	}
	defer f.Close()

	if err := replay(f, valueCount, res); err != nil {
		f.Close()
		// Malformed journal: wipe the directory and start clean.
		if rmErr := wipeDir(dir); rmErr != nil {
			return nil, nil, errors.NewCacheError("wipe corrupt cache dir", rmErr)
		}
		res = &replayResult{clean: map[string][2]int64{}, dirty: map[string]bool{}}
		if err := j.rewrite(res); err != nil {
			return nil, nil, err
		}
		return j, res, nil
	}

	if err := j.openForAppend(); err != nil {
		return nil, nil, err
	}
	j.lineCount = len(res.clean) + len(res.dirty)
	return j, res, nil
}

func replay(f *os.File, valueCount int, res *replayResult) error {
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)

	if !sc.Scan() || sc.Text() != journalMagic {
		return fmt.Errorf("bad journal magic")
	}
	if !sc.Scan() || sc.Text() != journalVersion {
		return fmt.Errorf("bad journal version")
	}
	if !sc.Scan() {
		return fmt.Errorf("missing app version")
	}
	if !sc.Scan() {
		return fmt.Errorf("missing value count")
	}
	if vc, err := strconv.Atoi(sc.Text()); err != nil || vc != valueCount {
		return fmt.Errorf("value count mismatch")
	}
	if !sc.Scan() || sc.Text() != "" {
		return fmt.Errorf("missing blank line")
	}

	for sc.Scan() {
		if err := applyLine(sc.Text(), valueCount, res); err != nil {
			return err
		}
	}
	return sc.Err()
}

func applyLine(line string, valueCount int, res *replayResult) error {
	fields := strings.Split(line, " ")
	if len(fields) < 2 {
		return fmt.Errorf("malformed journal line %q", line)
	}
	op, key := fields[0], fields[1]
	if !validKey(key) {
		return fmt.Errorf("malformed journal key %q", key)
	}
	switch op {
	case opDirty:
		res.dirty[key] = true
	case opClean:
		if len(fields) != 2+valueCount {
			return fmt.Errorf("malformed CLEAN line %q", line)
		}
		var sizes [2]int64
		for i := 0; i < valueCount; i++ {
			n, err := strconv.ParseInt(fields[2+i], 10, 64)
			if err != nil {
				return fmt.Errorf("malformed CLEAN size %q", line)
			}
			sizes[i] = n
		}
		res.clean[key] = sizes
		delete(res.dirty, key)
	case opRead:
		// no state change; READ only orders the journal for humans/debugging
	case opRemove:
		delete(res.clean, key)
		delete(res.dirty, key)
	default:
		return fmt.Errorf("unknown journal op %q", op)
	}
	return nil
}

func wipeDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name() == journalTmpFileName || e.Name() == journalBkpFileName {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// rewrite writes a brand-new journal reflecting the current set of clean
// entries, compacting away DIRTY/READ/REMOVE history.
func (j *journal) rewrite(res *replayResult) error {
	if j.file != nil {
		j.file.Close()
		j.file = nil
	}
	tmpPath := filepath.Join(j.dir, journalTmpFileName)
	f, err := os.Create(tmpPath)
	if err != nil {
		return errors.NewCacheError("create journal", err)
	}
	w := bufio.NewWriter(f)
	fmt.Fprintln(w, journalMagic)
	fmt.Fprintln(w, journalVersion)
	fmt.Fprintln(w, "0")
	fmt.Fprintln(w, "2")
	fmt.Fprintln(w)
	for key, sizes := range res.clean {
		fmt.Fprintf(w, "%s %s %d %d\n", opClean, key, sizes[0], sizes[1])
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errors.NewCacheError("flush journal", err)
	}
	if err := f.Close(); err != nil {
		return errors.NewCacheError("close journal", err)
	}
	finalPath := filepath.Join(j.dir, journalFileName)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return errors.NewCacheError("rename journal", err)
	}
	j.lineCount = len(res.clean)
	return j.openForAppend()
}

func (j *journal) openForAppend() error {
	f, err := os.OpenFile(filepath.Join(j.dir, journalFileName), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.NewCacheError("reopen journal for append", err)
	}
	j.file = f
	j.w = bufio.NewWriter(f)
	return nil
}

func (j *journal) writeDirty(key string) error { return j.writeLine(opDirty, key) }
func (j *journal) writeRead(key string) error  { return j.writeLine(opRead, key) }
func (j *journal) writeRemove(key string) error {
	return j.writeLine(opRemove, key)
}

func (j *journal) writeClean(key string, sizes [2]int64) error {
	line := fmt.Sprintf("%s %s %d %d", opClean, key, sizes[0], sizes[1])
	j.lineCount++
	return j.appendAndFlush(line)
}

func (j *journal) writeLine(op, key string) error {
	j.lineCount++
	return j.appendAndFlush(op + " " + key)
}

func (j *journal) appendAndFlush(line string) error {
	if _, err := j.w.WriteString(line + "\n"); err != nil {
		return errors.NewCacheError("write journal", err)
	}
	if err := j.w.Flush(); err != nil {
		return errors.NewCacheError("flush journal", err)
	}
	return nil
}

// needsRebuild reports whether the journal has grown enough past the live
// entry count to be worth compacting: more than 2000 lines logged since
// the last rebuild, and more than twice the live entry count.
func (j *journal) needsRebuild(liveEntries int) bool {
	return j.lineCount > 2000 && j.lineCount > 2*liveEntries
}

func (j *journal) close() error {
	if j.file == nil {
		return nil
	}
	if err := j.w.Flush(); err != nil {
		return err
	}
	return j.file.Close()
}
