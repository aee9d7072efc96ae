package blockfs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aligator/blockfs/checkpoint"
)

// maxReportedProblems limits the size of the error returned by Check.
const maxReportedProblems = 10

// checker collects the problems found by Check.
type checker struct {
	fs       *Fs
	reached  []bool
	problems []string
}

func (c *checker) report(format string, args ...interface{}) {
	problem := fmt.Sprintf(format, args...)
	c.fs.log.Printf("volume %v: check: %s", c.fs.volumeID, problem)
	c.problems = append(c.problems, problem)
}

// mark records that owner references the block.
func (c *checker) mark(index uint32, owner string) {
	switch {
	case index >= c.fs.geo.totalBlocks:
		c.report("%s references block %d behind the end of the disk", owner, index)
	case c.fs.geo.isReserved(index):
		c.report("%s references reserved block %d", owner, index)
	case c.reached[index]:
		c.report("%s references block %d which is already in use", owner, index)
	default:
		c.reached[index] = true
	}
}

// Check verifies the consistency of the tables and the bitmap:
// every block referenced by the root, a directory or a chain must be allocated,
// every allocated block must be referenced exactly once, and each chain must hold the size of its file.
// All problems are logged, the returned error wraps ErrCorrupt and lists the first of them.
func (fs *Fs) Check() error {
	done, err := fs.begin()
	if err != nil {
		return err
	}
	defer done()

	c := &checker{
		fs:      fs,
		reached: make([]bool, fs.geo.totalBlocks),
	}

	root, err := fs.readRoot()
	if err != nil {
		return err
	}

	seen := make(map[string]bool)
	for _, entry := range root.entries {
		name := entry.name()
		if seen[name] {
			c.report("directory %q exists twice", name)
		}
		seen[name] = true

		c.mark(entry.StartBlock, "/"+name)
		if entry.StartBlock >= fs.geo.totalBlocks || fs.geo.isReserved(entry.StartBlock) {
			continue
		}

		dir, err := fs.readDirectory(entry.StartBlock)
		if err != nil {
			c.report("directory %q: %v", name, err)
			continue
		}
		c.checkDirectory(name, dir)
	}

	allocated, err := fs.bitmap.allocated()
	if err != nil {
		return err
	}

	for i := range allocated {
		index := uint32(i)
		switch {
		case fs.geo.isReserved(index) && !allocated[i]:
			c.report("reserved block %d is marked as free", index)
		case fs.geo.isReserved(index):
		case c.reached[i] && !allocated[i]:
			c.report("block %d is in use but marked as free", index)
		case !c.reached[i] && allocated[i]:
			c.report("block %d is allocated but not referenced", index)
		}
	}

	if len(c.problems) == 0 {
		return nil
	}

	problems := c.problems
	if len(problems) > maxReportedProblems {
		problems = append(problems[:maxReportedProblems:maxReportedProblems], fmt.Sprintf("and %d more", len(c.problems)-maxReportedProblems))
	}
	return checkpoint.Wrap(ErrCorrupt, errors.New(strings.Join(problems, "; ")))
}

func (c *checker) checkDirectory(name string, dir *directoryTable) {
	seen := make(map[string]bool)
	for _, record := range dir.files {
		owner := "/" + name + "/" + record.fullName()
		if seen[record.fullName()] {
			c.report("file %q exists twice", owner)
		}
		seen[record.fullName()] = true

		blocks, err := c.fs.chain(record.StartBlock)
		if err != nil {
			c.report("file %q: %v", owner, err)
			continue
		}

		for _, index := range blocks {
			c.mark(index, owner)
		}

		if need := c.fs.geo.blocksFor(int64(record.Size)); len(blocks) < need {
			c.report("file %q has %d blocks but needs %d for %d bytes", owner, len(blocks), need, record.Size)
		}
	}
}
