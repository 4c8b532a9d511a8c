package node

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/funvibe/funledger/internal/ast"
	"github.com/funvibe/funledger/internal/config"
	"github.com/funvibe/funledger/internal/parser"
)

// BlockFile is a block on disk: a statement file named <height>.blk.
type BlockFile struct {
	Height uint64
	Path   string
}

// ListBlocks returns the block files in dir in height order.
func ListBlocks(dir string) ([]BlockFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var blocks []BlockFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		height, ok := BlockHeight(e.Name())
		if !ok {
			continue
		}
		blocks = append(blocks, BlockFile{Height: height, Path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Height < blocks[j].Height })
	for i := 1; i < len(blocks); i++ {
		if blocks[i].Height == blocks[i-1].Height {
			return nil, fmt.Errorf("blocks %s and %s have the same height", blocks[i-1].Path, blocks[i].Path)
		}
	}
	return blocks, nil
}

// BlockHeight extracts the height from a block file name.
func BlockHeight(name string) (uint64, bool) {
	if filepath.Ext(name) != config.BlockFileExt {
		return 0, false
	}
	h, err := strconv.ParseUint(strings.TrimSuffix(name, config.BlockFileExt), 10, 64)
	if err != nil || h == 0 {
		return 0, false
	}
	return h, true
}

// ReadBlock parses the statements of a block file.
func ReadBlock(path string) ([]ast.Statement, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	program, err := parser.Parse(path, string(src))
	if err != nil {
		return nil, err
	}
	return program.Statements, nil
}
