// Package snapshot renders a scanned tree into the snapshot document:
// the filtered folder structure followed by the contents of checked
// files.
package snapshot

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/mgrachev/treesnap/internal/types"
)

// DefaultMaxFileSize caps how much of a single file the snapshot embeds.
const DefaultMaxFileSize int64 = 1 << 20 // 1 MiB

// sniffLen is how many leading bytes are inspected for binary content.
const sniffLen = 8192

// Options controls rendering.
type Options struct {
	// IncludeContents embeds the contents of checked files. When false
	// (or when CheckedOnly selects nothing) the snapshot is structure
	// only.
	IncludeContents bool

	// EntireTree includes every file's contents regardless of checked
	// state.
	EntireTree bool

	// MaxFileSize skips embedding files larger than this. Zero means
	// DefaultMaxFileSize.
	MaxFileSize int64
}

// Write renders the snapshot for the given roots to w.
func Write(w io.Writer, nodes types.NodeMap, roots []string, opts Options) error {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}

	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "# Folder structure")
	fmt.Fprintln(bw)
	children := childIndex(nodes)
	for _, root := range roots {
		node, ok := nodes[root]
		if !ok {
			continue
		}
		writeTree(bw, node, children, 0)
	}

	if opts.IncludeContents || opts.EntireTree {
		fmt.Fprintln(bw)
		fmt.Fprintln(bw, "# File contents")
		for _, node := range nodes.Ordered() {
			if node.IsDir || node.AccessError {
				continue
			}
			if !opts.EntireTree && !node.Checked {
				continue
			}
			writeFileContents(bw, node.Path, opts.MaxFileSize)
		}
	}

	return bw.Flush()
}

// childIndex groups nodes by parent directory, each group in display
// order (directories first, lexicographic).
func childIndex(nodes types.NodeMap) map[string][]*types.TreeNode {
	index := make(map[string][]*types.TreeNode)
	for _, node := range nodes.Ordered() {
		index[filepath.Dir(node.Path)] = append(index[filepath.Dir(node.Path)], node)
	}
	return index
}

func writeTree(w io.Writer, node *types.TreeNode, children map[string][]*types.TreeNode, depth int) {
	label := filepath.Base(node.Path)
	if depth == 0 {
		label = node.Path
	}
	marker := ""
	switch {
	case node.AccessError:
		marker = " [access error]"
	case node.Checked && !node.IsDir:
		marker = " [x]"
	}
	suffix := ""
	if node.IsDir {
		suffix = "/"
	}
	fmt.Fprintf(w, "%s%s%s%s\n", strings.Repeat("  ", depth), label, suffix, marker)

	if !node.IsDir {
		return
	}
	for _, child := range children[node.Path] {
		writeTree(w, child, children, depth+1)
	}
}

func writeFileContents(w io.Writer, path string, maxSize int64) {
	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(w, "\n===== %s =====\n(unreadable: %v)\n", path, err)
		return
	}

	fmt.Fprintf(w, "\n===== %s (%s) =====\n", path, humanize.IBytes(uint64(info.Size())))

	if info.Size() > maxSize {
		fmt.Fprintf(w, "(omitted: exceeds %s)\n", humanize.IBytes(uint64(maxSize)))
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(w, "(unreadable: %v)\n", err)
		return
	}
	if isBinary(data) {
		fmt.Fprintln(w, "(binary file omitted)")
		return
	}

	_, _ = w.Write(data)
	if len(data) > 0 && data[len(data)-1] != '\n' {
		fmt.Fprintln(w)
	}
}

// isBinary applies the NUL-byte heuristic to the leading bytes.
func isBinary(data []byte) bool {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return bytes.IndexByte(data, 0) >= 0
}
