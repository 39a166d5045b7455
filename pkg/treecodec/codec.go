// Package treecodec converts the hierarchical tree output of the external
// community detection tool into the service's canonical edge-list result.
//
// A tree file is line oriented. An optional contiguous prefix of comment
// lines (starting with '#') is followed by rows of the form
//
//	1:2:3 0.0384615 "label"
//
// where the colon-separated field is the row's path through nested
// clusters, the float is the row's score, and the quoted field is the leaf
// label. The codec flattens the hierarchy into a set of edges rooted at a
// synthesized top-level node: tree-to-tree ("t-t") edges between internal
// cluster nodes and a tree-to-leaf ("t-g") edge per row.
package treecodec

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Edge kinds in the normalized output.
const (
	KindTreeTree = "t-t"
	KindTreeLeaf = "t-g"
)

// Edge is one edge of the flattened hierarchy. Target is a string because
// leaf edges point at the row's label, which need not be numeric.
type Edge struct {
	Source int
	Target string
	Kind   string
}

func (e Edge) String() string {
	return fmt.Sprintf("%d,%s,%s;", e.Source, e.Target, e.Kind)
}

// Parse reads a tree file and returns the serialized canonical result.
func Parse(r io.Reader) (string, error) {
	edges, err := ParseEdges(r)
	if err != nil {
		return "", err
	}
	return Serialize(edges), nil
}

// ParseEdges reads a tree file and returns the de-duplicated edge set in
// canonical order.
func ParseEdges(r io.Reader) ([]Edge, error) {
	rows, labels, err := readRows(r)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("tree file has no cluster rows")
	}

	grid, depth := padRows(rows)

	// Renumber hierarchy columns right to left into globally unique ids.
	// Column 0 keeps its raw top-level cluster values, so the counter is
	// seeded above every raw value in the grid to rule out collisions.
	maxID := 0
	for _, row := range grid {
		for _, v := range row {
			if v > maxID {
				maxID = v
			}
		}
	}
	for col := depth - 1; col >= 1; col-- {
		prev := 0
		havePrev := false
		for i := range grid {
			v := grid[i][col]
			if v == 0 {
				// Padding: skipped, never renumbered.
				continue
			}
			if !havePrev || v != prev {
				maxID++
				havePrev = true
			}
			prev = v
			grid[i][col] = maxID
		}
	}
	root := maxID + 1

	set := make(map[Edge]struct{})
	for i, row := range grid {
		set[Edge{Source: root, Target: strconv.Itoa(row[0]), Kind: KindTreeTree}] = struct{}{}

		last := row[0]
		for col := 1; col < depth; col++ {
			next := row[col]
			if next == 0 {
				break
			}
			set[Edge{Source: last, Target: strconv.Itoa(next), Kind: KindTreeTree}] = struct{}{}
			last = next
		}
		set[Edge{Source: last, Target: labels[i], Kind: KindTreeLeaf}] = struct{}{}
	}

	edges := make([]Edge, 0, len(set))
	for e := range set {
		edges = append(edges, e)
	}
	sortEdges(edges)
	return edges, nil
}

// Serialize concatenates edges as "src,dst,kind;" entries with no
// separator. Edges are emitted in canonical order: ascending source id,
// then target, then kind.
func Serialize(edges []Edge) string {
	var b strings.Builder
	for _, e := range edges {
		b.WriteString(e.String())
	}
	return b.String()
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		if edges[i].Target != edges[j].Target {
			return edges[i].Target < edges[j].Target
		}
		return edges[i].Kind < edges[j].Kind
	})
}

// readRows parses the surviving data rows: comment prefix dropped, rows
// with a zero score discarded.
func readRows(r io.Reader) (rows [][]int, labels []string, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, nil, fmt.Errorf("line %d: expected \"path value label\", got %d fields", lineNo, len(fields))
		}

		value, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: parse value %q: %w", lineNo, fields[1], err)
		}
		if value == 0 {
			// Zero-weight assignments are not part of the community
			// structure.
			continue
		}

		parts := strings.Split(fields[0], ":")
		row := make([]int, len(parts))
		for i, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil {
				return nil, nil, fmt.Errorf("line %d: parse cluster index %q: %w", lineNo, p, err)
			}
			row[i] = n
		}

		rows = append(rows, row)
		labels = append(labels, strings.Trim(fields[len(fields)-1], `"`))
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read tree file: %w", err)
	}
	return rows, labels, nil
}

// padRows builds the rectangular grid: rows zero-padded to the maximum
// hierarchy depth.
func padRows(rows [][]int) ([][]int, int) {
	depth := 0
	for _, r := range rows {
		if len(r) > depth {
			depth = len(r)
		}
	}
	grid := make([][]int, len(rows))
	for i, r := range rows {
		row := make([]int, depth)
		copy(row, r)
		grid[i] = row
	}
	return grid, depth
}
