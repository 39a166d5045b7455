package treecodec

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// HasZeroEndpoint reports whether any edge line in a raw edge-list file
// names node "0" as either endpoint.
//
// The external tool numbers nodes from 1 by default; a literal 0 endpoint
// means the input is zero indexed and the tool must be invoked in its
// zero-index compatibility mode. The decision has to be made by scanning
// the raw input before invocation, not by inspecting tool output.
func HasZeroEndpoint(r io.Reader) (bool, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if fields[0] == "0" {
			return true, nil
		}
		if len(fields) > 1 && fields[1] == "0" {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("scan edge list: %w", err)
	}
	return false, nil
}
