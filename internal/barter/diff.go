package barter

import (
	"bytes"
	"fmt"
	"io"

	"github.com/sergi/go-diff/diffmatchpatch"
	"machinebarter.dev/barter/pkg/document"
	"machinebarter.dev/barter/pkg/transform"
)

// diffConfigs compares two configurations with their secrets redacted.
func diffConfigs(current, updated *document.Node) ([]diffmatchpatch.Diff, error) {
	var cur, next bytes.Buffer
	if err := document.Encode(&cur, transform.Redact(current)); err != nil {
		return nil, err
	}
	if err := document.Encode(&next, transform.Redact(updated)); err != nil {
		return nil, err
	}
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(cur.String(), next.String())
	diffs := dmp.DiffMain(a, b, false)
	return dmp.DiffCharsToLines(diffs, lines), nil
}

func hasChanges(diffs []diffmatchpatch.Diff) bool {
	for _, d := range diffs {
		if d.Type != diffmatchpatch.DiffEqual {
			return true
		}
	}
	return false
}

func printDiffs(w io.Writer, name string, diffs []diffmatchpatch.Diff) {
	if !hasChanges(diffs) {
		fmt.Fprintf(w, "No changes to %v\n", name)
		return
	}
	fmt.Fprintf(w, "Diffs for %v:\n%v", name, diffmatchpatch.New().DiffPrettyText(diffs))
}
