// Command syscallgen regenerates irq's syscall number constants from the
// manifest comments (`//syscall:NAME=NUM`) attached to the syscall number
// constants in the irq package, the same "small build tool that rewrites
// a generated kernel artifact" role cmd/chentry plays for ELF entry
// points — except this one loads real Go source via
// golang.org/x/tools/go/packages instead of patching bytes directly, so
// the manifest and the generated constants can never drift out of sync
// with the package's actual AST.
package main

import (
	"bytes"
	"fmt"
	"go/ast"
	"log"
	"os"
	"regexp"
	"sort"

	"golang.org/x/tools/go/packages"
)

var manifestRe = regexp.MustCompile(`//syscall:(\w+)=(\d+)`)

type entry struct {
	name string
	num  int
}

func main() {
	if len(os.Args) != 3 {
		fmt.Printf("Usage: %s <package-pattern> <output-file>\n", os.Args[0])
		os.Exit(1)
	}
	pattern, outPath := os.Args[1], os.Args[2]

	cfg := &packages.Config{Mode: packages.NeedSyntax | packages.NeedName}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		log.Fatalf("packages.Load: %v", err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		log.Fatal("errors loading package")
	}

	var entries []entry
	for _, pkg := range pkgs {
		for _, file := range pkg.Syntax {
			for _, group := range allCommentGroups(file) {
				for _, c := range group.List {
					if m := manifestRe.FindStringSubmatch(c.Text); m != nil {
						n := 0
						fmt.Sscanf(m[2], "%d", &n)
						entries = append(entries, entry{name: m[1], num: n})
					}
				}
			}
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].num < entries[j].num })

	if err := write(outPath, entries); err != nil {
		log.Fatal(err)
	}
}

func allCommentGroups(f *ast.File) []*ast.CommentGroup {
	var groups []*ast.CommentGroup
	groups = append(groups, f.Comments...)
	return groups
}

func write(path string, entries []entry) error {
	var buf bytes.Buffer
	buf.WriteString("// Code generated by cmd/syscallgen. DO NOT EDIT.\n\n")
	buf.WriteString("package irq\n\nconst (\n")
	for _, e := range entries {
		fmt.Fprintf(&buf, "\tSys%s = %d\n", e.name, e.num)
	}
	buf.WriteString(")\n")
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
