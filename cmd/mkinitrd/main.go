// Command mkinitrd builds a flat ramdisk image in the format initrd.Parse
// reads: a magic-prefixed header, a fixed-size directory, and the
// concatenated file data. It is the Go rewrite of the teacher corpus'
// original_source/tools/create_initrd.c, kept as a small standalone build
// tool in the same spirit as cmd/chentry.
package main

import (
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"coreos/initrd"
)

func usage(me string) {
	fmt.Printf("Usage: %s -o <output> file ...\n\n"+
		"Pack the given files into an initrd image readable by the initrd package.\n", me)
	os.Exit(1)
}

func main() {
	args := os.Args[1:]
	if len(args) < 3 || args[0] != "-o" {
		usage(os.Args[0])
	}
	outPath := args[1]
	inputs := args[2:]

	out, err := os.Create(outPath)
	if err != nil {
		log.Fatalf("create %s: %v", outPath, err)
	}
	defer out.Close()

	if err := build(out, inputs); err != nil {
		log.Fatal(err)
	}
}

func build(out *os.File, inputs []string) error {
	nfiles := uint32(len(inputs))

	header := make([]byte, 8)
	binary.LittleEndian.PutUint32(header[0:4], initrd.Magic)
	binary.LittleEndian.PutUint32(header[4:8], nfiles)
	if _, err := out.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	dataStart := 8 + int(nfiles)*(initrd.NameSize+8)
	offset := uint32(dataStart)

	type planned struct {
		name   string
		offset uint32
		length uint32
	}
	var plan []planned

	for _, in := range inputs {
		fi, err := os.Stat(in)
		if err != nil {
			return fmt.Errorf("stat %s: %w", in, err)
		}
		name := filepath.Base(in)
		if len(name) >= initrd.NameSize {
			return fmt.Errorf("name %q exceeds %d bytes", name, initrd.NameSize-1)
		}
		length := uint32(fi.Size())
		plan = append(plan, planned{name: name, offset: offset, length: length})
		offset += length
	}

	for _, p := range plan {
		entry := make([]byte, initrd.NameSize+8)
		copy(entry[:initrd.NameSize], p.name)
		binary.LittleEndian.PutUint32(entry[initrd.NameSize:initrd.NameSize+4], p.offset)
		binary.LittleEndian.PutUint32(entry[initrd.NameSize+4:initrd.NameSize+8], p.length)
		if _, err := out.Write(entry); err != nil {
			return fmt.Errorf("write directory entry for %s: %w", p.name, err)
		}
		fmt.Printf("adding file %s (offset=0x%x, length=0x%x)\n", p.name, p.offset, p.length)
	}

	for i, in := range inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			return fmt.Errorf("read %s: %w", in, err)
		}
		if uint32(len(data)) != plan[i].length {
			return fmt.Errorf("%s changed size while being packed", in)
		}
		if _, err := out.Write(data); err != nil {
			return fmt.Errorf("write data for %s: %w", in, err)
		}
	}
	return nil
}
