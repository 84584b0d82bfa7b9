package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"amethystkv/internal/record"
	"amethystkv/internal/sstable"
	"amethystkv/internal/wal"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <file.sst|wal.log>\n", os.Args[0])
		os.Exit(1)
	}

	path := os.Args[1]
	name := filepath.Base(path)

	switch {
	case strings.HasSuffix(name, sstable.Extension):
		inspectSSTable(path)
	case name == wal.FileName || strings.HasSuffix(name, wal.FlushingSuffix):
		inspectWAL(path)
	default:
		fmt.Fprintf(os.Stderr, "unknown file type: %s (expected .sst or wal.log[.flushing])\n", name)
		os.Exit(1)
	}
}

func inspectWAL(path string) {
	fmt.Printf("Inspecting WAL: %s\n", path)
	fmt.Println()

	count := 0
	var minSeq, maxSeq uint64
	err := wal.Replay(path, func(seq uint64, key, value []byte) {
		if count == 0 || seq < minSeq {
			minSeq = seq
		}
		if seq > maxSeq {
			maxSeq = seq
		}
		status := "value"
		if record.IsTombstone(value) {
			status = "tombstone"
		}
		fmt.Printf("seq=%d key=%q %s=%q\n", seq, key, status, value)
		count++
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to replay WAL: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Printf("Total records: %d\n", count)
	if count > 0 {
		fmt.Printf("Sequence range: %d-%d\n", minSeq, maxSeq)
	}
}

func inspectSSTable(path string) {
	fmt.Printf("Inspecting SSTable: %s\n", path)
	fmt.Println()

	fileNo, err := sstable.ParseFileNo(filepath.Base(path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse file number from %s: %v\n", path, err)
		os.Exit(1)
	}
	fmt.Printf("File number: %d\n", fileNo)

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open %s: %v\n", path, err)
		os.Exit(1)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	count := 0
	var minKey, maxKey []byte
	for {
		key, value, err := record.DecodeSSTableRecord(br)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, record.ErrMalformed) {
				break
			}
			fmt.Fprintf(os.Stderr, "error reading record: %v\n", err)
			os.Exit(1)
		}
		if count == 0 {
			minKey = key
		}
		maxKey = key
		status := "value"
		if record.IsTombstone(value) {
			status = "tombstone"
		}
		fmt.Printf("key=%q %s=%q\n", key, status, value)
		count++
	}

	fmt.Println()
	fmt.Printf("Total records: %d\n", count)
	if count > 0 {
		fmt.Printf("Key range: %q - %q\n", minKey, maxKey)
	}
}
