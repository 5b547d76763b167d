package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"contextdb/pkg/codec"
)

// inspect is an offline tool for poking at a file-backend data root: list
// the conversation logs, verify they decode, or dump one of them.
func main() {
	var (
		root = flag.String("data", "./data", "data root of the file backend")
		id   = flag.String("chat", "", "dump a single conversation instead of listing")
		verr = flag.Bool("verify", false, "decode every log and report malformed lines")
	)
	flag.Parse()

	if *id != "" {
		if err := dump(*root, *id); err != nil {
			fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
			os.Exit(1)
		}
		return
	}

	entries, err := os.ReadDir(*root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		os.Exit(1)
	}
	bad := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		chatID := strings.TrimSuffix(e.Name(), ".jsonl")
		b, err := os.ReadFile(filepath.Join(*root, e.Name()))
		if err != nil {
			fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
			os.Exit(1)
		}
		recs, derr := codec.DecodeAll(b)
		switch {
		case derr != nil && *verr:
			bad++
			fmt.Printf("%-30s %8d bytes  MALFORMED: %v\n", chatID, len(b), derr)
		case derr != nil:
			fmt.Printf("%-30s %8d bytes  (undecodable, use -verify)\n", chatID, len(b))
		default:
			fmt.Printf("%-30s %8d bytes  %d records\n", chatID, len(b), len(recs))
		}
	}
	if bad > 0 {
		os.Exit(1)
	}
}

func dump(root, chatID string) error {
	b, err := os.ReadFile(filepath.Join(root, chatID+".jsonl"))
	if err != nil {
		return err
	}
	recs, err := codec.DecodeAll(b)
	if err != nil {
		return err
	}
	for _, r := range recs {
		fmt.Printf("%s  %-12s %s\n", r.CreatedAt.Format("2006-01-02 15:04:05"), r.Sender, r.Text)
	}
	return nil
}
