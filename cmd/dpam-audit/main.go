// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The dpam-audit command inspects the foldseek_combined.db kv store
// the batch orchestrator (internal/batch) builds under a working
// directory's _batch/ during stage 3's combined Foldseek invocation.
// Each record is one tools.Hit, JSON-encoded, keyed so that iterating
// the store in key order visits every protein's hits grouped by query
// id with the strongest bit score first, the same shape
// foldseek_combined.db's key ordering gives for free. Output is one
// JSON object per line on stdout.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"modernc.org/kv"

	"github.com/dpam-project/dpam/internal/tools"
)

func main() {
	path := flag.String("db", "", "specify the foldseek_combined.db path to audit (required)")
	query := flag.String("query", "", "specify to only print hits for one query id")
	flag.Parse()
	if *path == "" {
		flag.Usage()
		os.Exit(2)
	}

	// Must match internal/batch's foldseekCompare exactly (plain byte
	// comparison) or kv.Open's B-tree traversal will misorder keys.
	db, err := kv.Open(*path, &kv.Options{Compare: bytes.Compare})
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	it, err := db.SeekFirst()
	if err != nil {
		if err == io.EOF {
			return
		}
		log.Fatal(err)
	}

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	enc := json.NewEncoder(w)

	for {
		_, v, err := it.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			log.Fatal(err)
		}
		var h tools.Hit
		if err := json.Unmarshal(v, &h); err != nil {
			log.Fatalf("corrupt record: %v", err)
		}
		if *query != "" && h.Query != *query {
			continue
		}
		if err := enc.Encode(h); err != nil {
			log.Fatal(err)
		}
	}
	if err := w.Flush(); err != nil {
		log.Fatal(err)
	}
	fmt.Fprintln(os.Stderr, "done")
}
