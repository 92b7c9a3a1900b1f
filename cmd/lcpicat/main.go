// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Lcpicat prints the LCPI metric catalog of a micro-architecture in
// the form read by lcpi -catalog.
//
// Usage:
//
//	lcpicat [-counters list] arch
//	lcpicat -l
//
// With -counters, only metrics computable from the listed counters
// and the machine constants are printed, each using its first usable
// formula. The -l flag lists the known architectures.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/op/go-logging"
	"github.com/perfexpert/perfexpert/catalog"
	"github.com/perfexpert/perfexpert/internal/logger"
)

var log = logging.MustGetLogger("lcpicat")

var exit = os.Exit // replaced during testing

func usage() {
	fmt.Fprintf(os.Stderr, `Usage of lcpicat:
	lcpicat [flags] arch
	lcpicat -l
`)
	flag.PrintDefaults()
	exit(2)
}

var (
	flagCounters = flag.String("counters", "", "restrict the catalog to the comma-separated `counters`")
	flagList     = flag.Bool("l", false, "list the known micro-architectures")
	flagVerbose  = flag.Int("v", 0, "log verbosity `level`, 0 to 3")
)

func main() {
	flag.Usage = usage
	flag.Parse()
	if err := logger.Init(*flagVerbose, ""); err != nil {
		log.Fatalf("%v", err)
	}
	if *flagList {
		if err := list(os.Stdout); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}
	if flag.NArg() != 1 {
		flag.Usage()
	}
	if err := show(os.Stdout, flag.Arg(0), *flagCounters); err != nil {
		log.Fatalf("%v", err)
	}
}

func list(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, fam := range catalog.Families() {
		t, err := catalog.Lookup(fam)
		if err != nil {
			return err
		}
		fmt.Fprintf(bw, "%s\tv%d\t%d metrics\tcycles %s\tinstructions %s\n",
			t.Family, t.Version, len(t.Metrics), t.Cycles, t.Instructions)
	}
	return bw.Flush()
}

func show(w io.Writer, arch, counters string) error {
	var avail func(string) bool
	if counters != "" {
		avail = catalog.CounterSet(strings.Split(counters, ","))
	}
	c, err := catalog.Build(arch, avail)
	if err != nil {
		return err
	}
	return c.Write(w)
}
