// Package main provides the entry point for gpfifo-replay.
// gpfifo-replay feeds a recorded method trace through the 3D engine and
// reports the resulting state.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/artem8086/skyline/engine"
	"github.com/artem8086/skyline/gmmu"
	"github.com/artem8086/skyline/gpu"
	"github.com/artem8086/skyline/maxwell"
)

var (
	memorySize = flag.Uint64("memory", 256<<20, "Guest memory capacity in bytes")
	verbose    = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: gpfifo-replay [options] <trace.txt>\n")
		fmt.Fprintf(os.Stderr, "\nTrace lines:\n")
		fmt.Fprintf(os.Stderr, "  map <virtAddr> <physAddr> <size>   map guest memory\n")
		fmt.Fprintf(os.Stderr, "  method <offset> <argument> [last]  call one engine method\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	tracePath := flag.Arg(0)
	trace, err := os.Open(tracePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening trace: %v\n", err)
		os.Exit(1)
	}
	defer trace.Close()

	mm := gmmu.NewMemoryManager(*memorySize)
	g := gpu.New(mm)
	syncpoints := engine.NewCountingSyncpoints()
	m3d := engine.NewMaxwell3D(g,
		engine.WithSyncpoints(syncpoints),
	)

	methods, err := replay(trace, mm, m3d)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error at %s: %v\n", tracePath, err)
		os.Exit(1)
	}

	fmt.Printf("Replayed %d methods\n", methods)
	if *verbose {
		for i := 0; i < maxwell.ViewportCount; i++ {
			vp := m3d.Context().Viewport(i)
			if vp == (gpu.Viewport{MaxDepth: 1}) {
				continue
			}
			fmt.Printf("Viewport %d: x=%g y=%g w=%g h=%g depth=[%g,%g]\n",
				i, vp.X, vp.Y, vp.Width, vp.Height, vp.MinDepth, vp.MaxDepth)
		}
		fmt.Printf("Cached texture ranges: %d\n", g.Textures.Len())
	}
}

// replay runs each trace line through the engine, returning the number of
// methods processed.
func replay(trace *os.File, mm *gmmu.MemoryManager, m3d *engine.Maxwell3D) (int, error) {
	scanner := bufio.NewScanner(trace)
	methods := 0
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		switch fields[0] {
		case "map":
			if len(fields) != 4 {
				return methods, fmt.Errorf("line %d: map wants <virtAddr> <physAddr> <size>", line)
			}
			virtAddr, err := parseNum(fields[1])
			if err != nil {
				return methods, fmt.Errorf("line %d: %v", line, err)
			}
			physAddr, err := parseNum(fields[2])
			if err != nil {
				return methods, fmt.Errorf("line %d: %v", line, err)
			}
			size, err := parseNum(fields[3])
			if err != nil {
				return methods, fmt.Errorf("line %d: %v", line, err)
			}
			if err := mm.Map(virtAddr, physAddr, size); err != nil {
				return methods, fmt.Errorf("line %d: %v", line, err)
			}
			if *verbose {
				fmt.Printf("Mapped %#x -> %#x (%d bytes)\n", virtAddr, physAddr, size)
			}

		case "method":
			if len(fields) != 3 && len(fields) != 4 {
				return methods, fmt.Errorf("line %d: method wants <offset> <argument> [last]", line)
			}
			offset, err := parseNum(fields[1])
			if err != nil {
				return methods, fmt.Errorf("line %d: %v", line, err)
			}
			argument, err := parseNum(fields[2])
			if err != nil {
				return methods, fmt.Errorf("line %d: %v", line, err)
			}
			lastCall := len(fields) == 4 && fields[3] == "last"
			if err := m3d.CallMethod(uint32(offset), uint32(argument), lastCall); err != nil {
				return methods, fmt.Errorf("line %d: method %#x: %v", line, offset, err)
			}
			methods++

		default:
			return methods, fmt.Errorf("line %d: unknown directive %q", line, fields[0])
		}
	}
	return methods, scanner.Err()
}

// parseNum accepts decimal or 0x-prefixed hexadecimal.
func parseNum(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", s)
	}
	return v, nil
}
