package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/templexxx/raidz"
)

// usage: spaceoverhead <dcols> <parity> <psize> [ashift]
func main() {
	if len(os.Args) < 4 {
		fmt.Println("usage: spaceoverhead <dcols> <parity> <psize> [ashift]")
		os.Exit(1)
	}
	dcols, _ := strconv.Atoi(os.Args[1])
	parity, _ := strconv.Atoi(os.Args[2])
	psize, err := humanize.ParseBytes(os.Args[3])
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	ashift := uint64(12)
	if len(os.Args) > 4 {
		ashift, _ = strconv.ParseUint(os.Args[4], 10, 8)
	}

	// Validates the layout before the size math.
	if _, err = raidz.NewMap(0, int(psize), uint(ashift), dcols, parity); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	asize := raidz.AllocSize(int(psize), uint(ashift), dcols, parity)
	fmt.Println("allocated size :", humanize.IBytes(asize))
	overhead := fmt.Sprintf("%.2f", (float64(asize)-float64(psize))/float64(psize)*100)
	fmt.Println("space overhead :", overhead+`%`)
	ideal := fmt.Sprintf("%.2f", float64(parity)/float64(dcols-parity)*100)
	fmt.Println("parity overhead without padding :", ideal+`%`)
}
