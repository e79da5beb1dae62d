// Command gradecalc is the external CGPA calculator and a small grading
// toolbox.
//
// The server invokes it as
//
//	gradecalc cgpa <matric> <base64-history>
//
// and reads the single number printed on stdout.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
