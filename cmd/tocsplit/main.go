// Command tocsplit splits a PDF into one file per chapter using its printed
// table of contents.
package main

import (
	"fmt"
	"os"
)

func main() {
	a, err := defaultApp()
	if err == nil {
		err = newRootCmd(a).Execute()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}
