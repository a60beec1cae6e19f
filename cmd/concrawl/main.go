// Command concrawl crawls a convention's event listing and vendor page, then
// reads every vendor's social timeline and labels their images.
package main

import (
	"fmt"
	"os"

	"github.com/phrazzld/concrawl/internal/redact"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", redact.Error(err))
		os.Exit(1)
	}
}
