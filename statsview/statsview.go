// Package statsview serves runtime statistics of the emulator process over
// HTTP, using github.com/go-echarts/statsview.
//
// After launch, graphs are viewable at:
//
//	localhost:12600/debug/statsview
package statsview

import (
	"fmt"
	"io"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

const Address = "localhost:12600"
const url = "/debug/statsview"

// URL returns where the statistics are served.
func URL() string {
	return "http://" + Address + url
}

// Launch a new goroutine running the statsview server, and report where
// it can be found to output.
func Launch(output io.Writer) {
	go func() {
		viewer.SetConfiguration(viewer.WithAddr(Address))
		mgr := statsview.New()
		mgr.Start()
	}()

	fmt.Fprintf(output, "stats server available at %s\n", URL())
}
