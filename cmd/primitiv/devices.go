package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/menphim/primitiv/backend/cuda"
	"github.com/menphim/primitiv/backend/webgpu"
)

// listDevices prints one line per device kind with its availability.
func listDevices(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE\tAVAILABLE\tDETAIL")
	fmt.Fprintln(tw, "cpu\tyes\thost")

	if n, err := cuda.DeviceCount(); err != nil {
		fmt.Fprintf(tw, "cuda\tno\t%v\n", err)
	} else {
		fmt.Fprintf(tw, "cuda\t%s\t%d device(s)\n", yesNo(n > 0), n)
	}

	if webgpu.IsAvailable() {
		fmt.Fprintln(tw, "webgpu\tyes\tdefault adapter")
	} else {
		fmt.Fprintf(tw, "webgpu\tno\t%v\n", webgpu.ErrNotAvailable)
	}
	tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
