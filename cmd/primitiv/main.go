// Package main provides the primitiv command: device discovery and a
// numerical self-check of the tensor core.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/menphim/primitiv/backend/cpu"
	"github.com/menphim/primitiv/backend/cuda"
	"github.com/menphim/primitiv/backend/webgpu"
	"github.com/menphim/primitiv/tensor"
)

const version = "v0.1.0"

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "primitiv %s\n\n", version)
	fmt.Fprintln(out, "Usage: primitiv [flags] <command>")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  version    Show version")
	fmt.Fprintln(out, "  devices    List available devices")
	fmt.Fprintln(out, "  selfcheck  Run numerical checks on a device")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Flags:")
	flag.PrintDefaults()
}

func main() {
	klog.InitFlags(nil)
	deviceFlag := flag.String("device", "cpu", "device for selfcheck: cpu, cuda or webgpu")
	gpuFlag := flag.Int("gpu", 0, "CUDA device id")
	seedFlag := flag.Int64("seed", -1, "random seed; negative draws one from the OS")
	flag.Usage = usage
	flag.Parse()
	defer klog.Flush()

	var seed *uint64
	if *seedFlag >= 0 {
		s := uint64(*seedFlag)
		seed = &s
	}

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "version":
		fmt.Printf("primitiv %s\n", version)
	case "devices":
		listDevices(os.Stdout)
	case "selfcheck":
		err = runSelfcheck(*deviceFlag, *gpuFlag, seed)
	case "":
		usage()
	default:
		err = errors.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		klog.ErrorS(err, "primitiv failed")
		klog.Flush()
		os.Exit(1)
	}
}

// openDevice creates the device named by kind.
func openDevice(kind string, gpu int, seed *uint64) (tensor.Device, error) {
	switch kind {
	case "cpu":
		cfg := cpu.DefaultConfig()
		cfg.Seed = seed
		d, err := cpu.New(cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	case "cuda":
		return cuda.Open(cuda.Config{DeviceID: gpu, Seed: seed})
	case "webgpu":
		cfg := webgpu.DefaultConfig()
		cfg.Seed = seed
		return webgpu.Open(cfg)
	default:
		return nil, errors.Errorf("unknown device %q", kind)
	}
}

func runSelfcheck(kind string, gpu int, seed *uint64) error {
	dev, err := openDevice(kind, gpu, seed)
	if err != nil {
		return errors.Wrapf(err, "opening %s", kind)
	}
	defer func() {
		if cerr := dev.Close(); cerr != nil {
			klog.ErrorS(cerr, "closing device", "device", dev.Name())
		}
	}()
	return selfcheck(dev, os.Stdout)
}
