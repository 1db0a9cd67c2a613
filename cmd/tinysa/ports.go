package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/banshee-data/tinysa/internal/device"
)

func (a *app) runPorts(args []string) error {
	fs := a.subcommand("ports", "ports")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	list, err := a.transport.ListPorts()
	if err != nil {
		return fmt.Errorf("%w: %v", device.ErrEnumerationFailed, err)
	}
	defer list.Release()

	ports := list.Ports()
	if len(ports) == 0 {
		fmt.Fprintln(a.stdout, "No serial ports found")
		return nil
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tPORT\tKIND\tUSB ID\tPRODUCT")
	for _, p := range ports {
		mark := ""
		if ok, _ := device.Matches(p, device.TinySA4); ok {
			mark = "*"
		}
		usbID := "-"
		if vid, pid, err := p.USBIdentity(); err == nil {
			usbID = device.Identity{VendorID: vid, ProductID: pid}.String()
		}
		product := p.Product
		if product == "" {
			product = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", mark, p.Name, p.Kind, usbID, product)
	}
	return tw.Flush()
}
