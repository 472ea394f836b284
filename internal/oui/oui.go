// Package oui implements the static, compiled-in MAC-vendor lookup table
// (C10) the topology maintainer uses to annotate nodes with a vendor name.
package oui

import (
	"net"
	"strings"
)

// table maps a normalized 3-byte OUI prefix ("AABBCC") to a vendor name.
// This is a representative sample of common networking/NIC vendors, not an
// attempt at IEEE-registry completeness — an unknown prefix simply yields
// an empty vendor string rather than an error.
var table = map[string]string{
	"000C29": "VMware",
	"001C42": "Parallels",
	"080027": "Oracle VirtualBox",
	"00155D": "Microsoft Hyper-V",
	"001122": "Cimsys",
	"3C5AB4": "Google",
	"DCA632": "Raspberry Pi Foundation",
	"B827EB": "Raspberry Pi Foundation",
	"E45F01": "Raspberry Pi Foundation",
	"001B63": "Apple",
	"A4C361": "Apple",
	"F0B479": "Apple",
	"1C6B44": "ASUSTek",
	"00E04C": "Realtek",
	"525400": "QEMU",
	"00D861": "Arista Networks",
	"001C73": "Arista Networks",
	"0050F2": "Microsoft",
	"000F3D": "Cisco",
	"0019E8": "Cisco",
	"001F9E": "Cisco",
	"F02F74": "Ubiquiti Networks",
	"24A43C": "Ubiquiti Networks",
	"788A20": "Ubiquiti Networks",
	"BC5FF4": "Juniper Networks",
	"F4B52F": "Juniper Networks",
	"3868DD": "Hewlett Packard",
	"9C8E99": "Hewlett Packard Enterprise",
	"001517": "Dell",
	"D4AE05": "Dell",
	"000569": "VMware",
}

// Lookup returns the vendor name for mac's OUI prefix, or "" if unknown or
// mac doesn't carry a usable hardware address.
func Lookup(mac net.HardwareAddr) string {
	if len(mac) < 3 {
		return ""
	}
	key := strings.ToUpper(strings.ReplaceAll(mac[:3].String(), ":", ""))
	return table[key]
}
