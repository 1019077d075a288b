package lorawan

import "math/bits"

// NetID is a 24-bit LoRaWAN network identifier, held in the low 24
// bits of a uint32.
type NetID uint32

var idLenTable = [8]uint{6, 6, 9, 11, 12, 13, 15, 17}
var addrLenTable = [8]uint{25, 24, 20, 17, 15, 13, 10, 7}

// netClass returns the NetID class (0..7): the count of leading 1-bits
// of the DevAddr's first byte, capped at 7.
func netClass(devAddr DevAddr) uint {
	firstByte := byte(uint32(devAddr) >> 24)
	n := uint(bits.LeadingZeros8(^firstByte))
	if n > 7 {
		n = 7
	}
	return n
}

func idLen(class uint) uint   { return idLenTable[class] }
func addrLen(class uint) uint { return addrLenTable[class] }

// NetIDOf returns the NetID that a DevAddr belongs to.
func NetIDOf(devAddr DevAddr) NetID {
	class := netClass(devAddr)
	id := (uint32(devAddr) << class) >> (31 - idLen(class))
	return NetID(id | (uint32(class) << 21))
}

// NwkAddr returns the network-address bits of a DevAddr: the part
// local to its NetID, found by masking off the NetID's own class/id
// bits at the top of the address.
func NwkAddr(devAddr DevAddr) uint32 {
	class := netClass(devAddr)
	return uint32(devAddr) & ((1 << addrLen(class)) - 1)
}

// Class recovers the NetID class encoded into its top bits.
func (n NetID) Class() uint {
	return uint(n >> 21)
}

func netidSize(netid NetID) uint64 {
	return uint64(1) << addrLen(netid.Class())
}

// AddrRange is the cumulative [lower, upper) range of subnet addresses
// occupied by a NetID within an ordered NetID list.
type AddrRange struct {
	Lower uint64
	Upper uint64
}

// AddrRanges computes the cumulative subnet ranges for an ordered list
// of local NetIDs, in list order.
func AddrRanges(list []NetID) []AddrRange {
	ranges := make([]AddrRange, len(list))
	var cum uint64
	for i, netid := range list {
		size := netidSize(netid)
		ranges[i] = AddrRange{Lower: cum, Upper: cum + size}
		cum += size
	}
	return ranges
}

// SubnetFromDevAddr maps a DevAddr into the dense subnet address space
// defined by an ordered NetID list: the cumulative size of the
// NetIDs preceding the DevAddr's own NetID, plus its NwkAddr. If the
// DevAddr's NetID is not present in list, this does not fail: it
// silently treats the NetID's range as [0, 0) and returns bare
// NwkAddr(devAddr), matching the legacy behavior (see
// TestLegacyDevAddrSubnetDiscrepancy).
func SubnetFromDevAddr(devAddr DevAddr, list []NetID) (uint64, bool) {
	netid := NetIDOf(devAddr)
	ranges := AddrRanges(list)
	for i, id := range list {
		if id == netid {
			return ranges[i].Lower + uint64(NwkAddr(devAddr)), true
		}
	}
	return uint64(NwkAddr(devAddr)), true
}

// DevAddrFromSubnet is the inverse of SubnetFromDevAddr: it locates the
// NetID owning the subnet address by cumulative-range membership, then
// rebuilds a DevAddr.
func DevAddrFromSubnet(subnet uint64, list []NetID) (DevAddr, bool) {
	ranges := AddrRanges(list)
	for i, r := range ranges {
		if subnet >= r.Lower && subnet < r.Upper {
			netid := list[i]
			nwkAddr := uint32(subnet - r.Lower)
			return devAddrFromNetID(netid, nwkAddr), true
		}
	}
	return 0, false
}

// devAddrFromNetID rebuilds a DevAddr by composing the NetID's class
// prefix with its id bits and the given network address. This follows
// the legacy mapping exactly, including its documented discrepancy
// with the netid/devaddr round trip for some historical NetIDs (see
// DESIGN.md); it is not "corrected".
func devAddrFromNetID(netid NetID, nwkAddr uint32) DevAddr {
	class := netid.Class()
	id := uint32(netid) & 0x1FFFFF // low 21 bits
	prefix := (uint32(1)<<class - 1) << 1
	idBits := idLen(class)
	addrBits := addrLen(class)

	shifted := prefix<<idBits | id
	devAddr := shifted<<addrBits | (nwkAddr & (1<<addrBits - 1))
	return DevAddr(devAddr)
}
