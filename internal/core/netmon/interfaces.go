package netmon

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"sort"
	"strings"

	"github.com/dep2p/go-relaypool/pkg/types"
)

// Interface 一块网卡的快照
type Interface struct {
	Name  string
	Flags net.Flags
	Addrs []string
}

// InterfaceSource 读取当前网卡列表，测试中可以替换
type InterfaceSource func() ([]Interface, error)

// SystemInterfaces 通过 net.Interfaces 读取网卡
func SystemInterfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	out := make([]Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		info := Interface{Name: iface.Name, Flags: iface.Flags}
		if addrs, err := iface.Addrs(); err == nil {
			for _, a := range addrs {
				info.Addrs = append(info.Addrs, a.String())
			}
		}
		out = append(out, info)
	}
	return out, nil
}

// fingerprint 基于非回环网卡及其地址计算指纹
func fingerprint(ifaces []Interface) string {
	var parts []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs := append([]string(nil), iface.Addrs...)
		sort.Strings(addrs)
		parts = append(parts, iface.Name+":"+iface.Flags.String()+":["+strings.Join(addrs, ",")+"]")
	}
	sort.Strings(parts)

	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h[:])
}

// evaluate 根据网卡快照判定可达性
func evaluate(ifaces []Interface) types.NetworkStatus {
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		for _, a := range iface.Addrs {
			if globalUnicast(a) {
				return types.NetworkSatisfied
			}
		}
	}
	return types.NetworkUnsatisfied
}

// globalUnicast 地址可以是 CIDR 形式（"192.168.1.2/24"）或纯 IP
func globalUnicast(addr string) bool {
	ip, _, err := net.ParseCIDR(addr)
	if err != nil {
		ip = net.ParseIP(addr)
	}
	return ip != nil && ip.IsGlobalUnicast()
}
